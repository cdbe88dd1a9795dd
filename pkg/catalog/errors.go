/*
Copyright 2025 Codenotary Inc. All rights reserved.

SPDX-License-Identifier: BUSL-1.1
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://mariadb.com/bsl11/

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package catalog

import (
	"errors"
	"fmt"

	"github.com/codenotary/colcat/embedded"
	"github.com/codenotary/colcat/pkg/rbac"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrIllegalArguments     = embedded.ErrIllegalArguments
	ErrIllegalState         = embedded.ErrIllegalState
	ErrAlreadyClosed        = embedded.ErrAlreadyClosed
	ErrInvalidOptions       = fmt.Errorf("%w: invalid options", embedded.ErrIllegalArguments)
	ErrNamingConflict       = embedded.ErrNamingConflict
	ErrPermissionDenied     = embedded.ErrPermissionDenied
	ErrInvalidCredentials   = embedded.ErrInvalidCredentials
	ErrUnsupportedOperation = embedded.ErrUnsupportedOperation
	ErrConsistency          = embedded.ErrConsistency
	ErrStoreFailure         = embedded.ErrStoreFailure

	ErrUserNotFound          = fmt.Errorf("user %w", embedded.ErrNotFound)
	ErrUserAlreadyExists     = fmt.Errorf("user %w", embedded.ErrAlreadyExists)
	ErrDatabaseNotFound      = fmt.Errorf("database %w", embedded.ErrNotFound)
	ErrDatabaseAlreadyExists = fmt.Errorf("database %w", embedded.ErrAlreadyExists)
	ErrTableNotFound         = fmt.Errorf("table %w", embedded.ErrNotFound)
	ErrTableAlreadyExists    = fmt.Errorf("table %w", embedded.ErrAlreadyExists)
	ErrColumnNotFound        = fmt.Errorf("column %w", embedded.ErrNotFound)
	ErrColumnAlreadyExists   = fmt.Errorf("column %w", embedded.ErrAlreadyExists)
	ErrDictionaryNotFound    = fmt.Errorf("dictionary %w", embedded.ErrNotFound)
	ErrDashboardNotFound     = fmt.Errorf("dashboard %w", embedded.ErrNotFound)
	ErrDashboardExists       = fmt.Errorf("dashboard %w", embedded.ErrAlreadyExists)
	ErrLinkNotFound          = fmt.Errorf("link %w", embedded.ErrNotFound)
	ErrRoleNotFound          = rbac.ErrRoleNotFound
	ErrRoleAlreadyExists     = rbac.ErrRoleAlreadyExists
	ErrObjectNotFound        = fmt.Errorf("object %w", embedded.ErrNotFound)

	ErrSchemaChangeDone = fmt.Errorf("%w: schema change already rolled", embedded.ErrIllegalState)
)

// ToStatus maps catalog errors to gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code

	switch {
	case errors.Is(err, embedded.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, embedded.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, embedded.ErrNamingConflict):
		code = codes.AlreadyExists
	case errors.Is(err, embedded.ErrPermissionDenied):
		code = codes.PermissionDenied
	case errors.Is(err, embedded.ErrInvalidCredentials):
		code = codes.Unauthenticated
	case errors.Is(err, embedded.ErrIllegalArguments):
		code = codes.InvalidArgument
	case errors.Is(err, embedded.ErrDataConversionOverflow):
		code = codes.OutOfRange
	case errors.Is(err, embedded.ErrUnsupportedOperation):
		code = codes.Unimplemented
	case errors.Is(err, embedded.ErrIllegalState), errors.Is(err, embedded.ErrConsistency):
		code = codes.FailedPrecondition
	case errors.Is(err, embedded.ErrAlreadyClosed):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}

	return status.Error(code, err.Error())
}
