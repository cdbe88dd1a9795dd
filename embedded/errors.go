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

package embedded

import "errors"

var ErrIllegalArguments = errors.New("illegal arguments")
var ErrIllegalState = errors.New("illegal state")
var ErrAlreadyClosed = errors.New("already closed")

var ErrNotFound = errors.New("not found")
var ErrAlreadyExists = errors.New("already exists")
var ErrNamingConflict = errors.New("naming conflict")
var ErrPermissionDenied = errors.New("permission denied")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrDataConversionOverflow = errors.New("data conversion overflow")
var ErrUnsupportedOperation = errors.New("unsupported operation")
var ErrConsistency = errors.New("consistency error")
var ErrStoreFailure = errors.New("store failure")
