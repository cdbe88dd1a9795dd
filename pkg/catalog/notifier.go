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
	"context"
)

// MetadataNotifier is told about every schema change so that whoever plans
// queries against the catalog can drop its cached view of a table.
type MetadataNotifier interface {
	UpdateMetadata(ctx context.Context, dbName, tableName string) error
}

type NoopNotifier struct{}

func (NoopNotifier) UpdateMetadata(context.Context, string, string) error {
	return nil
}

// NotifierFunc adapts a function to MetadataNotifier.
type NotifierFunc func(ctx context.Context, dbName, tableName string) error

func (f NotifierFunc) UpdateMetadata(ctx context.Context, dbName, tableName string) error {
	return f(ctx, dbName, tableName)
}

// Authenticator is an external credentials backend consulted at login
// before the stored password hash.
type Authenticator interface {
	Authenticate(ctx context.Context, userName, passwd string) (bool, error)
}

// Fragmenter is the storage side handle of a physical table.
type Fragmenter interface {
	TableID() int32
	NumTuples() int64
}

// FragmenterFactory builds the fragmenter of a table on first use. ctx
// carries the read lock held on cat.
type FragmenterFactory func(ctx context.Context, cat *Catalog, td *TableDescriptor) (Fragmenter, error)
