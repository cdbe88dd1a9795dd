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

package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDBObjectKeyString(t *testing.T) {
	k := DBObjectKey{PermissionType: TableDBObjectType, DBID: 3, ObjectID: 7}
	require.Equal(t, "3:2:7", k.String())
	require.False(t, k.IsWide())
	require.Equal(t, "3:2:-1", k.Wide().String())
	require.True(t, k.Wide().IsWide())
}

func TestPrivilegesBits(t *testing.T) {
	require.True(t, AllTable.Has(TableSelect|TableInsert))
	require.False(t, TableSelect.Has(TableSelect|TableInsert))
	require.True(t, AllDatabase.Has(DatabaseAccess))
	require.False(t, AllTable.Has(AllDatabase))
	require.True(t, AllTable.Has(AllTableMigrate))
	require.Equal(t, AllView, AllFor(ViewDBObjectType))
	require.Equal(t, AllDatabase, AllFor(DatabaseDBObjectType))
}

func TestDBObjectGrantRevoke(t *testing.T) {
	o := NewDBObject("t1", TableDBObjectType)
	require.Equal(t, DatabaseWide, o.Key.ObjectID)

	o.Grant(TableSelect)
	o.Grant(TableInsert)
	require.True(t, o.HasPermission(TableSelect|TableInsert))

	o.Revoke(TableSelect)
	require.False(t, o.HasPermission(TableSelect))
	require.True(t, o.HasPermission(TableInsert))

	all := NewDBObjectWithKey("d1", DBObjectKey{PermissionType: DatabaseDBObjectType, DBID: 2, ObjectID: DatabaseWide}, AllDatabase)
	require.True(t, all.IsAllOnDatabase())

	all.Revoke(AllDatabase)
	require.False(t, all.IsAllOnDatabase())
	require.Equal(t, NoPrivileges, all.Privileges)
}

func TestParseDBObjectType(t *testing.T) {
	for _, typ := range []DBObjectType{DatabaseDBObjectType, TableDBObjectType, DashboardDBObjectType, ViewDBObjectType} {
		parsed, err := ParseDBObjectType(typ.String())
		require.NoError(t, err)
		require.Equal(t, typ, parsed)
	}

	_, err := ParseDBObjectType("schema")
	require.ErrorIs(t, err, ErrIllegalArguments)
}
