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
	"fmt"
	"strings"
)

// DBObjectType is the kind of entity privileges apply to.
type DBObjectType int32

const (
	AbstractDBObjectType DBObjectType = iota
	DatabaseDBObjectType
	TableDBObjectType
	DashboardDBObjectType
	ViewDBObjectType
)

func (t DBObjectType) String() string {
	switch t {
	case DatabaseDBObjectType:
		return "DATABASE"
	case TableDBObjectType:
		return "TABLE"
	case DashboardDBObjectType:
		return "DASHBOARD"
	case ViewDBObjectType:
		return "VIEW"
	}
	return "ABSTRACT"
}

// ParseDBObjectType accepts the names produced by String.
func ParseDBObjectType(s string) (DBObjectType, error) {
	switch strings.ToUpper(s) {
	case "DATABASE":
		return DatabaseDBObjectType, nil
	case "TABLE":
		return TableDBObjectType, nil
	case "DASHBOARD":
		return DashboardDBObjectType, nil
	case "VIEW":
		return ViewDBObjectType, nil
	}
	return AbstractDBObjectType, fmt.Errorf("%w: unknown object type '%s'", ErrIllegalArguments, s)
}

// Privileges is a bitmask whose meaning depends on the object type it is
// attached to.
type Privileges int64

const (
	NoPrivileges  Privileges = 0
	AllPrivileges Privileges = -1
)

const (
	DatabaseCreate Privileges = 1 << iota
	DatabaseDrop
	DatabaseViewSQLEditor
	DatabaseAccess
)

const (
	TableCreate Privileges = 1 << iota
	TableDrop
	TableSelect
	TableInsert
	TableUpdate
	TableDelete
	TableTruncate
	TableAlter
)

const (
	DashboardCreate Privileges = 1 << iota
	DashboardDelete
	DashboardView
	DashboardEdit
)

const (
	ViewCreate Privileges = 1 << iota
	ViewDrop
	ViewSelect
	ViewInsert
	ViewUpdate
	ViewDelete
)

const (
	AllDatabase  = AllPrivileges
	AllTable     = TableCreate | TableDrop | TableSelect | TableInsert | TableUpdate | TableDelete | TableTruncate | TableAlter
	AllView      = ViewCreate | ViewDrop | ViewSelect | ViewInsert | ViewUpdate | ViewDelete
	AllDashboard = DashboardCreate | DashboardDelete | DashboardView | DashboardEdit

	// granted when upgrading stores that only knew select/insert grants
	AllTableMigrate     = TableCreate | TableDrop | TableSelect | TableInsert
	AllViewMigrate      = ViewCreate | ViewDrop | ViewSelect | ViewInsert
	AllDashboardMigrate = AllDashboard
)

// AllFor returns the full privilege set of an object type.
func AllFor(t DBObjectType) Privileges {
	switch t {
	case TableDBObjectType:
		return AllTable
	case ViewDBObjectType:
		return AllView
	case DashboardDBObjectType:
		return AllDashboard
	}
	return AllDatabase
}

func (p Privileges) Has(other Privileges) bool {
	return p&other == other
}

func (p Privileges) HasAny() bool {
	return p != NoPrivileges
}

// DatabaseWide is the object id of the record covering every object of one
// type within a database.
const DatabaseWide int32 = -1

// DBObjectKey identifies a privilege-able entity.
type DBObjectKey struct {
	PermissionType DBObjectType
	DBID           int32
	ObjectID       int32
}

// String renders the key as "db:type:object".
func (k DBObjectKey) String() string {
	return fmt.Sprintf("%d:%d:%d", k.DBID, k.PermissionType, k.ObjectID)
}

// Wide returns the database-wide key of the same type.
func (k DBObjectKey) Wide() DBObjectKey {
	return DBObjectKey{PermissionType: k.PermissionType, DBID: k.DBID, ObjectID: DatabaseWide}
}

func (k DBObjectKey) IsWide() bool {
	return k.ObjectID == DatabaseWide
}

// DBObject carries the privileges held on, or requested for, an entity.
type DBObject struct {
	Name       string
	Type       DBObjectType
	Key        DBObjectKey
	Privileges Privileges
	Owner      int32
}

// NewDBObject returns an object whose key is still to be loaded.
func NewDBObject(name string, t DBObjectType) DBObject {
	return DBObject{
		Name: name,
		Type: t,
		Key:  DBObjectKey{PermissionType: t, ObjectID: DatabaseWide},
	}
}

// NewDBObjectWithKey returns an object requesting privs on key.
func NewDBObjectWithKey(name string, key DBObjectKey, privs Privileges) DBObject {
	return DBObject{
		Name:       name,
		Type:       key.PermissionType,
		Key:        key,
		Privileges: privs,
	}
}

func (o *DBObject) Grant(p Privileges) {
	o.Privileges |= p
}

func (o *DBObject) Revoke(p Privileges) {
	o.Privileges &^= p
}

func (o DBObject) HasPermission(p Privileges) bool {
	return o.Privileges.Has(p)
}

// IsAllOnDatabase reports whether o asks for every privilege on a database.
func (o DBObject) IsAllOnDatabase() bool {
	return o.Key.PermissionType == DatabaseDBObjectType && o.Privileges == AllDatabase
}
