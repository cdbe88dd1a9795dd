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
	"sort"
	"strings"
)

// Role is either a *GroupRole or a *UserRole.
type Role interface {
	Name() string

	isRole()
}

// GroupRole is a named set of object privileges. A user-private group role
// carries the name of its user.
type GroupRole struct {
	name        string
	userPrivate bool

	objects map[DBObjectKey]DBObject
	members map[int32]*UserRole
}

func NewGroupRole(name string, userPrivate bool) *GroupRole {
	return &GroupRole{
		name:        name,
		userPrivate: userPrivate,
		objects:     make(map[DBObjectKey]DBObject),
		members:     make(map[int32]*UserRole),
	}
}

func (*GroupRole) isRole() {}

func (g *GroupRole) Name() string {
	return g.name
}

func (g *GroupRole) IsUserPrivate() bool {
	return g.userPrivate
}

// Objects returns a copy of the records held by the role ordered by key.
func (g *GroupRole) Objects() []DBObject {
	objs := make([]DBObject, 0, len(g.objects))
	for _, o := range g.objects {
		objs = append(objs, o)
	}

	sort.Slice(objs, func(i, j int) bool {
		return lessKey(objs[i].Key, objs[j].Key)
	})

	return objs
}

func (g *GroupRole) Members() []*UserRole {
	users := make([]*UserRole, 0, len(g.members))
	for _, u := range g.members {
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].userID < users[j].userID })

	return users
}

// FindDBObject returns the record stored for key, without falling back to
// the database-wide record.
func (g *GroupRole) FindDBObject(key DBObjectKey) (DBObject, bool) {
	o, ok := g.objects[key]
	return o, ok
}

// GrantPrivileges merges obj into the record stored for its key.
func (g *GroupRole) GrantPrivileges(obj DBObject) {
	if o, ok := g.objects[obj.Key]; ok {
		o.Grant(obj.Privileges)
		g.objects[obj.Key] = o
		return
	}

	g.objects[obj.Key] = obj
}

// RevokePrivileges removes obj privileges from the record stored for its key.
// It returns the remaining record, or false when nothing is left and the
// record was erased.
func (g *GroupRole) RevokePrivileges(obj DBObject) (DBObject, bool) {
	o, ok := g.objects[obj.Key]
	if !ok {
		return DBObject{}, false
	}

	o.Revoke(obj.Privileges)
	if !o.Privileges.HasAny() {
		delete(g.objects, obj.Key)
		return DBObject{}, false
	}

	g.objects[obj.Key] = o
	return o, true
}

// RevokeAllOnDatabase erases every record scoped to dbID.
func (g *GroupRole) RevokeAllOnDatabase(dbID int32) {
	for k := range g.objects {
		if k.DBID == dbID {
			delete(g.objects, k)
		}
	}
}

// GetPrivileges fills obj with the privileges and owner recorded for its key.
func (g *GroupRole) GetPrivileges(obj *DBObject) bool {
	o, ok := g.objects[obj.Key]
	if !ok {
		return false
	}

	obj.Privileges = o.Privileges
	obj.Owner = o.Owner
	return true
}

func (g *GroupRole) effective(key DBObjectKey) Privileges {
	p := NoPrivileges

	if o, ok := g.objects[key]; ok {
		p |= o.Privileges
	}
	if !key.IsWide() {
		if o, ok := g.objects[key.Wide()]; ok {
			p |= o.Privileges
		}
	}

	return p
}

func (g *GroupRole) CheckPrivileges(obj DBObject) bool {
	return g.effective(obj.Key).Has(obj.Privileges)
}

func (g *GroupRole) HasAnyPrivileges(obj DBObject) bool {
	return g.effective(obj.Key).HasAny()
}

// UserRole links one user to the group roles granted to them.
type UserRole struct {
	userID   int32
	userName string

	groups map[string]*GroupRole
}

func NewUserRole(userID int32, userName string) *UserRole {
	return &UserRole{
		userID:   userID,
		userName: userName,
		groups:   make(map[string]*GroupRole),
	}
}

func (*UserRole) isRole() {}

func (u *UserRole) Name() string {
	return u.userName
}

func (u *UserRole) UserID() int32 {
	return u.userID
}

func (u *UserRole) GrantRole(g *GroupRole) {
	u.groups[roleKey(g.name)] = g
	g.members[u.userID] = u
}

func (u *UserRole) RevokeRole(g *GroupRole) {
	delete(u.groups, roleKey(g.name))
	delete(g.members, u.userID)
}

func (u *UserRole) HasRole(name string) bool {
	_, ok := u.groups[roleKey(name)]
	return ok
}

// Roles returns the names of the granted group roles, sorted.
func (u *UserRole) Roles() []string {
	names := make([]string, 0, len(u.groups))
	for _, g := range u.groups {
		names = append(names, g.name)
	}
	sort.Strings(names)
	return names
}

func (u *UserRole) Len() int {
	return len(u.groups)
}

// FindDBObject returns the union of the records held for key by every
// granted role.
func (u *UserRole) FindDBObject(key DBObjectKey) (DBObject, bool) {
	var found bool
	var merged DBObject

	for _, g := range u.groups {
		o, ok := g.objects[key]
		if !ok {
			continue
		}
		if !found {
			merged = o
			found = true
			continue
		}
		merged.Grant(o.Privileges)
	}

	return merged, found
}

func (u *UserRole) effective(key DBObjectKey) Privileges {
	p := NoPrivileges
	for _, g := range u.groups {
		p |= g.effective(key)
	}
	return p
}

func (u *UserRole) CheckPrivileges(obj DBObject) bool {
	return u.effective(obj.Key).Has(obj.Privileges)
}

func (u *UserRole) HasAnyPrivileges(obj DBObject) bool {
	return u.effective(obj.Key).HasAny()
}

// Owns reports whether a granted role records key as owned by the user.
func (u *UserRole) Owns(key DBObjectKey) bool {
	for _, g := range u.groups {
		if o, ok := g.objects[key]; ok && o.Owner == u.userID {
			return true
		}
	}
	return false
}

// FindDBObject dispatches on the role variant.
func FindDBObject(r Role, key DBObjectKey) (DBObject, bool) {
	switch r := r.(type) {
	case *GroupRole:
		return r.FindDBObject(key)
	case *UserRole:
		return r.FindDBObject(key)
	}
	return DBObject{}, false
}

// CheckPrivileges dispatches on the role variant.
func CheckPrivileges(r Role, obj DBObject) bool {
	switch r := r.(type) {
	case *GroupRole:
		return r.CheckPrivileges(obj)
	case *UserRole:
		return r.CheckPrivileges(obj)
	}
	return false
}

// HasAnyPrivileges dispatches on the role variant.
func HasAnyPrivileges(r Role, obj DBObject) bool {
	switch r := r.(type) {
	case *GroupRole:
		return r.HasAnyPrivileges(obj)
	case *UserRole:
		return r.HasAnyPrivileges(obj)
	}
	return false
}

func roleKey(name string) string {
	return strings.ToUpper(name)
}

func lessKey(a, b DBObjectKey) bool {
	if a.DBID != b.DBID {
		return a.DBID < b.DBID
	}
	if a.PermissionType != b.PermissionType {
		return a.PermissionType < b.PermissionType
	}
	return a.ObjectID < b.ObjectID
}
