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
	"sort"
)

// ObjectRoleDescriptor is the reverse-lookup entry telling which role holds
// which privileges on an object.
type ObjectRoleDescriptor struct {
	RoleName      string
	RoleType      bool // true for user-private roles
	ObjectType    DBObjectType
	DBID          int32
	ObjectID      int32
	Privileges    Privileges
	ObjectOwnerID int32
	ObjectName    string
}

func (d ObjectRoleDescriptor) Key() DBObjectKey {
	return DBObjectKey{PermissionType: d.ObjectType, DBID: d.DBID, ObjectID: d.ObjectID}
}

// DescriptorFor builds the reverse-lookup entry of a role record.
func DescriptorFor(roleName string, userPrivate bool, obj DBObject) ObjectRoleDescriptor {
	return ObjectRoleDescriptor{
		RoleName:      roleName,
		RoleType:      userPrivate,
		ObjectType:    obj.Key.PermissionType,
		DBID:          obj.Key.DBID,
		ObjectID:      obj.Key.ObjectID,
		Privileges:    obj.Privileges,
		ObjectOwnerID: obj.Owner,
		ObjectName:    obj.Name,
	}
}

// Model is the in-memory access control state: group roles by name, user
// roles by user id and the reverse-lookup descriptors by object key.
// It is not synchronized; callers guard it with the owning catalog locks.
type Model struct {
	roles       map[string]*GroupRole
	userRoles   map[int32]*UserRole
	descriptors map[string][]ObjectRoleDescriptor
}

func NewModel() *Model {
	return &Model{
		roles:       make(map[string]*GroupRole),
		userRoles:   make(map[int32]*UserRole),
		descriptors: make(map[string][]ObjectRoleDescriptor),
	}
}

// Role looks a group role up by name, case-insensitively.
func (m *Model) Role(name string) (*GroupRole, bool) {
	g, ok := m.roles[roleKey(name)]
	return g, ok
}

func (m *Model) UserRole(userID int32) (*UserRole, bool) {
	u, ok := m.userRoles[userID]
	return u, ok
}

// RoleNames returns the original names of every group role, sorted.
func (m *Model) RoleNames() []string {
	names := make([]string, 0, len(m.roles))
	for _, g := range m.roles {
		names = append(names, g.name)
	}
	sort.Strings(names)
	return names
}

func (m *Model) CreateRole(name string, userPrivate bool) (*GroupRole, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty role name", ErrIllegalArguments)
	}

	if _, ok := m.roles[roleKey(name)]; ok {
		return nil, fmt.Errorf("%w: '%s'", ErrRoleAlreadyExists, name)
	}

	g := NewGroupRole(name, userPrivate)
	m.roles[roleKey(name)] = g

	return g, nil
}

// DropRole removes a group role from every member, destroying user roles
// left without any granted role, and erases its descriptors.
func (m *Model) DropRole(name string) error {
	g, ok := m.roles[roleKey(name)]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrRoleNotFound, name)
	}

	for _, u := range g.Members() {
		u.RevokeRole(g)
		if u.Len() == 0 {
			delete(m.userRoles, u.userID)
		}
	}

	delete(m.roles, roleKey(name))
	m.DeleteDescriptorsForRole(g.name)

	return nil
}

// GrantRole grants a group role to a user, creating the user role on first
// use. It reports whether the role was not already granted.
func (m *Model) GrantRole(roleName string, userID int32, userName string) (bool, error) {
	g, ok := m.roles[roleKey(roleName)]
	if !ok {
		return false, fmt.Errorf("%w: '%s'", ErrRoleNotFound, roleName)
	}

	u, ok := m.userRoles[userID]
	if !ok {
		u = NewUserRole(userID, userName)
		m.userRoles[userID] = u
	}

	if u.HasRole(roleName) {
		return false, nil
	}

	u.GrantRole(g)
	return true, nil
}

// RevokeRole removes a granted role, destroying the user role when it is
// left empty.
func (m *Model) RevokeRole(roleName string, userID int32) error {
	g, ok := m.roles[roleKey(roleName)]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrRoleNotFound, roleName)
	}

	u, ok := m.userRoles[userID]
	if !ok || !u.HasRole(roleName) {
		return fmt.Errorf("%w: '%s'", ErrRoleNotGranted, roleName)
	}

	u.RevokeRole(g)
	if u.Len() == 0 {
		delete(m.userRoles, userID)
	}

	return nil
}

// DropUserRole detaches a user from every granted role.
func (m *Model) DropUserRole(userID int32) {
	u, ok := m.userRoles[userID]
	if !ok {
		return
	}

	for _, g := range u.groups {
		delete(g.members, userID)
	}
	delete(m.userRoles, userID)
}

// UpsertDescriptor replaces the descriptor of (role, object) with d.
func (m *Model) UpsertDescriptor(d ObjectRoleDescriptor) {
	k := d.Key().String()

	ds := m.descriptors[k]
	for i := range ds {
		if roleKey(ds[i].RoleName) == roleKey(d.RoleName) {
			ds[i] = d
			return
		}
	}

	m.descriptors[k] = append(ds, d)
}

// DeleteDescriptor erases the descriptor of roleName on key.
func (m *Model) DeleteDescriptor(roleName string, key DBObjectKey) {
	m.filterDescriptors(func(k string, d ObjectRoleDescriptor) bool {
		return k == key.String() && roleKey(d.RoleName) == roleKey(roleName)
	})
}

// DeleteDescriptorsForDB erases every descriptor of roleName scoped to dbID.
func (m *Model) DeleteDescriptorsForDB(roleName string, dbID int32) {
	m.filterDescriptors(func(_ string, d ObjectRoleDescriptor) bool {
		return d.DBID == dbID && roleKey(d.RoleName) == roleKey(roleName)
	})
}

func (m *Model) DeleteDescriptorsForRole(roleName string) {
	m.filterDescriptors(func(_ string, d ObjectRoleDescriptor) bool {
		return roleKey(d.RoleName) == roleKey(roleName)
	})
}

func (m *Model) filterDescriptors(drop func(k string, d ObjectRoleDescriptor) bool) {
	for k, ds := range m.descriptors {
		kept := ds[:0]
		for _, d := range ds {
			if !drop(k, d) {
				kept = append(kept, d)
			}
		}

		if len(kept) == 0 {
			delete(m.descriptors, k)
		} else {
			m.descriptors[k] = kept
		}
	}
}

// Descriptors returns the roles holding privileges on key.
func (m *Model) Descriptors(key DBObjectKey) []ObjectRoleDescriptor {
	ds := m.descriptors[key.String()]

	res := make([]ObjectRoleDescriptor, len(ds))
	copy(res, ds)
	return res
}

// RolesHolding returns every group role with a record for key.
func (m *Model) RolesHolding(key DBObjectKey) []*GroupRole {
	var res []*GroupRole
	for _, name := range m.RoleNames() {
		g := m.roles[roleKey(name)]
		if _, ok := g.objects[key]; ok {
			res = append(res, g)
		}
	}
	return res
}

// Reset drops every role and descriptor.
func (m *Model) Reset() {
	m.roles = make(map[string]*GroupRole)
	m.userRoles = make(map[int32]*UserRole)
	m.descriptors = make(map[string][]ObjectRoleDescriptor)
}
