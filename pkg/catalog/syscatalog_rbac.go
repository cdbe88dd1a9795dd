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
	"database/sql"
	"errors"
	"fmt"

	"github.com/codenotary/colcat/pkg/lock"
	"github.com/codenotary/colcat/pkg/rbac"
)

var ErrPrivilegesOff = fmt.Errorf("%w: role based access control is off", ErrUnsupportedOperation)

func (sc *SysCatalog) requireRBAC() error {
	if !sc.opts.privilegesOn {
		return ErrPrivilegesOff
	}
	return nil
}

// rbacTx runs fn in a store transaction. When the outermost transaction
// fails the access control model is rebuilt from the store, dropping any
// in-memory change fn made before failing.
func (sc *SysCatalog) rbacTx(ctx context.Context, fn func(ctx context.Context) error) error {
	nested := sc.store.TxDepth() > 0

	err := sc.store.InTx(ctx, fn)
	if err == nil || nested || !sc.opts.privilegesOn {
		return err
	}

	rerr := sc.loadRBAC(ctx)
	if rerr != nil {
		sc.log.Errorf("rebuilding access control state after a failed transaction: %v", rerr)
	}

	return err
}

type objectPermissionRow struct {
	roleName    string
	userPrivate bool
	obj         rbac.DBObject
}

func (sc *SysCatalog) objectPermissionRows(ctx context.Context) ([]objectPermissionRow, error) {
	var res []objectPermissionRow

	err := sc.store.Each(ctx, `SELECT roleName, roleType, objectPermissionsType, dbId, objectId,
		objectPermissions, objectOwnerId, objectName FROM object_permissions`, nil,
		func(rows *sql.Rows) error {
			var (
				r     objectPermissionRow
				typ   int32
				privs int64
				owner sql.NullInt32
				name  sql.NullString
			)

			err := rows.Scan(&r.roleName, &r.userPrivate, &typ, &r.obj.Key.DBID, &r.obj.Key.ObjectID, &privs, &owner, &name)
			if err != nil {
				return err
			}

			r.obj.Key.PermissionType = rbac.DBObjectType(typ)
			r.obj.Privileges = rbac.Privileges(privs)
			r.obj.Owner = owner.Int32
			r.obj.Name = name.String

			if r.obj.Key.IsWide() {
				r.obj.Type = rbac.DatabaseDBObjectType
			} else {
				r.obj.Type = r.obj.Key.PermissionType
			}

			res = append(res, r)
			return nil
		})

	return res, err
}

// loadRBAC rebuilds roles, user roles and the reverse-lookup descriptors
// from the store.
func (sc *SysCatalog) loadRBAC(ctx context.Context) error {
	sc.model.Reset()

	rows, err := sc.objectPermissionRows(ctx)
	if err != nil {
		return err
	}

	for _, r := range rows {
		g, ok := sc.model.Role(r.roleName)
		if !ok {
			g, err = sc.model.CreateRole(r.roleName, r.userPrivate)
			if err != nil {
				return err
			}
		}
		g.GrantPrivileges(r.obj)

		sc.model.UpsertDescriptor(rbac.DescriptorFor(r.roleName, r.userPrivate, r.obj))
	}

	type grant struct{ role, user string }
	var grants []grant

	err = sc.store.Each(ctx, "SELECT roleName, userName FROM roles", nil, func(rows *sql.Rows) error {
		var g grant
		err := rows.Scan(&g.role, &g.user)
		if err != nil {
			return err
		}
		grants = append(grants, g)
		return nil
	})
	if err != nil {
		return err
	}

	for _, g := range grants {
		if _, ok := sc.model.Role(g.role); !ok {
			return fmt.Errorf("%w: role '%s' granted to '%s' has no privileges record", ErrConsistency, g.role, g.user)
		}

		user, err := sc.metadataForUser(ctx, g.user)
		if errors.Is(err, ErrUserNotFound) {
			return fmt.Errorf("%w: role '%s' granted to unknown user '%s'", ErrConsistency, g.role, g.user)
		}
		if err != nil {
			return err
		}

		_, err = sc.model.GrantRole(g.role, user.UserID, user.UserName)
		if err != nil {
			return err
		}
	}

	return nil
}

func (sc *SysCatalog) insertOrUpdateObjectPrivileges(ctx context.Context, roleName string, userPrivate bool, obj rbac.DBObject) error {
	_, err := sc.store.Exec(ctx, `INSERT OR REPLACE INTO object_permissions (roleName, roleType,
		objectPermissionsType, dbId, objectId, objectPermissions, objectOwnerId, objectName)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		roleName, userPrivate, int32(obj.Key.PermissionType), obj.Key.DBID, obj.Key.ObjectID,
		int64(obj.Privileges), obj.Owner, obj.Name)
	return err
}

func (sc *SysCatalog) deleteObjectPrivileges(ctx context.Context, roleName string, userPrivate bool, key rbac.DBObjectKey) error {
	_, err := sc.store.Exec(ctx, `DELETE FROM object_permissions WHERE roleName = ? AND roleType = ?
		AND objectPermissionsType = ? AND dbId = ? AND objectId = ?`,
		roleName, userPrivate, int32(key.PermissionType), key.DBID, key.ObjectID)
	return err
}

// Roles

func (sc *SysCatalog) CreateRole(ctx context.Context, name string, userPrivate bool) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		return sc.createRole(ctx, name, userPrivate)
	})
}

func (sc *SysCatalog) createRole(ctx context.Context, name string, userPrivate bool) error {
	if !userPrivate {
		_, err := sc.metadataForUser(ctx, name)
		if err == nil {
			return fmt.Errorf("%w: role name '%s' is already a user name", ErrNamingConflict, name)
		}
		if !errors.Is(err, ErrUserNotFound) {
			return err
		}
	}

	role, err := sc.model.CreateRole(name, userPrivate)
	if err != nil {
		return err
	}

	// every role starts with an empty record on a database that does not exist
	obj := rbac.NewDBObjectWithKey(sc.currentDB.DBName, rbac.DBObjectKey{
		PermissionType: rbac.DatabaseDBObjectType,
		DBID:           0,
		ObjectID:       rbac.DatabaseWide,
	}, rbac.NoPrivileges)
	role.GrantPrivileges(obj)

	return sc.insertOrUpdateObjectPrivileges(ctx, name, userPrivate, obj)
}

// DropRole drops a group role. Private roles go away with their user.
func (sc *SysCatalog) DropRole(ctx context.Context, name string) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	role, ok := sc.model.Role(name)
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrRoleNotFound, name)
	}

	if role.IsUserPrivate() {
		return fmt.Errorf("%w: '%s' is the private role of a user", ErrIllegalArguments, name)
	}

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		return sc.dropRole(ctx, name)
	})
}

func (sc *SysCatalog) dropRole(ctx context.Context, name string) error {
	err := sc.model.DropRole(name)
	if err != nil {
		return err
	}

	_, err = sc.store.Exec(ctx, "DELETE FROM roles WHERE roleName = ?", name)
	if err != nil {
		return err
	}

	_, err = sc.store.Exec(ctx, "DELETE FROM object_permissions WHERE roleName = ?", name)
	return err
}

func (sc *SysCatalog) GrantRole(ctx context.Context, roleName, userName string) error {
	return sc.GrantRoleBatch(ctx, []string{roleName}, []string{userName})
}

// GrantRoleBatch grants every role to every user in one transaction.
func (sc *SysCatalog) GrantRoleBatch(ctx context.Context, roles, users []string) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		for _, role := range roles {
			for _, user := range users {
				err := sc.grantRole(ctx, role, user)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (sc *SysCatalog) grantRole(ctx context.Context, roleName, userName string) error {
	if _, ok := sc.model.Role(roleName); !ok {
		return fmt.Errorf("%w: '%s'", ErrRoleNotFound, roleName)
	}

	user, err := sc.metadataForUser(ctx, userName)
	if err != nil {
		return err
	}

	granted, err := sc.model.GrantRole(roleName, user.UserID, user.UserName)
	if err != nil || !granted {
		return err
	}

	_, err = sc.store.Exec(ctx, "INSERT INTO roles (roleName, userName) VALUES (?, ?)", roleName, userName)
	return err
}

func (sc *SysCatalog) RevokeRole(ctx context.Context, roleName, userName string) error {
	return sc.RevokeRoleBatch(ctx, []string{roleName}, []string{userName})
}

func (sc *SysCatalog) RevokeRoleBatch(ctx context.Context, roles, users []string) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		for _, role := range roles {
			for _, user := range users {
				err := sc.revokeRole(ctx, role, user)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (sc *SysCatalog) revokeRole(ctx context.Context, roleName, userName string) error {
	if _, ok := sc.model.Role(roleName); !ok {
		return fmt.Errorf("%w: '%s'", ErrRoleNotFound, roleName)
	}

	_, err := sc.metadataForUser(ctx, roleName)
	if err == nil {
		return fmt.Errorf("%w: '%s' is the private role of a user", ErrIllegalArguments, roleName)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	user, err := sc.metadataForUser(ctx, userName)
	if err != nil {
		return err
	}

	err = sc.model.RevokeRole(roleName, user.UserID)
	if err != nil {
		return err
	}

	_, err = sc.store.Exec(ctx, "DELETE FROM roles WHERE roleName = ? AND userName = ?", roleName, userName)
	return err
}

// Object privileges

func (sc *SysCatalog) GrantDBObjectPrivileges(ctx context.Context, grantee string, obj rbac.DBObject, cat *Catalog) error {
	return sc.GrantDBObjectPrivilegesBatch(ctx, []string{grantee}, []rbac.DBObject{obj}, cat)
}

// GrantDBObjectPrivilegesBatch grants every object to every grantee in one
// transaction. Object keys are resolved against cat.
func (sc *SysCatalog) GrantDBObjectPrivilegesBatch(ctx context.Context, grantees []string, objs []rbac.DBObject, cat *Catalog) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	objs, err = sc.loadKeys(ctx, objs, cat)
	if err != nil {
		return err
	}

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		for _, grantee := range grantees {
			for _, obj := range objs {
				err := sc.grantDBObjectPrivileges(ctx, grantee, obj)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (sc *SysCatalog) loadKeys(ctx context.Context, objs []rbac.DBObject, cat *Catalog) ([]rbac.DBObject, error) {
	res := make([]rbac.DBObject, len(objs))

	for i, obj := range objs {
		err := cat.LoadKey(ctx, &obj)
		if err != nil {
			return nil, err
		}
		res[i] = obj
	}

	return res, nil
}

// allOnDatabase splits ALL on a database into ALL on each kind of object of
// that database.
func allOnDatabase(obj rbac.DBObject) []rbac.DBObject {
	var res []rbac.DBObject

	for _, t := range []rbac.DBObjectType{rbac.TableDBObjectType, rbac.ViewDBObjectType, rbac.DashboardDBObjectType} {
		o := obj
		o.Key.PermissionType = t
		o.Privileges = rbac.AllFor(t)
		res = append(res, o)
	}

	return res
}

func (sc *SysCatalog) grantDBObjectPrivileges(ctx context.Context, roleName string, obj rbac.DBObject) error {
	if obj.IsAllOnDatabase() {
		for _, o := range allOnDatabase(obj) {
			err := sc.grantDBObjectPrivileges(ctx, roleName, o)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if sc.isRoot(roleName) {
		return fmt.Errorf("%w: the root user holds every privilege", ErrPermissionDenied)
	}

	role, ok := sc.model.Role(roleName)
	if !ok {
		return fmt.Errorf("%w: no role or user named '%s'", ErrRoleNotFound, roleName)
	}

	role.GrantPrivileges(obj)

	merged := obj
	role.GetPrivileges(&merged)

	err := sc.insertOrUpdateObjectPrivileges(ctx, roleName, role.IsUserPrivate(), merged)
	if err != nil {
		return err
	}

	sc.model.UpsertDescriptor(rbac.DescriptorFor(role.Name(), role.IsUserPrivate(), merged))

	return nil
}

func (sc *SysCatalog) RevokeDBObjectPrivileges(ctx context.Context, grantee string, obj rbac.DBObject, cat *Catalog) error {
	return sc.RevokeDBObjectPrivilegesBatch(ctx, []string{grantee}, []rbac.DBObject{obj}, cat)
}

func (sc *SysCatalog) RevokeDBObjectPrivilegesBatch(ctx context.Context, grantees []string, objs []rbac.DBObject, cat *Catalog) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	objs, err = sc.loadKeys(ctx, objs, cat)
	if err != nil {
		return err
	}

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		for _, grantee := range grantees {
			for _, obj := range objs {
				err := sc.revokeDBObjectPrivileges(ctx, grantee, obj)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (sc *SysCatalog) revokeDBObjectPrivileges(ctx context.Context, roleName string, obj rbac.DBObject) error {
	if sc.isRoot(roleName) {
		return fmt.Errorf("%w: privileges cannot be revoked from the root user", ErrPermissionDenied)
	}

	role, ok := sc.model.Role(roleName)
	if !ok {
		return fmt.Errorf("%w: no role or user named '%s'", ErrRoleNotFound, roleName)
	}

	if obj.IsAllOnDatabase() {
		return sc.revokeAllOnDatabase(ctx, role, obj.Key.DBID)
	}

	remaining, ok := role.RevokePrivileges(obj)
	if ok {
		err := sc.insertOrUpdateObjectPrivileges(ctx, role.Name(), role.IsUserPrivate(), remaining)
		if err != nil {
			return err
		}

		sc.model.UpsertDescriptor(rbac.DescriptorFor(role.Name(), role.IsUserPrivate(), remaining))
		return nil
	}

	err := sc.deleteObjectPrivileges(ctx, role.Name(), role.IsUserPrivate(), obj.Key)
	if err != nil {
		return err
	}

	sc.model.DeleteDescriptor(role.Name(), obj.Key)

	return nil
}

func (sc *SysCatalog) revokeAllOnDatabase(ctx context.Context, role *rbac.GroupRole, dbID int32) error {
	_, err := sc.store.Exec(ctx, "DELETE FROM object_permissions WHERE roleName = ? AND dbId = ?", role.Name(), dbID)
	if err != nil {
		return err
	}

	role.RevokeAllOnDatabase(dbID)
	sc.model.DeleteDescriptorsForDB(role.Name(), dbID)

	return nil
}

func (sc *SysCatalog) revokeAllOnDatabaseFromAllRoles(ctx context.Context, dbID int32) error {
	for _, name := range sc.model.RoleNames() {
		role, _ := sc.model.Role(name)

		for _, obj := range role.Objects() {
			if obj.Key.DBID != dbID {
				continue
			}

			err := sc.revokeAllOnDatabase(ctx, role, dbID)
			if err != nil {
				return err
			}
			break
		}
	}

	return nil
}

// RevokeDBObjectPrivilegesFromAllRoles removes obj from every role holding
// privileges on it. Used when the object is dropped.
func (sc *SysCatalog) RevokeDBObjectPrivilegesFromAllRoles(ctx context.Context, obj rbac.DBObject, cat *Catalog) error {
	if !sc.opts.privilegesOn {
		return nil
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	err := cat.LoadKey(ctx, &obj)
	if err != nil {
		return err
	}

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		return sc.revokeFromAllRoles(ctx, obj)
	})
}

func (sc *SysCatalog) revokeFromAllRoles(ctx context.Context, obj rbac.DBObject) error {
	obj.Privileges = rbac.AllFor(obj.Key.PermissionType)

	for _, role := range sc.model.RolesHolding(obj.Key) {
		err := sc.revokeDBObjectPrivileges(ctx, role.Name(), obj)
		if err != nil {
			return err
		}
	}

	return nil
}

// CreateDBObject records user as the owner of a new object and grants them
// every privilege on it.
func (sc *SysCatalog) CreateDBObject(ctx context.Context, user UserMetadata, objName string, t rbac.DBObjectType, cat *Catalog, objectID int32) error {
	if !sc.opts.privilegesOn {
		return nil
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	obj := rbac.NewDBObject(objName, t)
	if objectID != rbac.DatabaseWide {
		obj.Key.ObjectID = objectID
	}

	err := cat.LoadKey(ctx, &obj)
	if err != nil {
		return err
	}

	switch t {
	case rbac.TableDBObjectType:
		obj.Privileges = rbac.AllTable
	case rbac.DashboardDBObjectType:
		obj.Privileges = rbac.AllDashboard
	default:
		obj.Privileges = rbac.AllDatabase
	}
	obj.Owner = user.UserID

	if sc.isRoot(user.UserName) {
		return nil
	}

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		return sc.grantDBObjectPrivileges(ctx, user.UserName, obj)
	})
}

// populateRoleDBObjects grants recorded objects to the private role of
// their owners.
func (sc *SysCatalog) populateRoleDBObjects(ctx context.Context, objs []rbac.DBObject) error {
	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	return sc.rbacTx(ctx, func(ctx context.Context) error {
		for _, obj := range objs {
			ur, ok := sc.model.UserRole(obj.Owner)
			if !ok {
				continue
			}

			role, ok := sc.model.Role(ur.Name())
			if !ok {
				err := sc.insertOrUpdateObjectPrivileges(ctx, ur.Name(), true, obj)
				if err != nil {
					return err
				}
				continue
			}

			err := sc.grantDBObjectPrivileges(ctx, role.Name(), obj)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// VerifyDBObjectOwnership reports whether user owns obj.
func (sc *SysCatalog) VerifyDBObjectOwnership(ctx context.Context, user UserMetadata, obj rbac.DBObject, cat *Catalog) (bool, error) {
	ctx, g := lock.Read(ctx, sc)
	defer g.Release()

	ur, ok := sc.model.UserRole(user.UserID)
	if !ok {
		return false, nil
	}

	err := cat.LoadKey(ctx, &obj)
	if err != nil {
		return false, err
	}

	found, ok := ur.FindDBObject(obj.Key)

	return ok && found.Owner == user.UserID, nil
}

// CheckPrivilegesOnObjects reports whether user holds the privileges
// requested by every object. Keys must be loaded.
func (sc *SysCatalog) CheckPrivilegesOnObjects(ctx context.Context, user UserMetadata, objs []rbac.DBObject) (bool, error) {
	return sc.checkObjects(ctx, user, objs, (*rbac.UserRole).CheckPrivileges)
}

// HasAnyPrivileges reports whether user holds some privilege on every
// object. Keys must be loaded.
func (sc *SysCatalog) HasAnyPrivileges(ctx context.Context, user UserMetadata, objs []rbac.DBObject) (bool, error) {
	return sc.checkObjects(ctx, user, objs, (*rbac.UserRole).HasAnyPrivileges)
}

func (sc *SysCatalog) checkObjects(ctx context.Context, user UserMetadata, objs []rbac.DBObject, check func(*rbac.UserRole, rbac.DBObject) bool) (bool, error) {
	err := sc.requireRBAC()
	if err != nil {
		return false, err
	}

	if user.IsSuper {
		return true, nil
	}

	_, g := lock.Read(ctx, sc)
	defer g.Release()

	ur, ok := sc.model.UserRole(user.UserID)
	if !ok {
		return false, fmt.Errorf("%w: '%s'", ErrUserNotFound, user.UserName)
	}

	for _, obj := range objs {
		if !check(ur, obj) {
			return false, nil
		}
	}

	return true, nil
}

// CheckDBAccessPrivileges checks user privileges on an object of cat named
// objName. With access control off, legacy insert privilege on the database
// is required instead.
func (sc *SysCatalog) CheckDBAccessPrivileges(ctx context.Context, user UserMetadata, cat *Catalog, t rbac.DBObjectType, privs rbac.Privileges, objName string) (bool, error) {
	if !sc.opts.privilegesOn {
		return sc.CheckPrivileges(ctx, user, cat.CurrentDB(), LegacyPrivileges{Insert: true})
	}

	obj := rbac.NewDBObject(objName, t)
	if t == rbac.DatabaseDBObjectType {
		obj.Name = cat.CurrentDB().DBName
	}

	err := cat.LoadKey(ctx, &obj)
	if err != nil {
		return false, err
	}
	obj.Privileges = privs

	return sc.CheckPrivilegesOnObjects(ctx, user, []rbac.DBObject{obj})
}

// GetDBObjectPrivileges fills obj with the privileges roleName holds on it.
func (sc *SysCatalog) GetDBObjectPrivileges(ctx context.Context, roleName string, obj *rbac.DBObject, cat *Catalog) error {
	err := sc.requireRBAC()
	if err != nil {
		return err
	}

	if sc.isRoot(roleName) {
		return fmt.Errorf("%w: the root user holds every privilege", ErrPermissionDenied)
	}

	ctx, g := lock.Read(ctx, sc)
	defer g.Release()

	role, ok := sc.model.Role(roleName)
	if !ok {
		return fmt.Errorf("%w: no role or user named '%s'", ErrRoleNotFound, roleName)
	}

	err = cat.LoadKey(ctx, obj)
	if err != nil {
		return err
	}

	if !role.GetPrivileges(obj) {
		obj.Privileges = rbac.NoPrivileges
	}

	return nil
}

// GetRolePrivileges returns the records held by a role.
func (sc *SysCatalog) GetRolePrivileges(ctx context.Context, roleName string) ([]rbac.DBObject, error) {
	_, g := lock.Read(ctx, sc)
	defer g.Release()

	role, ok := sc.model.Role(roleName)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrRoleNotFound, roleName)
	}

	return role.Objects(), nil
}

// GetRoles returns the group roles holding some privilege in dbID.
func (sc *SysCatalog) GetRoles(ctx context.Context, dbID int32) ([]string, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	var roles []string

	err := sc.store.Each(ctx, `SELECT DISTINCT roleName FROM object_permissions
		WHERE objectPermissions <> 0 AND roleType = 0 AND dbId = ? ORDER BY roleName`,
		[]interface{}{dbID}, func(rows *sql.Rows) error {
			var name string
			err := rows.Scan(&name)
			if err != nil {
				return err
			}
			roles = append(roles, name)
			return nil
		})

	return roles, err
}

// GetRolesFor lists role names visible to a user: private roles only when
// userPrivate is set, and only granted roles unless isSuper.
func (sc *SysCatalog) GetRolesFor(ctx context.Context, userPrivate, isSuper bool, userID int32) []string {
	_, g := lock.Read(ctx, sc)
	defer g.Release()

	ur, _ := sc.model.UserRole(userID)

	var roles []string
	for _, name := range sc.model.RoleNames() {
		role, _ := sc.model.Role(name)

		if !userPrivate && role.IsUserPrivate() {
			continue
		}

		if !isSuper && (ur == nil || !ur.HasRole(name)) {
			continue
		}

		roles = append(roles, name)
	}

	return roles
}

// GetUserRoles returns the roles granted to a user.
func (sc *SysCatalog) GetUserRoles(ctx context.Context, userID int32) []string {
	_, g := lock.Read(ctx, sc)
	defer g.Release()

	ur, ok := sc.model.UserRole(userID)
	if !ok {
		return nil
	}

	return ur.Roles()
}

func (sc *SysCatalog) IsRoleGrantedToUser(ctx context.Context, userID int32, roleName string) bool {
	_, g := lock.Read(ctx, sc)
	defer g.Release()

	ur, ok := sc.model.UserRole(userID)
	return ok && ur.HasRole(roleName)
}

func (sc *SysCatalog) HasRole(ctx context.Context, roleName string, userPrivate bool) bool {
	_, g := lock.Read(ctx, sc)
	defer g.Release()

	role, ok := sc.model.Role(roleName)
	return ok && role.IsUserPrivate() == userPrivate
}

// GetMetadataForObject returns which roles hold privileges on an object.
func (sc *SysCatalog) GetMetadataForObject(ctx context.Context, dbID int32, t rbac.DBObjectType, objectID int32) []rbac.ObjectRoleDescriptor {
	_, g := lock.Read(ctx, sc)
	defer g.Release()

	return sc.model.Descriptors(rbac.DBObjectKey{PermissionType: t, DBID: dbID, ObjectID: objectID})
}

// GetRoleGrantee returns the group role named name or, when there is none,
// the user role of the user of that name.
func (sc *SysCatalog) GetRoleGrantee(ctx context.Context, name string) (rbac.Role, error) {
	err := sc.requireRBAC()
	if err != nil {
		return nil, err
	}

	ctx, g := lock.Read(ctx, sc)
	defer g.Release()

	if role, ok := sc.model.Role(name); ok {
		return role, nil
	}

	ctx, sg := lock.Store(ctx, sc)
	defer sg.Release()

	user, err := sc.metadataForUser(ctx, name)
	if err != nil {
		return nil, err
	}

	ur, ok := sc.model.UserRole(user.UserID)
	if !ok {
		return nil, fmt.Errorf("%w: no role granted to '%s'", ErrRoleNotFound, name)
	}

	return ur, nil
}
