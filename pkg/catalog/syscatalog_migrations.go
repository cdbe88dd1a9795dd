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

	"github.com/codenotary/colcat/pkg/rbac"
	"github.com/codenotary/colcat/pkg/sqlstore"
)

func (sc *SysCatalog) checkAndExecuteMigrations(ctx context.Context) error {
	if sc.opts.readOnly {
		sc.log.Warningf("read-only mode: skipping migrations of the system catalog")
		return nil
	}

	steps := []MigrationStep{
		{
			Name:        "legacy_privileges",
			Description: "created the legacy privileges table",
			Action:      migrateLegacyPrivileges,
		},
	}

	if sc.opts.privilegesOn {
		steps = append(steps,
			MigrationStep{
				Name:        "user_roles",
				Description: "created a private role for every user",
				Action:      createUserRoles,
			},
			MigrationStep{
				Name:        "object_privileges",
				Description: "converted legacy database grants into object privileges",
				Action:      migratePrivileges,
			},
		)
	}

	hashed := false

	steps = append(steps, MigrationStep{
		Name:        "password_hashes",
		Description: "replaced clear text passwords with hashes",
		Action: func(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
			applied, err := updatePasswordsToHashes(ctx, conn, sc.opts.passwordCost)
			hashed = applied
			return applied, err
		},
	})

	m := &Migration{Scope: "system catalog", Conn: sc.store, Steps: steps}

	err := m.Run(ctx, sc.log)
	if err != nil {
		return err
	}

	if hashed {
		// reclaims the pages still holding clear text passwords
		_, err = sc.store.Exec(ctx, "VACUUM")
		if err != nil {
			sc.log.Warningf("vacuuming the system catalog: %v", err)
		}
	}

	return nil
}

func migrateLegacyPrivileges(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "privileges")
	if err != nil || exists {
		return false, err
	}

	_, err = conn.Exec(ctx, sqlCreatePrivileges)
	return err == nil, err
}

func createUserRoles(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "roles")
	if err != nil || exists {
		return false, err
	}

	_, err = conn.Exec(ctx, sqlCreateRoles)
	if err != nil {
		return false, err
	}

	var users []string

	err = conn.Each(ctx, "SELECT name FROM users WHERE userid <> ?", []interface{}{RootUserID}, func(rows *sql.Rows) error {
		var name string
		err := rows.Scan(&name)
		if err != nil {
			return err
		}
		users = append(users, name)
		return nil
	})
	if err != nil {
		return false, err
	}

	for _, name := range users {
		_, err = conn.Exec(ctx, "INSERT INTO roles (roleName, userName) VALUES (?, ?)", name, name)
		if err != nil {
			return false, err
		}
	}

	return true, nil
}

// migratePrivileges turns every legacy select+insert grant into object
// privileges of the grantee's private role. Users without grants get the
// placeholder record so that their role exists.
func migratePrivileges(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "object_permissions")
	if err != nil || exists {
		return false, err
	}

	_, err = conn.Exec(ctx, sqlCreateObjectPermissions)
	if err != nil {
		return false, err
	}

	type grant struct{ userID, dbID int32 }
	var grants []grant

	err = conn.Each(ctx, "SELECT userid, dbid FROM privileges WHERE select_priv = 1 AND insert_priv = 1", nil,
		func(rows *sql.Rows) error {
			var g grant
			err := rows.Scan(&g.userID, &g.dbID)
			if err != nil {
				return err
			}
			grants = append(grants, g)
			return nil
		})
	if err != nil {
		return false, err
	}

	usersByID := make(map[int32]string)
	var userIDs []int32

	err = conn.Each(ctx, "SELECT userid, name FROM users ORDER BY userid", nil, func(rows *sql.Rows) error {
		var (
			id   int32
			name string
		)
		err := rows.Scan(&id, &name)
		if err != nil {
			return err
		}
		usersByID[id] = name
		userIDs = append(userIDs, id)
		return nil
	})
	if err != nil {
		return false, err
	}

	insert := func(roleName string, obj rbac.DBObject) error {
		_, err := conn.Exec(ctx, `INSERT OR REPLACE INTO object_permissions (roleName, roleType,
			objectPermissionsType, dbId, objectId, objectPermissions, objectOwnerId, objectName)
			VALUES (?, 1, ?, ?, ?, ?, ?, ?)`,
			roleName, int32(obj.Key.PermissionType), obj.Key.DBID, obj.Key.ObjectID,
			int64(obj.Privileges), obj.Owner, obj.Name)
		return err
	}

	granted := make(map[int32]bool)

	for _, g := range grants {
		name, ok := usersByID[g.userID]
		if !ok {
			continue
		}
		granted[g.userID] = true

		for _, rec := range []struct {
			t     rbac.DBObjectType
			privs rbac.Privileges
		}{
			{rbac.TableDBObjectType, rbac.AllTableMigrate},
			{rbac.DashboardDBObjectType, rbac.AllDashboardMigrate},
			{rbac.ViewDBObjectType, rbac.AllViewMigrate},
		} {
			obj := rbac.NewDBObjectWithKey("", rbac.DBObjectKey{
				PermissionType: rec.t,
				DBID:           g.dbID,
				ObjectID:       rbac.DatabaseWide,
			}, rec.privs)
			obj.Owner = RootUserID

			err = insert(name, obj)
			if err != nil {
				return false, err
			}
		}
	}

	for _, id := range userIDs {
		if granted[id] || id == RootUserID {
			continue
		}

		obj := rbac.NewDBObjectWithKey("", rbac.DBObjectKey{
			PermissionType: rbac.DatabaseDBObjectType,
			DBID:           0,
			ObjectID:       rbac.DatabaseWide,
		}, rbac.NoPrivileges)
		obj.Owner = RootUserID

		err = insert(usersByID[id], obj)
		if err != nil {
			return false, err
		}
	}

	return true, nil
}

// updatePasswordsToHashes rebuilds the users table of stores that kept
// clear text passwords.
func updatePasswordsToHashes(ctx context.Context, conn *sqlstore.Connector, cost int) (bool, error) {
	exists, err := conn.TableExists(ctx, "users")
	if err != nil || !exists {
		return false, err
	}

	hashed, err := conn.HasColumn(ctx, "users", "passwd_hash")
	if err != nil || hashed {
		return false, err
	}

	type user struct {
		id     int32
		passwd string
	}
	var users []user

	err = conn.Each(ctx, "SELECT userid, passwd FROM users", nil, func(rows *sql.Rows) error {
		var (
			u      user
			passwd sql.NullString
		)
		err := rows.Scan(&u.id, &passwd)
		if err != nil {
			return err
		}
		u.passwd = passwd.String
		users = append(users, u)
		return nil
	})
	if err != nil {
		return false, err
	}

	_, err = conn.Exec(ctx, `CREATE TABLE users_tmp (userid integer primary key, name text unique,
		passwd_hash text, issuper boolean)`)
	if err != nil {
		return false, err
	}

	_, err = conn.Exec(ctx, `INSERT INTO users_tmp (userid, name, passwd_hash, issuper)
		SELECT userid, name, null, issuper FROM users`)
	if err != nil {
		return false, err
	}

	for _, u := range users {
		hash, err := hashPassword(u.passwd, cost)
		if err != nil {
			return false, err
		}

		_, err = conn.Exec(ctx, "UPDATE users_tmp SET passwd_hash = ? WHERE userid = ?", hash, u.id)
		if err != nil {
			return false, err
		}
	}

	_, err = conn.Exec(ctx, "DROP TABLE users")
	if err != nil {
		return false, err
	}

	_, err = conn.Exec(ctx, "ALTER TABLE users_tmp RENAME TO users")
	if err != nil {
		return false, err
	}

	return true, nil
}
