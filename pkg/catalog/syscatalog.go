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
	"os"
	"path/filepath"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/lock"
	"github.com/codenotary/colcat/pkg/rbac"
	"github.com/codenotary/colcat/pkg/sqlstore"
)

// SysCatalog holds users, databases and access control. It owns the store
// of the system database, which doubles as that database's catalog store.
type SysCatalog struct {
	basePath     string
	catalogsPath string
	dataPath     string

	dataMgr datamgr.Manager
	dicts   dictionary.Service

	opts *Options
	log  logger.Logger

	store *sqlstore.Connector
	locks *lock.Set

	model *rbac.Model

	currentDB DBMetadata

	registry *Registry

	closed bool
}

// LegacyPrivileges are the per-database grants used when role based access
// control is off.
type LegacyPrivileges struct {
	Select bool
	Insert bool
}

// Exists reports whether a system catalog was initialized under basePath.
func Exists(basePath string, opts *Options) bool {
	return sqlstore.Exists(filepath.Join(basePath, catalogsDirName), opts.systemDBName)
}

// OpenSysCatalog opens the catalog rooted at basePath, initializing it on
// first use and migrating older stores otherwise.
func OpenSysCatalog(ctx context.Context, basePath string, dataMgr datamgr.Manager, dicts dictionary.Service, opts *Options) (*SysCatalog, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	if dataMgr == nil || dicts == nil {
		return nil, fmt.Errorf("%w: a data manager and a dictionary service are required", ErrIllegalArguments)
	}

	catalogsPath := filepath.Join(basePath, catalogsDirName)
	dataPath := filepath.Join(basePath, dataDirName)

	for _, dir := range []string{catalogsPath, dataPath} {
		err = os.MkdirAll(dir, 0700)
		if err != nil {
			return nil, err
		}
	}

	fresh := !sqlstore.Exists(catalogsPath, opts.systemDBName)
	if fresh && opts.readOnly {
		return nil, fmt.Errorf("%w: no catalog at '%s' and read-only mode is on", ErrIllegalState, basePath)
	}

	store, err := sqlstore.Open(catalogsPath, opts.systemDBName, opts.storeOpts)
	if err != nil {
		return nil, err
	}

	registry, err := NewRegistry(opts.maxCatalogs, opts.logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	sc := &SysCatalog{
		basePath:     basePath,
		catalogsPath: catalogsPath,
		dataPath:     dataPath,
		dataMgr:      dataMgr,
		dicts:        dicts,
		opts:         opts,
		log:          opts.logger,
		store:        store,
		locks:        lock.NewSet("sys"),
		model:        rbac.NewModel(),
		registry:     registry,
	}

	err = sc.open(ctx, fresh)
	if err != nil {
		registry.Close()
		store.Close()
		return nil, err
	}

	sc.log.Infof("system catalog opened at '%s'", basePath)

	return sc, nil
}

func (sc *SysCatalog) open(ctx context.Context, fresh bool) error {
	var err error

	if fresh {
		sc.log.Infof("initializing catalog at '%s'", sc.basePath)
		err = sc.initDB(ctx)
	} else {
		err = sc.checkAndExecuteMigrations(ctx)
	}
	if err != nil {
		return err
	}

	if sc.opts.privilegesOn {
		err = sc.loadRBAC(ctx)
		if err != nil {
			return err
		}
	}

	db, err := sc.metadataForDB(ctx, sc.opts.systemDBName)
	if err != nil {
		return err
	}
	sc.currentDB = db

	cat, err := openCatalog(ctx, sc, db)
	if err != nil {
		return err
	}

	return sc.registry.Pin(db.DBName, cat)
}

func (sc *SysCatalog) Locks() *lock.Set {
	return sc.locks
}

func (sc *SysCatalog) Options() *Options {
	return sc.opts
}

func (sc *SysCatalog) BasePath() string {
	return sc.basePath
}

func (sc *SysCatalog) DataMgr() datamgr.Manager {
	return sc.dataMgr
}

func (sc *SysCatalog) Registry() *Registry {
	return sc.registry
}

// CurrentDB is the system database.
func (sc *SysCatalog) CurrentDB() DBMetadata {
	return sc.currentDB
}

func (sc *SysCatalog) isSystemDB(name string) bool {
	return upper(name) == upper(sc.opts.systemDBName)
}

func (sc *SysCatalog) isRoot(name string) bool {
	return upper(name) == upper(sc.opts.rootUser)
}

func (sc *SysCatalog) Close() error {
	_, g := lock.WriteStore(context.Background(), sc)
	defer g.Release()

	if sc.closed {
		return ErrAlreadyClosed
	}
	sc.closed = true

	err := sc.registry.Close()
	if err != nil {
		sc.log.Warningf("closing catalogs: %v", err)
	}

	return sc.store.Close()
}

func (sc *SysCatalog) initDB(ctx context.Context) error {
	hash, err := hashPassword(sc.opts.rootPassword, sc.opts.passwordCost)
	if err != nil {
		return err
	}

	return sc.store.InTx(ctx, func(ctx context.Context) error {
		for _, stmt := range []string{sqlCreateUsers, sqlCreateDatabases, sqlCreateRoles, sqlCreateObjectPermissions, sqlCreatePrivileges} {
			_, err := sc.store.Exec(ctx, stmt)
			if err != nil {
				return err
			}
		}

		_, err := sc.store.Exec(ctx, "INSERT INTO users VALUES (?, ?, ?, 1)", RootUserID, sc.opts.rootUser, hash)
		if err != nil {
			return err
		}

		return sc.createDatabase(ctx, sc.opts.systemDBName, RootUserID)
	})
}

// Users

func scanUser(scan func(dest ...interface{}) error) (UserMetadata, error) {
	var (
		user UserMetadata
		hash sql.NullString
	)

	err := scan(&user.UserID, &user.UserName, &hash, &user.IsSuper)
	if err != nil {
		return UserMetadata{}, err
	}

	user.PasswdHash = hash.String
	user.IsReallySuper = user.IsSuper

	return user, nil
}

func (sc *SysCatalog) metadataForUser(ctx context.Context, name string) (UserMetadata, error) {
	user, err := scanUser(sc.store.QueryRow(ctx,
		"SELECT userid, name, passwd_hash, issuper FROM users WHERE name = ?", name).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return UserMetadata{}, fmt.Errorf("%w: '%s'", ErrUserNotFound, name)
	}
	return user, err
}

func (sc *SysCatalog) metadataForUserByID(ctx context.Context, userID int32) (UserMetadata, error) {
	user, err := scanUser(sc.store.QueryRow(ctx,
		"SELECT userid, name, passwd_hash, issuper FROM users WHERE userid = ?", userID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return UserMetadata{}, fmt.Errorf("%w: id %d", ErrUserNotFound, userID)
	}
	return user, err
}

func (sc *SysCatalog) GetMetadataForUser(ctx context.Context, name string) (UserMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	return sc.metadataForUser(ctx, name)
}

func (sc *SysCatalog) GetMetadataForUserByID(ctx context.Context, userID int32) (UserMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	return sc.metadataForUserByID(ctx, userID)
}

// GetAllUserMetadata returns every user. Password hashes are not filled in.
func (sc *SysCatalog) GetAllUserMetadata(ctx context.Context) ([]UserMetadata, error) {
	return sc.GetAllUserMetadataForDB(ctx, -1)
}

// GetAllUserMetadataForDB returns the users whose private role holds some
// privilege in dbID, or every user when dbID is negative.
func (sc *SysCatalog) GetAllUserMetadataForDB(ctx context.Context, dbID int32) ([]UserMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	query := "SELECT userid, name, issuper FROM users"
	var args []interface{}

	if dbID >= 0 {
		query += ` WHERE name IN (SELECT roleName FROM object_permissions
			WHERE objectPermissions <> 0 AND roleType = 1 AND dbId = ?)`
		args = append(args, dbID)
	}
	query += " ORDER BY userid"

	var users []UserMetadata

	err := sc.store.Each(ctx, query, args, func(rows *sql.Rows) error {
		var u UserMetadata
		err := rows.Scan(&u.UserID, &u.UserName, &u.IsSuper)
		if err != nil {
			return err
		}
		u.IsReallySuper = u.IsSuper
		users = append(users, u)
		return nil
	})

	return users, err
}

// CreateUser adds a user. With access control on, the user also gets a
// private role of the same name holding no privileges on the current
// database.
func (sc *SysCatalog) CreateUser(ctx context.Context, name, passwd string, isSuper bool) error {
	if name == "" {
		return fmt.Errorf("%w: empty user name", ErrIllegalArguments)
	}

	hash, err := hashPassword(passwd, sc.opts.passwordCost)
	if err != nil {
		return err
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	_, err = sc.metadataForUser(ctx, name)
	if err == nil {
		return fmt.Errorf("%w: '%s'", ErrUserAlreadyExists, name)
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if sc.opts.privilegesOn {
		if _, ok := sc.model.Role(name); ok {
			return fmt.Errorf("%w: user name '%s' is already a role name", ErrNamingConflict, name)
		}
	}

	err = sc.rbacTx(ctx, func(ctx context.Context) error {
		_, err := sc.store.Exec(ctx, "INSERT INTO users (name, passwd_hash, issuper) VALUES (?, ?, ?)", name, hash, isSuper)
		if err != nil {
			return err
		}

		if !sc.opts.privilegesOn {
			return nil
		}

		err = sc.createRole(ctx, name, true)
		if err != nil {
			return err
		}

		err = sc.grantDefaultPrivileges(ctx, name)
		if err != nil {
			return err
		}

		return sc.grantRole(ctx, name, name)
	})
	if err != nil {
		return err
	}

	sc.log.Infof("user '%s' created", name)

	return nil
}

func (sc *SysCatalog) grantDefaultPrivileges(ctx context.Context, roleName string) error {
	obj := rbac.NewDBObjectWithKey(sc.currentDB.DBName, rbac.DBObjectKey{
		PermissionType: rbac.DatabaseDBObjectType,
		DBID:           sc.currentDB.DBID,
		ObjectID:       rbac.DatabaseWide,
	}, rbac.NoPrivileges)

	return sc.grantDBObjectPrivileges(ctx, roleName, obj)
}

// DropUser removes a user together with its private role and grants.
func (sc *SysCatalog) DropUser(ctx context.Context, name string) error {
	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	user, err := sc.metadataForUser(ctx, name)
	if err != nil {
		return err
	}

	if user.UserID == RootUserID {
		return fmt.Errorf("%w: the root user cannot be dropped", ErrPermissionDenied)
	}

	err = sc.rbacTx(ctx, func(ctx context.Context) error {
		if sc.opts.privilegesOn {
			if _, ok := sc.model.Role(name); ok {
				err := sc.dropRole(ctx, name)
				if err != nil {
					return err
				}
			}

			sc.model.DropUserRole(user.UserID)
			sc.model.DeleteDescriptorsForRole(name)

			_, err := sc.store.Exec(ctx, "DELETE FROM roles WHERE userName = ?", name)
			if err != nil {
				return err
			}
		}

		_, err := sc.store.Exec(ctx, "DELETE FROM users WHERE userid = ?", user.UserID)
		if err != nil {
			return err
		}

		_, err = sc.store.Exec(ctx, "DELETE FROM privileges WHERE userid = ?", user.UserID)
		return err
	})
	if err != nil {
		return err
	}

	sc.log.Infof("user '%s' dropped", name)

	return nil
}

// AlterUser changes the password and/or the superuser flag of a user. Nil
// arguments leave the attribute untouched.
func (sc *SysCatalog) AlterUser(ctx context.Context, userID int32, passwd *string, isSuper *bool) error {
	var hash string

	if passwd != nil {
		var err error
		hash, err = hashPassword(*passwd, sc.opts.passwordCost)
		if err != nil {
			return err
		}
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	_, err := sc.metadataForUserByID(ctx, userID)
	if err != nil {
		return err
	}

	switch {
	case passwd != nil && isSuper != nil:
		_, err = sc.store.Exec(ctx, "UPDATE users SET passwd_hash = ?, issuper = ? WHERE userid = ?", hash, *isSuper, userID)
	case passwd != nil:
		_, err = sc.store.Exec(ctx, "UPDATE users SET passwd_hash = ? WHERE userid = ?", hash, userID)
	case isSuper != nil:
		_, err = sc.store.Exec(ctx, "UPDATE users SET issuper = ? WHERE userid = ?", *isSuper, userID)
	}

	return err
}

// Databases

func (sc *SysCatalog) metadataForDB(ctx context.Context, name string) (DBMetadata, error) {
	var db DBMetadata

	err := sc.store.QueryRow(ctx, "SELECT dbid, name, owner FROM databases WHERE name = ?", name).
		Scan(&db.DBID, &db.DBName, &db.DBOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return DBMetadata{}, fmt.Errorf("%w: '%s'", ErrDatabaseNotFound, name)
	}

	return db, err
}

func (sc *SysCatalog) GetMetadataForDB(ctx context.Context, name string) (DBMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	return sc.metadataForDB(ctx, name)
}

func (sc *SysCatalog) GetMetadataForDBByID(ctx context.Context, dbID int32) (DBMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	var db DBMetadata

	err := sc.store.QueryRow(ctx, "SELECT dbid, name, owner FROM databases WHERE dbid = ?", dbID).
		Scan(&db.DBID, &db.DBName, &db.DBOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return DBMetadata{}, fmt.Errorf("%w: id %d", ErrDatabaseNotFound, dbID)
	}

	return db, err
}

func (sc *SysCatalog) GetAllDBMetadata(ctx context.Context) ([]DBMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	var dbs []DBMetadata

	err := sc.store.Each(ctx, "SELECT dbid, name, owner FROM databases ORDER BY dbid", nil, func(rows *sql.Rows) error {
		var db DBMetadata
		err := rows.Scan(&db.DBID, &db.DBName, &db.DBOwner)
		if err != nil {
			return err
		}
		dbs = append(dbs, db)
		return nil
	})

	return dbs, err
}

// CreateDatabase registers a database and lays out its catalog store. The
// catalog is opened right away so that the owner's grants get recorded.
func (sc *SysCatalog) CreateDatabase(ctx context.Context, name string, owner int32) error {
	if name == "" {
		return fmt.Errorf("%w: empty database name", ErrIllegalArguments)
	}

	err := func() error {
		ctx, g := lock.WriteStore(ctx, sc)
		defer g.Release()

		_, err := sc.metadataForUserByID(ctx, owner)
		if err != nil {
			return err
		}

		return sc.store.InTx(ctx, func(ctx context.Context) error {
			return sc.createDatabase(ctx, name, owner)
		})
	}()
	if err != nil {
		return err
	}

	_, err = sc.GetCatalog(ctx, name)
	if err != nil {
		return err
	}

	sc.log.Infof("database '%s' created", name)

	return nil
}

func (sc *SysCatalog) createDatabase(ctx context.Context, name string, owner int32) error {
	_, err := sc.metadataForDB(ctx, name)
	if err == nil {
		return fmt.Errorf("%w: '%s'", ErrDatabaseAlreadyExists, name)
	}
	if !errors.Is(err, ErrDatabaseNotFound) {
		return err
	}

	_, err = sc.store.Exec(ctx, "INSERT INTO databases (name, owner) VALUES (?, ?)", name, owner)
	if err != nil {
		return err
	}

	if sc.isSystemDB(name) {
		return createCatalogSchema(ctx, sc.store)
	}

	if sqlstore.Exists(sc.catalogsPath, name) {
		return fmt.Errorf("%w: a catalog store for '%s' already exists", ErrDatabaseAlreadyExists, name)
	}

	conn, err := sqlstore.Open(sc.catalogsPath, name, sc.opts.storeOpts)
	if err != nil {
		return err
	}

	err = conn.InTx(ctx, func(ctx context.Context) error {
		return createCatalogSchema(ctx, conn)
	})

	cerr := conn.Close()
	if err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(conn.Path())
	}

	return err
}

// DropDatabase removes a database: grants on its objects, its catalog, its
// store file and its chunks.
func (sc *SysCatalog) DropDatabase(ctx context.Context, dbID int32, name string) error {
	if sc.isSystemDB(name) {
		return fmt.Errorf("%w: the system database cannot be dropped", ErrPermissionDenied)
	}

	cat, err := sc.GetCatalog(ctx, name)
	if err != nil {
		return err
	}

	if cat.db.DBID != dbID {
		return fmt.Errorf("%w: database '%s' has id %d, not %d", ErrIllegalArguments, name, cat.db.DBID, dbID)
	}

	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	ctx, cg := lock.WriteStore(ctx, cat)
	defer cg.Release()

	err = sc.rbacTx(ctx, func(ctx context.Context) error {
		if sc.opts.privilegesOn {
			for _, td := range cat.allTables() {
				if td.IsShard() {
					continue
				}

				t := rbac.TableDBObjectType
				if td.IsView {
					t = rbac.ViewDBObjectType
				}

				err := sc.revokeFromAllRoles(ctx, rbac.NewDBObjectWithKey(td.TableName, rbac.DBObjectKey{
					PermissionType: t,
					DBID:           dbID,
					ObjectID:       td.TableID,
				}, rbac.NoPrivileges))
				if err != nil {
					return err
				}
			}

			for _, vd := range cat.allDashboards() {
				err := sc.revokeFromAllRoles(ctx, rbac.NewDBObjectWithKey(vd.ViewName, rbac.DBObjectKey{
					PermissionType: rbac.DashboardDBObjectType,
					DBID:           dbID,
					ObjectID:       vd.ViewID,
				}, rbac.NoPrivileges))
				if err != nil {
					return err
				}
			}

			err := sc.revokeAllOnDatabaseFromAllRoles(ctx, dbID)
			if err != nil {
				return err
			}
		}

		_, err := sc.store.Exec(ctx, "DELETE FROM databases WHERE dbid = ?", dbID)
		if err != nil {
			return err
		}

		_, err = sc.store.Exec(ctx, "DELETE FROM privileges WHERE dbid = ?", dbID)
		return err
	})
	if err != nil {
		return err
	}

	sc.registry.Remove(name)

	err = cat.Close()
	if err != nil {
		sc.log.Warningf("closing catalog of dropped database '%s': %v", name, err)
	}

	err = os.Remove(filepath.Join(sc.catalogsPath, name))
	if err != nil && !os.IsNotExist(err) {
		sc.log.Warningf("removing store of dropped database '%s': %v", name, err)
	}

	err = sc.opts.notifier.UpdateMetadata(ctx, name, "")
	if err != nil {
		sc.log.Warningf("notifying drop of database '%s': %v", name, err)
	}

	err = sc.dataMgr.DeleteChunksWithPrefix(datamgr.NewChunkKey(dbID))
	if err != nil {
		return fmt.Errorf("%w: deleting chunks of database '%s': %w", ErrStoreFailure, name, err)
	}

	metricsDDL.WithLabelValues(name, "drop_database").Inc()
	sc.log.Infof("database '%s' dropped", name)

	return nil
}

// GetCatalog returns the catalog of a database, opening and registering it
// if needed. The registry only changes under the write lock of sc, so a
// database dropped meanwhile is never registered again.
func (sc *SysCatalog) GetCatalog(ctx context.Context, dbName string) (*Catalog, error) {
	if cat, ok := sc.registry.Get(dbName); ok {
		return cat, nil
	}

	ctx, g := lock.Write(ctx, sc)
	defer g.Release()

	if cat, ok := sc.registry.Get(dbName); ok {
		return cat, nil
	}

	db, err := sc.GetMetadataForDB(ctx, dbName)
	if err != nil {
		return nil, err
	}

	cat, err := openCatalog(ctx, sc, db)
	if err != nil {
		return nil, err
	}

	err = sc.registry.Set(db.DBName, cat)
	if err != nil {
		cat.Close()
		return nil, err
	}

	return cat, nil
}

// Login checks credentials and returns the user together with the catalog
// of the requested database.
func (sc *SysCatalog) Login(ctx context.Context, dbName, userName, passwd string) (UserMetadata, *Catalog, error) {
	user, err := sc.authenticate(ctx, dbName, userName, passwd)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metricsLogins.WithLabelValues("denied").Inc()
		} else {
			metricsLogins.WithLabelValues("error").Inc()
		}
		return UserMetadata{}, nil, err
	}

	cat, err := sc.GetCatalog(ctx, dbName)
	if err != nil {
		metricsLogins.WithLabelValues("error").Inc()
		return UserMetadata{}, nil, err
	}

	metricsLogins.WithLabelValues("granted").Inc()

	return user, cat, nil
}

func (sc *SysCatalog) authenticate(ctx context.Context, dbName, userName, passwd string) (UserMetadata, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	db, err := sc.metadataForDB(ctx, dbName)
	if err != nil {
		return UserMetadata{}, err
	}

	user, err := sc.metadataForUser(ctx, userName)
	if errors.Is(err, ErrUserNotFound) {
		return UserMetadata{}, ErrInvalidCredentials
	}
	if err != nil {
		return UserMetadata{}, err
	}

	if !sc.checkCredentials(ctx, user, passwd) {
		return UserMetadata{}, ErrInvalidCredentials
	}

	if !sc.opts.privilegesOn {
		// insert is read as access to the database
		ok, err := sc.checkLegacyPrivileges(ctx, user, db, LegacyPrivileges{Insert: true})
		if err != nil {
			return UserMetadata{}, err
		}
		if !ok {
			return UserMetadata{}, ErrInvalidCredentials
		}
	}

	return user, nil
}

func (sc *SysCatalog) checkCredentials(ctx context.Context, user UserMetadata, passwd string) bool {
	if sc.opts.authenticator != nil {
		ok, err := sc.opts.authenticator.Authenticate(ctx, user.UserName, passwd)
		if err != nil {
			sc.log.Warningf("external authentication of '%s' failed: %v", user.UserName, err)
		}
		if ok {
			return true
		}
	}

	return checkPassword(user.PasswdHash, passwd)
}

// Legacy privileges

// GrantPrivileges records legacy per-database privileges of a user.
func (sc *SysCatalog) GrantPrivileges(ctx context.Context, userID, dbID int32, privs LegacyPrivileges) error {
	ctx, g := lock.WriteStore(ctx, sc)
	defer g.Release()

	return sc.store.InTx(ctx, func(ctx context.Context) error {
		_, err := sc.store.Exec(ctx,
			"INSERT OR REPLACE INTO privileges (userid, dbid, select_priv, insert_priv) VALUES (?, ?, ?, ?)",
			userID, dbID, privs.Select, privs.Insert)
		return err
	})
}

// CheckPrivileges evaluates legacy privileges. Superusers and the owner of
// the database pass unconditionally.
func (sc *SysCatalog) CheckPrivileges(ctx context.Context, user UserMetadata, db DBMetadata, wants LegacyPrivileges) (bool, error) {
	ctx, g := lock.Store(ctx, sc)
	defer g.Release()

	return sc.checkLegacyPrivileges(ctx, user, db, wants)
}

func (sc *SysCatalog) checkLegacyPrivileges(ctx context.Context, user UserMetadata, db DBMetadata, wants LegacyPrivileges) (bool, error) {
	if user.IsSuper || user.UserID == db.DBOwner {
		return true, nil
	}

	var has LegacyPrivileges

	err := sc.store.QueryRow(ctx, "SELECT select_priv, insert_priv FROM privileges WHERE userid = ? AND dbid = ?",
		user.UserID, db.DBID).Scan(&has.Select, &has.Insert)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if wants.Select && !has.Select {
		return false, nil
	}
	if wants.Insert && !has.Insert {
		return false, nil
	}

	return true, nil
}
