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
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/lock"
	"github.com/codenotary/colcat/pkg/sqlstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type testEnv struct {
	dir   string
	dm    *datamgr.DataMgr
	dicts *dictionary.LocalService
	log   *logger.MemoryLogger
	sc    *SysCatalog
}

func newTestEnv(t *testing.T) *testEnv {
	dir := t.TempDir()

	dm, err := datamgr.Open(filepath.Join(dir, "chunks"), datamgr.DefaultOptions().WithLogger(logger.NewMemoryLogger()))
	require.NoError(t, err)

	env := &testEnv{
		dir:   dir,
		dm:    dm,
		dicts: dictionary.NewLocalService(),
		log:   logger.NewMemoryLogger(),
	}

	t.Cleanup(func() {
		if env.sc != nil && !env.sc.closed {
			env.sc.Close()
		}
		env.dicts.Close()
		env.dm.Close()
	})

	return env
}

func (e *testEnv) options() *Options {
	return DefaultOptions().
		WithPasswordCost(bcrypt.MinCost).
		WithLogger(e.log)
}

func (e *testEnv) open(t *testing.T, opts *Options) *SysCatalog {
	if opts == nil {
		opts = e.options()
	}

	sc, err := OpenSysCatalog(context.Background(), e.dir, e.dm, e.dicts, opts)
	require.NoError(t, err)

	e.sc = sc
	return sc
}

func (e *testEnv) reopen(t *testing.T, opts *Options) *SysCatalog {
	require.NoError(t, e.sc.Close())
	return e.open(t, opts)
}

// openTestCatalog opens a fresh system catalog with database d1.
func openTestCatalog(t *testing.T) (*testEnv, *Catalog) {
	env := newTestEnv(t)
	sc := env.open(t, nil)

	ctx := context.Background()

	require.NoError(t, sc.CreateDatabase(ctx, "d1", RootUserID))

	cat, err := sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	return env, cat
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	var opts *Options
	require.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	for _, opts := range []*Options{
		DefaultOptions().WithSystemDBName(""),
		DefaultOptions().WithRootUser(""),
		DefaultOptions().WithRootPassword(""),
		DefaultOptions().WithMaxCatalogs(0),
		DefaultOptions().WithPasswordCost(bcrypt.MaxCost + 1),
		DefaultOptions().WithNotifier(nil),
		DefaultOptions().WithLogger(nil),
	} {
		require.ErrorIs(t, opts.Validate(), ErrInvalidOptions)
	}

	require.True(t, DefaultOptions().PrivilegesOn())
	require.Equal(t, DefaultSystemDBName, DefaultOptions().GetSystemDBName())
	require.Equal(t, DefaultRootUser, DefaultOptions().GetRootUser())
}

func TestOpenSysCatalogInitializes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := OpenSysCatalog(ctx, env.dir, nil, env.dicts, env.options())
	require.ErrorIs(t, err, ErrIllegalArguments)

	_, err = OpenSysCatalog(ctx, env.dir, env.dm, env.dicts, env.options().WithReadOnly(true))
	require.ErrorIs(t, err, ErrIllegalState)

	sc := env.open(t, nil)

	require.True(t, sqlstore.Exists(filepath.Join(env.dir, catalogsDirName), DefaultSystemDBName))
	require.Equal(t, SystemDBID, sc.CurrentDB().DBID)
	require.Equal(t, DefaultSystemDBName, sc.CurrentDB().DBName)

	root, err := sc.GetMetadataForUser(ctx, DefaultRootUser)
	require.NoError(t, err)
	require.Equal(t, RootUserID, root.UserID)
	require.True(t, root.IsSuper)
	require.NotEqual(t, DefaultRootPassword, root.PasswdHash)

	dbs, err := sc.GetAllDBMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, []DBMetadata{{DBID: SystemDBID, DBName: DefaultSystemDBName, DBOwner: RootUserID}}, dbs)

	// the system catalog stays registered
	require.Equal(t, []string{DefaultSystemDBName}, sc.Registry().Names())

	require.NoError(t, sc.Close())
	require.ErrorIs(t, sc.Close(), ErrAlreadyClosed)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, nil)
	ctx := context.Background()

	user, cat, err := sc.Login(ctx, DefaultSystemDBName, DefaultRootUser, DefaultRootPassword)
	require.NoError(t, err)
	require.Equal(t, RootUserID, user.UserID)
	require.Equal(t, SystemDBID, cat.CurrentDB().DBID)

	_, _, err = sc.Login(ctx, DefaultSystemDBName, DefaultRootUser, "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = sc.Login(ctx, DefaultSystemDBName, "nobody", DefaultRootPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = sc.Login(ctx, "nodb", DefaultRootUser, DefaultRootPassword)
	require.ErrorIs(t, err, ErrDatabaseNotFound)
}

type staticAuthenticator map[string]string

func (a staticAuthenticator) Authenticate(_ context.Context, user, passwd string) (bool, error) {
	expected, ok := a[user]
	if !ok {
		return false, errors.New("unknown to the directory")
	}
	return expected == passwd, nil
}

func TestLoginWithAuthenticator(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, env.options().WithAuthenticator(staticAuthenticator{"alice": "ldap-secret"}))
	ctx := context.Background()

	require.NoError(t, sc.CreateUser(ctx, "alice", "local-secret", false))
	require.NoError(t, sc.CreateUser(ctx, "bob", "bob-secret", false))

	_, _, err := sc.Login(ctx, DefaultSystemDBName, "alice", "ldap-secret")
	require.NoError(t, err)

	// the stored hash still works
	_, _, err = sc.Login(ctx, DefaultSystemDBName, "alice", "local-secret")
	require.NoError(t, err)

	_, _, err = sc.Login(ctx, DefaultSystemDBName, "bob", "bob-secret")
	require.NoError(t, err)
	require.True(t, env.log.Contains("external authentication of 'bob' failed"))
}

func TestUsers(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, sc.CreateUser(ctx, "", "pw", false), ErrIllegalArguments)

	require.NoError(t, sc.CreateUser(ctx, "alice", "pw", false))
	require.ErrorIs(t, sc.CreateUser(ctx, "alice", "pw", false), ErrUserAlreadyExists)

	alice, err := sc.GetMetadataForUser(ctx, "alice")
	require.NoError(t, err)
	require.False(t, alice.IsSuper)

	byID, err := sc.GetMetadataForUserByID(ctx, alice.UserID)
	require.NoError(t, err)
	require.Equal(t, alice, byID)

	// a private role is granted to every new user
	require.True(t, sc.HasRole(ctx, "alice", true))
	require.True(t, sc.IsRoleGrantedToUser(ctx, alice.UserID, "alice"))

	passwd := "pw2"
	super := true
	require.NoError(t, sc.AlterUser(ctx, alice.UserID, &passwd, &super))

	_, _, err = sc.Login(ctx, DefaultSystemDBName, "alice", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	alice, _, err = sc.Login(ctx, DefaultSystemDBName, "alice", "pw2")
	require.NoError(t, err)
	require.True(t, alice.IsSuper)

	require.ErrorIs(t, sc.AlterUser(ctx, 99, nil, &super), ErrUserNotFound)

	users, err := sc.GetAllUserMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	require.ErrorIs(t, sc.DropUser(ctx, DefaultRootUser), ErrPermissionDenied)
	require.NoError(t, sc.DropUser(ctx, "alice"))
	require.ErrorIs(t, sc.DropUser(ctx, "alice"), ErrUserNotFound)
	require.False(t, sc.HasRole(ctx, "alice", true))

	_, err = sc.GetMetadataForUser(ctx, "alice")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserMutationsWaitForReaders(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, nil)
	ctx := context.Background()

	require.NoError(t, sc.CreateUser(ctx, "alice", "pw", false))

	alice, err := sc.GetMetadataForUser(ctx, "alice")
	require.NoError(t, err)

	super := true

	for _, mutate := range []func() error{
		func() error { return sc.AlterUser(ctx, alice.UserID, nil, &super) },
		func() error { return sc.GrantPrivileges(ctx, alice.UserID, SystemDBID, LegacyPrivileges{Select: true}) },
	} {
		_, g := lock.Read(ctx, sc)

		done := make(chan error)
		go func() { done <- mutate() }()

		require.Eventually(t, func() bool {
			waiting, _ := sc.Locks().State()
			return waiting == 1
		}, time.Second, time.Millisecond)

		select {
		case err := <-done:
			require.Fail(t, "mutation finished under a read lock", "%v", err)
		default:
		}

		g.Release()
		require.NoError(t, <-done)
	}

	alice, err = sc.GetMetadataForUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, alice.IsSuper)
}

func TestDatabases(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, nil)
	ctx := context.Background()

	require.ErrorIs(t, sc.CreateDatabase(ctx, "", RootUserID), ErrIllegalArguments)
	require.ErrorIs(t, sc.CreateDatabase(ctx, "d1", 42), ErrUserNotFound)

	require.NoError(t, sc.CreateDatabase(ctx, "d1", RootUserID))
	require.ErrorIs(t, sc.CreateDatabase(ctx, "d1", RootUserID), ErrDatabaseAlreadyExists)
	require.ErrorIs(t, sc.CreateDatabase(ctx, DefaultSystemDBName, RootUserID), ErrDatabaseAlreadyExists)

	db, err := sc.GetMetadataForDB(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, RootUserID, db.DBOwner)

	byID, err := sc.GetMetadataForDBByID(ctx, db.DBID)
	require.NoError(t, err)
	require.Equal(t, db, byID)

	require.Equal(t, []string{"d1", DefaultSystemDBName}, sc.Registry().Names())

	cat, err := sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	td := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a")}, nil))

	require.NoError(t, env.dm.SetTableEpoch(db.DBID, td.TableID, 3))

	require.ErrorIs(t, sc.DropDatabase(ctx, SystemDBID, DefaultSystemDBName), ErrPermissionDenied)
	require.ErrorIs(t, sc.DropDatabase(ctx, db.DBID+1, "d1"), ErrIllegalArguments)

	require.NoError(t, sc.DropDatabase(ctx, db.DBID, "d1"))

	_, err = sc.GetMetadataForDB(ctx, "d1")
	require.ErrorIs(t, err, ErrDatabaseNotFound)
	require.False(t, sqlstore.Exists(filepath.Join(env.dir, catalogsDirName), "d1"))
	require.EqualValues(t, 0, env.dm.GetTableEpoch(db.DBID, td.TableID))

	_, err = sc.GetCatalog(ctx, "d1")
	require.ErrorIs(t, err, ErrDatabaseNotFound)

	// the name is free again
	require.NoError(t, sc.CreateDatabase(ctx, "d1", RootUserID))
}

func TestDropDatabaseNotifies(t *testing.T) {
	env := newTestEnv(t)

	var notified []string
	sc := env.open(t, env.options().WithNotifier(NotifierFunc(func(_ context.Context, db, table string) error {
		notified = append(notified, db+"."+table)
		return nil
	})))
	ctx := context.Background()

	require.NoError(t, sc.CreateDatabase(ctx, "d1", RootUserID))

	db, err := sc.GetMetadataForDB(ctx, "d1")
	require.NoError(t, err)

	require.NoError(t, sc.DropDatabase(ctx, db.DBID, "d1"))
	require.Equal(t, []string{"d1."}, notified)
}

func TestGetCatalogWaitsForDropDatabase(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, nil)
	ctx := context.Background()

	require.NoError(t, sc.CreateDatabase(ctx, "d1", RootUserID))

	db, err := sc.GetMetadataForDB(ctx, "d1")
	require.NoError(t, err)

	cat, ok := sc.Registry().Remove("d1")
	require.True(t, ok)
	require.NoError(t, cat.Close())

	wctx, g := lock.Write(ctx, sc)

	done := make(chan error)
	go func() {
		_, err := sc.GetCatalog(ctx, "d1")
		done <- err
	}()

	require.Eventually(t, func() bool {
		waiting, _ := sc.Locks().State()
		return waiting == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, sc.DropDatabase(wctx, db.DBID, "d1"))
	g.Release()

	require.ErrorIs(t, <-done, ErrDatabaseNotFound)

	_, ok = sc.Registry().Get("d1")
	require.False(t, ok)
	require.False(t, sqlstore.Exists(filepath.Join(env.dir, catalogsDirName), "d1"))
}

func TestRegistryEvictsIdleCatalogs(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, env.options().WithMaxCatalogs(2))
	ctx := context.Background()

	require.NoError(t, sc.CreateDatabase(ctx, "d1", RootUserID))
	require.NoError(t, sc.CreateDatabase(ctx, "d2", RootUserID))

	// d1 made room for d2, the system catalog is pinned
	require.Equal(t, []string{"d2", DefaultSystemDBName}, sc.Registry().Names())

	_, ok := sc.Registry().Get("d1")
	require.False(t, ok)

	_, release, ok := sc.Registry().Acquire("d2")
	require.True(t, ok)

	_, err := sc.GetCatalog(ctx, "d1")
	require.ErrorIs(t, err, ErrRegistryFull)

	release()
	release()

	cat, err := sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "d1", cat.CurrentDB().DBName)
	require.Equal(t, 2, sc.Registry().Len())
}

func TestRegistry(t *testing.T) {
	_, err := NewRegistry(0, logger.NewMemoryLogger())
	require.ErrorIs(t, err, ErrInvalidOptions)

	r, err := NewRegistry(2, logger.NewMemoryLogger())
	require.NoError(t, err)

	c1, c2 := &Catalog{}, &Catalog{}

	require.NoError(t, r.Pin("a", c1))
	require.NoError(t, r.Set("b", c2))

	got, ok := r.Get("a")
	require.True(t, ok)
	require.Same(t, c1, got)

	removed, ok := r.Remove("b")
	require.True(t, ok)
	require.Same(t, c2, removed)

	_, ok = r.Remove("b")
	require.False(t, ok)

	require.Equal(t, []string{"a"}, r.Names())
}

func TestReopenKeepsState(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, env.sc.CreateUser(ctx, "alice", "pw", false))
	require.NoError(t, env.sc.CreateRole(ctx, "analysts", false))
	require.NoError(t, env.sc.GrantRole(ctx, "analysts", "alice"))

	td := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a"), dictColumn("b")}, nil))

	sc := env.reopen(t, nil)

	// migrations find nothing to do
	require.False(t, env.log.Contains("created the legacy privileges table"))
	require.False(t, env.log.Contains("replaced clear text passwords"))

	alice, _, err := sc.Login(ctx, "d1", "alice", "pw")
	require.NoError(t, err)
	require.True(t, sc.IsRoleGrantedToUser(ctx, alice.UserID, "analysts"))

	cat, err = sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	reloaded, err := cat.GetMetadataForTable(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, td.TableID, reloaded.TableID)
	require.Equal(t, td.NColumns, reloaded.NColumns)

	b, err := cat.GetMetadataForColumn(ctx, td.TableID, "b")
	require.NoError(t, err)

	dd, err := cat.GetMetadataForDict(ctx, b.ColumnType.CompParam, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, dd.RefCount)
}

func TestMigrateClearTextPasswords(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, nil)
	ctx := context.Background()

	require.NoError(t, sc.CreateUser(ctx, "alice", "pw", false))
	require.NoError(t, sc.Close())

	// rewrite the users table the way older stores kept it
	conn, err := sqlstore.Open(filepath.Join(env.dir, catalogsDirName), DefaultSystemDBName, sqlstore.DefaultOptions())
	require.NoError(t, err)

	err = conn.InTx(ctx, func(ctx context.Context) error {
		for _, stmt := range []string{
			"DROP TABLE users",
			"CREATE TABLE users (userid integer primary key, name text unique, passwd text, issuper boolean)",
			fmt.Sprintf("INSERT INTO users VALUES (%d, '%s', 'legacy-root', 1)", RootUserID, DefaultRootUser),
			"INSERT INTO users VALUES (1, 'alice', 'legacy-alice', 0)",
		} {
			_, err := conn.Exec(ctx, stmt)
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	sc = env.open(t, nil)
	require.True(t, env.log.Contains("replaced clear text passwords with hashes"))

	_, _, err = sc.Login(ctx, DefaultSystemDBName, DefaultRootUser, "legacy-root")
	require.NoError(t, err)

	_, _, err = sc.Login(ctx, DefaultSystemDBName, "alice", "legacy-alice")
	require.NoError(t, err)

	user, err := sc.GetMetadataForUser(ctx, "alice")
	require.NoError(t, err)
	require.NotEqual(t, "legacy-alice", user.PasswdHash)

	// a second run leaves the hashes alone
	sc = env.reopen(t, nil)

	_, _, err = sc.Login(ctx, DefaultSystemDBName, "alice", "legacy-alice")
	require.NoError(t, err)
}

func TestLegacyPrivileges(t *testing.T) {
	env := newTestEnv(t)
	sc := env.open(t, env.options().WithPrivileges(false))
	ctx := context.Background()

	require.NoError(t, sc.CreateUser(ctx, "alice", "pw", false))
	require.NoError(t, sc.CreateUser(ctx, "bob", "pw", false))

	alice, err := sc.GetMetadataForUser(ctx, "alice")
	require.NoError(t, err)
	bob, err := sc.GetMetadataForUser(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, sc.CreateDatabase(ctx, "d1", alice.UserID))

	db, err := sc.GetMetadataForDB(ctx, "d1")
	require.NoError(t, err)

	// role based operations are off
	require.ErrorIs(t, sc.CreateRole(ctx, "analysts", false), ErrPrivilegesOff)
	require.False(t, sc.HasRole(ctx, "alice", true))

	// the owner always gets in
	_, cat, err := sc.Login(ctx, "d1", "alice", "pw")
	require.NoError(t, err)

	_, _, err = sc.Login(ctx, "d1", "bob", "pw")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, sc.GrantPrivileges(ctx, bob.UserID, db.DBID, LegacyPrivileges{Select: true}))

	ok, err := sc.CheckPrivileges(ctx, bob, db, LegacyPrivileges{Select: true})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = sc.CheckDBAccessPrivileges(ctx, bob, cat, 0, 0, "")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, sc.GrantPrivileges(ctx, bob.UserID, db.DBID, LegacyPrivileges{Select: true, Insert: true}))

	_, _, err = sc.Login(ctx, "d1", "bob", "pw")
	require.NoError(t, err)

	ok, err = sc.CheckDBAccessPrivileges(ctx, bob, cat, 0, 0, "")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestToStatus(t *testing.T) {
	require.NoError(t, ToStatus(nil))

	for _, c := range []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: 't1'", ErrTableNotFound), codes.NotFound},
		{ErrDatabaseAlreadyExists, codes.AlreadyExists},
		{ErrNamingConflict, codes.AlreadyExists},
		{ErrPermissionDenied, codes.PermissionDenied},
		{ErrInvalidCredentials, codes.Unauthenticated},
		{ErrIllegalArguments, codes.InvalidArgument},
		{ErrPrivilegesOff, codes.Unimplemented},
		{ErrSchemaChangeDone, codes.FailedPrecondition},
		{ErrConsistency, codes.FailedPrecondition},
		{ErrAlreadyClosed, codes.Unavailable},
		{errors.New("boom"), codes.Internal},
	} {
		st, ok := status.FromError(ToStatus(c.err))
		require.True(t, ok)
		require.Equal(t, c.code, st.Code(), c.err.Error())
	}

	already := status.Error(codes.Aborted, "aborted")
	require.Equal(t, already, ToStatus(already))
}
