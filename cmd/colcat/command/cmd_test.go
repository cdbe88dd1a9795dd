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

package colcat

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type result struct {
	out string
	err string
}

func run(t *testing.T, dir, stdin string, args ...string) (result, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewCommandline().NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--dir", dir, "--password-cost", "4", "--log-level", "error"}, args...))

	err := cmd.Execute()

	return result{out: stdout.String(), err: stderr.String()}, err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()

	res, err := run(t, dir, "", args...)
	require.NoError(t, err, res.err)

	return res.out
}

func TestCommandsRequireInit(t *testing.T) {
	dir := t.TempDir()

	for _, args := range [][]string{{"users"}, {"databases"}, {"create-user", "alice", "--password", "pw"}} {
		_, err := run(t, dir, "", args...)
		require.ErrorIs(t, err, catalog.ErrIllegalState, args[0])
	}

	require.False(t, catalog.Exists(dir, catalog.DefaultOptions()))
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")

	out := mustRun(t, dir, "init")
	require.Contains(t, out, "catalog initialized at '"+dir+"'")
	require.Contains(t, out, "root user: "+catalog.DefaultRootUser)
	require.Contains(t, out, "default password")

	require.True(t, catalog.Exists(dir, catalog.DefaultOptions()))

	out = mustRun(t, dir, "init")
	require.Contains(t, out, "is up to date")

	out = mustRun(t, dir, "users")
	require.Contains(t, out, "1 row(s)")
	require.Contains(t, out, catalog.DefaultRootUser)
}

func TestInitWithAdminPassword(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "--admin-password", "s3cret", "init")
	require.NotContains(t, out, "default password")

	_, err := run(t, dir, "", "drop-user", catalog.DefaultRootUser)
	require.Error(t, err)
}

func TestUsers(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")

	out := mustRun(t, dir, "create-user", "alice", "--password", "alice-pw")
	require.Contains(t, out, "user 'alice' created")

	res, err := run(t, dir, "bob-pw\n", "create-user", "bob", "--super")
	require.NoError(t, err)
	require.Contains(t, res.out, "user 'bob' created")
	require.Contains(t, res.err, "password: ")

	_, err = run(t, dir, "", "create-user", "carol")
	require.ErrorIs(t, err, catalog.ErrIllegalArguments)

	_, err = run(t, dir, "", "create-user", "alice", "--password", "again")
	require.ErrorIs(t, err, catalog.ErrUserAlreadyExists)

	out = mustRun(t, dir, "users")
	require.Contains(t, out, "3 row(s)")
	require.Contains(t, out, "alice")
	require.Contains(t, out, "bob")
	require.NotContains(t, out, "carol")

	_, err = run(t, dir, "", "alter-user", "alice")
	require.ErrorIs(t, err, catalog.ErrIllegalArguments)

	out = mustRun(t, dir, "alter-user", "alice", "--super")
	require.Contains(t, out, "user 'alice' altered")

	_, err = run(t, dir, "", "alter-user", "dave", "--super")
	require.ErrorIs(t, err, catalog.ErrUserNotFound)

	out = mustRun(t, dir, "drop-user", "bob")
	require.Contains(t, out, "user 'bob' dropped")

	out = mustRun(t, dir, "users")
	require.Contains(t, out, "2 row(s)")
	require.NotContains(t, out, "bob")
}

func TestDatabases(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "init")
	mustRun(t, dir, "create-user", "alice", "--password", "alice-pw")

	out := mustRun(t, dir, "create-database", "sales", "--owner", "alice")
	require.Contains(t, out, "database 'sales' created, owned by 'alice'")

	out = mustRun(t, dir, "create-database", "hr")
	require.Contains(t, out, "owned by '"+catalog.DefaultRootUser+"'")

	_, err := run(t, dir, "", "create-database", "ops", "--owner", "nobody")
	require.ErrorIs(t, err, catalog.ErrUserNotFound)

	_, err = run(t, dir, "", "create-database", "sales")
	require.ErrorIs(t, err, catalog.ErrDatabaseAlreadyExists)

	out = mustRun(t, dir, "databases")
	require.Contains(t, out, "3 row(s)")
	require.Contains(t, out, catalog.DefaultSystemDBName)
	require.Contains(t, out, "sales")
	require.Contains(t, out, "alice")

	out = mustRun(t, dir, "tables", "sales")
	require.Contains(t, out, "0 row(s)")

	_, err = run(t, dir, "", "tables", "ops")
	require.ErrorIs(t, err, catalog.ErrDatabaseNotFound)

	_, err = run(t, dir, "", "drop-database", catalog.DefaultSystemDBName)
	require.ErrorIs(t, err, catalog.ErrPermissionDenied)

	out = mustRun(t, dir, "drop-database", "sales")
	require.Contains(t, out, "database 'sales' dropped")

	out = mustRun(t, dir, "databases")
	require.Contains(t, out, "2 row(s)")
	require.NotContains(t, out, "sales")
}

func TestTableKind(t *testing.T) {
	td := catalog.NewTableDescriptor("t")
	require.Equal(t, "table", tableKind(&td))

	td.IsView = true
	require.Equal(t, "view", tableKind(&td))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg := filepath.Join(t.TempDir(), "colcat.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("admin-password = \"from-file\"\n"), 0600))

	out := mustRun(t, dir, "--config", cfg, "init")
	require.NotContains(t, out, "default password")

	_, err := run(t, dir, "", "--config", filepath.Join(dir, "missing.toml"), "users")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "version")
	require.NotEmpty(t, out)
}

func TestFlagNormalization(t *testing.T) {
	dir := t.TempDir()

	res, err := run(t, dir, "", "--max_catalogs", "2", "init")
	require.NoError(t, err, res.err)
	require.Contains(t, res.out, "catalog initialized")
}
