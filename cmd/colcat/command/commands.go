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
	"bufio"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/codenotary/colcat/cmd/helper"
	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/spf13/cobra"
)

// Register adds the catalog management commands to root.
func (cl *Commandline) Register(root *cobra.Command) {
	root.AddCommand(
		cl.initCmd(),
		cl.usersCmd(),
		cl.databasesCmd(),
		cl.tablesCmd(),
		cl.createUserCmd(),
		cl.alterUserCmd(),
		cl.dropUserCmd(),
		cl.createDatabaseCmd(),
		cl.dropDatabaseCmd(),
	)
}

func (cl *Commandline) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a catalog folder, or migrate an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cl.config.Viper().GetString("dir")
			existed := catalog.Exists(dir, catalog.DefaultOptions())

			return cl.withSession(true, func(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
				if existed {
					helper.Successf(cmd.OutOrStdout(), "catalog at '%s' is up to date", dir)
					return nil
				}

				opts := s.sc.Options()
				helper.Successf(cmd.OutOrStdout(), "catalog initialized at '%s'", dir)
				fmt.Fprintf(cmd.OutOrStdout(), "system database: %s\nroot user: %s\n", opts.GetSystemDBName(), opts.GetRootUser())

				if cl.config.Viper().GetString("admin-password") == catalog.DefaultRootPassword {
					helper.Warnf(cmd.OutOrStdout(), "the root user has the default password, change it with 'colcat alter-user'")
				}

				return nil
			})(cmd, args)
		},
	}
}

func (cl *Commandline) usersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "users",
		Aliases: []string{"user-list"},
		Short:   "List users",
		Args:    cobra.NoArgs,
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
			users, err := s.sc.GetAllUserMetadata(ctx)
			if err != nil {
				return err
			}

			helper.PrintTable(cmd.OutOrStdout(), []string{"ID", "NAME", "SUPERUSER"}, len(users), func(i int) []string {
				u := users[i]
				return []string{strconv.Itoa(int(u.UserID)), u.UserName, strconv.FormatBool(u.IsSuper)}
			}, "")

			return nil
		}),
	}
}

func (cl *Commandline) databasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "databases",
		Aliases: []string{"database-list"},
		Short:   "List databases",
		Args:    cobra.NoArgs,
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, _ []string, s *session) error {
			dbs, err := s.sc.GetAllDBMetadata(ctx)
			if err != nil {
				return err
			}

			users, err := s.sc.GetAllUserMetadata(ctx)
			if err != nil {
				return err
			}

			owners := make(map[int32]string, len(users))
			for _, u := range users {
				owners[u.UserID] = u.UserName
			}

			helper.PrintTable(cmd.OutOrStdout(), []string{"ID", "NAME", "OWNER"}, len(dbs), func(i int) []string {
				db := dbs[i]

				owner, ok := owners[db.DBOwner]
				if !ok {
					owner = strconv.Itoa(int(db.DBOwner))
				}

				return []string{strconv.Itoa(int(db.DBID)), db.DBName, owner}
			}, "")

			return nil
		}),
	}
}

func (cl *Commandline) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <database>",
		Short: "List the tables and views of a database",
		Args:  cobra.ExactArgs(1),
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
			cat, err := s.sc.GetCatalog(ctx, args[0])
			if err != nil {
				return err
			}

			var tds []*catalog.TableDescriptor
			for _, td := range cat.GetAllTableMetadata(ctx) {
				if !td.IsShard() {
					tds = append(tds, td)
				}
			}
			sort.Slice(tds, func(i, j int) bool { return tds[i].TableID < tds[j].TableID })

			helper.PrintTable(cmd.OutOrStdout(), []string{"ID", "NAME", "KIND", "COLUMNS", "SHARDS"}, len(tds), func(i int) []string {
				td := tds[i]
				return []string{
					strconv.Itoa(int(td.TableID)),
					td.TableName,
					tableKind(td),
					strconv.Itoa(int(td.NColumns)),
					strconv.Itoa(int(td.NShards)),
				}
			}, "")

			return nil
		}),
	}
}

func tableKind(td *catalog.TableDescriptor) string {
	switch {
	case td.IsView:
		return "view"
	case td.IsTemporary():
		return "temporary"
	}
	return "table"
}

func (cl *Commandline) createUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-user <name>",
		Short: "Create a user, reading the password from stdin unless --password is set",
		Args:  cobra.ExactArgs(1),
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
			passwd, err := cmd.Flags().GetString("password")
			if err != nil {
				return err
			}

			if passwd == "" {
				passwd, err = readPassword(cmd)
				if err != nil {
					return err
				}
			}

			super, err := cmd.Flags().GetBool("super")
			if err != nil {
				return err
			}

			err = s.sc.CreateUser(ctx, args[0], passwd, super)
			if err != nil {
				return err
			}

			helper.Successf(cmd.OutOrStdout(), "user '%s' created", args[0])
			return nil
		}),
	}

	cmd.Flags().String("password", "", "password of the new user")
	cmd.Flags().Bool("super", false, "grant superuser rights")

	return cmd
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "password: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	passwd := strings.TrimRight(line, "\r\n")

	if passwd == "" {
		if err != nil {
			return "", fmt.Errorf("%w: reading password: %v", catalog.ErrIllegalArguments, err)
		}
		return "", fmt.Errorf("%w: empty password", catalog.ErrIllegalArguments)
	}

	return passwd, nil
}

func (cl *Commandline) alterUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alter-user <name>",
		Short: "Change the password or the superuser flag of a user",
		Args:  cobra.ExactArgs(1),
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
			user, err := s.sc.GetMetadataForUser(ctx, args[0])
			if err != nil {
				return err
			}

			var passwd *string
			var super *bool

			if cmd.Flags().Changed("password") {
				p, err := cmd.Flags().GetString("password")
				if err != nil {
					return err
				}
				passwd = &p
			}

			if cmd.Flags().Changed("super") {
				b, err := cmd.Flags().GetBool("super")
				if err != nil {
					return err
				}
				super = &b
			}

			if passwd == nil && super == nil {
				return fmt.Errorf("%w: nothing to change, set --password or --super", catalog.ErrIllegalArguments)
			}

			err = s.sc.AlterUser(ctx, user.UserID, passwd, super)
			if err != nil {
				return err
			}

			helper.Successf(cmd.OutOrStdout(), "user '%s' altered", user.UserName)
			return nil
		}),
	}

	cmd.Flags().String("password", "", "new password")
	cmd.Flags().Bool("super", false, "superuser flag")

	return cmd
}

func (cl *Commandline) dropUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-user <name>",
		Short: "Drop a user together with its grants",
		Args:  cobra.ExactArgs(1),
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
			err := s.sc.DropUser(ctx, args[0])
			if err != nil {
				return err
			}

			helper.Successf(cmd.OutOrStdout(), "user '%s' dropped", args[0])
			return nil
		}),
	}
}

func (cl *Commandline) createDatabaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-database <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
			ownerName, err := cmd.Flags().GetString("owner")
			if err != nil {
				return err
			}
			if ownerName == "" {
				ownerName = s.sc.Options().GetRootUser()
			}

			owner, err := s.sc.GetMetadataForUser(ctx, ownerName)
			if err != nil {
				return err
			}

			err = s.sc.CreateDatabase(ctx, args[0], owner.UserID)
			if err != nil {
				return err
			}

			helper.Successf(cmd.OutOrStdout(), "database '%s' created, owned by '%s'", args[0], owner.UserName)
			return nil
		}),
	}

	cmd.Flags().String("owner", "", "owner of the database (default is the root user)")

	return cmd
}

func (cl *Commandline) dropDatabaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-database <name>",
		Short: "Drop a database with its tables and data",
		Args:  cobra.ExactArgs(1),
		RunE: cl.withSession(false, func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error {
			db, err := s.sc.GetMetadataForDB(ctx, args[0])
			if err != nil {
				return err
			}

			err = s.sc.DropDatabase(ctx, db.DBID, db.DBName)
			if err != nil {
				return err
			}

			helper.Successf(cmd.OutOrStdout(), "database '%s' dropped", db.DBName)
			return nil
		}),
	}
}
