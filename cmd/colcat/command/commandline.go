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
	"context"
	"fmt"
	"path/filepath"

	"github.com/codenotary/colcat/cmd/helper"
	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/embedded/multierr"
	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/fragmenter"
	"github.com/spf13/cobra"
)

// Commandline carries the state shared by the colcat commands.
type Commandline struct {
	config helper.Config
}

func NewCommandline() *Commandline {
	return &Commandline{config: helper.Config{Name: "colcat"}}
}

func (cl *Commandline) ConfigChain(post func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) (err error) {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err = cl.config.LoadConfig(cmd); err != nil {
			return err
		}
		if post != nil {
			return post(cmd, args)
		}
		return nil
	}
}

// session bundles an opened system catalog with the services backing it.
type session struct {
	sc    *catalog.SysCatalog
	dm    *datamgr.DataMgr
	dicts *dictionary.LocalService
	log   logger.Logger
}

func (s *session) Close() error {
	merr := multierr.NewMultiErr()

	if s.sc != nil {
		merr.Append(s.sc.Close())
	}
	if s.dicts != nil {
		merr.Append(s.dicts.Close())
	}
	if s.dm != nil {
		merr.Append(s.dm.Close())
	}
	merr.Append(s.log.Close())

	return merr.Reduce()
}

func (cl *Commandline) newLogger(cmd *cobra.Command) (logger.Logger, error) {
	v := cl.config.Viper()

	return logger.NewLogger(&logger.Options{
		Name:      "colcat",
		Level:     logger.ParseLogLevel(v.GetString("log-level")),
		Output:    cmd.ErrOrStderr(),
		LogFormat: v.GetString("log-format"),
	})
}

func (cl *Commandline) catalogOptions(log logger.Logger) *catalog.Options {
	v := cl.config.Viper()

	return catalog.DefaultOptions().
		WithRootPassword(v.GetString("admin-password")).
		WithPrivileges(v.GetBool("privileges")).
		WithMaxCatalogs(v.GetInt("max-catalogs")).
		WithPasswordCost(v.GetInt("password-cost")).
		WithFragmenterFactory(fragmenter.Factory(fragmenter.DefaultOptions().WithLogger(log))).
		WithLogger(log)
}

// open opens the catalog under --dir. Unless create is set, a directory
// that was never initialized is reported instead of being initialized.
func (cl *Commandline) open(ctx context.Context, cmd *cobra.Command, create bool) (*session, error) {
	dir := cl.config.Viper().GetString("dir")

	log, err := cl.newLogger(cmd)
	if err != nil {
		return nil, err
	}

	opts := cl.catalogOptions(log)

	if !create && !catalog.Exists(dir, opts) {
		log.Close()
		return nil, fmt.Errorf("%w: no catalog at '%s', run 'colcat init' first", catalog.ErrIllegalState, dir)
	}

	s := &session{log: log}

	s.dm, err = datamgr.Open(filepath.Join(dir, "chunks"), datamgr.DefaultOptions().WithLogger(log))
	if err != nil {
		s.Close()
		return nil, err
	}

	s.dicts = dictionary.NewLocalService()

	s.sc, err = catalog.OpenSysCatalog(ctx, dir, s.dm, s.dicts, opts)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// withSession runs fn against an opened catalog and closes it afterwards.
func (cl *Commandline) withSession(create bool, fn func(ctx context.Context, cmd *cobra.Command, args []string, s *session) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		s, err := cl.open(ctx, cmd, create)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := s.Close(); err == nil {
				err = cerr
			}
		}()

		return fn(ctx, cmd, args, s)
	}
}
