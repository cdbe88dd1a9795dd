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
	"fmt"
	"os"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/sqlstore"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultSystemDBName  = "systemdb"
	DefaultRootUser      = "admin"
	DefaultRootPassword  = "colcat"
	DefaultMaxCatalogs   = 64
	DefaultMaxFragRows   = 32_000_000
	DefaultMaxChunkSize  = 1 << 30
	DefaultFragPageSize  = 1 << 21
	DefaultMaxRows       = int64(1) << 62
	catalogsDirName      = "catalogs"
	dataDirName          = "data"
	temporaryObjectsBase = int32(1) << 30
)

type Options struct {
	systemDBName string
	rootUser     string
	rootPassword string

	privilegesOn bool
	readOnly     bool
	maxCatalogs  int
	passwordCost int

	storeOpts *sqlstore.Options

	notifier          MetadataNotifier
	authenticator     Authenticator
	fragmenterFactory FragmenterFactory

	logger logger.Logger
}

func DefaultOptions() *Options {
	return &Options{
		systemDBName: DefaultSystemDBName,
		rootUser:     DefaultRootUser,
		rootPassword: DefaultRootPassword,
		privilegesOn: true,
		maxCatalogs:  DefaultMaxCatalogs,
		passwordCost: bcrypt.DefaultCost,
		storeOpts:    sqlstore.DefaultOptions(),
		notifier:     NoopNotifier{},
		logger:       logger.NewSimpleLogger("catalog", os.Stderr),
	}
}

func (opts *Options) Validate() error {
	if opts == nil {
		return fmt.Errorf("%w: nil options", ErrInvalidOptions)
	}

	if opts.systemDBName == "" {
		return fmt.Errorf("%w: empty system database name", ErrInvalidOptions)
	}

	if opts.rootUser == "" {
		return fmt.Errorf("%w: empty root user name", ErrInvalidOptions)
	}

	if opts.rootPassword == "" {
		return fmt.Errorf("%w: empty root password", ErrInvalidOptions)
	}

	if opts.maxCatalogs < 1 {
		return fmt.Errorf("%w: invalid MaxCatalogs value", ErrInvalidOptions)
	}

	if opts.passwordCost < bcrypt.MinCost || opts.passwordCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: invalid PasswordCost value", ErrInvalidOptions)
	}

	if opts.notifier == nil {
		return fmt.Errorf("%w: nil metadata notifier", ErrInvalidOptions)
	}

	if opts.logger == nil {
		return fmt.Errorf("%w: nil logger", ErrInvalidOptions)
	}

	return opts.storeOpts.Validate()
}

func (opts *Options) WithSystemDBName(name string) *Options {
	opts.systemDBName = name
	return opts
}

func (opts *Options) WithRootUser(name string) *Options {
	opts.rootUser = name
	return opts
}

func (opts *Options) WithRootPassword(passwd string) *Options {
	opts.rootPassword = passwd
	return opts
}

// WithPrivileges toggles role based access control. When off, the legacy
// per-database privileges table is used.
func (opts *Options) WithPrivileges(on bool) *Options {
	opts.privilegesOn = on
	return opts
}

func (opts *Options) WithReadOnly(readOnly bool) *Options {
	opts.readOnly = readOnly
	return opts
}

func (opts *Options) WithMaxCatalogs(n int) *Options {
	opts.maxCatalogs = n
	return opts
}

// WithPasswordCost sets the bcrypt cost of stored password hashes.
func (opts *Options) WithPasswordCost(cost int) *Options {
	opts.passwordCost = cost
	return opts
}

func (opts *Options) WithStoreOptions(storeOpts *sqlstore.Options) *Options {
	opts.storeOpts = storeOpts
	return opts
}

func (opts *Options) WithNotifier(n MetadataNotifier) *Options {
	opts.notifier = n
	return opts
}

func (opts *Options) WithAuthenticator(a Authenticator) *Options {
	opts.authenticator = a
	return opts
}

func (opts *Options) WithFragmenterFactory(f FragmenterFactory) *Options {
	opts.fragmenterFactory = f
	return opts
}

func (opts *Options) WithLogger(l logger.Logger) *Options {
	opts.logger = l
	return opts
}

func (opts *Options) GetSystemDBName() string {
	return opts.systemDBName
}

func (opts *Options) GetRootUser() string {
	return opts.rootUser
}

func (opts *Options) PrivilegesOn() bool {
	return opts.privilegesOn
}
