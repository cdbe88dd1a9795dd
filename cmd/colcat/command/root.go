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
	"strings"

	"github.com/codenotary/colcat/cmd/helper"
	"github.com/codenotary/colcat/cmd/version"
	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

const defaultDir = "./data"

func (cl *Commandline) NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "colcat",
		Short: "colcat - metadata catalog of a columnar analytical database",
		Long: `colcat - metadata catalog of a columnar analytical database.

Bootstraps a catalog directory and manages its users and databases.

Setting the logging level and other options through environment variables:
- Logging level: LOG_LEVEL={debug|info|warning|error}, or --log-level
- The environment variable names for other settings are derived by prefixing flag names with "COLCAT_"
  e.g COLCAT_DIR=/var/lib/colcat colcat users.
  Note: flags take precedence over environment variables.
`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cl.ConfigChain(nil),
	}

	cl.setupFlags(cmd.PersistentFlags(), catalog.DefaultOptions())
	cmd.SetGlobalNormalizationFunc(normalizeFlagName)

	cl.Register(cmd)
	cmd.AddCommand(version.VersionCmd())

	return cmd
}

func (cl *Commandline) setupFlags(flags *pflag.FlagSet, options *catalog.Options) {
	flags.String("dir", defaultDir, "catalog folder")
	flags.StringVar(&cl.config.CfgFn, "config", "", "config file (default path are configs or $HOME. Default filename is .colcat.toml)")
	flags.String("log-level", "info", "logging level: debug, info, warning or error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("admin-password", catalog.DefaultRootPassword, "password of the root user, set when the catalog is initialized")
	flags.Bool("privileges", options.PrivilegesOn(), "enable role based access control")
	flags.Int("max-catalogs", catalog.DefaultMaxCatalogs, "max number of database catalogs kept open")
	flags.Int("password-cost", bcrypt.DefaultCost, "bcrypt cost of stored password hashes")
	flags.MarkHidden("password-cost")
}

// normalizeFlagName accepts --max_catalogs for --max-catalogs.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// Execute runs the colcat command line, exiting with a status derived from
// the error of the failed command.
func Execute() {
	version.App = "colcat"

	cmd := NewCommandline().NewRootCmd()
	if err := cmd.Execute(); err != nil {
		helper.QuitWithUserError(err)
	}
}
