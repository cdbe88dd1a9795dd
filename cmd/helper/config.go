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

package helper

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config locates the optional configuration file of a command and wires
// environment variables prefixed with the upper cased Name.
type Config struct {
	Name  string
	CfgFn string
	v     *viper.Viper
}

// Viper returns the instance the command flags are bound to, creating it
// on first use.
func (c *Config) Viper() *viper.Viper {
	if c.v == nil {
		c.v = viper.New()
	}
	return c.v
}

// LoadConfig binds the command flags and reads the config file, if any.
// Flags set on the command line take precedence over the environment,
// which takes precedence over the file.
func (c *Config) LoadConfig(cmd *cobra.Command) error {
	v := c.Viper()

	err := v.BindPFlags(cmd.Flags())
	if err != nil {
		return err
	}

	if c.CfgFn != "" {
		v.SetConfigFile(c.CfgFn)
	} else {
		v.SetConfigName("." + c.Name)
		v.SetConfigType("toml")
		v.AddConfigPath("configs")
		if runtime.GOOS != "windows" {
			v.AddConfigPath("/etc/" + c.Name)
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(strings.ToUpper(c.Name))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	err = v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.CfgFn == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	c.CfgFn = v.ConfigFileUsed()

	return nil
}
