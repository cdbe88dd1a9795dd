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
	"fmt"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/sqlstore"
)

// MigrationStep upgrades a store in place. Action inspects the store first
// and reports whether it changed anything, so running a step against an up
// to date store is a no-op.
type MigrationStep struct {
	Name        string
	Description string
	Action      func(ctx context.Context, conn *sqlstore.Connector) (applied bool, err error)
}

// Migration is an ordered list of steps run against one store.
type Migration struct {
	Scope string
	Conn  *sqlstore.Connector
	Steps []MigrationStep
}

// Run executes every step in its own transaction. The first failing step
// stops the migration.
func (m *Migration) Run(ctx context.Context, log logger.Logger) error {
	for _, step := range m.Steps {
		var applied bool

		err := m.Conn.InTx(ctx, func(ctx context.Context) error {
			var err error
			applied, err = step.Action(ctx, m.Conn)
			return err
		})
		if err != nil {
			log.Errorf("migration '%s' of %s failed: %v", step.Name, m.Scope, err)
			return fmt.Errorf("%w: migration '%s' of %s: %w", ErrStoreFailure, step.Name, m.Scope, err)
		}

		if applied {
			metricsMigrations.WithLabelValues(step.Name).Inc()
			log.Infof("%s: %s", m.Scope, step.Description)
		}
	}

	return nil
}

// addMissingColumns adds the columns of table not present yet. defs maps
// column names to their definition in ALTER TABLE syntax.
func addMissingColumns(ctx context.Context, conn *sqlstore.Connector, table string, names []string, defs map[string]string) (bool, error) {
	applied := false

	for _, name := range names {
		ok, err := conn.HasColumn(ctx, table, name)
		if err != nil {
			return false, err
		}
		if ok {
			continue
		}

		_, err = conn.Exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD %s %s", table, name, defs[name]))
		if err != nil {
			return false, err
		}
		applied = true
	}

	return applied, nil
}
