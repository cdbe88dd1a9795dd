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
	"fmt"
	"os"
	"path/filepath"

	"github.com/codenotary/colcat/pkg/rbac"
	"github.com/codenotary/colcat/pkg/sqlstore"
)

const ownershipMarkerTable = "record_ownership_marker"

func (c *Catalog) checkAndExecuteMigrations(ctx context.Context) error {
	if c.sys.opts.readOnly {
		c.log.Warningf("read-only mode: skipping migrations of the catalog of '%s'", c.db.DBName)
		return nil
	}

	steps := []MigrationStep{
		{
			Name:        "table_descriptor_schema",
			Description: "added sharding and ownership columns to tables",
			Action:      migrateTableDescriptorSchema,
		},
		{
			Name:        "frontend_view_schema",
			Description: "added image hash, update time and metadata to frontend views",
			Action:      migrateFrontendViewSchema,
		},
		{
			Name:        "link_schema",
			Description: "created or extended the links table",
			Action:      migrateLinkSchema,
		},
		{
			Name:        "frontend_view_and_link_users",
			Description: "assigned ownerless frontend views and links to the root user",
			Action:      migrateFrontendViewAndLinkUsers,
		},
		{
			Name:        "page_size",
			Description: "set the fragment page size of existing tables",
			Action:      migratePageSize,
		},
		{
			Name:        "deleted_column_indicator",
			Description: "added the deleted column indicator to columns",
			Action:      migrateDeletedColumnIndicator,
		},
		{
			Name:        "dictionary_names",
			Description: "renamed dictionary folders after database and dictionary ids",
			Action:      c.migrateDictionaryNames,
		},
		{
			Name:        "logical_to_physical",
			Description: "created the logical to physical table map",
			Action:      migrateLogicalToPhysical,
		},
		{
			Name:        "dictionary_schema",
			Description: "added reference counts to dictionaries",
			Action:      migrateDictionarySchema,
		},
		{
			Name:        "frontend_views_to_dashboards",
			Description: "copied frontend views into dashboards",
			Action:      migrateFrontendViewsToDashboards,
		},
	}

	var owned []rbac.DBObject

	if c.sys.opts.privilegesOn {
		steps = append(steps, MigrationStep{
			Name:        "record_ownership",
			Description: "recorded the owners of existing objects",
			Action: func(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
				var err error
				owned, err = c.recordOwnership(ctx, conn)
				return owned != nil, err
			},
		})
	}

	m := &Migration{Scope: "catalog of " + c.db.DBName, Conn: c.store, Steps: steps}

	err := m.Run(ctx, c.log)
	if err != nil {
		return err
	}

	if len(owned) > 0 {
		return c.sys.populateRoleDBObjects(ctx, owned)
	}

	return nil
}

func migrateTableDescriptorSchema(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	return addMissingColumns(ctx, conn, "tables",
		[]string{"max_chunk_size", "shard_column_id", "shard", "num_shards", "key_metainfo", "userid"},
		map[string]string{
			"max_chunk_size":  fmt.Sprintf("BIGINT DEFAULT %d", DefaultMaxChunkSize),
			"shard_column_id": "integer DEFAULT 0",
			"shard":           "integer DEFAULT -1",
			"num_shards":      "integer DEFAULT 0",
			"key_metainfo":    "TEXT DEFAULT '[]'",
			"userid":          "integer DEFAULT 0",
		})
}

func migrateFrontendViewSchema(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "frontend_views")
	if err != nil || !exists {
		return false, err
	}

	return addMissingColumns(ctx, conn, "frontend_views",
		[]string{"image_hash", "update_time", "view_metadata"},
		map[string]string{
			"image_hash":    "text",
			"update_time":   "timestamp",
			"view_metadata": "text",
		})
}

func migrateLinkSchema(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "links")
	if err != nil {
		return false, err
	}

	if !exists {
		_, err = conn.Exec(ctx, sqlCreateLinks)
		return err == nil, err
	}

	return addMissingColumns(ctx, conn, "links", []string{"view_metadata"}, map[string]string{"view_metadata": "text"})
}

func migrateFrontendViewAndLinkUsers(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	applied := false

	for _, table := range []string{"frontend_views", "links"} {
		exists, err := conn.TableExists(ctx, table)
		if err != nil {
			return false, err
		}
		if !exists {
			continue
		}

		res, err := conn.Exec(ctx, fmt.Sprintf("UPDATE %s SET userid = ? WHERE userid IS NULL", table), RootUserID)
		if err != nil {
			return false, err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		applied = applied || n > 0
	}

	return applied, nil
}

func migratePageSize(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	versioned, err := conn.HasColumn(ctx, "tables", "version_num")
	if err != nil || versioned {
		return false, err
	}

	_, err = conn.Exec(ctx, "UPDATE tables SET frag_page_size = ?", DefaultFragPageSize)
	if err != nil {
		return false, err
	}

	_, err = conn.Exec(ctx, "ALTER TABLE tables ADD version_num BIGINT DEFAULT 1")
	return err == nil, err
}

func migrateDeletedColumnIndicator(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	versioned, err := conn.HasColumn(ctx, "columns", "version_num")
	if err != nil || versioned {
		return false, err
	}

	_, err = conn.Exec(ctx, "ALTER TABLE columns ADD version_num BIGINT DEFAULT 1")
	if err != nil {
		return false, err
	}

	_, err = addMissingColumns(ctx, conn, "columns", []string{"is_deletedcol"}, map[string]string{"is_deletedcol": "boolean DEFAULT 0"})
	return err == nil, err
}

// migrateDictionaryNames moves dictionary folders from the name based
// layout to the id based one.
func (c *Catalog) migrateDictionaryNames(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	versioned, err := conn.HasColumn(ctx, "dictionaries", "version_num")
	if err != nil || versioned {
		return false, err
	}

	type dict struct {
		id   int32
		name string
	}
	var dicts []dict

	err = conn.Each(ctx, "SELECT dictid, name FROM dictionaries", nil, func(rows *sql.Rows) error {
		var d dict
		err := rows.Scan(&d.id, &d.name)
		if err != nil {
			return err
		}
		dicts = append(dicts, d)
		return nil
	})
	if err != nil {
		return false, err
	}

	for _, d := range dicts {
		oldPath := filepath.Join(c.sys.dataPath, c.db.DBName+"_"+d.name)
		newPath := c.dictFolder(d.id)

		err := os.Rename(oldPath, newPath)
		if err != nil {
			c.log.Warningf("renaming dictionary folder '%s' to '%s': %v", oldPath, newPath, err)
			continue
		}
		c.log.Infof("dictionary folder '%s' renamed to '%s'", oldPath, newPath)
	}

	_, err = conn.Exec(ctx, "ALTER TABLE dictionaries ADD version_num BIGINT DEFAULT 1")
	return err == nil, err
}

func migrateLogicalToPhysical(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "logical_to_physical")
	if err != nil || exists {
		return false, err
	}

	_, err = conn.Exec(ctx, sqlCreateLogicalToPhysical)
	return err == nil, err
}

func migrateDictionarySchema(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	return addMissingColumns(ctx, conn, "dictionaries", []string{"refcount"}, map[string]string{"refcount": "int DEFAULT 1"})
}

func migrateFrontendViewsToDashboards(ctx context.Context, conn *sqlstore.Connector) (bool, error) {
	exists, err := conn.TableExists(ctx, "dashboards")
	if err != nil || exists {
		return false, err
	}

	_, err = conn.Exec(ctx, sqlCreateDashboards)
	if err != nil {
		return false, err
	}

	legacy, err := conn.TableExists(ctx, "frontend_views")
	if err != nil || !legacy {
		return err == nil, err
	}

	_, err = conn.Exec(ctx, `INSERT INTO dashboards (id, name, userid, state, image_hash, update_time, metadata)
		SELECT viewid, name, userid, view_state, image_hash, update_time, view_metadata FROM frontend_views`)
	return err == nil, err
}

// recordOwnership returns the objects whose owners must be granted their
// privileges, nil when ownership was already recorded. The marker table
// makes the step run once per database.
func (c *Catalog) recordOwnership(ctx context.Context, conn *sqlstore.Connector) ([]rbac.DBObject, error) {
	exists, err := conn.TableExists(ctx, ownershipMarkerTable)
	if err != nil {
		return nil, err
	}

	if exists {
		// the system store is shared with the system catalog, which creates
		// no marker rows of its own
		if c.db.DBID == SystemDBID {
			return nil, nil
		}

		n, err := conn.Count(ctx, "SELECT count(*) FROM "+ownershipMarkerTable)
		if err != nil || n > 0 {
			return nil, err
		}
	} else {
		_, err = conn.Exec(ctx, "CREATE TABLE "+ownershipMarkerTable+" (dummy integer)")
		if err != nil {
			return nil, err
		}
	}

	_, err = conn.Exec(ctx, "INSERT INTO "+ownershipMarkerTable+" VALUES (?)", c.db.DBOwner)
	if err != nil {
		return nil, err
	}

	objs := []rbac.DBObject{}

	for _, rec := range []struct {
		t     rbac.DBObjectType
		privs rbac.Privileges
	}{
		{rbac.TableDBObjectType, rbac.AllTable},
		{rbac.DashboardDBObjectType, rbac.AllDashboard},
		{rbac.ViewDBObjectType, rbac.AllView},
	} {
		obj := rbac.NewDBObjectWithKey(c.db.DBName, rbac.DBObjectKey{
			PermissionType: rec.t,
			DBID:           c.db.DBID,
			ObjectID:       rbac.DatabaseWide,
		}, rec.privs)
		obj.Owner = c.db.DBOwner

		objs = append(objs, obj)
	}

	err = conn.Each(ctx, "SELECT tableid, name, userid, isview FROM tables WHERE userid > 0 AND shard < 0", nil,
		func(rows *sql.Rows) error {
			var (
				id, owner int32
				name      string
				isView    bool
			)

			err := rows.Scan(&id, &name, &owner, &isView)
			if err != nil {
				return err
			}

			t, privs := rbac.TableDBObjectType, rbac.AllTable
			if isView {
				t, privs = rbac.ViewDBObjectType, rbac.AllView
			}

			obj := rbac.NewDBObjectWithKey(name, rbac.DBObjectKey{PermissionType: t, DBID: c.db.DBID, ObjectID: id}, privs)
			obj.Owner = owner

			objs = append(objs, obj)

			return nil
		})
	if err != nil {
		return nil, err
	}

	err = conn.Each(ctx, "SELECT id, name, userid FROM dashboards WHERE userid > 0", nil, func(rows *sql.Rows) error {
		var (
			id, owner int32
			name      string
		)

		err := rows.Scan(&id, &name, &owner)
		if err != nil {
			return err
		}

		obj := rbac.NewDBObjectWithKey(name, rbac.DBObjectKey{
			PermissionType: rbac.DashboardDBObjectType,
			DBID:           c.db.DBID,
			ObjectID:       id,
		}, rbac.AllDashboard)
		obj.Owner = owner

		objs = append(objs, obj)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return objs, nil
}
