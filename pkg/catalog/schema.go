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

	"github.com/codenotary/colcat/pkg/sqlstore"
)

// system store tables

const sqlCreateUsers = `CREATE TABLE users (
	userid integer primary key,
	name text unique,
	passwd_hash text,
	issuper boolean
)`

const sqlCreateDatabases = `CREATE TABLE databases (
	dbid integer primary key,
	name text unique,
	owner integer references users
)`

const sqlCreateRoles = `CREATE TABLE IF NOT EXISTS roles (
	roleName text,
	userName text,
	UNIQUE(roleName, userName)
)`

const sqlCreateObjectPermissions = `CREATE TABLE IF NOT EXISTS object_permissions (
	roleName text,
	roleType bool,
	dbId integer references databases,
	objectId integer,
	objectPermissionsType integer,
	objectPermissions integer,
	objectOwnerId integer,
	objectName text,
	UNIQUE(roleName, objectPermissionsType, dbId, objectId)
)`

const sqlCreatePrivileges = `CREATE TABLE IF NOT EXISTS privileges (
	userid integer references users,
	dbid integer references databases,
	select_priv boolean,
	insert_priv boolean,
	UNIQUE(userid, dbid)
)`

// per-database store tables

var catalogSchema = []string{
	`CREATE TABLE tables (
		tableid integer primary key,
		name text unique,
		userid integer,
		ncolumns integer,
		isview boolean,
		fragments text,
		frag_type integer,
		max_frag_rows integer,
		max_chunk_size bigint,
		frag_page_size integer,
		max_rows bigint,
		partitions text,
		shard_column_id integer,
		shard integer,
		num_shards integer,
		key_metainfo TEXT DEFAULT '[]',
		version_num BIGINT DEFAULT 1
	)`,
	`CREATE TABLE columns (
		tableid integer references tables,
		columnid integer,
		name text,
		coltype integer,
		colsubtype integer,
		coldim integer,
		colscale integer,
		is_notnull boolean,
		compression integer,
		comp_param integer,
		size integer,
		chunks text,
		is_systemcol boolean,
		is_virtualcol boolean,
		virtual_expr text,
		is_deletedcol boolean DEFAULT 0,
		version_num BIGINT DEFAULT 1,
		primary key(tableid, columnid),
		unique(tableid, name)
	)`,
	`CREATE TABLE views (tableid integer references tables, sql text)`,
	sqlCreateDashboards,
	sqlCreateLinks,
	`CREATE TABLE dictionaries (
		dictid integer primary key,
		name text unique,
		nbits int,
		is_shared boolean,
		refcount int DEFAULT 1,
		version_num BIGINT DEFAULT 1
	)`,
	sqlCreateLogicalToPhysical,
}

const sqlCreateDashboards = `CREATE TABLE dashboards (
	id integer primary key autoincrement,
	name text,
	userid integer references users,
	state text,
	image_hash text,
	update_time timestamp,
	metadata text,
	UNIQUE(userid, name)
)`

const sqlCreateLinks = `CREATE TABLE IF NOT EXISTS links (
	linkid integer primary key,
	userid integer references users,
	link text unique,
	view_state text,
	update_time timestamp,
	view_metadata text
)`

const sqlCreateLogicalToPhysical = `CREATE TABLE IF NOT EXISTS logical_to_physical (
	logical_table_id integer,
	physical_table_id integer
)`

const sqlSelectTables = `SELECT tableid, name, ncolumns, isview, fragments, frag_type,
	max_frag_rows, max_chunk_size, frag_page_size, max_rows, partitions,
	shard_column_id, shard, num_shards, key_metainfo, userid
	FROM tables ORDER BY tableid`

const sqlSelectColumns = `SELECT tableid, columnid, name, coltype, colsubtype, coldim,
	colscale, is_notnull, compression, comp_param, size, chunks, is_systemcol,
	is_virtualcol, virtual_expr, is_deletedcol
	FROM columns ORDER BY tableid, columnid`

const sqlInsertColumn = `INSERT INTO columns (tableid, columnid, name, coltype, colsubtype,
	coldim, colscale, is_notnull, compression, comp_param, size, chunks,
	is_systemcol, is_virtualcol, virtual_expr, is_deletedcol)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqlInsertTable = `INSERT INTO tables (name, userid, ncolumns, isview, fragments,
	frag_type, max_frag_rows, max_chunk_size, frag_page_size, max_rows,
	partitions, shard_column_id, shard, num_shards, key_metainfo)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const sqlSelectDashboards = `SELECT id, state, name, image_hash,
	strftime('%Y-%m-%dT%H:%M:%SZ', update_time), userid, metadata
	FROM dashboards`

func createCatalogSchema(ctx context.Context, conn *sqlstore.Connector) error {
	for _, stmt := range catalogSchema {
		_, err := conn.Exec(ctx, stmt)
		if err != nil {
			return err
		}
	}
	return nil
}

func insertColumn(ctx context.Context, conn *sqlstore.Connector, cd *ColumnDescriptor) error {
	ti := cd.ColumnType
	_, err := conn.Exec(ctx, sqlInsertColumn,
		cd.TableID, cd.ColumnID, cd.ColumnName,
		int32(ti.Type), int32(ti.SubType), ti.Dimension, ti.Scale, ti.NotNull,
		int32(ti.Compression), ti.CompParam, ti.Size, cd.Chunks,
		cd.IsSystemCol, cd.IsVirtualCol, cd.VirtualExpr, cd.IsDeletedCol)
	return err
}
