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
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/embedded/multierr"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/lock"
	"github.com/codenotary/colcat/pkg/rbac"
	"github.com/codenotary/colcat/pkg/sqlstore"
	"github.com/codenotary/colcat/pkg/sqltypes"
)

// Catalog holds the tables, columns, dictionaries, dashboards and links of
// one database. Descriptors returned by its getters stay owned by the
// catalog and keep their identity until the object is dropped.
type Catalog struct {
	sys *SysCatalog
	db  DBMetadata

	store     *sqlstore.Connector
	ownsStore bool
	locks     *lock.Set

	dataMgr datamgr.Manager
	dicts   dictionary.Service

	log logger.Logger

	tables      arena[TableDescriptor]
	tableByName map[string]handle
	tableByID   map[int32]handle

	columns      arena[ColumnDescriptor]
	columnByName map[columnNameKey]handle
	columnByID   map[columnIDKey]handle

	// logical table id to the handle of its deleted column
	deletedColumn map[int32]handle

	dictByID map[int32]*DictDescriptor
	dictMtx  sync.Mutex

	dashboards map[string]*FrontendViewDescriptor
	linkByLink map[string]*LinkDescriptor
	linkByID   map[int32]*LinkDescriptor

	logicalToPhysical map[int32][]int32

	nextTempTableID int32
	nextTempDictID  int32

	fragMtx sync.Mutex

	closeMtx sync.Mutex
	closed   bool
}

// openCatalog opens the store of db, migrates it and loads every
// descriptor. The catalog of the system database shares the store and the
// locks of sc.
func openCatalog(ctx context.Context, sc *SysCatalog, db DBMetadata) (*Catalog, error) {
	c := &Catalog{
		sys:     sc,
		db:      db,
		dataMgr: sc.dataMgr,
		dicts:   sc.dicts,
		log:     sc.log,
	}
	c.reset()

	if sc.isSystemDB(db.DBName) {
		c.store = sc.store
		c.locks = sc.locks
	} else {
		store, err := sqlstore.Open(sc.catalogsPath, db.DBName, sc.opts.storeOpts)
		if err != nil {
			return nil, err
		}
		c.store = store
		c.ownsStore = true
		c.locks = lock.NewSet("cat:" + db.DBName)
	}

	err := c.checkAndExecuteMigrations(ctx)
	if err == nil {
		err = c.buildMaps(ctx)
	}
	if err != nil {
		if c.ownsStore {
			c.store.Close()
		}
		return nil, err
	}

	c.log.Infof("catalog of database '%s' opened with %d tables", db.DBName, c.tables.len())

	return c, nil
}

func (c *Catalog) reset() {
	c.tables.reset()
	c.tableByName = make(map[string]handle)
	c.tableByID = make(map[int32]handle)
	c.columns.reset()
	c.columnByName = make(map[columnNameKey]handle)
	c.columnByID = make(map[columnIDKey]handle)
	c.deletedColumn = make(map[int32]handle)
	c.dictByID = make(map[int32]*DictDescriptor)
	c.dashboards = make(map[string]*FrontendViewDescriptor)
	c.linkByLink = make(map[string]*LinkDescriptor)
	c.linkByID = make(map[int32]*LinkDescriptor)
	c.logicalToPhysical = make(map[int32][]int32)
	c.nextTempTableID = temporaryObjectsBase
	c.nextTempDictID = temporaryObjectsBase
}

func (c *Catalog) Locks() *lock.Set {
	return c.locks
}

func (c *Catalog) CurrentDB() DBMetadata {
	return c.db
}

func (c *Catalog) SysCatalog() *SysCatalog {
	return c.sys
}

func (c *Catalog) DataMgr() datamgr.Manager {
	return c.dataMgr
}

// Close releases the store of the catalog. Descriptors obtained before
// stay readable but the catalog must not be used anymore.
func (c *Catalog) Close() error {
	c.closeMtx.Lock()
	defer c.closeMtx.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}
	c.closed = true

	c.log.Infof("catalog of database '%s' closed", c.db.DBName)

	if !c.ownsStore {
		return nil
	}

	return c.store.Close()
}

func (c *Catalog) dictFolder(dictID int32) string {
	return filepath.Join(c.sys.dataPath, fmt.Sprintf("DB_%d_DICT_%d", c.db.DBID, dictID))
}

func (c *Catalog) buildMaps(ctx context.Context) error {
	err := c.store.Each(ctx, "SELECT dictid, name, nbits, is_shared, refcount FROM dictionaries", nil,
		func(rows *sql.Rows) error {
			dd := &DictDescriptor{}

			err := rows.Scan(&dd.Ref.DictID, &dd.Name, &dd.NBits, &dd.IsShared, &dd.RefCount)
			if err != nil {
				return err
			}

			dd.Ref.DBID = c.db.DBID
			dd.FolderPath = c.dictFolder(dd.Ref.DictID)
			c.dictByID[dd.Ref.DictID] = dd

			return nil
		})
	if err != nil {
		return err
	}

	err = c.store.Each(ctx, sqlSelectTables, nil, func(rows *sql.Rows) error {
		var (
			td                    TableDescriptor
			fragments, partitions sql.NullString
			keyMetainfo           sql.NullString
		)

		err := rows.Scan(&td.TableID, &td.TableName, &td.NColumns, &td.IsView, &fragments, &td.FragType,
			&td.MaxFragRows, &td.MaxChunkSize, &td.FragPageSize, &td.MaxRows, &partitions,
			&td.ShardedColumnID, &td.Shard, &td.NShards, &keyMetainfo, &td.UserID)
		if err != nil {
			return err
		}

		td.Fragments = fragments.String
		td.Partitions = partitions.String
		td.KeyMetainfo = keyMetainfo.String
		td.PersistenceLevel = datamgr.DiskLevel

		c.putTable(&td)

		return nil
	})
	if err != nil {
		return err
	}

	skipPhysical := 0

	err = c.store.Each(ctx, sqlSelectColumns, nil, func(rows *sql.Rows) error {
		var (
			cd                         ColumnDescriptor
			chunks, virtualExpr        sql.NullString
			coltype, subtype, encoding int32
		)

		err := rows.Scan(&cd.TableID, &cd.ColumnID, &cd.ColumnName, &coltype, &subtype,
			&cd.ColumnType.Dimension, &cd.ColumnType.Scale, &cd.ColumnType.NotNull, &encoding,
			&cd.ColumnType.CompParam, &cd.ColumnType.Size, &chunks, &cd.IsSystemCol,
			&cd.IsVirtualCol, &virtualExpr, &cd.IsDeletedCol)
		if err != nil {
			return err
		}

		cd.ColumnType.Type = sqltypes.SQLType(coltype)
		cd.ColumnType.SubType = sqltypes.SQLType(subtype)
		cd.ColumnType.Compression = sqltypes.EncodingType(encoding)
		cd.Chunks = chunks.String
		cd.VirtualExpr = virtualExpr.String
		cd.IsGeoPhyCol = skipPhysical > 0

		td := c.tableByIDLocked(cd.TableID)
		if td == nil {
			return fmt.Errorf("%w: column '%s' of unknown table %d", ErrConsistency, cd.ColumnName, cd.TableID)
		}

		h := c.putColumn(&cd)

		switch {
		case cd.IsDeletedCol:
			td.HasDeletedCol = true
			c.deletedColumn[td.TableID] = h
		case cd.ColumnType.IsGeometry() || skipPhysical <= 0:
			td.columnIDBySpi = append(td.columnIDBySpi, cd.ColumnID)
		}

		if skipPhysical > 0 {
			skipPhysical--
		}
		if cd.ColumnType.IsGeometry() {
			skipPhysical = cd.ColumnType.PhysicalColumnCount()
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, td := range c.allTables() {
		sort.Slice(td.columnIDBySpi, func(i, j int) bool { return td.columnIDBySpi[i] < td.columnIDBySpi[j] })
	}

	err = c.store.Each(ctx, "SELECT tableid, sql FROM views", nil, func(rows *sql.Rows) error {
		var (
			id    int32
			query string
		)

		err := rows.Scan(&id, &query)
		if err != nil {
			return err
		}

		if td := c.tableByIDLocked(id); td != nil {
			td.ViewSQL = query
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = c.store.Each(ctx, sqlSelectDashboards, nil, func(rows *sql.Rows) error {
		vd, err := scanDashboard(rows.Scan)
		if err != nil {
			return err
		}

		c.dashboards[dashboardKey(vd.UserID, vd.ViewName)] = vd

		return nil
	})
	if err != nil {
		return err
	}

	err = c.store.Each(ctx, sqlSelectLinks, nil, func(rows *sql.Rows) error {
		ld, err := scanLink(rows.Scan)
		if err != nil {
			return err
		}

		c.linkByLink[ld.Link] = ld
		c.linkByID[ld.LinkID] = ld

		return nil
	})
	if err != nil {
		return err
	}

	return c.store.Each(ctx, "SELECT logical_table_id, physical_table_id FROM logical_to_physical ORDER BY physical_table_id", nil,
		func(rows *sql.Rows) error {
			var logical, physical int32

			err := rows.Scan(&logical, &physical)
			if err != nil {
				return err
			}

			c.logicalToPhysical[logical] = append(c.logicalToPhysical[logical], physical)

			return nil
		})
}

func (c *Catalog) putTable(td *TableDescriptor) handle {
	h := c.tables.put(td)
	c.tableByName[upper(td.TableName)] = h
	c.tableByID[td.TableID] = h
	return h
}

func (c *Catalog) putColumn(cd *ColumnDescriptor) handle {
	h := c.columns.put(cd)
	c.columnByName[columnNameKey{cd.TableID, upper(cd.ColumnName)}] = h
	c.columnByID[columnIDKey{cd.TableID, cd.ColumnID}] = h
	return h
}

func (c *Catalog) removeColumn(cd *ColumnDescriptor) {
	h, ok := c.columnByID[columnIDKey{cd.TableID, cd.ColumnID}]
	if !ok {
		return
	}

	delete(c.columnByID, columnIDKey{cd.TableID, cd.ColumnID})
	delete(c.columnByName, columnNameKey{cd.TableID, upper(cd.ColumnName)})

	if dh, ok := c.deletedColumn[cd.TableID]; ok && dh == h {
		delete(c.deletedColumn, cd.TableID)
	}

	c.columns.release(h)
}

func (c *Catalog) tableByNameLocked(name string) *TableDescriptor {
	h, ok := c.tableByName[upper(name)]
	if !ok {
		return nil
	}
	return c.tables.get(h)
}

func (c *Catalog) tableByIDLocked(id int32) *TableDescriptor {
	h, ok := c.tableByID[id]
	if !ok {
		return nil
	}
	return c.tables.get(h)
}

func (c *Catalog) columnByNameLocked(tableID int32, name string) *ColumnDescriptor {
	h, ok := c.columnByName[columnNameKey{tableID, upper(name)}]
	if !ok {
		return nil
	}
	return c.columns.get(h)
}

func (c *Catalog) columnByIDLocked(tableID, columnID int32) *ColumnDescriptor {
	h, ok := c.columnByID[columnIDKey{tableID, columnID}]
	if !ok {
		return nil
	}
	return c.columns.get(h)
}

// allTables returns every table, shards included, ordered by id. Callers
// hold the catalog lock.
func (c *Catalog) allTables() []*TableDescriptor {
	res := make([]*TableDescriptor, 0, len(c.tableByID))
	for _, h := range c.tableByID {
		res = append(res, c.tables.get(h))
	}

	sort.Slice(res, func(i, j int) bool { return res[i].TableID < res[j].TableID })

	return res
}

func (c *Catalog) allDashboards() []*FrontendViewDescriptor {
	res := make([]*FrontendViewDescriptor, 0, len(c.dashboards))
	for _, vd := range c.dashboards {
		res = append(res, vd)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ViewID < res[j].ViewID })

	return res
}

// columnsOf returns the columns of a table ordered by column id.
func (c *Catalog) columnsOf(tableID int32) []*ColumnDescriptor {
	var res []*ColumnDescriptor

	for k, h := range c.columnByID {
		if k.tableID == tableID {
			res = append(res, c.columns.get(h))
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ColumnID < res[j].ColumnID })

	return res
}

// LoadKey resolves the key of obj against this database. Named objects get
// their id and objects given by id get their name. An object with neither
// keeps the database wide key.
func (c *Catalog) LoadKey(ctx context.Context, obj *rbac.DBObject) error {
	obj.Key.DBID = c.db.DBID

	switch obj.Key.PermissionType {
	case rbac.DatabaseDBObjectType:
		obj.Key.ObjectID = rbac.DatabaseWide

		if obj.Name == "" || upper(obj.Name) == upper(c.db.DBName) {
			return nil
		}

		ctx, g := lock.Store(ctx, c.sys)
		defer g.Release()

		db, err := c.sys.metadataForDB(ctx, obj.Name)
		if err != nil {
			return err
		}
		obj.Key.DBID = db.DBID

	case rbac.TableDBObjectType, rbac.ViewDBObjectType:
		_, g := lock.Read(ctx, c)
		defer g.Release()

		var td *TableDescriptor

		switch {
		case obj.Key.ObjectID != rbac.DatabaseWide:
			td = c.tableByIDLocked(obj.Key.ObjectID)
		case obj.Name != "":
			td = c.tableByNameLocked(obj.Name)
		default:
			return nil
		}

		if td == nil {
			return fmt.Errorf("%w: %s '%s' in database '%s'", ErrTableNotFound, obj.Key.PermissionType, obj.Name, c.db.DBName)
		}
		if td.IsView != (obj.Key.PermissionType == rbac.ViewDBObjectType) {
			return fmt.Errorf("%w: '%s' is not a %s", ErrObjectNotFound, td.TableName, obj.Key.PermissionType)
		}

		obj.Key.ObjectID = td.TableID
		if obj.Name == "" {
			obj.Name = td.TableName
		}

	case rbac.DashboardDBObjectType:
		if obj.Key.ObjectID != rbac.DatabaseWide || obj.Name == "" {
			return nil
		}

		id, err := strconv.ParseInt(obj.Name, 10, 32)
		if err == nil {
			obj.Key.ObjectID = int32(id)
		}

	default:
		return fmt.Errorf("%w: object type %s", ErrIllegalArguments, obj.Key.PermissionType)
	}

	return nil
}

// Tables

// GetMetadataForTable looks a table up by name, ignoring case.
func (c *Catalog) GetMetadataForTable(ctx context.Context, name string) (*TableDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	td := c.tableByNameLocked(name)
	if td == nil {
		return nil, fmt.Errorf("%w: '%s'", ErrTableNotFound, name)
	}

	return td, nil
}

func (c *Catalog) GetMetadataForTableByID(ctx context.Context, id int32) (*TableDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	td := c.tableByIDLocked(id)
	if td == nil {
		return nil, fmt.Errorf("%w: id %d", ErrTableNotFound, id)
	}

	return td, nil
}

// GetAllTableMetadata returns every table and view, shards included.
func (c *Catalog) GetAllTableMetadata(ctx context.Context) []*TableDescriptor {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	return c.allTables()
}

// GetPhysicalTablesDescriptors returns the shards of a logical table, or
// the table itself when it is not sharded.
func (c *Catalog) GetPhysicalTablesDescriptors(ctx context.Context, td *TableDescriptor) []*TableDescriptor {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	return c.physicalTables(td)
}

func (c *Catalog) physicalTables(td *TableDescriptor) []*TableDescriptor {
	ids, ok := c.logicalToPhysical[td.TableID]
	if !ok {
		return []*TableDescriptor{td}
	}

	res := make([]*TableDescriptor, 0, len(ids))
	for _, id := range ids {
		if ptd := c.tableByIDLocked(id); ptd != nil {
			res = append(res, ptd)
		}
	}

	return res
}

// GetLogicalTableID returns the id of the logical table a shard belongs
// to, or id itself for tables that are not shards.
func (c *Catalog) GetLogicalTableID(ctx context.Context, id int32) int32 {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	return c.logicalTableID(id)
}

func (c *Catalog) logicalTableID(id int32) int32 {
	for logical, physical := range c.logicalToPhysical {
		for _, pid := range physical {
			if pid == id {
				return logical
			}
		}
	}
	return id
}

// GetFragmenter returns the fragmenter of a physical table, building it on
// first use.
func (c *Catalog) GetFragmenter(ctx context.Context, td *TableDescriptor) (Fragmenter, error) {
	ctx, g := lock.Read(ctx, c)
	defer g.Release()

	if td.IsView {
		return nil, fmt.Errorf("%w: '%s' is a view", ErrIllegalArguments, td.TableName)
	}

	c.fragMtx.Lock()
	defer c.fragMtx.Unlock()

	if td.fragmenter != nil {
		return td.fragmenter, nil
	}

	factory := c.sys.opts.fragmenterFactory
	if factory == nil {
		return nil, fmt.Errorf("%w: no fragmenter factory configured", ErrUnsupportedOperation)
	}

	f, err := factory(ctx, c, td)
	if err != nil {
		return nil, err
	}
	td.fragmenter = f

	return f, nil
}

func (c *Catalog) dropFragmenter(td *TableDescriptor) {
	c.fragMtx.Lock()
	td.fragmenter = nil
	c.fragMtx.Unlock()
}

// Columns

func (c *Catalog) GetMetadataForColumn(ctx context.Context, tableID int32, name string) (*ColumnDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	cd := c.columnByNameLocked(tableID, name)
	if cd == nil {
		return nil, fmt.Errorf("%w: '%s' in table %d", ErrColumnNotFound, name, tableID)
	}

	return cd, nil
}

func (c *Catalog) GetMetadataForColumnByID(ctx context.Context, tableID, columnID int32) (*ColumnDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	cd := c.columnByIDLocked(tableID, columnID)
	if cd == nil {
		return nil, fmt.Errorf("%w: id %d in table %d", ErrColumnNotFound, columnID, tableID)
	}

	return cd, nil
}

// GetColumnIDBySpi maps a 1-based sequential position to a column id.
// Positions built by GeoPhysicalSpi address the physical columns of a
// geometry column.
func (c *Catalog) GetColumnIDBySpi(ctx context.Context, tableID int32, spi int) (int32, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	td := c.tableByIDLocked(tableID)
	if td == nil {
		return 0, fmt.Errorf("%w: id %d", ErrTableNotFound, tableID)
	}

	if spi >= int(spiMagic1) {
		col := (spi-int(spiMagic1))/int(spiMagic2) - 1
		off := (spi - int(spiMagic1)) % int(spiMagic2)

		if col < 0 || col >= len(td.columnIDBySpi) {
			return 0, fmt.Errorf("%w: position %d of table '%s'", ErrColumnNotFound, spi, td.TableName)
		}

		return td.columnIDBySpi[col] + int32(off), nil
	}

	if spi < 1 || spi > len(td.columnIDBySpi) {
		return 0, fmt.Errorf("%w: position %d of table '%s'", ErrColumnNotFound, spi, td.TableName)
	}

	return td.columnIDBySpi[spi-1], nil
}

// GetAllColumnMetadataForTable returns the columns of a table ordered by
// id. System, virtual and geometry physical columns are left out unless
// asked for.
func (c *Catalog) GetAllColumnMetadataForTable(ctx context.Context, tableID int32, fetchSystem, fetchVirtual, fetchPhysical bool) ([]*ColumnDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	if c.tableByIDLocked(tableID) == nil {
		return nil, fmt.Errorf("%w: id %d", ErrTableNotFound, tableID)
	}

	return c.filterColumns(tableID, fetchSystem, fetchVirtual, fetchPhysical), nil
}

func (c *Catalog) filterColumns(tableID int32, fetchSystem, fetchVirtual, fetchPhysical bool) []*ColumnDescriptor {
	var res []*ColumnDescriptor

	skip := 0

	for _, cd := range c.columnsOf(tableID) {
		if skip > 0 {
			skip--
			continue
		}

		if cd.IsSystemCol && !fetchSystem {
			continue
		}
		if cd.IsVirtualCol && !fetchVirtual {
			continue
		}

		if !fetchPhysical && cd.ColumnType.IsGeometry() {
			skip = cd.ColumnType.PhysicalColumnCount()
		}

		res = append(res, cd)
	}

	return res
}

// GetDeletedColumn returns the column marking deleted rows, nil if the
// table has none.
func (c *Catalog) GetDeletedColumn(ctx context.Context, td *TableDescriptor) *ColumnDescriptor {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	return c.deletedColumnLocked(td)
}

func (c *Catalog) deletedColumnLocked(td *TableDescriptor) *ColumnDescriptor {
	h, ok := c.deletedColumn[td.TableID]
	if !ok {
		return nil
	}
	return c.columns.get(h)
}

// SetDeletedColumn makes cd the column marking deleted rows of td.
func (c *Catalog) SetDeletedColumn(ctx context.Context, td *TableDescriptor, cd *ColumnDescriptor) error {
	_, g := lock.Write(ctx, c)
	defer g.Release()

	h, ok := c.columnByID[columnIDKey{td.TableID, cd.ColumnID}]
	if !ok || c.columns.get(h) != cd {
		return fmt.Errorf("%w: '%s' in table '%s'", ErrColumnNotFound, cd.ColumnName, td.TableName)
	}
	if !cd.ColumnType.IsBoolean() {
		return fmt.Errorf("%w: deleted column '%s' must be boolean", ErrIllegalArguments, cd.ColumnName)
	}

	cd.IsDeletedCol = true
	td.HasDeletedCol = true
	c.deletedColumn[td.TableID] = h
	removeSpi(td, cd.ColumnID)

	return nil
}

// GetDeletedColumnIfRowsDeleted returns the deleted column only when some
// chunk of it, in any shard, marks a row as deleted.
func (c *Catalog) GetDeletedColumnIfRowsDeleted(ctx context.Context, td *TableDescriptor) (*ColumnDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	cd := c.deletedColumnLocked(td)
	if cd == nil {
		return nil, nil
	}

	for _, ptd := range c.physicalTables(td) {
		pcd := c.columnByIDLocked(ptd.TableID, cd.ColumnID)
		if pcd == nil {
			continue
		}

		meta, err := c.dataMgr.ChunkMetadataWithPrefix(datamgr.NewChunkKey(c.db.DBID, ptd.TableID, pcd.ColumnID))
		if err != nil {
			return nil, fmt.Errorf("%w: chunk metadata of '%s': %w", ErrStoreFailure, ptd.TableName, err)
		}

		for _, m := range meta {
			if m.Stats.Max.IntVal == 1 {
				return cd, nil
			}
		}
	}

	return nil, nil
}

// Dictionaries

// GetMetadataForDict returns a dictionary descriptor, opening the
// dictionary itself when load is set.
func (c *Catalog) GetMetadataForDict(ctx context.Context, dictID int32, load bool) (*DictDescriptor, error) {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	dd, ok := c.dictByID[dictID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d in database '%s'", ErrDictionaryNotFound, dictID, c.db.DBName)
	}

	if !load {
		return dd, nil
	}

	c.dictMtx.Lock()
	defer c.dictMtx.Unlock()

	if dd.dict == nil {
		d, err := c.dicts.Get(dd.Ref, dd.FolderPath, dd.IsTemp)
		if err != nil {
			return nil, err
		}
		dd.dict = d
	}

	return dd, nil
}

// GetAllDictMetadata returns every dictionary ordered by id.
func (c *Catalog) GetAllDictMetadata(ctx context.Context) []*DictDescriptor {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	res := make([]*DictDescriptor, 0, len(c.dictByID))
	for _, dd := range c.dictByID {
		res = append(res, dd)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Ref.DictID < res[j].Ref.DictID })

	return res
}

// Epochs

// GetTableEpoch returns the epoch of a table. Shards of a logical table
// must agree: on mismatch the error is logged and -1 returned.
func (c *Catalog) GetTableEpoch(ctx context.Context, tableID int32) int32 {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	physical, ok := c.logicalToPhysical[tableID]
	if !ok {
		return c.dataMgr.GetTableEpoch(c.db.DBID, tableID)
	}

	epoch := int32(-1)

	for i, id := range physical {
		e := c.dataMgr.GetTableEpoch(c.db.DBID, id)

		if i == 0 {
			epoch = e
			continue
		}

		if e != epoch {
			c.log.Errorf("epochs of the shards of table %d in database %d differ: shard table %d has %d, expected %d",
				tableID, c.db.DBID, id, e, epoch)
			return -1
		}
	}

	return epoch
}

// CheckTableEpochs is GetTableEpoch reporting shard disagreement as an
// error.
func (c *Catalog) CheckTableEpochs(ctx context.Context, tableID int32) (int32, error) {
	epoch := c.GetTableEpoch(ctx, tableID)
	if epoch < 0 {
		return -1, fmt.Errorf("%w: epochs of the shards of table %d differ", ErrConsistency, tableID)
	}
	return epoch, nil
}

// SetTableEpoch rolls a table and its shards back to epoch. Cached chunks
// are dropped first.
func (c *Catalog) SetTableEpoch(ctx context.Context, tableID, epoch int32) error {
	_, g := lock.Write(ctx, c)
	defer g.Release()

	c.log.Infof("setting epoch of table %d in database %d to %d", tableID, c.db.DBID, epoch)

	ids := append([]int32{tableID}, c.logicalToPhysical[tableID]...)

	for _, id := range ids {
		err := c.removeChunks(id)
		if err != nil {
			return err
		}

		err = c.dataMgr.SetTableEpoch(c.db.DBID, id, epoch)
		if err != nil {
			return fmt.Errorf("%w: setting epoch of table %d: %w", ErrStoreFailure, id, err)
		}
	}

	return nil
}

// removeChunks drops the memory resident chunks of a table together with
// its fragmenter.
func (c *Catalog) removeChunks(tableID int32) error {
	if td := c.tableByIDLocked(tableID); td != nil {
		c.dropFragmenter(td)
	}

	prefix := datamgr.NewChunkKey(c.db.DBID, tableID)

	for _, level := range []datamgr.MemoryLevel{datamgr.CPULevel, datamgr.GPULevel} {
		err := c.dataMgr.DeleteChunksWithPrefixAt(prefix, level)
		if err != nil && !errors.Is(err, datamgr.ErrChunkNotFound) {
			return fmt.Errorf("%w: dropping cached chunks of table %d: %w", ErrStoreFailure, tableID, err)
		}
	}

	return nil
}

// Checkpoint persists the chunks of a table and its shards. Every shard is
// attempted; a failure leaves the shards already checkpointed as they are.
func (c *Catalog) Checkpoint(ctx context.Context, tableID int32) error {
	_, g := lock.Read(ctx, c)
	defer g.Release()

	ids := []int32{tableID}
	if physical, ok := c.logicalToPhysical[tableID]; ok {
		ids = physical
	}

	merr := multierr.NewMultiErr()

	for _, id := range ids {
		err := c.dataMgr.Checkpoint(c.db.DBID, id)
		if err != nil {
			merr.Append(fmt.Errorf("%w: checkpointing table %d: %w", ErrStoreFailure, id, err))
		}
	}

	return merr.Reduce()
}

func (c *Catalog) notify(ctx context.Context, tableName string) {
	err := c.sys.opts.notifier.UpdateMetadata(ctx, c.db.DBName, tableName)
	if err != nil {
		c.log.Warningf("notifying change of '%s.%s': %v", c.db.DBName, tableName, err)
	}
}
