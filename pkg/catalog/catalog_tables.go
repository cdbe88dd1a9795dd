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
	"errors"
	"fmt"
	"os"

	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/lock"
	"github.com/codenotary/colcat/pkg/rbac"
	"github.com/codenotary/colcat/pkg/sqltypes"
)

// pendingTable is a table written to the store but not yet published in
// the maps of the catalog.
type pendingTable struct {
	td      *TableDescriptor
	columns []*ColumnDescriptor

	newDicts []*DictDescriptor
	// dictionaries of other tables gaining a reference
	sharedRefs []int32
}

func usesDictionaryType(ti sqltypes.TypeInfo) bool {
	return ti.Compression == sqltypes.EncodingDict && (ti.IsString() || ti.IsStringArray())
}

func rowIDColumn() ColumnDescriptor {
	ti := sqltypes.NewTypeInfo(sqltypes.BigInt)
	ti.NotNull = true

	return ColumnDescriptor{
		ColumnName:   RowIDColumn,
		ColumnType:   ti,
		IsSystemCol:  true,
		IsVirtualCol: true,
		VirtualExpr:  rowIDVirtualFn,
	}
}

func deletedColumn() ColumnDescriptor {
	ti := sqltypes.NewTypeInfo(sqltypes.Boolean)
	ti.NotNull = true

	return ColumnDescriptor{
		ColumnName:   DeletedColumn,
		ColumnType:   ti,
		IsSystemCol:  true,
		IsDeletedCol: true,
	}
}

// CreateTable adds a table or a view. td is filled with the assigned id
// and column count. Columns sharing a dictionary are listed in shared.
func (c *Catalog) CreateTable(ctx context.Context, td *TableDescriptor, columns []ColumnDescriptor, shared []SharedDictionaryDef) error {
	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	if td.NShards > 0 {
		return fmt.Errorf("%w: use CreateShardedTable for '%s'", ErrIllegalArguments, td.TableName)
	}

	var p *pendingTable

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = c.prepareTable(ctx, td, columns, shared, true)
		return err
	})
	if err != nil {
		return err
	}

	c.publishTable(p)
	c.notify(ctx, td.TableName)

	metricsDDL.WithLabelValues(c.db.DBName, "create_table").Inc()
	c.log.Infof("table '%s' created in database '%s' with id %d", td.TableName, c.db.DBName, td.TableID)

	return nil
}

// CreateShardedTable adds a logical table backed by td.NShards physical
// tables split on the column at 1-based position td.ShardedColumnID.
func (c *Catalog) CreateShardedTable(ctx context.Context, td *TableDescriptor, columns []ColumnDescriptor, shared []SharedDictionaryDef) error {
	if td.NShards <= 0 {
		return fmt.Errorf("%w: table '%s' needs at least one shard", ErrIllegalArguments, td.TableName)
	}
	if td.IsView || td.IsTemporary() {
		return fmt.Errorf("%w: views and temporary tables cannot be sharded", ErrUnsupportedOperation)
	}
	if td.ShardedColumnID < 1 || int(td.ShardedColumnID) > len(columns) {
		return fmt.Errorf("%w: shard key position %d of table '%s'", ErrIllegalArguments, td.ShardedColumnID, td.TableName)
	}

	key := columns[td.ShardedColumnID-1].ColumnType
	if !key.IsIntegral() || key.IsBoolean() {
		return fmt.Errorf("%w: shard key '%s' must be an integer or a dictionary encoded string",
			ErrIllegalArguments, columns[td.ShardedColumnID-1].ColumnName)
	}

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	var pending []*pendingTable

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		td.Shard = -1

		logical, err := c.prepareTable(ctx, td, columns, shared, true)
		if err != nil {
			return err
		}
		pending = append(pending, logical)

		// the geometry expansion and the system columns are rebuilt for
		// every shard
		var userCols []ColumnDescriptor
		skip := 0
		for _, cd := range logical.columns {
			if skip > 0 {
				skip--
				continue
			}
			if cd.IsSystemCol {
				continue
			}
			if cd.ColumnType.IsGeometry() {
				skip = cd.ColumnType.PhysicalColumnCount()
			}
			userCols = append(userCols, *cd)
		}

		for i := int32(1); i <= td.NShards; i++ {
			ptd := td.clone()
			ptd.TableName = PhysicalTableName(td.TableName, i)
			ptd.Shard = i - 1

			p, err := c.prepareTable(ctx, &ptd, userCols, nil, false)
			if err != nil {
				return err
			}
			pending = append(pending, p)

			_, err = c.store.Exec(ctx, "INSERT INTO logical_to_physical (logical_table_id, physical_table_id) VALUES (?, ?)",
				td.TableID, ptd.TableID)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range pending {
		c.publishTable(p)
		if p.td.IsShard() {
			c.logicalToPhysical[td.TableID] = append(c.logicalToPhysical[td.TableID], p.td.TableID)
		}
	}

	c.notify(ctx, td.TableName)

	metricsDDL.WithLabelValues(c.db.DBName, "create_table").Inc()
	c.log.Infof("table '%s' created in database '%s' with %d shards", td.TableName, c.db.DBName, td.NShards)

	return nil
}

// prepareTable validates a new table and, unless it is temporary, writes
// it to the store. Nothing is published.
func (c *Catalog) prepareTable(ctx context.Context, td *TableDescriptor, columns []ColumnDescriptor, shared []SharedDictionaryDef, isLogical bool) (*pendingTable, error) {
	if td.TableName == "" {
		return nil, fmt.Errorf("%w: empty table name", ErrIllegalArguments)
	}
	if c.tableByNameLocked(td.TableName) != nil {
		return nil, fmt.Errorf("%w: '%s'", ErrTableAlreadyExists, td.TableName)
	}
	if !td.IsView && len(columns) == 0 {
		return nil, fmt.Errorf("%w: table '%s' has no columns", ErrIllegalArguments, td.TableName)
	}

	var cols []*ColumnDescriptor
	names := make(map[string]bool)

	add := func(cd ColumnDescriptor) error {
		if names[upper(cd.ColumnName)] {
			return fmt.Errorf("%w: '%s' in table '%s'", ErrColumnAlreadyExists, cd.ColumnName, td.TableName)
		}
		names[upper(cd.ColumnName)] = true
		cols = append(cols, &cd)
		return nil
	}

	for _, cd := range columns {
		if upper(cd.ColumnName) == upper(RowIDColumn) {
			return nil, fmt.Errorf("%w: column name '%s' is reserved", ErrIllegalArguments, RowIDColumn)
		}
		if cd.ColumnName == "" {
			return nil, fmt.Errorf("%w: empty column name in table '%s'", ErrIllegalArguments, td.TableName)
		}

		cd.IsGeoPhyCol = false

		err := add(cd)
		if err != nil {
			return nil, err
		}

		phys, err := expandGeoColumn(cd)
		if err != nil {
			return nil, err
		}
		if len(phys) > 0 && td.IsTemporary() {
			return nil, fmt.Errorf("%w: geometry column '%s' in temporary table '%s'",
				ErrUnsupportedOperation, cd.ColumnName, td.TableName)
		}

		for _, pcd := range phys {
			err = add(pcd)
			if err != nil {
				return nil, err
			}
		}
	}

	if !td.IsView {
		cols = append(cols, ptr(rowIDColumn()))
		if td.HasDeletedCol {
			cols = append(cols, ptr(deletedColumn()))
		}
	}

	td.NColumns = int32(len(cols))
	td.columnIDBySpi = nil

	p := &pendingTable{td: td, columns: cols}

	if td.IsTemporary() {
		td.TableID = c.nextTempTableID
		c.nextTempTableID++
	} else {
		res, err := c.store.Exec(ctx, sqlInsertTable, td.TableName, td.UserID, td.NColumns, td.IsView,
			td.Fragments, int32(td.FragType), td.MaxFragRows, td.MaxChunkSize, td.FragPageSize, td.MaxRows,
			td.Partitions, td.ShardedColumnID, td.Shard, td.NShards, td.KeyMetainfo)
		if err != nil {
			return nil, err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		td.TableID = int32(id)
	}

	sharedFor := make(map[string]SharedDictionaryDef, len(shared))
	for _, def := range shared {
		sharedFor[upper(def.Column)] = def
	}

	for i, cd := range cols {
		cd.TableID = td.TableID
		cd.ColumnID = int32(i + 1)
	}

	// own dictionaries first so that columns of this table can share them
	for _, cd := range cols {
		if !usesDictionaryType(cd.ColumnType) {
			continue
		}
		if _, ok := sharedFor[upper(cd.ColumnName)]; ok {
			continue
		}
		if !isLogical {
			// shards reuse the dictionaries of their logical table
			continue
		}

		dd, err := c.newDictionary(ctx, td, cd)
		if err != nil {
			return nil, err
		}
		p.newDicts = append(p.newDicts, dd)
	}

	for _, cd := range cols {
		def, ok := sharedFor[upper(cd.ColumnName)]
		if !ok {
			continue
		}

		root, err := sharedRoot(p, sharedFor, def)
		if err != nil {
			return nil, err
		}

		err = c.shareDictionary(ctx, p, cd, root)
		if err != nil {
			return nil, err
		}
	}

	for _, cd := range cols {
		if td.IsTemporary() {
			continue
		}

		err := insertColumn(ctx, c.store, cd)
		if err != nil {
			return nil, err
		}
	}

	if td.IsView && !td.IsTemporary() {
		_, err := c.store.Exec(ctx, "INSERT INTO views (tableid, sql) VALUES (?, ?)", td.TableID, td.ViewSQL)
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

func ptr[T any](v T) *T {
	return &v
}

// newDictionary creates the dictionary of a column, rewriting its type to
// reference it.
func (c *Catalog) newDictionary(ctx context.Context, td *TableDescriptor, cd *ColumnDescriptor) (*DictDescriptor, error) {
	bits := cd.ColumnType.CompParam
	if bits <= 0 {
		bits = 32
	}

	dd := &DictDescriptor{
		NBits:    bits,
		RefCount: 1,
		IsTemp:   td.IsTemporary(),
	}

	if td.IsTemporary() {
		dd.Ref = dictionary.Ref{DBID: c.db.DBID, DictID: c.nextTempDictID}
		dd.Name = fmt.Sprintf("%s_%s_dict%d", td.TableName, cd.ColumnName, dd.Ref.DictID)
		c.nextTempDictID++
	} else {
		res, err := c.store.Exec(ctx, "INSERT INTO dictionaries (name, nbits, is_shared, refcount) VALUES ('Initial_key', ?, 0, 1)", bits)
		if err != nil {
			return nil, err
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}

		dd.Ref = dictionary.Ref{DBID: c.db.DBID, DictID: int32(id)}
		dd.Name = fmt.Sprintf("%s_%s_dict%d", td.TableName, cd.ColumnName, id)
		dd.FolderPath = c.dictFolder(dd.Ref.DictID)

		_, err = c.store.Exec(ctx, "UPDATE dictionaries SET name = ? WHERE dictid = ?", dd.Name, id)
		if err != nil {
			return nil, err
		}
	}

	if !cd.ColumnType.IsArray() {
		cd.ColumnType.Size = bits / 8
	}
	cd.ColumnType.CompParam = dd.Ref.DictID

	return dd, nil
}

// sharedRoot follows sharing between columns of the table being created
// until it reaches a column owning its dictionary or one of another table.
func sharedRoot(p *pendingTable, sharedFor map[string]SharedDictionaryDef, def SharedDictionaryDef) (SharedDictionaryDef, error) {
	seen := map[string]bool{upper(def.Column): true}

	for upper(def.ForeignTable) == upper(p.td.TableName) {
		next, ok := sharedFor[upper(def.ForeignColumn)]
		if !ok {
			break
		}
		if seen[upper(next.Column)] {
			return def, fmt.Errorf("%w: dictionary sharing of column '%s' loops", ErrIllegalArguments, def.Column)
		}
		seen[upper(next.Column)] = true

		def = next
	}

	return def, nil
}

// shareDictionary points cd at the dictionary of def's foreign column and
// takes a reference on it. def must not name a shared column of the table
// being created.
func (c *Catalog) shareDictionary(ctx context.Context, p *pendingTable, cd *ColumnDescriptor, def SharedDictionaryDef) error {
	if !usesDictionaryType(cd.ColumnType) {
		return fmt.Errorf("%w: column '%s' is not dictionary encoded", ErrIllegalArguments, cd.ColumnName)
	}

	var (
		foreign *ColumnDescriptor
		dd      *DictDescriptor
	)

	if upper(def.ForeignTable) == upper(p.td.TableName) {
		for _, fcd := range p.columns {
			if upper(fcd.ColumnName) == upper(def.ForeignColumn) {
				foreign = fcd
				break
			}
		}
		if foreign != nil {
			for _, nd := range p.newDicts {
				if nd.Ref.DictID == foreign.ColumnType.CompParam {
					dd = nd
				}
			}
		}
	} else {
		ftd := c.tableByNameLocked(def.ForeignTable)
		if ftd == nil {
			return fmt.Errorf("%w: '%s' referenced by column '%s'", ErrTableNotFound, def.ForeignTable, cd.ColumnName)
		}
		foreign = c.columnByNameLocked(ftd.TableID, def.ForeignColumn)
		if foreign != nil {
			dd = c.dictByID[foreign.ColumnType.CompParam]
		}
	}

	if foreign == nil {
		return fmt.Errorf("%w: '%s.%s' referenced by column '%s'", ErrColumnNotFound, def.ForeignTable, def.ForeignColumn, cd.ColumnName)
	}
	if dd == nil {
		return fmt.Errorf("%w: '%s.%s' has no dictionary", ErrDictionaryNotFound, def.ForeignTable, def.ForeignColumn)
	}
	if dd.IsTemp != p.td.IsTemporary() {
		return fmt.Errorf("%w: dictionaries are not shared between temporary and persistent tables", ErrIllegalArguments)
	}

	cd.ColumnType.Compression = foreign.ColumnType.Compression
	cd.ColumnType.CompParam = foreign.ColumnType.CompParam
	if !cd.ColumnType.IsArray() {
		cd.ColumnType.Size = foreign.ColumnType.Size
	}

	if !dd.IsTemp {
		_, err := c.store.Exec(ctx, "UPDATE dictionaries SET refcount = refcount + 1 WHERE dictid = ?", dd.Ref.DictID)
		if err != nil {
			return err
		}
	}

	if upper(def.ForeignTable) == upper(p.td.TableName) {
		dd.RefCount++
	} else {
		p.sharedRefs = append(p.sharedRefs, dd.Ref.DictID)
	}

	return nil
}

func (c *Catalog) publishTable(p *pendingTable) {
	td := p.td

	for _, dd := range p.newDicts {
		c.dictByID[dd.Ref.DictID] = dd
	}
	for _, id := range p.sharedRefs {
		if dd, ok := c.dictByID[id]; ok {
			dd.RefCount++
		}
	}

	c.putTable(td)

	for _, cd := range p.columns {
		h := c.putColumn(cd)

		switch {
		case cd.IsDeletedCol:
			c.deletedColumn[td.TableID] = h
		case !cd.IsGeoPhyCol:
			td.columnIDBySpi = append(td.columnIDBySpi, cd.ColumnID)
		}
	}
}

// DropTable removes a logical table, its shards and every privilege
// granted on it.
func (c *Catalog) DropTable(ctx context.Context, td *TableDescriptor) error {
	if td.IsShard() {
		return fmt.Errorf("%w: '%s' is a shard, drop its logical table", ErrIllegalArguments, td.TableName)
	}

	ctx, sg := lock.WriteStore(ctx, c.sys)
	defer sg.Release()

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	if c.tableByIDLocked(td.TableID) != td {
		return fmt.Errorf("%w: '%s'", ErrTableNotFound, td.TableName)
	}

	tables := append(c.shardsOf(td), td)

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		for _, t := range tables {
			err := c.dropTableFromStore(ctx, t)
			if err != nil {
				return err
			}
		}

		_, err := c.store.Exec(ctx, "DELETE FROM logical_to_physical WHERE logical_table_id = ?", td.TableID)
		return err
	})
	if err != nil {
		return err
	}

	var storageErr error

	for _, t := range tables {
		c.removeTableFromMaps(t)

		err = c.dropTableData(t)
		if err != nil && storageErr == nil {
			storageErr = err
		}
	}

	c.notify(ctx, td.TableName)

	if c.sys.opts.privilegesOn {
		t := rbac.TableDBObjectType
		if td.IsView {
			t = rbac.ViewDBObjectType
		}

		obj := rbac.NewDBObjectWithKey(td.TableName, rbac.DBObjectKey{
			PermissionType: t,
			DBID:           c.db.DBID,
			ObjectID:       td.TableID,
		}, rbac.NoPrivileges)

		err = c.sys.rbacTx(ctx, func(ctx context.Context) error {
			return c.sys.revokeFromAllRoles(ctx, obj)
		})
		if err != nil {
			return err
		}
	}

	metricsDDL.WithLabelValues(c.db.DBName, "drop_table").Inc()
	c.log.Infof("table '%s' dropped from database '%s'", td.TableName, c.db.DBName)

	return storageErr
}

func (c *Catalog) shardsOf(td *TableDescriptor) []*TableDescriptor {
	var res []*TableDescriptor
	for _, id := range c.logicalToPhysical[td.TableID] {
		if ptd := c.tableByIDLocked(id); ptd != nil {
			res = append(res, ptd)
		}
	}
	return res
}

func (c *Catalog) dropTableFromStore(ctx context.Context, td *TableDescriptor) error {
	if td.IsTemporary() {
		return nil
	}

	_, err := c.store.Exec(ctx, "DELETE FROM tables WHERE tableid = ?", td.TableID)
	if err != nil {
		return err
	}

	if !td.IsShard() {
		for _, cd := range c.columnsOf(td.TableID) {
			if !cd.usesDictionary() {
				continue
			}

			err = c.releaseDictionaryInStore(ctx, cd.ColumnType.CompParam)
			if err != nil {
				return err
			}
		}
	}

	_, err = c.store.Exec(ctx, "DELETE FROM columns WHERE tableid = ?", td.TableID)
	if err != nil {
		return err
	}

	_, err = c.store.Exec(ctx, "DELETE FROM views WHERE tableid = ?", td.TableID)
	return err
}

func (c *Catalog) releaseDictionaryInStore(ctx context.Context, dictID int32) error {
	if dd, ok := c.dictByID[dictID]; ok && dd.IsTemp {
		return nil
	}

	_, err := c.store.Exec(ctx, "UPDATE dictionaries SET refcount = refcount - 1 WHERE dictid = ?", dictID)
	if err != nil {
		return err
	}

	_, err = c.store.Exec(ctx, "DELETE FROM dictionaries WHERE dictid = ? AND refcount <= 0", dictID)
	return err
}

// releaseDictionary drops one reference on a dictionary, removing its
// backing state with the last one.
func (c *Catalog) releaseDictionary(dictID int32) {
	dd, ok := c.dictByID[dictID]
	if !ok {
		return
	}

	dd.RefCount--
	if dd.RefCount > 0 {
		return
	}

	c.dropDictionary(dd)
}

func (c *Catalog) dropDictionary(dd *DictDescriptor) {
	delete(c.dictByID, dd.Ref.DictID)

	c.dictMtx.Lock()
	dd.dict = nil
	c.dictMtx.Unlock()

	err := c.dicts.Drop(dd.Ref)
	if err != nil && !errors.Is(err, dictionary.ErrDictionaryNotFound) {
		c.log.Warningf("dropping dictionary %s: %v", dd.Ref, err)
	}

	if dd.IsTemp || dd.FolderPath == "" {
		return
	}

	err = os.RemoveAll(dd.FolderPath)
	if err != nil {
		c.log.Warningf("removing folder of dictionary %s: %v", dd.Ref, err)
	}
}

func (c *Catalog) removeTableFromMaps(td *TableDescriptor) {
	c.dropFragmenter(td)

	for _, cd := range c.columnsOf(td.TableID) {
		if !td.IsShard() && cd.usesDictionary() {
			c.releaseDictionary(cd.ColumnType.CompParam)
		}
		c.removeColumn(cd)
	}

	delete(c.logicalToPhysical, td.TableID)
	delete(c.deletedColumn, td.TableID)

	if h, ok := c.tableByID[td.TableID]; ok {
		delete(c.tableByID, td.TableID)
		delete(c.tableByName, upper(td.TableName))
		c.tables.release(h)
	}
}

func (c *Catalog) dropTableData(td *TableDescriptor) error {
	if td.IsView {
		return nil
	}

	err := c.dataMgr.DeleteChunksWithPrefix(datamgr.NewChunkKey(c.db.DBID, td.TableID))
	if err != nil && !errors.Is(err, datamgr.ErrChunkNotFound) {
		return fmt.Errorf("%w: deleting chunks of '%s': %w", ErrStoreFailure, td.TableName, err)
	}

	err = c.dataMgr.RemoveTableRelatedDS(c.db.DBID, td.TableID)
	if err != nil {
		return fmt.Errorf("%w: removing storage of '%s': %w", ErrStoreFailure, td.TableName, err)
	}

	return nil
}

// TruncateTable drops every row of a table and its shards. Dictionaries
// used by no other column are emptied too.
func (c *Catalog) TruncateTable(ctx context.Context, td *TableDescriptor) error {
	if td.IsView {
		return fmt.Errorf("%w: '%s' is a view", ErrIllegalArguments, td.TableName)
	}

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	if c.tableByIDLocked(td.TableID) != td {
		return fmt.Errorf("%w: '%s'", ErrTableNotFound, td.TableName)
	}

	for _, ptd := range c.physicalTables(td) {
		c.dropFragmenter(ptd)

		err := c.dataMgr.DeleteChunksWithPrefix(datamgr.NewChunkKey(c.db.DBID, ptd.TableID))
		if err != nil && !errors.Is(err, datamgr.ErrChunkNotFound) {
			return fmt.Errorf("%w: deleting chunks of '%s': %w", ErrStoreFailure, ptd.TableName, err)
		}

		err = c.dataMgr.Checkpoint(c.db.DBID, ptd.TableID)
		if err != nil {
			return fmt.Errorf("%w: checkpointing '%s': %w", ErrStoreFailure, ptd.TableName, err)
		}

		err = c.dataMgr.RemoveTableRelatedDS(c.db.DBID, ptd.TableID)
		if err != nil {
			return fmt.Errorf("%w: removing storage of '%s': %w", ErrStoreFailure, ptd.TableName, err)
		}
	}

	for _, cd := range c.columnsOf(td.TableID) {
		if !cd.usesDictionary() {
			continue
		}

		dd, ok := c.dictByID[cd.ColumnType.CompParam]
		if !ok || dd.RefCount != 1 {
			continue
		}

		err := c.resetDictionary(dd)
		if err != nil {
			return err
		}
	}

	c.notify(ctx, td.TableName)

	metricsDDL.WithLabelValues(c.db.DBName, "truncate_table").Inc()
	c.log.Infof("table '%s' of database '%s' truncated", td.TableName, c.db.DBName)

	return nil
}

func (c *Catalog) resetDictionary(dd *DictDescriptor) error {
	c.dictMtx.Lock()
	defer c.dictMtx.Unlock()

	dd.dict = nil

	err := c.dicts.Drop(dd.Ref)
	if err != nil && !errors.Is(err, dictionary.ErrDictionaryNotFound) {
		return err
	}

	if dd.IsTemp {
		return nil
	}

	err = os.RemoveAll(dd.FolderPath)
	if err != nil {
		return fmt.Errorf("%w: resetting dictionary %s: %w", ErrStoreFailure, dd.Ref, err)
	}

	return os.MkdirAll(dd.FolderPath, 0700)
}

// RenameTable renames a logical table and its shards.
func (c *Catalog) RenameTable(ctx context.Context, td *TableDescriptor, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: empty table name", ErrIllegalArguments)
	}

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	if c.tableByIDLocked(td.TableID) != td {
		return fmt.Errorf("%w: '%s'", ErrTableNotFound, td.TableName)
	}
	if other := c.tableByNameLocked(newName); other != nil && other != td {
		return fmt.Errorf("%w: '%s'", ErrTableAlreadyExists, newName)
	}

	shards := c.shardsOf(td)

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		if td.IsTemporary() {
			return nil
		}

		_, err := c.store.Exec(ctx, "UPDATE tables SET name = ? WHERE tableid = ?", newName, td.TableID)
		if err != nil {
			return err
		}

		for i, ptd := range shards {
			_, err = c.store.Exec(ctx, "UPDATE tables SET name = ? WHERE tableid = ?",
				PhysicalTableName(newName, int32(i+1)), ptd.TableID)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	oldName := td.TableName

	rename := func(t *TableDescriptor, name string) {
		h := c.tableByName[upper(t.TableName)]
		delete(c.tableByName, upper(t.TableName))
		t.TableName = name
		c.tableByName[upper(name)] = h
	}

	rename(td, newName)
	for i, ptd := range shards {
		rename(ptd, PhysicalTableName(newName, int32(i+1)))
	}

	c.notify(ctx, oldName)
	c.notify(ctx, newName)

	metricsDDL.WithLabelValues(c.db.DBName, "rename_table").Inc()
	c.log.Infof("table '%s' of database '%s' renamed to '%s'", oldName, c.db.DBName, newName)

	return nil
}

// RenameColumn renames a column of a logical table and its shards.
func (c *Catalog) RenameColumn(ctx context.Context, td *TableDescriptor, cd *ColumnDescriptor, newName string) error {
	if newName == "" {
		return fmt.Errorf("%w: empty column name", ErrIllegalArguments)
	}
	if upper(newName) == upper(RowIDColumn) || upper(newName) == upper(DeletedColumn) {
		return fmt.Errorf("%w: column name '%s' is reserved", ErrIllegalArguments, newName)
	}

	ctx, g := lock.WriteStore(ctx, c)
	defer g.Release()

	if c.columnByIDLocked(td.TableID, cd.ColumnID) != cd {
		return fmt.Errorf("%w: '%s' in table '%s'", ErrColumnNotFound, cd.ColumnName, td.TableName)
	}
	if cd.IsSystemCol {
		return fmt.Errorf("%w: system column '%s'", ErrIllegalArguments, cd.ColumnName)
	}
	if other := c.columnByNameLocked(td.TableID, newName); other != nil && other != cd {
		return fmt.Errorf("%w: '%s' in table '%s'", ErrColumnAlreadyExists, newName, td.TableName)
	}

	tables := append([]*TableDescriptor{td}, c.shardsOf(td)...)

	err := c.store.InTx(ctx, func(ctx context.Context) error {
		if td.IsTemporary() {
			return nil
		}

		for _, t := range tables {
			_, err := c.store.Exec(ctx, "UPDATE columns SET name = ? WHERE tableid = ? AND columnid = ?",
				newName, t.TableID, cd.ColumnID)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	oldName := cd.ColumnName

	for _, t := range tables {
		tcd := c.columnByIDLocked(t.TableID, cd.ColumnID)
		if tcd == nil {
			continue
		}

		h := c.columnByName[columnNameKey{t.TableID, upper(tcd.ColumnName)}]
		delete(c.columnByName, columnNameKey{t.TableID, upper(tcd.ColumnName)})
		tcd.ColumnName = newName
		c.columnByName[columnNameKey{t.TableID, upper(newName)}] = h
	}

	c.notify(ctx, td.TableName)

	metricsDDL.WithLabelValues(c.db.DBName, "rename_column").Inc()
	c.log.Infof("column '%s' of table '%s' renamed to '%s'", oldName, td.TableName, newName)

	return nil
}
