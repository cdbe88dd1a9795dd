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
	"testing"

	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/rbac"
	"github.com/codenotary/colcat/pkg/sqltypes"
	"github.com/stretchr/testify/require"
)

func intColumn(name string) ColumnDescriptor {
	return NewColumnDescriptor(name, sqltypes.NewTypeInfo(sqltypes.Int))
}

func dictColumn(name string) ColumnDescriptor {
	return NewColumnDescriptor(name, sqltypes.DictText(32))
}

func columnNames(cols []*ColumnDescriptor) []string {
	names := make([]string, len(cols))
	for i, cd := range cols {
		names[i] = cd.ColumnName
	}
	return names
}

func TestCreateTable(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	var notified []string
	env.sc.opts.notifier = NotifierFunc(func(_ context.Context, db, table string) error {
		notified = append(notified, db+"."+table)
		return nil
	})

	td := NewTableDescriptor("t1")
	td.HasDeletedCol = true
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a"), dictColumn("b")}, nil))

	require.Positive(t, td.TableID)
	require.EqualValues(t, 4, td.NColumns)
	require.Equal(t, []string{"d1.t1"}, notified)

	cols, err := cat.GetAllColumnMetadataForTable(ctx, td.TableID, false, false, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, columnNames(cols))

	cols, err = cat.GetAllColumnMetadataForTable(ctx, td.TableID, true, true, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", RowIDColumn, DeletedColumn}, columnNames(cols))

	rowid := cols[2]
	require.True(t, rowid.IsVirtualCol)
	require.True(t, rowid.ColumnType.NotNull)

	del := cat.GetDeletedColumn(ctx, &td)
	require.NotNil(t, del)
	require.Equal(t, DeletedColumn, del.ColumnName)

	// no row is deleted yet
	del, err = cat.GetDeletedColumnIfRowsDeleted(ctx, &td)
	require.NoError(t, err)
	require.Nil(t, del)

	id, err := cat.GetColumnIDBySpi(ctx, td.TableID, 3)
	require.NoError(t, err)
	require.Equal(t, rowid.ColumnID, id)

	_, err = cat.GetColumnIDBySpi(ctx, td.TableID, 4)
	require.ErrorIs(t, err, ErrColumnNotFound)

	b, err := cat.GetMetadataForColumn(ctx, td.TableID, "B")
	require.NoError(t, err)

	byID, err := cat.GetMetadataForColumnByID(ctx, td.TableID, b.ColumnID)
	require.NoError(t, err)
	require.Same(t, b, byID)

	// dictionary encoded columns reference a new dictionary
	dd, err := cat.GetMetadataForDict(ctx, b.ColumnType.CompParam, true)
	require.NoError(t, err)
	require.Equal(t, "t1_b_dict"+itoa(dd.Ref.DictID), dd.Name)
	require.EqualValues(t, 32, dd.NBits)
	require.EqualValues(t, 4, b.ColumnType.Size)
	require.NotNil(t, dd.StringDict())

	_, err = cat.GetMetadataForTable(ctx, "t2")
	require.ErrorIs(t, err, ErrTableNotFound)

	_, err = cat.GetMetadataForTableByID(ctx, td.TableID+100)
	require.ErrorIs(t, err, ErrTableNotFound)

	require.Len(t, cat.GetAllTableMetadata(ctx), 1)
}

func TestCreateTableValidation(t *testing.T) {
	_, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a")}, nil))

	for _, c := range []struct {
		name string
		cols []ColumnDescriptor
		err  error
	}{
		{"", []ColumnDescriptor{intColumn("a")}, ErrIllegalArguments},
		{"T1", []ColumnDescriptor{intColumn("a")}, ErrTableAlreadyExists},
		{"t2", nil, ErrIllegalArguments},
		{"t2", []ColumnDescriptor{intColumn("ROWID")}, ErrIllegalArguments},
		{"t2", []ColumnDescriptor{intColumn("")}, ErrIllegalArguments},
		{"t2", []ColumnDescriptor{intColumn("a"), intColumn("A")}, ErrColumnAlreadyExists},
	} {
		td := NewTableDescriptor(c.name)
		require.ErrorIs(t, cat.CreateTable(ctx, &td, c.cols, nil), c.err, c.name)
	}

	sharded := NewTableDescriptor("t2")
	sharded.NShards = 2
	require.ErrorIs(t, cat.CreateTable(ctx, &sharded, []ColumnDescriptor{intColumn("a")}, nil), ErrIllegalArguments)

	// failed statements leave nothing behind
	require.Len(t, cat.GetAllTableMetadata(ctx), 1)
	require.Empty(t, cat.GetAllDictMetadata(ctx))
}

func TestTemporaryTables(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("tmp")
	td.PersistenceLevel = datamgr.CPULevel
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a"), dictColumn("b")}, nil))

	require.True(t, td.IsTemporary())
	require.GreaterOrEqual(t, td.TableID, int32(1<<30))

	b, err := cat.GetMetadataForColumn(ctx, td.TableID, "b")
	require.NoError(t, err)

	dd, err := cat.GetMetadataForDict(ctx, b.ColumnType.CompParam, false)
	require.NoError(t, err)
	require.True(t, dd.IsTemp)

	geo := NewTableDescriptor("tmp_geo")
	geo.PersistenceLevel = datamgr.CPULevel
	err = cat.CreateTable(ctx, &geo, []ColumnDescriptor{NewColumnDescriptor("p", sqltypes.NewTypeInfo(sqltypes.Point))}, nil)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	sharded := NewTableDescriptor("tmp_sharded")
	sharded.PersistenceLevel = datamgr.CPULevel
	sharded.NShards = 2
	sharded.ShardedColumnID = 1
	err = cat.CreateShardedTable(ctx, &sharded, []ColumnDescriptor{intColumn("a")}, nil)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	// temporary tables are gone after a restart
	sc := env.reopen(t, nil)

	cat, err = sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	_, err = cat.GetMetadataForTable(ctx, "tmp")
	require.ErrorIs(t, err, ErrTableNotFound)
}

func TestViews(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("v1")
	td.IsView = true
	td.ViewSQL = "SELECT a FROM t1;"
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a")}, nil))
	require.EqualValues(t, 1, td.NColumns)

	require.ErrorIs(t, cat.TruncateTable(ctx, &td), ErrIllegalArguments)

	sc := env.reopen(t, nil)

	cat, err := sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	v, err := cat.GetMetadataForTable(ctx, "v1")
	require.NoError(t, err)
	require.True(t, v.IsView)
	require.Equal(t, td.ViewSQL, v.ViewSQL)
}

func TestSharedDictionaryRefCount(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	t1 := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &t1, []ColumnDescriptor{dictColumn("b")}, nil))

	b, err := cat.GetMetadataForColumn(ctx, t1.TableID, "b")
	require.NoError(t, err)
	dictID := b.ColumnType.CompParam

	t2 := NewTableDescriptor("t2")
	err = cat.CreateTable(ctx, &t2, []ColumnDescriptor{dictColumn("c"), intColumn("i")}, []SharedDictionaryDef{
		{Column: "i", ForeignTable: "t1", ForeignColumn: "b"},
	})
	require.ErrorIs(t, err, ErrIllegalArguments)

	t2 = NewTableDescriptor("t2")
	err = cat.CreateTable(ctx, &t2, []ColumnDescriptor{dictColumn("c")}, []SharedDictionaryDef{
		{Column: "c", ForeignTable: "t1", ForeignColumn: "b"},
	})
	require.NoError(t, err)

	c, err := cat.GetMetadataForColumn(ctx, t2.TableID, "c")
	require.NoError(t, err)
	require.Equal(t, dictID, c.ColumnType.CompParam)

	dd, err := cat.GetMetadataForDict(ctx, dictID, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, dd.RefCount)
	require.Len(t, cat.GetAllDictMetadata(ctx), 1)

	// the reference count is persisted
	sc := env.reopen(t, nil)

	cat, err = sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	dd, err = cat.GetMetadataForDict(ctx, dictID, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, dd.RefCount)

	t1p, err := cat.GetMetadataForTable(ctx, "t1")
	require.NoError(t, err)
	t2p, err := cat.GetMetadataForTable(ctx, "t2")
	require.NoError(t, err)

	require.NoError(t, cat.DropTable(ctx, t1p))

	dd, err = cat.GetMetadataForDict(ctx, dictID, false)
	require.NoError(t, err)
	require.EqualValues(t, 1, dd.RefCount)

	require.NoError(t, cat.DropTable(ctx, t2p))

	_, err = cat.GetMetadataForDict(ctx, dictID, false)
	require.ErrorIs(t, err, ErrDictionaryNotFound)
	require.Empty(t, cat.GetAllDictMetadata(ctx))
}

func TestSharedDictionaryChains(t *testing.T) {
	_, cat := openTestCatalog(t)
	ctx := context.Background()

	t1 := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &t1, []ColumnDescriptor{dictColumn("b")}, nil))

	b, err := cat.GetMetadataForColumn(ctx, t1.TableID, "b")
	require.NoError(t, err)
	dictID := b.ColumnType.CompParam

	requireDict := func(td *TableDescriptor, col string, id int32) {
		cd, err := cat.GetMetadataForColumn(ctx, td.TableID, col)
		require.NoError(t, err)
		require.Equal(t, id, cd.ColumnType.CompParam, col)
	}

	requireRefCount := func(id int32, n int) {
		dd, err := cat.GetMetadataForDict(ctx, id, false)
		require.NoError(t, err)
		require.EqualValues(t, n, dd.RefCount)
	}

	// d reaches t1.b through c, whatever the order of the definitions
	t2 := NewTableDescriptor("t2")
	require.NoError(t, cat.CreateTable(ctx, &t2, []ColumnDescriptor{dictColumn("d"), dictColumn("c")}, []SharedDictionaryDef{
		{Column: "d", ForeignTable: "t2", ForeignColumn: "c"},
		{Column: "c", ForeignTable: "t1", ForeignColumn: "b"},
	}))
	requireDict(&t2, "c", dictID)
	requireDict(&t2, "d", dictID)
	requireRefCount(dictID, 3)

	// e reaches g, owning its dictionary, through f
	t3 := NewTableDescriptor("t3")
	require.NoError(t, cat.CreateTable(ctx, &t3, []ColumnDescriptor{dictColumn("e"), dictColumn("f"), dictColumn("g")}, []SharedDictionaryDef{
		{Column: "e", ForeignTable: "t3", ForeignColumn: "f"},
		{Column: "f", ForeignTable: "t3", ForeignColumn: "g"},
	}))

	g, err := cat.GetMetadataForColumn(ctx, t3.TableID, "g")
	require.NoError(t, err)
	requireDict(&t3, "e", g.ColumnType.CompParam)
	requireDict(&t3, "f", g.ColumnType.CompParam)
	requireRefCount(g.ColumnType.CompParam, 3)

	t4 := NewTableDescriptor("t4")
	err = cat.CreateTable(ctx, &t4, []ColumnDescriptor{dictColumn("x"), dictColumn("y")}, []SharedDictionaryDef{
		{Column: "x", ForeignTable: "t4", ForeignColumn: "y"},
		{Column: "y", ForeignTable: "t4", ForeignColumn: "x"},
	})
	require.ErrorIs(t, err, ErrIllegalArguments)

	_, err = cat.GetMetadataForTable(ctx, "t4")
	require.ErrorIs(t, err, ErrTableNotFound)

	t2p, err := cat.GetMetadataForTable(ctx, "t2")
	require.NoError(t, err)
	require.NoError(t, cat.DropTable(ctx, t2p))
	requireRefCount(dictID, 1)
}

func TestShardedTable(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	td.NShards = 2

	cols := []ColumnDescriptor{intColumn("a"), dictColumn("b")}

	td.ShardedColumnID = 3
	require.ErrorIs(t, cat.CreateShardedTable(ctx, &td, cols, nil), ErrIllegalArguments)

	td.ShardedColumnID = 1
	require.NoError(t, cat.CreateShardedTable(ctx, &td, cols, nil))

	shards := cat.GetPhysicalTablesDescriptors(ctx, &td)
	require.Len(t, shards, 2)

	logicalB, err := cat.GetMetadataForColumn(ctx, td.TableID, "b")
	require.NoError(t, err)

	for i, ptd := range shards {
		require.Equal(t, PhysicalTableName("t1", int32(i+1)), ptd.TableName)
		require.EqualValues(t, i, ptd.Shard)
		require.True(t, ptd.IsShard())
		require.Equal(t, td.TableID, cat.GetLogicalTableID(ctx, ptd.TableID))

		// shards reuse the dictionaries of the logical table
		b, err := cat.GetMetadataForColumn(ctx, ptd.TableID, "b")
		require.NoError(t, err)
		require.Equal(t, logicalB.ColumnType.CompParam, b.ColumnType.CompParam)
	}
	require.Len(t, cat.GetAllDictMetadata(ctx), 1)

	require.Equal(t, td.TableID, cat.GetLogicalTableID(ctx, td.TableID))
	require.ErrorIs(t, cat.DropTable(ctx, shards[0]), ErrIllegalArguments)

	epoch, err := cat.CheckTableEpochs(ctx, td.TableID)
	require.NoError(t, err)
	require.EqualValues(t, 0, epoch)

	// one shard drifting makes the logical epoch invalid
	require.NoError(t, env.dm.SetTableEpoch(cat.CurrentDB().DBID, shards[1].TableID, 5))

	require.EqualValues(t, -1, cat.GetTableEpoch(ctx, td.TableID))
	require.True(t, env.log.Contains("differ"))

	_, err = cat.CheckTableEpochs(ctx, td.TableID)
	require.ErrorIs(t, err, ErrConsistency)

	require.NoError(t, cat.SetTableEpoch(ctx, td.TableID, 7))

	epoch, err = cat.CheckTableEpochs(ctx, td.TableID)
	require.NoError(t, err)
	require.EqualValues(t, 7, epoch)

	// renames follow the shards
	require.NoError(t, cat.RenameTable(ctx, &td, "t9"))

	for i, ptd := range cat.GetPhysicalTablesDescriptors(ctx, &td) {
		require.Equal(t, PhysicalTableName("t9", int32(i+1)), ptd.TableName)
	}

	sc := env.reopen(t, nil)

	cat, err = sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	reloaded, err := cat.GetMetadataForTable(ctx, "t9")
	require.NoError(t, err)
	require.Len(t, cat.GetPhysicalTablesDescriptors(ctx, reloaded), 2)

	_, err = cat.GetMetadataForTable(ctx, PhysicalTableName("t9", 2))
	require.NoError(t, err)

	require.NoError(t, cat.DropTable(ctx, reloaded))
	require.Empty(t, cat.GetAllTableMetadata(ctx))
	require.Empty(t, cat.GetAllDictMetadata(ctx))
}

func TestGeometryColumns(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("shapes")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{
		intColumn("a"),
		NewColumnDescriptor("p", sqltypes.NewTypeInfo(sqltypes.Polygon)),
	}, nil))

	cols, err := cat.GetAllColumnMetadataForTable(ctx, td.TableID, false, false, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "p", "p_coords", "p_ring_sizes", "p_bounds", "p_render_group"}, columnNames(cols))

	for _, cd := range cols[2:] {
		require.True(t, cd.IsGeoPhyCol, cd.ColumnName)
		require.True(t, cd.ColumnType.NotNull, cd.ColumnName)
	}

	cols, err = cat.GetAllColumnMetadataForTable(ctx, td.TableID, false, false, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "p"}, columnNames(cols))

	// physical columns are addressed relative to their geometry column
	id, err := cat.GetColumnIDBySpi(ctx, td.TableID, GeoPhysicalSpi(1, 1))
	require.NoError(t, err)

	coords, err := cat.GetMetadataForColumnByID(ctx, td.TableID, id)
	require.NoError(t, err)
	require.Equal(t, "p_coords", coords.ColumnName)

	_, err = cat.GetColumnIDBySpi(ctx, td.TableID, GeoPhysicalSpi(5, 1))
	require.ErrorIs(t, err, ErrColumnNotFound)

	// dropping the geometry column drops its physical columns
	require.NoError(t, cat.DropColumn(ctx, &td, "p"))

	cols, err = cat.GetAllColumnMetadataForTable(ctx, td.TableID, true, true, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", RowIDColumn}, columnNames(cols))
	require.EqualValues(t, 2, td.NColumns)

	sc := env.reopen(t, nil)

	cat, err = sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	reloaded, err := cat.GetMetadataForTable(ctx, "shapes")
	require.NoError(t, err)
	require.EqualValues(t, 2, reloaded.NColumns)
}

func TestExpandGeoColumn(t *testing.T) {
	phys, err := expandGeoColumn(intColumn("a"))
	require.NoError(t, err)
	require.Empty(t, phys)

	point := NewColumnDescriptor("pt", sqltypes.NewTypeInfo(sqltypes.Point))

	phys, err = expandGeoColumn(point)
	require.NoError(t, err)
	require.Len(t, phys, 1)
	require.EqualValues(t, 16, phys[0].ColumnType.Size)

	point.ColumnType.Compression = sqltypes.EncodingGeoInt
	point.ColumnType.CompParam = 32

	phys, err = expandGeoColumn(point)
	require.NoError(t, err)
	require.EqualValues(t, 8, phys[0].ColumnType.Size)

	point.ColumnType.Compression = sqltypes.EncodingDict
	_, err = expandGeoColumn(point)
	require.ErrorIs(t, err, ErrUnsupportedOperation)

	for _, ti := range []sqltypes.TypeInfo{
		sqltypes.NewTypeInfo(sqltypes.LineString),
		sqltypes.NewTypeInfo(sqltypes.MultiPolygon),
	} {
		phys, err = expandGeoColumn(NewColumnDescriptor("g", ti))
		require.NoError(t, err)
		require.Len(t, phys, ti.PhysicalColumnCount())
	}
}

func TestSchemaChange(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	td.NShards = 2
	td.ShardedColumnID = 1
	require.NoError(t, cat.CreateShardedTable(ctx, &td, []ColumnDescriptor{intColumn("a"), intColumn("b")}, nil))

	sc, err := cat.BeginSchemaChange(ctx)
	require.NoError(t, err)

	added, err := sc.AddColumn(&td, dictColumn("c"))
	require.NoError(t, err)
	require.EqualValues(t, 4, added.ColumnID)

	_, err = sc.AddColumn(&td, intColumn("c"))
	require.ErrorIs(t, err, ErrColumnAlreadyExists)

	_, err = sc.AddColumn(&td, intColumn(DeletedColumn))
	require.ErrorIs(t, err, ErrIllegalArguments)

	require.NoError(t, sc.DropColumn(&td, "b"))
	require.ErrorIs(t, sc.DropColumn(&td, RowIDColumn), ErrIllegalArguments)

	require.NoError(t, sc.Commit())
	require.ErrorIs(t, sc.Commit(), ErrSchemaChangeDone)
	require.ErrorIs(t, sc.Rollback(), ErrSchemaChangeDone)

	_, err = sc.AddColumn(&td, intColumn("d"))
	require.ErrorIs(t, err, ErrSchemaChangeDone)

	for _, t1 := range append([]*TableDescriptor{&td}, cat.GetPhysicalTablesDescriptors(ctx, &td)...) {
		cols, err := cat.GetAllColumnMetadataForTable(ctx, t1.TableID, false, false, false)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "c"}, columnNames(cols), t1.TableName)
	}

	// the new column is appended after the existing ones
	id, err := cat.GetColumnIDBySpi(ctx, td.TableID, 3)
	require.NoError(t, err)
	require.Equal(t, added.ColumnID, id)

	require.Len(t, cat.GetAllDictMetadata(ctx), 1)

	sc2 := env.reopen(t, nil)

	cat, err = sc2.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	reloaded, err := cat.GetMetadataForTable(ctx, "t1")
	require.NoError(t, err)

	cols, err := cat.GetAllColumnMetadataForTable(ctx, reloaded.TableID, false, false, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, columnNames(cols))
}

func TestSchemaChangeRollback(t *testing.T) {
	_, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a"), dictColumn("b")}, nil))

	sc, err := cat.BeginSchemaChange(ctx)
	require.NoError(t, err)

	_, err = sc.AddColumn(&td, dictColumn("c"))
	require.NoError(t, err)
	require.NoError(t, sc.DropColumn(&td, "b"))
	require.Len(t, cat.dictByID, 2)

	require.NoError(t, sc.Rollback())
	require.ErrorIs(t, sc.Commit(), ErrSchemaChangeDone)

	cols, err := cat.GetAllColumnMetadataForTable(ctx, td.TableID, false, false, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, columnNames(cols))
	require.EqualValues(t, 3, td.NColumns)
	require.Len(t, cat.GetAllDictMetadata(ctx), 1)

	// the lock was released
	require.ErrorIs(t, cat.DropColumn(ctx, &td, "x"), ErrColumnNotFound)

	require.NoError(t, cat.DropColumn(ctx, &td, "b"))
	require.ErrorIs(t, cat.DropColumn(ctx, &td, "a"), ErrIllegalArguments)
	require.Empty(t, cat.GetAllDictMetadata(ctx))
}

func TestRenames(t *testing.T) {
	_, cat := openTestCatalog(t)
	ctx := context.Background()

	t1 := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &t1, []ColumnDescriptor{intColumn("a"), intColumn("b")}, nil))

	t2 := NewTableDescriptor("t2")
	require.NoError(t, cat.CreateTable(ctx, &t2, []ColumnDescriptor{intColumn("a")}, nil))

	require.ErrorIs(t, cat.RenameTable(ctx, &t1, "T2"), ErrTableAlreadyExists)
	require.ErrorIs(t, cat.RenameTable(ctx, &t1, ""), ErrIllegalArguments)

	require.NoError(t, cat.RenameTable(ctx, &t1, "t3"))

	_, err := cat.GetMetadataForTable(ctx, "t1")
	require.ErrorIs(t, err, ErrTableNotFound)

	t3, err := cat.GetMetadataForTable(ctx, "t3")
	require.NoError(t, err)
	require.Same(t, &t1, t3)

	a, err := cat.GetMetadataForColumn(ctx, t1.TableID, "a")
	require.NoError(t, err)

	require.ErrorIs(t, cat.RenameColumn(ctx, &t1, a, "b"), ErrColumnAlreadyExists)
	require.ErrorIs(t, cat.RenameColumn(ctx, &t1, a, RowIDColumn), ErrIllegalArguments)

	require.NoError(t, cat.RenameColumn(ctx, &t1, a, "z"))

	z, err := cat.GetMetadataForColumn(ctx, t1.TableID, "z")
	require.NoError(t, err)
	require.Same(t, a, z)

	_, err = cat.GetMetadataForColumn(ctx, t1.TableID, "a")
	require.ErrorIs(t, err, ErrColumnNotFound)
}

func TestTruncateTable(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a"), dictColumn("b")}, nil))

	require.NoError(t, cat.TruncateTable(ctx, &td))

	// the storage starts over, epoch included
	require.EqualValues(t, 0, env.dm.GetTableEpoch(cat.CurrentDB().DBID, td.TableID))

	mds, err := env.dm.ChunkMetadataWithPrefix(datamgr.NewChunkKey(cat.CurrentDB().DBID, td.TableID))
	require.NoError(t, err)
	require.Empty(t, mds)

	_, err = cat.GetMetadataForTable(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, cat.GetAllDictMetadata(ctx), 1)

	stale := NewTableDescriptor("t1")
	require.ErrorIs(t, cat.TruncateTable(ctx, &stale), ErrTableNotFound)
}

func TestDashboardsAndLinks(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	_, err := cat.CreateDashboard(ctx, &FrontendViewDescriptor{})
	require.ErrorIs(t, err, ErrIllegalArguments)

	vd := &FrontendViewDescriptor{ViewName: "sales", ViewState: "s1", UserID: RootUserID}

	id, err := cat.CreateDashboard(ctx, vd)
	require.NoError(t, err)
	require.Equal(t, id, vd.ViewID)
	require.NotEmpty(t, vd.UpdateTime)

	// the same name of the same user replaces the dashboard
	again, err := cat.CreateDashboard(ctx, &FrontendViewDescriptor{ViewName: "sales", ViewState: "s2", UserID: RootUserID})
	require.NoError(t, err)
	require.Equal(t, id, again)

	stored, err := cat.GetMetadataForDashboard(ctx, RootUserID, "sales")
	require.NoError(t, err)
	require.Equal(t, "s2", stored.ViewState)

	other, err := cat.CreateDashboard(ctx, &FrontendViewDescriptor{ViewName: "costs", UserID: RootUserID})
	require.NoError(t, err)

	err = cat.ReplaceDashboard(ctx, &FrontendViewDescriptor{ViewID: other, ViewName: "sales", UserID: RootUserID})
	require.ErrorIs(t, err, ErrDashboardExists)

	err = cat.ReplaceDashboard(ctx, &FrontendViewDescriptor{ViewID: other, ViewName: "margins", ViewState: "m", UserID: RootUserID})
	require.NoError(t, err)

	_, err = cat.GetMetadataForDashboard(ctx, RootUserID, "costs")
	require.ErrorIs(t, err, ErrDashboardNotFound)

	byID, err := cat.GetMetadataForDashboardByID(ctx, other)
	require.NoError(t, err)
	require.Equal(t, "margins", byID.ViewName)

	require.Len(t, cat.GetAllDashboardsMetadata(ctx), 2)

	ld := &LinkDescriptor{UserID: RootUserID, ViewState: "s2", ViewMetadata: "{}"}

	link, err := cat.CreateLink(ctx, ld)
	require.NoError(t, err)
	require.Len(t, link, 8)

	// links are derived from their content
	same, err := cat.CreateLink(ctx, &LinkDescriptor{UserID: RootUserID, ViewState: "s2", ViewMetadata: "{}"})
	require.NoError(t, err)
	require.Equal(t, link, same)

	got, err := cat.GetMetadataForLink(ctx, link)
	require.NoError(t, err)
	require.Equal(t, ld.LinkID, got.LinkID)

	_, err = cat.GetMetadataForLinkByID(ctx, ld.LinkID+1)
	require.ErrorIs(t, err, ErrLinkNotFound)

	sc := env.reopen(t, nil)

	cat, err = sc.GetCatalog(ctx, "d1")
	require.NoError(t, err)

	require.Len(t, cat.GetAllDashboardsMetadata(ctx), 2)

	got, err = cat.GetMetadataForLinkByID(ctx, ld.LinkID)
	require.NoError(t, err)
	require.Equal(t, link, got.Link)

	require.NoError(t, cat.DeleteDashboard(ctx, id))
	require.ErrorIs(t, cat.DeleteDashboard(ctx, id), ErrDashboardNotFound)
	require.Len(t, cat.GetAllDashboardsMetadata(ctx), 1)
}

func TestLoadKey(t *testing.T) {
	env, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	require.NoError(t, cat.CreateTable(ctx, &td, []ColumnDescriptor{intColumn("a")}, nil))

	obj := tableObject("T1", 0)
	require.NoError(t, cat.LoadKey(ctx, &obj))
	require.Equal(t, td.TableID, obj.Key.ObjectID)
	require.Equal(t, cat.CurrentDB().DBID, obj.Key.DBID)

	view := rbac.NewDBObject("t1", rbac.ViewDBObjectType)
	require.ErrorIs(t, cat.LoadKey(ctx, &view), ErrObjectNotFound)

	sys, err := env.sc.GetCatalog(ctx, DefaultSystemDBName)
	require.NoError(t, err)

	db := rbac.NewDBObject("d1", rbac.DatabaseDBObjectType)
	require.NoError(t, sys.LoadKey(ctx, &db))
	require.Equal(t, cat.CurrentDB().DBID, db.Key.DBID)
}

func TestArena(t *testing.T) {
	var a arena[int]

	one, two := 1, 2

	h1 := a.put(&one)
	h2 := a.put(&two)
	require.Equal(t, 2, a.len())

	a.release(h1)
	a.release(h1)
	require.Equal(t, 1, a.len())
	require.Nil(t, a.get(h1))
	require.Nil(t, a.get(noHandle))

	// released slots are reused
	three := 3
	require.Equal(t, h1, a.put(&three))
	require.Equal(t, 3, *a.get(h1))
	require.Equal(t, 2, *a.get(h2))

	a.reset()
	require.Zero(t, a.len())
}

func TestSetDeletedColumn(t *testing.T) {
	_, cat := openTestCatalog(t)
	ctx := context.Background()

	td := NewTableDescriptor("t1")
	cols := []ColumnDescriptor{intColumn("a"), NewColumnDescriptor("gone", sqltypes.NewTypeInfo(sqltypes.Boolean))}
	require.NoError(t, cat.CreateTable(ctx, &td, cols, nil))
	require.Nil(t, cat.GetDeletedColumn(ctx, &td))

	a, err := cat.GetMetadataForColumn(ctx, td.TableID, "a")
	require.NoError(t, err)
	require.ErrorIs(t, cat.SetDeletedColumn(ctx, &td, a), ErrIllegalArguments)

	gone, err := cat.GetMetadataForColumn(ctx, td.TableID, "gone")
	require.NoError(t, err)

	stray := *gone
	require.ErrorIs(t, cat.SetDeletedColumn(ctx, &td, &stray), ErrColumnNotFound)

	require.NoError(t, cat.SetDeletedColumn(ctx, &td, gone))
	require.True(t, td.HasDeletedCol)
	require.Same(t, gone, cat.GetDeletedColumn(ctx, &td))

	// the deleted column no longer has a scan position
	id, err := cat.GetColumnIDBySpi(ctx, td.TableID, 2)
	require.NoError(t, err)
	require.NotEqual(t, gone.ColumnID, id)
}
