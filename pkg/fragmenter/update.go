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

package fragmenter

import (
	"context"
	"fmt"
	"time"

	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/sqltypes"
	"golang.org/x/sync/errgroup"
)

// UpdateColumn resolves the fragmenter of td and writes values into the
// rows at offsets of one of its fragments. See
// InsertOrderFragmenter.UpdateColumn.
func UpdateColumn(ctx context.Context, cat *catalog.Catalog, td *catalog.TableDescriptor, cd *catalog.ColumnDescriptor,
	fragmentID int32, offsets []uint64, values []sqltypes.Value, rhsType sqltypes.TypeInfo, level datamgr.MemoryLevel, roll *UpdelRoll) error {

	f, err := fragmenterOf(ctx, cat, td)
	if err != nil {
		return err
	}

	return f.UpdateColumn(ctx, cd, fragmentID, offsets, values, rhsType, level, roll)
}

// UpdateColumnByName is UpdateColumn with the table and the column given by
// name.
func UpdateColumnByName(ctx context.Context, cat *catalog.Catalog, tableName, columnName string,
	fragmentID int32, offsets []uint64, values []sqltypes.Value, rhsType sqltypes.TypeInfo, level datamgr.MemoryLevel, roll *UpdelRoll) error {

	td, err := cat.GetMetadataForTable(ctx, tableName)
	if err != nil {
		return err
	}

	cd, err := cat.GetMetadataForColumn(ctx, td.TableID, columnName)
	if err != nil {
		return err
	}

	return UpdateColumn(ctx, cat, td, cd, fragmentID, offsets, values, rhsType, level, roll)
}

func fragmenterOf(ctx context.Context, cat *catalog.Catalog, td *catalog.TableDescriptor) (*InsertOrderFragmenter, error) {
	h, err := cat.GetFragmenter(ctx, td)
	if err != nil {
		return nil, err
	}

	f, ok := h.(*InsertOrderFragmenter)
	if !ok {
		return nil, fmt.Errorf("%w: table '%s' is not fragmented in insert order", ErrUnsupportedOperation, td.TableName)
	}

	return f, nil
}

// ColumnUpdate is the change of one column within UpdateColumns.
type ColumnUpdate struct {
	Column  *catalog.ColumnDescriptor
	Values  []sqltypes.Value
	RhsType sqltypes.TypeInfo
}

// UpdateColumns applies several column changes to the same rows.
func (f *InsertOrderFragmenter) UpdateColumns(ctx context.Context, fragmentID int32, offsets []uint64, updates []ColumnUpdate, level datamgr.MemoryLevel, roll *UpdelRoll) error {
	for _, u := range updates {
		err := f.UpdateColumn(ctx, u.Column, fragmentID, offsets, u.Values, u.RhsType, level, roll)
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateColumn writes values into the rows at offsets of one fragment.
// values holds one value per offset or a single value for all of them;
// offsets must be distinct. The rows are split into at most one partition
// per worker. Every value is converted before any byte is written, so a
// failed conversion leaves the chunk and the dictionary untouched. The new
// statistics are staged in roll.
func (f *InsertOrderFragmenter) UpdateColumn(ctx context.Context, cd *catalog.ColumnDescriptor, fragmentID int32,
	offsets []uint64, values []sqltypes.Value, rhsType sqltypes.TypeInfo, level datamgr.MemoryLevel, roll *UpdelRoll) error {

	nrow, nval := len(offsets), len(values)
	if nrow == 0 {
		return nil
	}
	if nval != 1 && nval != nrow {
		return fmt.Errorf("%w: %d values for %d rows", ErrIllegalArguments, nval, nrow)
	}
	if cd.TableID != f.td.TableID {
		return fmt.Errorf("%w: column '%s' does not belong to table '%s'", ErrIllegalArguments, cd.ColumnName, f.td.TableName)
	}
	if cd.IsVirtualCol || cd.ColumnType.IsGeometry() {
		return fmt.Errorf("%w: column '%s' has no storage", ErrIllegalArguments, cd.ColumnName)
	}

	switch {
	case level == datamgr.DiskLevel:
		return fmt.Errorf("%w: chunks are updated in memory", ErrIllegalArguments)
	case level == datamgr.GPULevel && f.td.IsTemporary():
		return fmt.Errorf("%w: GPU update of temporary table '%s'", ErrUnsupportedOperation, f.td.TableName)
	}

	start := time.Now()

	cv, err := f.converter(ctx, cd, rhsType)
	if err != nil {
		return err
	}

	err = roll.bind(ctx, f, level)
	if err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	frag := f.fragment(fragmentID)
	if frag == nil {
		return fmt.Errorf("%w: %d of table '%s'", ErrFragmentNotFound, fragmentID, f.td.TableName)
	}
	if _, ok := frag.ChunkMetadata[cd.ColumnID]; !ok {
		return fmt.Errorf("%w: column '%s' in fragment %d of table '%s'", datamgr.ErrChunkNotFound, cd.ColumnName, fragmentID, f.td.TableName)
	}

	for _, off := range offsets {
		if int64(off) >= frag.NumTuples {
			return fmt.Errorf("%w: offset %d beyond the %d rows of fragment %d", ErrIllegalArguments, off, frag.NumTuples, fragmentID)
		}
	}

	buf, err := f.chunk(cd, fragmentID, level, false)
	if err != nil {
		return err
	}

	segsz := (nrow + f.workers - 1) / f.workers
	nparts := (nrow + segsz - 1) / segsz

	cells := make([]cell, nrow)
	partStats := make([]stats, nparts)

	var g errgroup.Group
	g.SetLimit(f.workers)

	for c := 0; c < nparts; c++ {
		c := c
		begin, end := c*segsz, min((c+1)*segsz, nrow)

		g.Go(func() error {
			st := newStats()

			for r := begin; r < end; r++ {
				v := values[0]
				if nval > 1 {
					v = values[r]
				}

				cl, err := cv.convert(v)
				if err != nil {
					return fmt.Errorf("row %d: %w", offsets[r], err)
				}

				cells[r] = cl
				if !cl.pending {
					st.add(cd.ColumnType, cl)
				}
			}

			partStats[c] = st
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	added, err := cv.resolve(cells)
	if err != nil {
		return err
	}
	partStats = append(partStats, added)

	roll.markDirty(f, buf, fragmentID, cd.ColumnID, offsets, cv.size)

	data := buf.Bytes()

	var wg errgroup.Group
	wg.SetLimit(f.workers)

	for c := 0; c < nparts; c++ {
		begin, end := c*segsz, min((c+1)*segsz, nrow)

		wg.Go(func() error {
			for r := begin; r < end; r++ {
				writeCell(data[int(offsets[r])*cv.size:], cd.ColumnType, cv.size, cells[r])
			}
			return nil
		})
	}

	wg.Wait()

	merged := newStats()
	for _, st := range partStats {
		merged.merge(st)
	}

	f.stageColumnMetadata(cd, frag, buf, merged, roll)

	metricsRowsUpdated.WithLabelValues(f.cat.CurrentDB().DBName).Add(float64(nrow))
	metricsUpdateSeconds.Observe(time.Since(start).Seconds())

	return nil
}

// UpdateColumnMetadata widens the pending statistics of a chunk by st, for
// callers writing chunk bytes on their own.
func (f *InsertOrderFragmenter) UpdateColumnMetadata(ctx context.Context, cd *catalog.ColumnDescriptor, fragmentID int32, st datamgr.ChunkStats, roll *UpdelRoll) error {
	err := roll.bind(ctx, f, f.level)
	if err != nil {
		return err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	frag := f.fragment(fragmentID)
	if frag == nil {
		return fmt.Errorf("%w: %d of table '%s'", ErrFragmentNotFound, fragmentID, f.td.TableName)
	}

	buf, err := f.chunk(cd, fragmentID, f.level, false)
	if err != nil {
		return err
	}

	roll.markDirty(f, buf, fragmentID, cd.ColumnID, nil, 0)

	s := newStats()
	s.hasNulls = st.HasNulls
	if cd.ColumnType.IsFP() {
		s.minD, s.maxD = st.Min.DoubleVal, st.Max.DoubleVal
	} else {
		s.minI, s.maxI = st.Min.IntVal, st.Max.IntVal
	}

	f.stageColumnMetadata(cd, frag, buf, s, roll)

	return nil
}

func (f *InsertOrderFragmenter) stageColumnMetadata(cd *catalog.ColumnDescriptor, frag *FragmentInfo, buf *datamgr.Buffer, st stats, roll *UpdelRoll) {
	base, ok := roll.staged(f, frag.FragmentID, cd.ColumnID)
	if !ok {
		base = buf.Encoder().Metadata()
	}

	enc := datamgr.NewEncoder(cd.ColumnType)
	enc.Reset(base)
	enc.UpdateStatsInt(st.minI, st.maxI)
	enc.UpdateStatsFloat(st.minD, st.maxD)
	if st.hasNulls {
		enc.SetHasNulls()
	}

	roll.stage(f, frag, cd.ColumnID, enc.Metadata())
}

// DeleteRows marks the rows at offsets of one fragment as deleted.
func (f *InsertOrderFragmenter) DeleteRows(ctx context.Context, fragmentID int32, offsets []uint64, roll *UpdelRoll) error {
	cd := f.cat.GetDeletedColumn(ctx, f.td)
	if cd == nil {
		return fmt.Errorf("%w: table '%s' has no deleted column", ErrUnsupportedOperation, f.td.TableName)
	}

	return f.UpdateColumn(ctx, cd, fragmentID, offsets, []sqltypes.Value{sqltypes.Int64Value(1)},
		sqltypes.NewTypeInfo(sqltypes.Boolean), f.level, roll)
}

// DeleteRows resolves the fragmenter of td and marks rows as deleted.
func DeleteRows(ctx context.Context, cat *catalog.Catalog, td *catalog.TableDescriptor, fragmentID int32, offsets []uint64, roll *UpdelRoll) error {
	f, err := fragmenterOf(ctx, cat, td)
	if err != nil {
		return err
	}

	return f.DeleteRows(ctx, fragmentID, offsets, roll)
}
