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

// Package fragmenter splits physical tables into fragments of at most a
// fixed number of rows and updates their column chunks in place.
package fragmenter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/sqltypes"
)

// FragmentInfo describes one fragment of a physical table.
type FragmentInfo struct {
	FragmentID      int32
	PhysicalTableID int32
	ShardID         int32
	NumTuples       int64

	// ChunkMetadata is keyed by column id
	ChunkMetadata map[int32]datamgr.ChunkMetadata
}

func (fi *FragmentInfo) clone() FragmentInfo {
	c := *fi
	c.ChunkMetadata = make(map[int32]datamgr.ChunkMetadata, len(fi.ChunkMetadata))
	for id, md := range fi.ChunkMetadata {
		c.ChunkMetadata[id] = md
	}
	return c
}

// QueryInfo is a snapshot of the fragments of a table.
type QueryInfo struct {
	TableID        int32
	ChunkKeyPrefix datamgr.ChunkKey
	Fragments      []FragmentInfo
	NumTuples      int64
}

// InsertData is a batch of rows in columnar form: Data[i] holds the values
// of column ColumnIDs[i]. Stored columns left out are filled with nulls.
type InsertData struct {
	ColumnIDs []int32
	Data      [][]sqltypes.Value
}

// InsertOrderFragmenter appends rows to the last fragment of a physical
// table, opening a new one once it holds MaxFragRows rows.
type InsertOrderFragmenter struct {
	mu sync.RWMutex

	cat     *catalog.Catalog
	td      *catalog.TableDescriptor
	dbID    int32
	dataMgr datamgr.Manager

	// tier holding the working copy of the chunks
	level datamgr.MemoryLevel

	maxFragRows int64

	// stored columns ordered by id
	columns []*catalog.ColumnDescriptor

	fragments []*FragmentInfo
	numTuples int64

	// serializes additions to the dictionaries shared by update partitions
	dictMtx sync.Mutex

	workers int
	log     logger.Logger
}

var _ catalog.Fragmenter = (*InsertOrderFragmenter)(nil)

// Factory returns the catalog hook building the fragmenters of tables.
func Factory(opts *Options) catalog.FragmenterFactory {
	return func(ctx context.Context, cat *catalog.Catalog, td *catalog.TableDescriptor) (catalog.Fragmenter, error) {
		return NewInsertOrderFragmenter(ctx, cat, td, opts)
	}
}

// NewInsertOrderFragmenter builds the fragmenter of td from the chunks
// already held by the data manager.
func NewInsertOrderFragmenter(ctx context.Context, cat *catalog.Catalog, td *catalog.TableDescriptor, opts *Options) (*InsertOrderFragmenter, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	if cat == nil || td == nil {
		return nil, fmt.Errorf("%w: nil catalog or table", ErrIllegalArguments)
	}
	if td.IsView {
		return nil, fmt.Errorf("%w: '%s' is a view", ErrIllegalArguments, td.TableName)
	}

	cols, err := cat.GetAllColumnMetadataForTable(ctx, td.TableID, true, false, true)
	if err != nil {
		return nil, err
	}

	f := &InsertOrderFragmenter{
		cat:         cat,
		td:          td,
		dbID:        cat.CurrentDB().DBID,
		dataMgr:     cat.DataMgr(),
		level:       td.PersistenceLevel,
		maxFragRows: int64(td.MaxFragRows),
		workers:     opts.workers,
		log:         opts.logger,
	}

	if f.level == datamgr.DiskLevel {
		f.level = datamgr.CPULevel
	}
	if opts.maxFragRows > 0 {
		f.maxFragRows = int64(opts.maxFragRows)
	}
	if f.maxFragRows <= 0 {
		f.maxFragRows = catalog.DefaultMaxFragRows
	}

	for _, cd := range cols {
		// geometry values live in their physical columns
		if cd.ColumnType.IsGeometry() {
			continue
		}
		f.columns = append(f.columns, cd)
	}

	err = f.loadFragments()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (f *InsertOrderFragmenter) loadFragments() error {
	mds, err := f.dataMgr.ChunkMetadataWithPrefix(datamgr.NewChunkKey(f.dbID, f.td.TableID))
	if err != nil {
		return err
	}

	byID := make(map[int32]*FragmentInfo)

	for k, md := range mds {
		key, err := datamgr.ParseChunkKey(k)
		if err != nil {
			return err
		}
		if len(key) != 4 {
			continue
		}

		colID, fragID := key[2], key[3]

		frag, ok := byID[fragID]
		if !ok {
			frag = f.newFragment(fragID)
			byID[fragID] = frag
		}

		frag.ChunkMetadata[colID] = md
		if md.NumElements > frag.NumTuples {
			frag.NumTuples = md.NumElements
		}
	}

	for _, frag := range byID {
		f.fragments = append(f.fragments, frag)
		f.numTuples += frag.NumTuples
	}

	sort.Slice(f.fragments, func(i, j int) bool { return f.fragments[i].FragmentID < f.fragments[j].FragmentID })

	if len(f.fragments) > 0 {
		f.log.Debugf("table '%s': %d fragments, %d rows", f.td.TableName, len(f.fragments), f.numTuples)
	}

	return nil
}

func (f *InsertOrderFragmenter) newFragment(id int32) *FragmentInfo {
	return &FragmentInfo{
		FragmentID:      id,
		PhysicalTableID: f.td.TableID,
		ShardID:         f.td.Shard,
		ChunkMetadata:   make(map[int32]datamgr.ChunkMetadata),
	}
}

func (f *InsertOrderFragmenter) TableID() int32 {
	return f.td.TableID
}

func (f *InsertOrderFragmenter) NumTuples() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.numTuples
}

// Level is the memory tier holding the working copy of the chunks.
func (f *InsertOrderFragmenter) Level() datamgr.MemoryLevel {
	return f.level
}

func (f *InsertOrderFragmenter) chunkKey(columnID, fragmentID int32) datamgr.ChunkKey {
	return datamgr.NewChunkKey(f.dbID, f.td.TableID, columnID, fragmentID)
}

func (f *InsertOrderFragmenter) fragment(id int32) *FragmentInfo {
	i := sort.Search(len(f.fragments), func(i int) bool { return f.fragments[i].FragmentID >= id })
	if i < len(f.fragments) && f.fragments[i].FragmentID == id {
		return f.fragments[i]
	}
	return nil
}

func (f *InsertOrderFragmenter) column(id int32) *catalog.ColumnDescriptor {
	for _, cd := range f.columns {
		if cd.ColumnID == id {
			return cd
		}
	}
	return nil
}

// GetFragmentsForQuery returns a snapshot of every fragment.
func (f *InsertOrderFragmenter) GetFragmentsForQuery() QueryInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()

	qi := QueryInfo{
		TableID:        f.td.TableID,
		ChunkKeyPrefix: datamgr.NewChunkKey(f.dbID, f.td.TableID),
		Fragments:      make([]FragmentInfo, len(f.fragments)),
		NumTuples:      f.numTuples,
	}

	for i, frag := range f.fragments {
		qi.Fragments[i] = frag.clone()
	}

	return qi
}

func (f *InsertOrderFragmenter) GetFragmentInfo(fragmentID int32) (FragmentInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	frag := f.fragment(fragmentID)
	if frag == nil {
		return FragmentInfo{}, fmt.Errorf("%w: %d of table '%s'", ErrFragmentNotFound, fragmentID, f.td.TableName)
	}

	return frag.clone(), nil
}

// GetChunkMetadata returns the committed metadata of one chunk.
func (f *InsertOrderFragmenter) GetChunkMetadata(fragmentID, columnID int32) (datamgr.ChunkMetadata, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	frag := f.fragment(fragmentID)
	if frag == nil {
		return datamgr.ChunkMetadata{}, fmt.Errorf("%w: %d of table '%s'", ErrFragmentNotFound, fragmentID, f.td.TableName)
	}

	md, ok := frag.ChunkMetadata[columnID]
	if !ok {
		return datamgr.ChunkMetadata{}, fmt.Errorf("%w: column %d in fragment %d of table '%s'",
			datamgr.ErrChunkNotFound, columnID, fragmentID, f.td.TableName)
	}

	return md, nil
}

// UpdateMetadata replaces the chunk metadata and the row count of a
// fragment.
func (f *InsertOrderFragmenter) UpdateMetadata(fragmentID int32, mds map[int32]datamgr.ChunkMetadata, numTuples int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	frag := f.fragment(fragmentID)
	if frag == nil {
		return fmt.Errorf("%w: %d of table '%s'", ErrFragmentNotFound, fragmentID, f.td.TableName)
	}

	frag.ChunkMetadata = make(map[int32]datamgr.ChunkMetadata, len(mds))
	for id, md := range mds {
		frag.ChunkMetadata[id] = md
	}

	f.numTuples += numTuples - frag.NumTuples
	frag.NumTuples = numTuples

	return nil
}

// chunk returns the working copy of a chunk, creating it when create is
// set and the chunk does not exist yet.
func (f *InsertOrderFragmenter) chunk(cd *catalog.ColumnDescriptor, fragmentID int32, level datamgr.MemoryLevel, create bool) (*datamgr.Buffer, error) {
	key := f.chunkKey(cd.ColumnID, fragmentID)

	buf, err := f.dataMgr.GetChunk(key, level)
	if errors.Is(err, datamgr.ErrChunkNotFound) && create {
		return f.dataMgr.CreateChunk(key, level, cd.ColumnType)
	}

	return buf, err
}

func (f *InsertOrderFragmenter) converter(ctx context.Context, cd *catalog.ColumnDescriptor, rhsType sqltypes.TypeInfo) (*converter, error) {
	size, err := elementSize(cd.ColumnType)
	if err != nil {
		return nil, err
	}

	cv := &converter{
		column:  cd.ColumnName,
		ti:      cd.ColumnType,
		size:    size,
		rhsType: rhsType,
		dictMtx: &f.dictMtx,
	}

	if cd.ColumnType.IsDictEncodedString() {
		dd, err := f.cat.GetMetadataForDict(ctx, cd.ColumnType.CompParam, true)
		if err != nil {
			return nil, err
		}
		cv.dict = dd.StringDict()
	}

	if rhsType.IsDictEncodedString() && rhsType.CompParam > 0 && rhsType.CompParam != cd.ColumnType.CompParam {
		dd, err := f.cat.GetMetadataForDict(ctx, rhsType.CompParam, true)
		if err == nil {
			cv.rhsDict = dd.StringDict()
		} else if !errors.Is(err, catalog.ErrDictionaryNotFound) {
			return nil, err
		}
	}

	return cv, nil
}

// InsertData appends rows. Every value is converted before any chunk is
// touched; durable tables, with all their sibling shards, are checkpointed
// once the rows are appended.
// Integers written into decimal columns are whole numbers. Variable length
// columns and geometry physical columns not listed in data get no chunk;
// values given for a variable length column are rejected.
func (f *InsertOrderFragmenter) InsertData(ctx context.Context, data InsertData) error {
	if len(data.ColumnIDs) != len(data.Data) {
		return fmt.Errorf("%w: %d columns but %d value lists", ErrIllegalArguments, len(data.ColumnIDs), len(data.Data))
	}
	if len(data.Data) == 0 {
		return nil
	}

	n := len(data.Data[0])

	given := make(map[int32][]sqltypes.Value, len(data.ColumnIDs))
	for i, id := range data.ColumnIDs {
		if f.column(id) == nil {
			return fmt.Errorf("%w: id %d in table '%s'", catalog.ErrColumnNotFound, id, f.td.TableName)
		}
		if len(data.Data[i]) != n {
			return fmt.Errorf("%w: column %d holds %d values instead of %d", ErrIllegalArguments, id, len(data.Data[i]), n)
		}
		if _, ok := given[id]; ok {
			return fmt.Errorf("%w: column %d given twice", ErrIllegalArguments, id)
		}
		given[id] = data.Data[i]
	}

	if n == 0 {
		return nil
	}

	var targets []*catalog.ColumnDescriptor

	for _, cd := range f.columns {
		_, ok := given[cd.ColumnID]

		_, err := elementSize(cd.ColumnType)
		if err != nil {
			if ok {
				return fmt.Errorf("column '%s' of table '%s': %w", cd.ColumnName, f.td.TableName, err)
			}
			continue
		}

		if cd.IsGeoPhyCol && !ok {
			continue
		}

		targets = append(targets, cd)
	}

	cells := make([][]cell, len(targets))
	sizes := make([]int, len(targets))
	cvs := make([]*converter, len(targets))

	for i, cd := range targets {
		values, ok := given[cd.ColumnID]

		cv, err := f.converter(ctx, cd, sqltypes.NewTypeInfo(sqltypes.BigInt))
		if err != nil {
			return err
		}
		sizes[i] = cv.size
		cvs[i] = cv

		cells[i] = make([]cell, n)

		for r := 0; r < n; r++ {
			var v sqltypes.Value = sqltypes.NullValue{}
			switch {
			case ok:
				v = values[r]
			case cd.IsDeletedCol:
				v = sqltypes.Int64Value(0)
			}

			cells[i][r], err = cv.convert(v)
			if err != nil {
				return fmt.Errorf("row %d: %w", r, err)
			}
		}
	}

	for i, cv := range cvs {
		_, err := cv.resolve(cells[i])
		if err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for written := 0; written < n; {
		var frag *FragmentInfo
		if len(f.fragments) > 0 && f.fragments[len(f.fragments)-1].NumTuples < f.maxFragRows {
			frag = f.fragments[len(f.fragments)-1]
		} else {
			id := int32(0)
			if len(f.fragments) > 0 {
				id = f.fragments[len(f.fragments)-1].FragmentID + 1
			}
			frag = f.newFragment(id)
			f.fragments = append(f.fragments, frag)
		}

		k := n - written
		if room := f.maxFragRows - frag.NumTuples; int64(k) > room {
			k = int(room)
		}

		for i, cd := range targets {
			buf, err := f.chunk(cd, frag.FragmentID, f.level, true)
			if err != nil {
				return err
			}

			size := sizes[i]
			raw := make([]byte, k*size)
			st := newStats()

			for r := 0; r < k; r++ {
				c := cells[i][written+r]
				writeCell(raw[r*size:], cd.ColumnType, size, c)
				st.add(cd.ColumnType, c)
			}

			buf.Append(raw)

			enc := buf.Encoder()
			enc.AddElements(int64(k), int64(len(raw)))
			enc.UpdateStatsInt(st.minI, st.maxI)
			enc.UpdateStatsFloat(st.minD, st.maxD)
			if st.hasNulls {
				enc.SetHasNulls()
			}

			frag.ChunkMetadata[cd.ColumnID] = enc.Metadata()
		}

		frag.NumTuples += int64(k)
		f.numTuples += int64(k)
		written += k
	}

	// every shard is checkpointed, or their epochs drift apart
	if !f.td.IsTemporary() {
		err := f.cat.Checkpoint(ctx, f.cat.GetLogicalTableID(ctx, f.td.TableID))
		if err != nil {
			return err
		}
	}

	metricsRowsInserted.WithLabelValues(f.cat.CurrentDB().DBName).Add(float64(n))

	return nil
}

// ReadColumn decodes the working copy of one chunk. Dictionary encoded
// strings are returned as strings.
func (f *InsertOrderFragmenter) ReadColumn(ctx context.Context, cd *catalog.ColumnDescriptor, fragmentID int32) ([]sqltypes.Value, error) {
	size, err := elementSize(cd.ColumnType)
	if err != nil {
		return nil, err
	}

	cv, err := f.converter(ctx, cd, cd.ColumnType)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.fragment(fragmentID) == nil {
		return nil, fmt.Errorf("%w: %d of table '%s'", ErrFragmentNotFound, fragmentID, f.td.TableName)
	}

	buf, err := f.chunk(cd, fragmentID, f.level, false)
	if err != nil {
		return nil, err
	}

	raw := buf.Bytes()
	values := make([]sqltypes.Value, len(raw)/size)

	for i := range values {
		c := readCell(raw[i*size:], cd.ColumnType, size)

		switch {
		case c.null:
			values[i] = sqltypes.NullValue{}
		case cd.ColumnType.Type == sqltypes.Float:
			values[i] = sqltypes.FloatValue(c.f)
		case cd.ColumnType.IsFP():
			values[i] = sqltypes.DoubleValue(c.f)
		case cv.dict != nil:
			s, err := cv.dict.GetString(int32(c.i))
			if err != nil {
				return nil, err
			}
			values[i] = sqltypes.StringValue(s)
		default:
			values[i] = sqltypes.Int64Value(c.i)
		}
	}

	return values, nil
}
