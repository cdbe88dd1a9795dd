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
	"sync"

	"github.com/codenotary/colcat/pkg/catalog"
	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/google/uuid"
)

type rollState int

const (
	rollOpen rollState = iota
	rollCommitted
	rollCancelled
)

// fragKey identifies a fragment across the physical tables of a roll.
type fragKey struct {
	tableID    int32
	fragmentID int32
}

type dirtyChunk struct {
	f          *InsertOrderFragmenter
	fragmentID int32
	columnID   int32
}

// undoEntry keeps the bytes overwritten at one offset of a buffer.
type undoEntry struct {
	buf *datamgr.Buffer
	off int
	old []byte
}

// UpdelRoll collects the chunk changes of one update or delete statement.
// Chunk bytes are written as the statement runs; statistics and fragment
// metadata only change on Commit. Exactly one of Commit and Cancel takes
// effect, later calls fail with ErrRollDone.
type UpdelRoll struct {
	id uuid.UUID

	mu    sync.Mutex
	state rollState

	// bound by the first update
	cat              *catalog.Catalog
	logicalTableID   int32
	level            datamgr.MemoryLevel
	persistenceLevel datamgr.MemoryLevel

	dirtyChunks map[*datamgr.Buffer]dirtyChunk
	dirtyKeys   map[string]datamgr.ChunkKey

	fragmenters   map[fragKey]*InsertOrderFragmenter
	chunkMetadata map[fragKey]map[int32]datamgr.ChunkMetadata
	numTuples     map[fragKey]int64

	undo []undoEntry
}

func NewUpdelRoll() *UpdelRoll {
	return &UpdelRoll{
		id:            uuid.New(),
		dirtyChunks:   make(map[*datamgr.Buffer]dirtyChunk),
		dirtyKeys:     make(map[string]datamgr.ChunkKey),
		fragmenters:   make(map[fragKey]*InsertOrderFragmenter),
		chunkMetadata: make(map[fragKey]map[int32]datamgr.ChunkMetadata),
		numTuples:     make(map[fragKey]int64),
	}
}

func (r *UpdelRoll) ID() uuid.UUID {
	return r.id
}

// DirtyChunks is the number of chunks written and not yet committed or
// cancelled.
func (r *UpdelRoll) DirtyChunks() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.dirtyChunks)
}

func (r *UpdelRoll) LogicalTableID() int32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.logicalTableID
}

// bind ties the roll to the logical table of f on first use.
func (r *UpdelRoll) bind(ctx context.Context, f *InsertOrderFragmenter, level datamgr.MemoryLevel) error {
	logicalID := f.cat.GetLogicalTableID(ctx, f.td.TableID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != rollOpen {
		return ErrRollDone
	}

	if r.cat == nil {
		r.cat = f.cat
		r.logicalTableID = logicalID
		r.level = level
		r.persistenceLevel = f.td.PersistenceLevel
		return nil
	}

	if r.cat != f.cat || r.logicalTableID != logicalID {
		return fmt.Errorf("%w: update %s already bound to table %d", ErrIllegalArguments, r.id, r.logicalTableID)
	}
	if r.level != level {
		return fmt.Errorf("%w: update %s already bound to the %s level", ErrIllegalArguments, r.id, r.level)
	}

	return nil
}

// markDirty records buf and, when its bytes cannot be dropped on cancel,
// the bytes about to be overwritten.
func (r *UpdelRoll) markDirty(f *InsertOrderFragmenter, buf *datamgr.Buffer, fragmentID, columnID int32, offsets []uint64, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dirtyChunks[buf]; !ok {
		r.dirtyChunks[buf] = dirtyChunk{f: f, fragmentID: fragmentID, columnID: columnID}
	}
	r.dirtyKeys[buf.Key().String()] = buf.Key()

	if r.level != r.persistenceLevel {
		return
	}

	data := buf.Bytes()
	for _, off := range offsets {
		pos := int(off) * size
		r.undo = append(r.undo, undoEntry{buf: buf, off: pos, old: append([]byte(nil), data[pos:pos+size]...)})
	}
}

// stage sets the pending metadata of one chunk. The first change to a
// fragment snapshots its committed metadata.
func (r *UpdelRoll) stage(f *InsertOrderFragmenter, frag *FragmentInfo, columnID int32, md datamgr.ChunkMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fragKey{tableID: f.td.TableID, fragmentID: frag.FragmentID}

	mds, ok := r.chunkMetadata[key]
	if !ok {
		mds = frag.clone().ChunkMetadata
		r.chunkMetadata[key] = mds
		r.numTuples[key] = frag.NumTuples
		r.fragmenters[key] = f
	}

	mds[columnID] = md
}

// staged returns the pending metadata of a chunk, if any.
func (r *UpdelRoll) staged(f *InsertOrderFragmenter, fragmentID, columnID int32) (datamgr.ChunkMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mds, ok := r.chunkMetadata[fragKey{tableID: f.td.TableID, fragmentID: fragmentID}]
	if !ok {
		return datamgr.ChunkMetadata{}, false
	}

	md, ok := mds[columnID]
	return md, ok
}

// Commit publishes the statistics of every dirty chunk, checkpoints every
// shard of durable tables and updates the fragment metadata.
func (r *UpdelRoll) Commit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != rollOpen {
		return ErrRollDone
	}
	r.state = rollCommitted

	metricsRolls.WithLabelValues("committed").Inc()

	if r.cat == nil {
		return nil
	}

	for buf, dc := range r.dirtyChunks {
		buf.Encoder().Reset(r.chunkMetadata[fragKey{tableID: dc.f.td.TableID, fragmentID: dc.fragmentID}][dc.columnID])
		buf.SetUpdated()
	}

	// every shard is checkpointed, or their epochs drift apart
	if r.persistenceLevel == datamgr.DiskLevel {
		err := r.cat.Checkpoint(ctx, r.logicalTableID)
		if err != nil {
			return err
		}
	}

	for key, mds := range r.chunkMetadata {
		err := r.fragmenters[key].UpdateMetadata(key.fragmentID, mds, r.numTuples[key])
		if err != nil {
			return err
		}
	}

	r.dirtyChunks = make(map[*datamgr.Buffer]dirtyChunk)
	r.undo = nil

	// copies at the GPU level are stale unless they were the ones updated
	if r.level != datamgr.GPULevel {
		for _, key := range r.dirtyKeys {
			err := r.cat.DataMgr().DeleteChunksWithPrefixAt(key, datamgr.GPULevel)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Cancel discards the changes. Buffers held at a level other than the
// table's own are released, so the next read reloads the committed chunk;
// otherwise the overwritten bytes are restored.
func (r *UpdelRoll) Cancel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != rollOpen {
		return ErrRollDone
	}
	r.state = rollCancelled

	metricsRolls.WithLabelValues("cancelled").Inc()

	if r.cat == nil {
		return nil
	}

	var err error

	if r.level != r.persistenceLevel {
		for buf := range r.dirtyChunks {
			if ferr := r.cat.DataMgr().Free(buf); ferr != nil && err == nil {
				err = ferr
			}
		}
	} else {
		for i := len(r.undo) - 1; i >= 0; i-- {
			u := r.undo[i]
			copy(u.buf.Bytes()[u.off:], u.old)
		}
	}

	r.dirtyChunks = make(map[*datamgr.Buffer]dirtyChunk)
	r.undo = nil

	return err
}
