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

package datamgr

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/codenotary/colcat/pkg/sqltypes"
)

// MemoryLevel is a storage tier.
type MemoryLevel int

const (
	DiskLevel MemoryLevel = iota
	CPULevel
	GPULevel
)

func (l MemoryLevel) String() string {
	switch l {
	case DiskLevel:
		return "disk"
	case CPULevel:
		return "cpu"
	case GPULevel:
		return "gpu"
	}
	return "unknown"
}

// ChunkKey addresses chunks as (database, table, column, fragment). Shorter
// keys are prefixes.
type ChunkKey []int32

func NewChunkKey(ids ...int32) ChunkKey {
	return ChunkKey(ids)
}

func (k ChunkKey) String() string {
	parts := make([]string, len(k))
	for i, id := range k {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}

func (k ChunkKey) HasPrefix(prefix ChunkKey) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k ChunkKey) Equal(other ChunkKey) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// ParseChunkKey is the inverse of ChunkKey.String.
func ParseChunkKey(s string) (ChunkKey, error) {
	parts := strings.Split(s, ",")

	k := make(ChunkKey, len(parts))
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, err
		}
		k[i] = int32(id)
	}
	return k, nil
}

// Buffer holds the bytes of one chunk at one tier. Concurrent writers must
// touch disjoint byte ranges.
type Buffer struct {
	key   ChunkKey
	level MemoryLevel

	data    []byte
	encoder *Encoder

	updated atomic.Bool
}

func newBuffer(key ChunkKey, level MemoryLevel, ti sqltypes.TypeInfo) *Buffer {
	return &Buffer{
		key:     key,
		level:   level,
		encoder: NewEncoder(ti),
	}
}

func (b *Buffer) Key() ChunkKey {
	return b.key
}

func (b *Buffer) Level() MemoryLevel {
	return b.level
}

// Bytes gives direct access to the chunk contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Size() int {
	return len(b.data)
}

// Append grows the chunk. It must not run concurrently with any other
// access to the buffer.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
	b.updated.Store(true)
}

func (b *Buffer) Encoder() *Encoder {
	return b.encoder
}

func (b *Buffer) SetUpdated() {
	b.updated.Store(true)
}

func (b *Buffer) IsUpdated() bool {
	return b.updated.Load()
}

func (b *Buffer) clearUpdated() {
	b.updated.Store(false)
}
