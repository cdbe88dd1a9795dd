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
	"encoding/binary"
	"testing"

	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/sqltypes"
	"github.com/stretchr/testify/require"
)

func openTestDataMgr(t *testing.T) (*DataMgr, string) {
	dir := t.TempDir()

	m, err := Open(dir, DefaultOptions().WithLogger(logger.NewMemoryLogger()))
	require.NoError(t, err)

	return m, dir
}

func appendInt32(buf *Buffer, vs ...int32) {
	for _, v := range vs {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(v))
		buf.Append(b[:])
		buf.Encoder().UpdateStatsInt(int64(v), int64(v))
		buf.Encoder().AddElements(1, 4)
	}
}

func TestChunkKey(t *testing.T) {
	k := NewChunkKey(1, 2, 3, 0)
	require.Equal(t, "1,2,3,0", k.String())
	require.True(t, k.HasPrefix(NewChunkKey(1, 2)))
	require.False(t, k.HasPrefix(NewChunkKey(1, 20)))
	require.False(t, NewChunkKey(1).HasPrefix(k))
	require.True(t, k.Equal(NewChunkKey(1, 2, 3, 0)))

	parsed, err := ParseChunkKey(k.String())
	require.NoError(t, err)
	require.True(t, k.Equal(parsed))

	require.True(t, k.Equal(decodeKey(encodeKey(k))))
}

func TestCheckpointPersistsChunks(t *testing.T) {
	m, dir := openTestDataMgr(t)

	key := NewChunkKey(1, 5, 1, 0)

	buf, err := m.CreateChunk(key, CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.NoError(t, err)
	appendInt32(buf, 3, -7, 12)
	require.True(t, buf.IsUpdated())

	_, err = m.CreateChunk(key, CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.ErrorIs(t, err, ErrChunkExists)

	require.EqualValues(t, 0, m.GetTableEpoch(1, 5))
	require.NoError(t, m.Checkpoint(1, 5))
	require.EqualValues(t, 1, m.GetTableEpoch(1, 5))
	require.False(t, buf.IsUpdated())

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Close(), ErrAlreadyClosed)

	m, err = Open(dir, DefaultOptions())
	require.NoError(t, err)
	defer m.Close()

	require.False(t, m.IsCached(key, CPULevel))

	loaded, err := m.GetChunk(key, CPULevel)
	require.NoError(t, err)
	require.Equal(t, 12, loaded.Size())
	require.True(t, m.IsCached(key, CPULevel))

	md := loaded.Encoder().Metadata()
	require.EqualValues(t, 3, md.NumElements)
	require.EqualValues(t, -7, md.Stats.Min.IntVal)
	require.EqualValues(t, 12, md.Stats.Max.IntVal)
	require.EqualValues(t, 1, m.GetTableEpoch(1, 5))
}

func TestFreeDiscardsUnflushedChanges(t *testing.T) {
	m, _ := openTestDataMgr(t)
	defer m.Close()

	key := NewChunkKey(1, 5, 1, 0)

	buf, err := m.CreateChunk(key, CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.NoError(t, err)
	appendInt32(buf, 1)
	require.NoError(t, m.Checkpoint(1, 5))

	binary.LittleEndian.PutUint32(buf.Bytes(), 99)
	buf.SetUpdated()

	require.NoError(t, m.Free(buf))
	require.False(t, m.IsCached(key, CPULevel))

	reloaded, err := m.GetChunk(key, CPULevel)
	require.NoError(t, err)
	require.EqualValues(t, 1, binary.LittleEndian.Uint32(reloaded.Bytes()))

	require.ErrorIs(t, m.Free(nil), ErrIllegalArguments)
}

func TestDeleteChunksWithPrefix(t *testing.T) {
	m, _ := openTestDataMgr(t)
	defer m.Close()

	for _, key := range []ChunkKey{NewChunkKey(1, 5, 1, 0), NewChunkKey(1, 6, 1, 0), NewChunkKey(2, 5, 1, 0)} {
		buf, err := m.CreateChunk(key, CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
		require.NoError(t, err)
		appendInt32(buf, 1)
		require.NoError(t, m.Checkpoint(key[0], key[1]))
	}

	_, err := m.CreateChunk(NewChunkKey(1, 5, 1, 0), GPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.ErrorIs(t, err, ErrChunkExists)

	gpu, err := m.GetChunk(NewChunkKey(1, 5, 1, 0), GPULevel)
	require.NoError(t, err)
	require.Equal(t, GPULevel, gpu.Level())
	require.True(t, m.IsCached(NewChunkKey(1, 5, 1, 0), GPULevel))

	require.NoError(t, m.DeleteChunksWithPrefixAt(NewChunkKey(1, 5), GPULevel))
	require.False(t, m.IsCached(NewChunkKey(1, 5, 1, 0), GPULevel))
	require.True(t, m.IsCached(NewChunkKey(1, 5, 1, 0), CPULevel))

	require.NoError(t, m.DeleteChunksWithPrefix(NewChunkKey(1)))

	_, err = m.GetChunk(NewChunkKey(1, 5, 1, 0), CPULevel)
	require.ErrorIs(t, err, ErrChunkNotFound)
	_, err = m.GetChunk(NewChunkKey(1, 6, 1, 0), DiskLevel)
	require.ErrorIs(t, err, ErrChunkNotFound)
	require.EqualValues(t, 0, m.GetTableEpoch(1, 5))

	other, err := m.GetChunk(NewChunkKey(2, 5, 1, 0), DiskLevel)
	require.NoError(t, err)
	require.Equal(t, 4, other.Size())
	require.EqualValues(t, 1, m.GetTableEpoch(2, 5))
}

func TestTableEpochs(t *testing.T) {
	m, _ := openTestDataMgr(t)
	defer m.Close()

	require.NoError(t, m.SetTableEpoch(1, 5, 42))
	require.EqualValues(t, 42, m.GetTableEpoch(1, 5))

	require.NoError(t, m.Checkpoint(1, 5))
	require.EqualValues(t, 43, m.GetTableEpoch(1, 5))

	require.ErrorIs(t, m.SetTableEpoch(1, 5, -1), ErrIllegalArguments)

	require.NoError(t, m.RemoveTableRelatedDS(1, 5))
	require.EqualValues(t, 0, m.GetTableEpoch(1, 5))
}

func TestChunkMetadataWithPrefix(t *testing.T) {
	m, _ := openTestDataMgr(t)
	defer m.Close()

	persisted, err := m.CreateChunk(NewChunkKey(1, 5, 1, 0), CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.NoError(t, err)
	appendInt32(persisted, 4, 8)
	require.NoError(t, m.Checkpoint(1, 5))
	require.NoError(t, m.Free(persisted))

	cached, err := m.CreateChunk(NewChunkKey(1, 5, 2, 0), CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.NoError(t, err)
	appendInt32(cached, 1)

	mds, err := m.ChunkMetadataWithPrefix(NewChunkKey(1, 5))
	require.NoError(t, err)
	require.Len(t, mds, 2)
	require.EqualValues(t, 8, mds["1,5,1,0"].Stats.Max.IntVal)
	require.EqualValues(t, 1, mds["1,5,2,0"].NumElements)
}

func TestEncoderStats(t *testing.T) {
	e := NewEncoder(sqltypes.NewTypeInfo(sqltypes.Double))
	e.UpdateStatsFloat(1.5, 2.5)
	e.UpdateStatsFloat(-1, 0)
	e.UpdateStatsFloat(10, 5)
	e.SetHasNulls()
	e.AddElements(3, 24)

	md := e.Metadata()
	require.Equal(t, -1.0, md.Stats.Min.DoubleVal)
	require.Equal(t, 2.5, md.Stats.Max.DoubleVal)
	require.True(t, md.Stats.HasNulls)

	other := NewEncoder(sqltypes.NewTypeInfo(sqltypes.Int))
	other.Reset(md)
	require.Equal(t, md, other.Metadata())
}

func TestCheckpointFlushesGPUChunks(t *testing.T) {
	m, _ := openTestDataMgr(t)
	defer m.Close()

	key := NewChunkKey(1, 5, 1, 0)

	cpu, err := m.CreateChunk(key, CPULevel, sqltypes.NewTypeInfo(sqltypes.Int))
	require.NoError(t, err)
	appendInt32(cpu, 1)
	require.NoError(t, m.Checkpoint(1, 5))

	gpu, err := m.GetChunk(key, GPULevel)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(gpu.Bytes(), 9)
	gpu.Encoder().UpdateStatsInt(9, 9)
	gpu.SetUpdated()

	require.NoError(t, m.Checkpoint(1, 5))
	require.False(t, m.IsCached(key, CPULevel))
	require.False(t, gpu.IsUpdated())

	reloaded, err := m.GetChunk(key, CPULevel)
	require.NoError(t, err)
	require.EqualValues(t, 9, binary.LittleEndian.Uint32(reloaded.Bytes()))
	require.EqualValues(t, 9, reloaded.Encoder().Metadata().Stats.Max.IntVal)
}
