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

// Package datamgr holds column chunks across memory tiers and persists them,
// together with table epochs, in a bolt file.
package datamgr

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codenotary/colcat/embedded"
	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/pkg/sqltypes"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrChunkNotFound    = fmt.Errorf("chunk %w", embedded.ErrNotFound)
	ErrChunkExists      = fmt.Errorf("chunk %w", embedded.ErrAlreadyExists)
	ErrIllegalArguments = embedded.ErrIllegalArguments
	ErrAlreadyClosed    = embedded.ErrAlreadyClosed
	ErrInvalidOptions   = fmt.Errorf("%w: invalid options", embedded.ErrIllegalArguments)
)

var (
	chunksBucket   = []byte("chunks")
	metadataBucket = []byte("metadata")
	epochsBucket   = []byte("epochs")
)

const dataFileName = "chunks.db"

// Manager is the storage contract consumed by catalogs and fragmenters.
// Keys and metadata are forwarded as is; chunk bytes are never interpreted.
type Manager interface {
	CreateChunk(key ChunkKey, level MemoryLevel, ti sqltypes.TypeInfo) (*Buffer, error)
	GetChunk(key ChunkKey, level MemoryLevel) (*Buffer, error)
	IsCached(key ChunkKey, level MemoryLevel) bool
	Free(buf *Buffer) error

	DeleteChunksWithPrefix(prefix ChunkKey) error
	DeleteChunksWithPrefixAt(prefix ChunkKey, level MemoryLevel) error
	ChunkMetadataWithPrefix(prefix ChunkKey) (map[string]ChunkMetadata, error)

	Checkpoint(dbID, tableID int32) error
	GetTableEpoch(dbID, tableID int32) int32
	SetTableEpoch(dbID, tableID int32, epoch int32) error
	RemoveTableRelatedDS(dbID, tableID int32) error

	Close() error
}

var _ Manager = (*DataMgr)(nil)

// DataMgr keeps CPU and GPU tiers in memory and the disk tier in bolt.
type DataMgr struct {
	mu sync.Mutex

	tiers map[MemoryLevel]map[string]*Buffer
	db    *bolt.DB

	log    logger.Logger
	closed bool
}

// Open opens, creating it if missing, the data directory dir.
func Open(dir string, opts *Options) (*DataMgr, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(dir, dataFileName), 0600, &bolt.Options{Timeout: opts.openTimeout})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedded.ErrStoreFailure, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{chunksBucket, metadataBucket, epochsBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", embedded.ErrStoreFailure, err)
	}

	return &DataMgr{
		tiers: map[MemoryLevel]map[string]*Buffer{
			CPULevel: make(map[string]*Buffer),
			GPULevel: make(map[string]*Buffer),
		},
		db:  db,
		log: opts.logger,
	}, nil
}

func encodeKey(key ChunkKey) []byte {
	b := make([]byte, 4*len(key))
	for i, id := range key {
		binary.BigEndian.PutUint32(b[i*4:], uint32(id))
	}
	return b
}

func decodeKey(b []byte) ChunkKey {
	key := make(ChunkKey, len(b)/4)
	for i := range key {
		key[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
	}
	return key
}

func (m *DataMgr) tier(level MemoryLevel) (map[string]*Buffer, error) {
	if m.closed {
		return nil, ErrAlreadyClosed
	}

	t, ok := m.tiers[level]
	if !ok {
		return nil, fmt.Errorf("%w: no cache at %s level", ErrIllegalArguments, level)
	}
	return t, nil
}

// CreateChunk allocates an empty chunk at a memory tier.
func (m *DataMgr) CreateChunk(key ChunkKey, level MemoryLevel, ti sqltypes.TypeInfo) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tier(level)
	if err != nil {
		return nil, err
	}

	if _, ok := t[key.String()]; ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkExists, key)
	}

	exists, err := m.onDisk(key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrChunkExists, key)
	}

	buf := newBuffer(key, level, ti)
	t[key.String()] = buf

	return buf, nil
}

func (m *DataMgr) onDisk(key ChunkKey) (bool, error) {
	var exists bool

	err := m.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(metadataBucket).Get(encodeKey(key)) != nil
		return nil
	})

	return exists, err
}

// GetChunk returns the chunk cached at level, loading it from disk when
// needed. At DiskLevel a detached copy of the persisted chunk is returned.
func (m *DataMgr) GetChunk(key ChunkKey, level MemoryLevel) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrAlreadyClosed
	}

	if level == DiskLevel {
		return m.load(key, DiskLevel)
	}

	t, err := m.tier(level)
	if err != nil {
		return nil, err
	}

	if buf, ok := t[key.String()]; ok {
		return buf, nil
	}

	buf, err := m.load(key, level)
	if err != nil {
		return nil, err
	}

	t[key.String()] = buf

	return buf, nil
}

func (m *DataMgr) load(key ChunkKey, level MemoryLevel) (*Buffer, error) {
	var buf *Buffer

	err := m.db.View(func(tx *bolt.Tx) error {
		k := encodeKey(key)

		rawMD := tx.Bucket(metadataBucket).Get(k)
		if rawMD == nil {
			return fmt.Errorf("%w: %s", ErrChunkNotFound, key)
		}

		var md ChunkMetadata
		if err := json.Unmarshal(rawMD, &md); err != nil {
			return err
		}

		buf = newBuffer(key, level, md.Type)
		buf.encoder.Reset(md)
		buf.data = append([]byte(nil), tx.Bucket(chunksBucket).Get(k)...)

		return nil
	})

	return buf, err
}

func (m *DataMgr) IsCached(key ChunkKey, level MemoryLevel) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tiers[level]
	if !ok {
		return false
	}

	_, ok = t[key.String()]
	return ok
}

// Free drops a cached buffer. Unflushed changes are lost.
func (m *DataMgr) Free(buf *Buffer) error {
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrIllegalArguments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.tier(buf.level)
	if err != nil {
		return err
	}

	if cached, ok := t[buf.key.String()]; ok && cached == buf {
		delete(t, buf.key.String())
	}

	return nil
}

// DeleteChunksWithPrefix removes matching chunks from every tier.
func (m *DataMgr) DeleteChunksWithPrefix(prefix ChunkKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	for _, t := range m.tiers {
		dropWithPrefix(t, prefix)
	}

	return m.deleteOnDisk(prefix)
}

// DeleteChunksWithPrefixAt removes matching chunks from a single tier.
func (m *DataMgr) DeleteChunksWithPrefixAt(prefix ChunkKey, level MemoryLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	if level == DiskLevel {
		return m.deleteOnDisk(prefix)
	}

	t, err := m.tier(level)
	if err != nil {
		return err
	}

	dropWithPrefix(t, prefix)

	return nil
}

func dropWithPrefix(t map[string]*Buffer, prefix ChunkKey) {
	for k, buf := range t {
		if buf.key.HasPrefix(prefix) {
			delete(t, k)
		}
	}
}

func (m *DataMgr) deleteOnDisk(prefix ChunkKey) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		p := encodeKey(prefix)

		for _, name := range [][]byte{chunksBucket, metadataBucket} {
			b := tx.Bucket(name)

			var keys [][]byte
			c := b.Cursor()
			for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
				keys = append(keys, append([]byte(nil), k...))
			}

			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}

		if len(prefix) <= 2 {
			return deleteEpochs(tx, p)
		}
		return nil
	})
}

func deleteEpochs(tx *bolt.Tx, p []byte) error {
	b := tx.Bucket(epochsBucket)

	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}

	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ChunkMetadataWithPrefix returns the metadata of matching chunks keyed by
// chunk key. Cached CPU buffers take precedence over the disk tier.
func (m *DataMgr) ChunkMetadataWithPrefix(prefix ChunkKey) (map[string]ChunkMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrAlreadyClosed
	}

	res := make(map[string]ChunkMetadata)

	err := m.db.View(func(tx *bolt.Tx) error {
		p := encodeKey(prefix)

		c := tx.Bucket(metadataBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var md ChunkMetadata
			if err := json.Unmarshal(v, &md); err != nil {
				return err
			}
			res[decodeKey(k).String()] = md
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for k, buf := range m.tiers[CPULevel] {
		if buf.key.HasPrefix(prefix) {
			res[k] = buf.encoder.Metadata()
		}
	}

	return res, nil
}

// Checkpoint persists every updated chunk of a table and bumps its epoch,
// all in one bolt transaction. Updated GPU chunks win over their CPU copies,
// which are dropped.
func (m *DataMgr) Checkpoint(dbID, tableID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	prefix := NewChunkKey(dbID, tableID)

	var flushed []*Buffer

	err := m.db.Update(func(tx *bolt.Tx) error {
		chunks := tx.Bucket(chunksBucket)
		metadata := tx.Bucket(metadataBucket)

		for _, level := range []MemoryLevel{CPULevel, GPULevel} {
			for _, buf := range m.tiers[level] {
				if !buf.key.HasPrefix(prefix) || !buf.IsUpdated() {
					continue
				}

				rawMD, err := json.Marshal(buf.encoder.Metadata())
				if err != nil {
					return err
				}

				k := encodeKey(buf.key)

				if err := chunks.Put(k, append([]byte(nil), buf.data...)); err != nil {
					return err
				}
				if err := metadata.Put(k, rawMD); err != nil {
					return err
				}

				flushed = append(flushed, buf)
			}
		}

		return putEpoch(tx, dbID, tableID, getEpoch(tx, dbID, tableID)+1)
	})
	if err != nil {
		return fmt.Errorf("%w: checkpoint of table %d: %w", embedded.ErrStoreFailure, tableID, err)
	}

	for _, buf := range flushed {
		buf.clearUpdated()

		if buf.level == GPULevel {
			delete(m.tiers[CPULevel], buf.key.String())
		}
	}

	m.log.Debugf("checkpointed %d chunks of table %d:%d", len(flushed), dbID, tableID)

	return nil
}

func epochKey(dbID, tableID int32) []byte {
	return encodeKey(NewChunkKey(dbID, tableID))
}

func getEpoch(tx *bolt.Tx, dbID, tableID int32) int32 {
	v := tx.Bucket(epochsBucket).Get(epochKey(dbID, tableID))
	if v == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(v))
}

func putEpoch(tx *bolt.Tx, dbID, tableID, epoch int32) error {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], uint32(epoch))
	return tx.Bucket(epochsBucket).Put(epochKey(dbID, tableID), v[:])
}

func (m *DataMgr) GetTableEpoch(dbID, tableID int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var epoch int32

	err := m.db.View(func(tx *bolt.Tx) error {
		epoch = getEpoch(tx, dbID, tableID)
		return nil
	})
	if err != nil {
		m.log.Errorf("reading epoch of table %d:%d: %v", dbID, tableID, err)
		return -1
	}

	return epoch
}

func (m *DataMgr) SetTableEpoch(dbID, tableID int32, epoch int32) error {
	if epoch < 0 {
		return fmt.Errorf("%w: negative epoch", ErrIllegalArguments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	return m.db.Update(func(tx *bolt.Tx) error {
		return putEpoch(tx, dbID, tableID, epoch)
	})
}

// RemoveTableRelatedDS drops every chunk and the epoch of a table.
func (m *DataMgr) RemoveTableRelatedDS(dbID, tableID int32) error {
	return m.DeleteChunksWithPrefix(NewChunkKey(dbID, tableID))
}

func (m *DataMgr) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrAlreadyClosed
	}

	m.closed = true
	m.tiers = nil

	return m.db.Close()
}
