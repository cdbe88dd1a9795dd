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

// Package dictionary maps strings of dictionary encoded columns to ids.
package dictionary

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codenotary/colcat/embedded"
	bolt "go.etcd.io/bbolt"
)

var (
	ErrDictionaryNotFound = fmt.Errorf("dictionary %w", embedded.ErrNotFound)
	ErrStringNotFound     = fmt.Errorf("string %w", embedded.ErrNotFound)
	ErrAlreadyClosed      = embedded.ErrAlreadyClosed
	ErrIllegalArguments   = embedded.ErrIllegalArguments
)

var stringsBucket = []byte("strings")

const stringsFileName = "strings.db"

// Ref identifies a dictionary within the process.
type Ref struct {
	DBID   int32
	DictID int32
}

func (r Ref) String() string {
	return fmt.Sprintf("%d:%d", r.DBID, r.DictID)
}

// StringDictionary is safe for concurrent use.
type StringDictionary interface {
	GetOrAdd(s string) (int32, error)
	GetString(id int32) (string, error)
	GetID(s string) (int32, bool)
	Size() int
	Close() error
}

// Service hands out dictionaries by reference. Backing folders are owned by
// the caller: the service only reads and writes files inside them.
type Service interface {
	Get(ref Ref, folder string, isTemp bool) (StringDictionary, error)
	Drop(ref Ref) error
	Close() error
}

// LocalService serves dictionaries from the local file system. Temporary
// dictionaries live in memory only.
type LocalService struct {
	mu     sync.Mutex
	dicts  map[Ref]*LocalDictionary
	closed bool
}

var _ Service = (*LocalService)(nil)

func NewLocalService() *LocalService {
	return &LocalService{dicts: make(map[Ref]*LocalDictionary)}
}

// Get returns the dictionary of ref, opening it from folder on first use.
func (s *LocalService) Get(ref Ref, folder string, isTemp bool) (StringDictionary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrAlreadyClosed
	}

	if d, ok := s.dicts[ref]; ok {
		return d, nil
	}

	if !isTemp && folder == "" {
		return nil, fmt.Errorf("%w: dictionary %s has no folder", ErrIllegalArguments, ref)
	}

	d, err := openLocalDictionary(folder, isTemp)
	if err != nil {
		return nil, err
	}

	s.dicts[ref] = d

	return d, nil
}

// Drop closes the dictionary of ref if it is open.
func (s *LocalService) Drop(ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dicts[ref]
	if !ok {
		return nil
	}

	delete(s.dicts, ref)

	return d.Close()
}

func (s *LocalService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrAlreadyClosed
	}

	s.closed = true

	var firstErr error
	for ref, d := range s.dicts {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dicts, ref)
	}

	return firstErr
}

// LocalDictionary keeps every string in memory and, unless temporary,
// appends new ones to a bolt file in its folder.
type LocalDictionary struct {
	mu      sync.RWMutex
	ids     map[string]int32
	strings []string

	db     *bolt.DB
	closed bool
}

func openLocalDictionary(folder string, isTemp bool) (*LocalDictionary, error) {
	d := &LocalDictionary{ids: make(map[string]int32)}

	if isTemp {
		return d, nil
	}

	err := os.MkdirAll(folder, 0700)
	if err != nil {
		return nil, err
	}

	db, err := bolt.Open(filepath.Join(folder, stringsFileName), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", embedded.ErrStoreFailure, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(stringsBucket)
		if err != nil {
			return err
		}

		return b.ForEach(func(k, v []byte) error {
			id := int32(binary.BigEndian.Uint32(k))
			if int(id) != len(d.strings) {
				return fmt.Errorf("%w: gap in dictionary at id %d", embedded.ErrConsistency, id)
			}
			s := string(v)
			d.strings = append(d.strings, s)
			d.ids[s] = id
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	d.db = db

	return d, nil
}

func (d *LocalDictionary) GetOrAdd(s string) (int32, error) {
	d.mu.RLock()
	id, ok := d.ids[s]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return 0, ErrAlreadyClosed
	}
	if ok {
		return id, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.ids[s]; ok {
		return id, nil
	}

	id = int32(len(d.strings))

	if d.db != nil {
		err := d.db.Update(func(tx *bolt.Tx) error {
			var k [4]byte
			binary.BigEndian.PutUint32(k[:], uint32(id))
			return tx.Bucket(stringsBucket).Put(k[:], []byte(s))
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %w", embedded.ErrStoreFailure, err)
		}
	}

	d.strings = append(d.strings, s)
	d.ids[s] = id

	return id, nil
}

func (d *LocalDictionary) GetString(id int32) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if id < 0 || int(id) >= len(d.strings) {
		return "", fmt.Errorf("%w: id %d", ErrStringNotFound, id)
	}
	return d.strings[id], nil
}

func (d *LocalDictionary) GetID(s string) (int32, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.ids[s]
	return id, ok
}

func (d *LocalDictionary) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.strings)
}

func (d *LocalDictionary) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrAlreadyClosed
	}

	d.closed = true

	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
