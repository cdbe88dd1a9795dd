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

package cache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrIllegalArguments = errors.New("illegal arguments")
	ErrKeyNotFound      = errors.New("key not found")
	ErrIllegalState     = errors.New("illegal state")
	ErrCannotEvictItem  = errors.New("cannot find an item to evict")
)

type EvictFilterFunc[K comparable, V any] func(key K, value V) bool
type EvictCallbackFunc[K comparable, V any] func(key K, value V)

// Cache implements the SIEVE cache replacement policy. Entries may be
// pinned through the eviction filter; a full cache whose entries are all
// pinned rejects new ones with ErrCannotEvictItem.
type Cache[K comparable, V any] struct {
	data map[K]*entry[V]

	hand    *list.Element
	list    *list.List
	maxSize int

	mutex sync.RWMutex

	canEvict EvictFilterFunc[K, V]
	onEvict  EvictCallbackFunc[K, V]
}

type entry[V any] struct {
	value   V
	visited uint32
	order   *list.Element
}

func NewCache[K comparable, V any](maxSize int) (*Cache[K, V], error) {
	if maxSize < 1 {
		return nil, ErrIllegalArguments
	}

	return &Cache[K, V]{
		data:    make(map[K]*entry[V]),
		list:    list.New(),
		maxSize: maxSize,
	}, nil
}

func (c *Cache[K, V]) SetCanEvict(canEvict EvictFilterFunc[K, V]) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.canEvict = canEvict
}

func (c *Cache[K, V]) SetOnEvict(onEvict EvictCallbackFunc[K, V]) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.onEvict = onEvict
}

// Put inserts or replaces key. When room had to be made, the last evicted
// entry is returned with evicted set.
func (c *Cache[K, V]) Put(key K, value V) (evictedKey K, evictedValue V, evicted bool, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.data[key]; ok {
		e.visited = 1
		e.value = value
		return evictedKey, evictedValue, false, nil
	}

	for c.list.Len() >= c.maxSize {
		k, e, err := c.evict()
		if err != nil {
			return evictedKey, evictedValue, false, err
		}

		if c.onEvict != nil {
			c.onEvict(k, e.value)
		}

		evictedKey, evictedValue, evicted = k, e.value, true
	}

	c.data[key] = &entry[V]{
		value: value,
		order: c.list.PushFront(key),
	}

	return evictedKey, evictedValue, evicted, nil
}

func (c *Cache[K, V]) evict() (K, *entry[V], error) {
	var zero K

	if c.list.Len() == 0 {
		return zero, nil, fmt.Errorf("%w: evict requested in an empty cache", ErrIllegalState)
	}

	curr := c.hand
	for i := 0; i < 2*c.list.Len(); i++ {
		if curr == nil {
			curr = c.list.Back()
		}

		key := curr.Value.(K)

		e := c.data[key]
		if e.visited == 0 && (c.canEvict == nil || c.canEvict(key, e.value)) {
			c.hand = curr.Prev()

			c.list.Remove(curr)
			delete(c.data, key)

			return key, e, nil
		}

		e.visited = 0
		curr = curr.Prev()
	}

	return zero, nil, ErrCannotEvictItem
}

func (c *Cache[K, V]) Get(key K) (V, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, ErrKeyNotFound
	}

	atomic.StoreUint32(&e.visited, 1)

	return e.value, nil
}

// Pop removes key without calling the eviction callback.
func (c *Cache[K, V]) Pop(key K) (V, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, ErrKeyNotFound
	}

	if c.hand == e.order {
		c.hand = c.hand.Prev()
	}

	c.list.Remove(e.order)
	delete(c.data, key)

	return e.value, nil
}

func (c *Cache[K, V]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.list.Len()
}

func (c *Cache[K, V]) MaxSize() int {
	return c.maxSize
}

// Apply calls fun on every entry, stopping at the first error.
func (c *Cache[K, V]) Apply(fun func(k K, v V) error) error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for k, e := range c.data {
		if err := fun(k, e.value); err != nil {
			return err
		}
	}
	return nil
}
