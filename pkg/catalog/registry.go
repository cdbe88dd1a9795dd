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
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/codenotary/colcat/embedded/cache"
	"github.com/codenotary/colcat/embedded/logger"
	"github.com/codenotary/colcat/embedded/multierr"
)

var ErrRegistryFull = fmt.Errorf("%w: every registered catalog is in use", ErrIllegalState)

type catalogRef struct {
	cat    *Catalog
	count  int32
	pinned bool
}

// Registry maps database names to open catalogs. At most maxSize catalogs
// stay open: when room is needed an idle catalog, one not acquired and not
// pinned, is evicted and closed. Evicted catalogs are reopened on demand by
// the system catalog.
type Registry struct {
	mtx   sync.Mutex
	cache *cache.Cache[string, *catalogRef]

	log    logger.Logger
	closed bool
}

func NewRegistry(maxSize int, log logger.Logger) (*Registry, error) {
	c, err := cache.NewCache[string, *catalogRef](maxSize)
	if err != nil {
		return nil, fmt.Errorf("%w: registry size %d", ErrInvalidOptions, maxSize)
	}

	c.SetCanEvict(func(_ string, ref *catalogRef) bool {
		return !ref.pinned && atomic.LoadInt32(&ref.count) == 0
	})

	c.SetOnEvict(func(name string, ref *catalogRef) {
		metricsRegistryOps.WithLabelValues("evict").Inc()
		metricsOpenCatalogs.Dec()

		err := ref.cat.Close()
		if err != nil {
			log.Errorf("closing evicted catalog '%s': %v", name, err)
		}
	})

	return &Registry{cache: c, log: log}, nil
}

// Get returns the catalog registered under name.
func (r *Registry) Get(name string) (*Catalog, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return nil, false
	}

	ref, err := r.cache.Get(name)
	if err != nil {
		return nil, false
	}

	metricsRegistryOps.WithLabelValues("get").Inc()

	return ref.cat, true
}

// Set registers cat under name, replacing any previous entry.
func (r *Registry) Set(name string, cat *Catalog) error {
	return r.set(name, cat, false)
}

// Pin registers a catalog that is never evicted.
func (r *Registry) Pin(name string, cat *Catalog) error {
	return r.set(name, cat, true)
}

func (r *Registry) set(name string, cat *Catalog, pinned bool) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return ErrAlreadyClosed
	}

	if ref, err := r.cache.Get(name); err == nil {
		ref.cat = cat
		ref.pinned = ref.pinned || pinned
		return nil
	}

	_, _, _, err := r.cache.Put(name, &catalogRef{cat: cat, pinned: pinned})
	if errors.Is(err, cache.ErrCannotEvictItem) {
		return fmt.Errorf("%w: registering '%s'", ErrRegistryFull, name)
	}
	if err != nil {
		return err
	}

	metricsRegistryOps.WithLabelValues("set").Inc()
	metricsOpenCatalogs.Inc()

	return nil
}

// Acquire marks the catalog under name in use until the returned release
// function is called.
func (r *Registry) Acquire(name string) (*Catalog, func(), bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return nil, nil, false
	}

	ref, err := r.cache.Get(name)
	if err != nil {
		return nil, nil, false
	}

	atomic.AddInt32(&ref.count, 1)

	var once sync.Once
	return ref.cat, func() {
		once.Do(func() { atomic.AddInt32(&ref.count, -1) })
	}, true
}

// Remove unregisters name without closing the catalog.
func (r *Registry) Remove(name string) (*Catalog, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	ref, err := r.cache.Pop(name)
	if err != nil {
		return nil, false
	}

	metricsRegistryOps.WithLabelValues("remove").Inc()
	metricsOpenCatalogs.Dec()

	return ref.cat, true
}

// Names returns the registered database names, sorted.
func (r *Registry) Names() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	var names []string
	r.cache.Apply(func(name string, _ *catalogRef) error {
		names = append(names, name)
		return nil
	})

	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close closes every registered catalog.
func (r *Registry) Close() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.closed {
		return ErrAlreadyClosed
	}
	r.closed = true

	var cats []*Catalog
	r.cache.Apply(func(_ string, ref *catalogRef) error {
		cats = append(cats, ref.cat)
		return nil
	})

	merr := multierr.NewMultiErr()
	for _, cat := range cats {
		merr.Append(cat.Close())
		metricsOpenCatalogs.Dec()
	}

	return merr.Reduce()
}
