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

// Package lock provides the guards protecting a catalog scope.
//
// Each scope owns a Set made of a read/write lock and a store mutex that
// serializes access to the persistent store. Guards are reentrant per
// Owner: an Owner identifies one logical call stack and travels in the
// context. A nested acquisition by the same Owner is a no-op and its guard
// releases nothing. An Owner must not acquire guards from several
// goroutines at the same time.
package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codenotary/colcat/embedded"
	"github.com/rs/xid"
)

var ErrIllegalState = embedded.ErrIllegalState

type ownerKey struct{}

// Owner is the identity guards are tracked against.
type Owner struct {
	id xid.ID

	mu    sync.Mutex
	reads map[*Set]int
}

func NewOwner() *Owner {
	return &Owner{
		id:    xid.New(),
		reads: make(map[*Set]int),
	}
}

func (o *Owner) ID() string {
	return o.id.String()
}

func (o *Owner) readDepth(s *Set) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.reads[s]
}

func (o *Owner) setRead(s *Set, held bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if held {
		o.reads[s] = 1
	} else {
		delete(o.reads, s)
	}
}

// WithOwner returns a context carrying an owner, reusing the one already
// present if any.
func WithOwner(ctx context.Context) (context.Context, *Owner) {
	if o := OwnerFrom(ctx); o != nil {
		return ctx, o
	}

	o := NewOwner()
	return context.WithValue(ctx, ownerKey{}, o), o
}

// OwnerFrom returns the owner carried by ctx or nil.
func OwnerFrom(ctx context.Context) *Owner {
	if ctx == nil {
		return nil
	}

	o, _ := ctx.Value(ownerKey{}).(*Owner)
	return o
}

// Target is implemented by anything that can be locked.
type Target interface {
	Locks() *Set
}

// Set holds the locks of one catalog scope.
type Set struct {
	name string

	rw         instrumentedRWMutex
	writeOwner atomic.Pointer[Owner]

	store      sync.Mutex
	storeOwner atomic.Pointer[Owner]
}

func NewSet(name string) *Set {
	s := &Set{name: name}
	s.rw.onWait = observeWait(name)
	return s
}

func (s *Set) Name() string {
	return s.name
}

// Locks makes a Set usable directly as a Target.
func (s *Set) Locks() *Set {
	return s
}

// State reports how many callers are blocked on the read/write lock and
// when it was last released.
func (s *Set) State() (waitingCount int, lastReleaseAt time.Time) {
	return s.rw.State()
}

// HoldsWrite reports whether the owner in ctx holds the write lock.
func (s *Set) HoldsWrite(ctx context.Context) bool {
	o := OwnerFrom(ctx)
	return o != nil && s.writeOwner.Load() == o
}

// HoldsRead reports whether the owner in ctx holds the read or the write lock.
func (s *Set) HoldsRead(ctx context.Context) bool {
	o := OwnerFrom(ctx)
	return o != nil && (s.writeOwner.Load() == o || o.readDepth(s) > 0)
}

// HoldsStore reports whether the owner in ctx holds the store mutex.
func (s *Set) HoldsStore(ctx context.Context) bool {
	o := OwnerFrom(ctx)
	return o != nil && s.storeOwner.Load() == o
}

// Guard releases a lock acquired by Read, Write or Store.
type Guard struct {
	once    sync.Once
	release func()
}

// Acquired reports whether this guard took the lock, as opposed to riding
// on one already held by the owner.
func (g *Guard) Acquired() bool {
	return g != nil && g.release != nil
}

// Release is idempotent.
func (g *Guard) Release() {
	if g == nil || g.release == nil {
		return
	}
	g.once.Do(g.release)
}

// Read takes the shared lock of t unless the owner already holds the write
// lock or a read lock on it.
func Read(ctx context.Context, t Target) (context.Context, *Guard) {
	ctx, o := WithOwner(ctx)
	s := t.Locks()

	if s.writeOwner.Load() == o || o.readDepth(s) > 0 {
		return ctx, &Guard{}
	}

	s.rw.RLock()
	o.setRead(s, true)

	return ctx, &Guard{release: func() {
		o.setRead(s, false)
		s.rw.RUnlock()
	}}
}

// Write takes the exclusive lock of t unless the owner already holds it.
// Requesting it while holding only a read lock would self-deadlock and
// panics instead.
func Write(ctx context.Context, t Target) (context.Context, *Guard) {
	ctx, g, err := write(ctx, t)
	if err != nil {
		panic("lock: " + err.Error())
	}
	return ctx, g
}

// WriteErr is Write returning ErrIllegalState instead of panicking when the
// owner holds only a read lock on t.
func WriteErr(ctx context.Context, t Target) (context.Context, *Guard, error) {
	return write(ctx, t)
}

func write(ctx context.Context, t Target) (context.Context, *Guard, error) {
	ctx, o := WithOwner(ctx)
	s := t.Locks()

	if s.writeOwner.Load() == o {
		return ctx, &Guard{}, nil
	}

	if o.readDepth(s) > 0 {
		return ctx, nil, fmt.Errorf("%w: write lock requested on %s while holding its read lock", ErrIllegalState, s.name)
	}

	s.rw.Lock()
	s.writeOwner.Store(o)

	return ctx, &Guard{release: func() {
		s.writeOwner.Store(nil)
		s.rw.Unlock()
	}}, nil
}

// Store takes the store mutex of t unless the owner already holds it.
func Store(ctx context.Context, t Target) (context.Context, *Guard) {
	ctx, o := WithOwner(ctx)
	s := t.Locks()

	if s.storeOwner.Load() == o {
		return ctx, &Guard{}
	}

	start := time.Now()
	s.store.Lock()
	metricsWaitSeconds.WithLabelValues(s.name, "store").Observe(time.Since(start).Seconds())

	s.storeOwner.Store(o)

	return ctx, &Guard{release: func() {
		s.storeOwner.Store(nil)
		s.store.Unlock()
	}}
}

// WriteStore takes the write lock and then the store mutex. The returned
// guard releases them in reverse order.
func WriteStore(ctx context.Context, t Target) (context.Context, *Guard) {
	ctx, wg := Write(ctx, t)
	ctx, sg := Store(ctx, t)

	if !wg.Acquired() && !sg.Acquired() {
		return ctx, &Guard{}
	}

	return ctx, &Guard{release: func() {
		sg.Release()
		wg.Release()
	}}
}
