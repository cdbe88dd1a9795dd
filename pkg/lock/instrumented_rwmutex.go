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

package lock

import (
	"sync"
	"time"
)

// instrumentedRWMutex is a RWMutex that keeps track of how many callers are
// blocked on it and when it was last released.
type instrumentedRWMutex struct {
	rwmutex sync.RWMutex

	trwmutex      sync.RWMutex
	waitingCount  int
	lastReleaseAt time.Time

	onWait func(kind string, waited time.Duration, waiting int)
}

func (imux *instrumentedRWMutex) State() (waitingCount int, lastReleaseAt time.Time) {
	imux.trwmutex.RLock()
	defer imux.trwmutex.RUnlock()

	return imux.waitingCount, imux.lastReleaseAt
}

func (imux *instrumentedRWMutex) Lock() {
	imux.acquire("write", imux.rwmutex.Lock)
}

func (imux *instrumentedRWMutex) Unlock() {
	imux.release(imux.rwmutex.Unlock)
}

func (imux *instrumentedRWMutex) RLock() {
	imux.acquire("read", imux.rwmutex.RLock)
}

func (imux *instrumentedRWMutex) RUnlock() {
	imux.release(imux.rwmutex.RUnlock)
}

func (imux *instrumentedRWMutex) acquire(kind string, lock func()) {
	start := time.Now()

	imux.trwmutex.Lock()
	imux.waitingCount++
	imux.trwmutex.Unlock()

	lock()

	imux.trwmutex.Lock()
	imux.waitingCount--
	waiting := imux.waitingCount
	imux.trwmutex.Unlock()

	if imux.onWait != nil {
		imux.onWait(kind, time.Since(start), waiting)
	}
}

func (imux *instrumentedRWMutex) release(unlock func()) {
	imux.trwmutex.Lock()

	unlock()
	imux.lastReleaseAt = time.Now()

	imux.trwmutex.Unlock()
}
