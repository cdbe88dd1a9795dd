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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInstrumentedMutex(t *testing.T) {
	mutex := &instrumentedRWMutex{}

	waitingCount, _ := mutex.State()
	require.Equal(t, 0, waitingCount)

	mutex.Lock()

	justBeforeRelease := time.Now()
	time.Sleep(1 * time.Millisecond)

	mutex.Unlock()

	waitingCount, lastReleaseAt := mutex.State()
	require.Equal(t, 0, waitingCount)
	require.True(t, lastReleaseAt.After(justBeforeRelease))

	mutex.Lock()

	var kinds []string
	var kindsMu sync.Mutex
	mutex.onWait = func(kind string, waited time.Duration, waiting int) {
		kindsMu.Lock()
		kinds = append(kinds, kind)
		kindsMu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		mutex.RLock()
		mutex.RUnlock()
		close(done)
	}()

	require.Eventually(t, func() bool {
		waitingCount, _ := mutex.State()
		return waitingCount == 1
	}, time.Second, time.Millisecond)

	mutex.Unlock()
	<-done

	waitingCount, _ = mutex.State()
	require.Equal(t, 0, waitingCount)

	kindsMu.Lock()
	require.Equal(t, []string{"read"}, kinds)
	kindsMu.Unlock()
}
