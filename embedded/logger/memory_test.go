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

package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryLogger(t *testing.T) {
	ml := NewMemoryLoggerWithLevel(LogWarn)
	defer ml.Close()

	ml.Debugf("chunk %d loaded", 1)
	ml.Infof("catalog '%s' opened", "d1")
	ml.Warningf("dictionary %d has no users", 7)
	ml.Errorf("shard epochs of '%s' differ", "t1")

	require.Equal(t, []string{
		"WRN: dictionary 7 has no users",
		"ERR: shard epochs of 't1' differ",
	}, ml.GetLogs())

	require.True(t, ml.Contains("differ"))
	require.False(t, ml.Contains("opened"))

	// callers get a copy
	logs := ml.GetLogs()
	logs[0] = ""
	require.Equal(t, "WRN: dictionary 7 has no users", ml.GetLogs()[0])
}

func TestMemoryLoggerConcurrentWriters(t *testing.T) {
	ml := NewMemoryLogger()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ml.Debugf("worker %d row %d", i, j)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, ml.GetLogs(), 800)
	require.True(t, ml.Contains("worker 7 row 99"))
}
