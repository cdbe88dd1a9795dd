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

package multierr

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	errShardA = errors.New("shard a failed")
	errShardB = errors.New("shard b failed")
)

func TestMultiErr(t *testing.T) {
	me := NewMultiErr()
	require.False(t, me.HasErrors())
	require.NoError(t, me.Reduce())

	me.Append(nil)
	require.False(t, me.HasErrors())

	me.Append(fmt.Errorf("%w: checkpoint", errShardA))
	require.ErrorIs(t, me.Reduce(), errShardA)
	require.NotSame(t, me, me.Reduce())

	me.Append(errShardB)
	require.True(t, me.HasErrors())
	require.Len(t, me.Errors(), 2)
	require.True(t, me.Includes(errShardA))
	require.ErrorIs(t, me, errShardB)
	require.Equal(t, "shard a failed: checkpoint; shard b failed", me.Error())

	var target *customErr
	require.False(t, me.As(&target))

	me.Append(&customErr{code: 7})
	require.True(t, errors.As(me.Reduce(), &target))
	require.Equal(t, 7, target.code)
}

func TestMultiErrConcurrentAppend(t *testing.T) {
	me := NewMultiErr()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			me.Append(fmt.Errorf("worker %d", i))
		}(i)
	}
	wg.Wait()

	require.Len(t, me.Errors(), 16)
}

type customErr struct {
	code int
}

func (e *customErr) Error() string {
	return fmt.Sprintf("custom error %d", e.code)
}
