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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheCreation(t *testing.T) {
	_, err := NewCache[string, int](0)
	require.ErrorIs(t, err, ErrIllegalArguments)

	c, err := NewCache[int, int](10)
	require.NoError(t, err)
	require.Equal(t, 10, c.MaxSize())

	_, _, err = c.evict()
	require.ErrorIs(t, err, ErrIllegalState)

	for i := 0; i < 10; i++ {
		_, _, evicted, err := c.Put(i, 10*i)
		require.NoError(t, err)
		require.False(t, evicted)
	}
	require.Equal(t, 10, c.Len())

	for i := 0; i < 10; i++ {
		v, err := c.Get(i)
		require.NoError(t, err)
		require.Equal(t, 10*i, v)
	}

	_, err = c.Get(100)
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestEvictionPolicy(t *testing.T) {
	c, err := NewCache[int, int](4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, _, _, err := c.Put(i, i)
		require.NoError(t, err)
	}

	// visited entries survive one sweep of the hand
	_, err = c.Get(0)
	require.NoError(t, err)
	_, err = c.Get(1)
	require.NoError(t, err)

	k, v, evicted, err := c.Put(4, 4)
	require.NoError(t, err)
	require.True(t, evicted)
	require.Equal(t, 2, k)
	require.Equal(t, 2, v)

	k, _, evicted, err = c.Put(5, 5)
	require.NoError(t, err)
	require.True(t, evicted)
	require.Equal(t, 3, k)

	_, err = c.Get(0)
	require.NoError(t, err)
}

func TestEvictionFilterAndCallback(t *testing.T) {
	c, err := NewCache[string, int](2)
	require.NoError(t, err)

	pinned := map[string]bool{"a": true}
	c.SetCanEvict(func(k string, _ int) bool { return !pinned[k] })

	var evictedKeys []string
	c.SetOnEvict(func(k string, _ int) { evictedKeys = append(evictedKeys, k) })

	_, _, _, err = c.Put("a", 1)
	require.NoError(t, err)
	_, _, _, err = c.Put("b", 2)
	require.NoError(t, err)

	_, _, _, err = c.Put("c", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, evictedKeys)

	pinned["c"] = true
	_, _, _, err = c.Put("d", 4)
	require.ErrorIs(t, err, ErrCannotEvictItem)
}

func TestPopAndApply(t *testing.T) {
	c, err := NewCache[string, int](3)
	require.NoError(t, err)

	for i, k := range []string{"x", "y", "z"} {
		_, _, _, err := c.Put(k, i)
		require.NoError(t, err)
	}

	v, err := c.Pop("y")
	require.NoError(t, err)
	require.Equal(t, 1, v)

	_, err = c.Pop("y")
	require.ErrorIs(t, err, ErrKeyNotFound)

	sum := 0
	err = c.Apply(func(_ string, v int) error {
		sum += v
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, sum)

	errStop := errors.New("stop")
	err = c.Apply(func(string, int) error { return errStop })
	require.ErrorIs(t, err, errStop)
}
