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

package dictionary

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalDictionaryPersists(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "DB_1_DICT_3")
	ref := Ref{DBID: 1, DictID: 3}

	svc := NewLocalService()

	d, err := svc.Get(ref, folder, false)
	require.NoError(t, err)

	again, err := svc.Get(ref, folder, false)
	require.NoError(t, err)
	require.Same(t, d, again)

	id, err := d.GetOrAdd("red")
	require.NoError(t, err)
	require.EqualValues(t, 0, id)

	id, err = d.GetOrAdd("green")
	require.NoError(t, err)
	require.EqualValues(t, 1, id)

	id, err = d.GetOrAdd("red")
	require.NoError(t, err)
	require.EqualValues(t, 0, id)

	require.NoError(t, svc.Close())
	require.ErrorIs(t, svc.Close(), ErrAlreadyClosed)

	svc = NewLocalService()
	defer svc.Close()

	d, err = svc.Get(ref, folder, false)
	require.NoError(t, err)
	require.Equal(t, 2, d.Size())

	s, err := d.GetString(1)
	require.NoError(t, err)
	require.Equal(t, "green", s)

	_, err = d.GetString(2)
	require.ErrorIs(t, err, ErrStringNotFound)

	id, ok := d.GetID("red")
	require.True(t, ok)
	require.EqualValues(t, 0, id)
}

func TestTemporaryDictionary(t *testing.T) {
	svc := NewLocalService()
	defer svc.Close()

	_, err := svc.Get(Ref{DBID: 1, DictID: 4}, "", false)
	require.ErrorIs(t, err, ErrIllegalArguments)

	d, err := svc.Get(Ref{DBID: 1, DictID: 1 << 30}, "", true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := d.GetOrAdd(fmt.Sprintf("s%d", j))
				require.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 10, d.Size())

	require.NoError(t, svc.Drop(Ref{DBID: 1, DictID: 1 << 30}))
	require.NoError(t, svc.Drop(Ref{DBID: 1, DictID: 1 << 30}))

	_, err = d.GetOrAdd("late")
	require.ErrorIs(t, err, ErrAlreadyClosed)
}
