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
	"strconv"
)

// handle addresses a slot of an arena. Handles stay valid until the slot is
// released and are never reused while an index still points to them.
type handle int32

const noHandle handle = -1

// arena owns descriptors. Name and id indexes store handles so that a
// descriptor has a single owner regardless of how many ways it is reached.
type arena[T any] struct {
	slots []*T
	free  []handle
}

func (a *arena[T]) put(v *T) handle {
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = v
		return h
	}

	a.slots = append(a.slots, v)
	return handle(len(a.slots) - 1)
}

func (a *arena[T]) get(h handle) *T {
	if h < 0 || int(h) >= len(a.slots) {
		return nil
	}
	return a.slots[h]
}

func (a *arena[T]) release(h handle) {
	if a.get(h) == nil {
		return
	}
	a.slots[h] = nil
	a.free = append(a.free, h)
}

func (a *arena[T]) len() int {
	return len(a.slots) - len(a.free)
}

func (a *arena[T]) reset() {
	a.slots = nil
	a.free = nil
}

type columnNameKey struct {
	tableID int32
	name    string
}

type columnIDKey struct {
	tableID  int32
	columnID int32
}

func itoa(i int32) string {
	return strconv.Itoa(int(i))
}
