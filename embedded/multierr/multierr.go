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
	"strings"
	"sync"
)

// MultiErr collects errors from independent steps. It is safe for
// concurrent use so worker goroutines may append directly.
type MultiErr struct {
	mu     sync.Mutex
	errors []error
}

func NewMultiErr() *MultiErr {
	return &MultiErr{}
}

func (me *MultiErr) Append(err error) *MultiErr {
	if err == nil {
		return me
	}

	me.mu.Lock()
	me.errors = append(me.errors, err)
	me.mu.Unlock()

	return me
}

func (me *MultiErr) Includes(err error) bool {
	return me.Is(err)
}

func (me *MultiErr) HasErrors() bool {
	me.mu.Lock()
	defer me.mu.Unlock()

	return len(me.errors) > 0
}

func (me *MultiErr) Errors() []error {
	me.mu.Lock()
	defer me.mu.Unlock()

	errs := make([]error, len(me.errors))
	copy(errs, me.errors)
	return errs
}

// Reduce returns nil when nothing was collected, the single error when
// only one was, and the MultiErr itself otherwise.
func (me *MultiErr) Reduce() error {
	errs := me.Errors()

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return me
}

func (me *MultiErr) Unwrap() []error {
	return me.Errors()
}

func (me *MultiErr) Is(target error) bool {
	for _, err := range me.Errors() {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

func (me *MultiErr) As(target interface{}) bool {
	for _, err := range me.Errors() {
		if errors.As(err, target) {
			return true
		}
	}

	return false
}

func (me *MultiErr) Error() string {
	errs := me.Errors()

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
