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

package fragmenter

import (
	"fmt"
	"os"
	"runtime"

	"github.com/codenotary/colcat/embedded/logger"
)

type Options struct {
	// maxFragRows overrides the fragment size of the table when positive
	maxFragRows int32

	workers int

	logger logger.Logger
}

func DefaultOptions() *Options {
	return &Options{
		workers: runtime.NumCPU(),
		logger:  logger.NewSimpleLogger("fragmenter", os.Stderr),
	}
}

func (opts *Options) Validate() error {
	if opts == nil {
		return fmt.Errorf("%w: nil options", ErrInvalidOptions)
	}

	if opts.maxFragRows < 0 {
		return fmt.Errorf("%w: invalid MaxFragRows value", ErrInvalidOptions)
	}

	if opts.workers < 1 {
		return fmt.Errorf("%w: invalid Workers value", ErrInvalidOptions)
	}

	if opts.logger == nil {
		return fmt.Errorf("%w: invalid Logger value", ErrInvalidOptions)
	}

	return nil
}

func (opts *Options) WithMaxFragRows(n int32) *Options {
	opts.maxFragRows = n
	return opts
}

// WithWorkers bounds the number of partitions an update is split into.
func (opts *Options) WithWorkers(n int) *Options {
	opts.workers = n
	return opts
}

func (opts *Options) WithLogger(l logger.Logger) *Options {
	opts.logger = l
	return opts
}
