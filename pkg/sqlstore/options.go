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

package sqlstore

import (
	"fmt"
	"os"
	"time"

	"github.com/codenotary/colcat/embedded/logger"
)

const (
	DefaultBusyTimeout = 5 * time.Second
	DefaultJournalMode = "WAL"
)

type Options struct {
	busyTimeout time.Duration
	journalMode string
	logger      logger.Logger
}

func DefaultOptions() *Options {
	return &Options{
		busyTimeout: DefaultBusyTimeout,
		journalMode: DefaultJournalMode,
		logger:      logger.NewSimpleLogger("sqlstore", os.Stderr),
	}
}

func (opts *Options) Validate() error {
	if opts == nil {
		return fmt.Errorf("%w: nil options", ErrInvalidOptions)
	}

	if opts.busyTimeout < 0 {
		return fmt.Errorf("%w: invalid BusyTimeout value", ErrInvalidOptions)
	}

	switch opts.journalMode {
	case "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		return fmt.Errorf("%w: invalid JournalMode value '%s'", ErrInvalidOptions, opts.journalMode)
	}

	if opts.logger == nil {
		return fmt.Errorf("%w: invalid Logger value", ErrInvalidOptions)
	}

	return nil
}

func (opts *Options) WithBusyTimeout(timeout time.Duration) *Options {
	opts.busyTimeout = timeout
	return opts
}

func (opts *Options) WithJournalMode(mode string) *Options {
	opts.journalMode = mode
	return opts
}

func (opts *Options) WithLogger(l logger.Logger) *Options {
	opts.logger = l
	return opts
}
