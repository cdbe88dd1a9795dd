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

package datamgr

import (
	"fmt"
	"os"
	"time"

	"github.com/codenotary/colcat/embedded/logger"
)

const DefaultOpenTimeout = time.Second

type Options struct {
	openTimeout time.Duration
	logger      logger.Logger
}

func DefaultOptions() *Options {
	return &Options{
		openTimeout: DefaultOpenTimeout,
		logger:      logger.NewSimpleLogger("datamgr", os.Stderr),
	}
}

func (opts *Options) Validate() error {
	if opts == nil {
		return fmt.Errorf("%w: nil options", ErrInvalidOptions)
	}

	if opts.openTimeout < 0 {
		return fmt.Errorf("%w: invalid OpenTimeout value", ErrInvalidOptions)
	}

	if opts.logger == nil {
		return fmt.Errorf("%w: invalid Logger value", ErrInvalidOptions)
	}

	return nil
}

func (opts *Options) WithOpenTimeout(timeout time.Duration) *Options {
	opts.openTimeout = timeout
	return opts
}

func (opts *Options) WithLogger(l logger.Logger) *Options {
	opts.logger = l
	return opts
}
