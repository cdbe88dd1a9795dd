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

	"github.com/codenotary/colcat/embedded"
)

var (
	ErrIllegalArguments       = embedded.ErrIllegalArguments
	ErrIllegalState           = embedded.ErrIllegalState
	ErrInvalidOptions         = fmt.Errorf("%w: invalid options", embedded.ErrIllegalArguments)
	ErrUnsupportedOperation   = embedded.ErrUnsupportedOperation
	ErrDataConversionOverflow = embedded.ErrDataConversionOverflow
	ErrFragmentNotFound       = fmt.Errorf("fragment %w", embedded.ErrNotFound)
	ErrRollDone               = fmt.Errorf("%w: update already committed or cancelled", embedded.ErrIllegalState)
)
