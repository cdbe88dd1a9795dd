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

package helper

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// PrintTable renders nbRows rows under the cols header, preceded by caption
// or by a row count when caption is empty. Nothing is printed for an empty
// header.
func PrintTable(
	w io.Writer,
	cols []string,
	nbRows int,
	getRow func(int) []string,
	caption string,
) {
	if len(cols) == 0 {
		return
	}

	if caption == "" {
		caption = fmt.Sprintf("%d row(s)", nbRows)
	}
	fmt.Fprintln(w, caption)

	if nbRows == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(cols)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for i := 0; i < nbRows; i++ {
		row := getRow(i)

		// short rows are padded so every line keeps the header width
		cells := make([]string, len(cols))
		copy(cells, row)

		table.Append(cells)
	}

	table.Render()
}
