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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/codenotary/colcat/pkg/sqltypes"
)

// Chunks of scalar columns are arrays of fixed width little endian values.
// Array, geometry and unencoded string columns have no fixed width and are
// not handled here.

func elementSize(ti sqltypes.TypeInfo) (int, error) {
	if ti.IsArray() || ti.IsGeometry() || (ti.IsString() && !ti.IsDictEncodedString()) {
		return 0, fmt.Errorf("%w: variable length type %s", ErrUnsupportedOperation, ti)
	}

	switch ti.Size {
	case 1, 2, 4, 8:
		return int(ti.Size), nil
	}

	return 0, fmt.Errorf("%w: type %s of width %d", ErrUnsupportedOperation, ti, ti.Size)
}

func putInt(b []byte, size int, v int64) {
	switch size {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, uint64(v))
	}
}

// getInt reads a signed value. Dictionary indexes narrower than 32 bits are
// unsigned.
func getInt(b []byte, size int, unsigned bool) int64 {
	switch size {
	case 1:
		if unsigned {
			return int64(b[0])
		}
		return int64(int8(b[0]))
	case 2:
		v := binary.LittleEndian.Uint16(b)
		if unsigned {
			return int64(v)
		}
		return int64(int16(v))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(b)))
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func putFloat(b []byte, size int, v float64) {
	if size == 4 {
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		return
	}
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}

func getFloat(b []byte, size int) float64 {
	if size == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// cell is one encoded value: i for integral types, f for floating point.
// A pending cell holds a string not yet in the target dictionary.
type cell struct {
	i    int64
	f    float64
	null bool

	pending bool
	s       string
}

func nullCell(ti sqltypes.TypeInfo) cell {
	switch ti.Type {
	case sqltypes.Float:
		return cell{f: float64(sqltypes.NullFloat), null: true}
	case sqltypes.Double:
		return cell{f: sqltypes.NullDouble, null: true}
	}
	return cell{i: ti.NullInt(), null: true}
}

func writeCell(b []byte, ti sqltypes.TypeInfo, size int, c cell) {
	if ti.IsFP() {
		putFloat(b, size, c.f)
		return
	}
	putInt(b, size, c.i)
}

func readCell(b []byte, ti sqltypes.TypeInfo, size int) cell {
	if ti.IsFP() {
		f := getFloat(b, size)
		if (ti.Type == sqltypes.Float && float32(f) == sqltypes.NullFloat) || (ti.Type == sqltypes.Double && f == sqltypes.NullDouble) {
			return cell{f: f, null: true}
		}
		return cell{f: f}
	}

	i := getInt(b, size, ti.IsDictEncodedString() && size < 4)
	return cell{i: i, null: i == ti.NullInt()}
}
