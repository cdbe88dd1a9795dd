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
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/sqltypes"
)

// stats is the range of the values written by one partition.
type stats struct {
	minI, maxI int64
	minD, maxD float64
	hasNulls   bool
}

func newStats() stats {
	return stats{
		minI: math.MaxInt64,
		maxI: math.MinInt64,
		minD: math.MaxFloat64,
		maxD: -math.MaxFloat64,
	}
}

func (s *stats) add(ti sqltypes.TypeInfo, c cell) {
	switch {
	case c.null:
		s.hasNulls = true
	case ti.IsFP():
		s.minD = math.Min(s.minD, c.f)
		s.maxD = math.Max(s.maxD, c.f)
	default:
		if c.i < s.minI {
			s.minI = c.i
		}
		if c.i > s.maxI {
			s.maxI = c.i
		}
	}
}

func (s *stats) merge(o stats) {
	s.hasNulls = s.hasNulls || o.hasNulls
	s.minD = math.Min(s.minD, o.minD)
	s.maxD = math.Max(s.maxD, o.maxD)
	if o.minI < s.minI {
		s.minI = o.minI
	}
	if o.maxI > s.maxI {
		s.maxI = o.maxI
	}
}

// converter turns right-hand values into cells of the target column.
type converter struct {
	column string
	ti     sqltypes.TypeInfo
	size   int

	rhsType sqltypes.TypeInfo

	// dictionary of the target column, nil unless it is dictionary encoded
	dict dictionary.StringDictionary
	// dictionary of the right-hand column when string values arrive as
	// indexes
	rhsDict dictionary.StringDictionary

	// serializes additions to dict
	dictMtx *sync.Mutex
}

func (cv *converter) overflow(v string) error {
	if cv.ti.IsDecimal() || cv.rhsType.IsDecimal() {
		return fmt.Errorf("%w on %s from DECIMAL(%d, %d) to DECIMAL(%d, %d) in column '%s'",
			ErrDataConversionOverflow, v, cv.rhsType.Dimension, cv.rhsType.Scale, cv.ti.Dimension, cv.ti.Scale, cv.column)
	}
	return fmt.Errorf("%w on %s to %s in column '%s'", ErrDataConversionOverflow, v, cv.ti, cv.column)
}

// fits reports whether v is representable by the target width without
// colliding with the null sentinel.
func (cv *converter) fits(v int64) bool {
	switch cv.size {
	case 1:
		return v > math.MinInt8 && v <= math.MaxInt8
	case 2:
		return v > math.MinInt16 && v <= math.MaxInt16
	case 4:
		return v > math.MinInt32 && v <= math.MaxInt32
	}
	return v != math.MinInt64
}

func (cv *converter) convert(v sqltypes.Value) (cell, error) {
	if iv, ok := v.(sqltypes.Int64Value); ok && cv.rhsType.IsString() {
		if int64(iv) == cv.rhsType.NullInt() {
			return cv.null()
		}

		// same dictionary on both sides: the index is valid as is
		if cv.ti.IsDictEncodedString() && cv.rhsType.IsDictEncodedString() && cv.rhsType.CompParam == cv.ti.CompParam {
			return cell{i: int64(iv)}, nil
		}

		if cv.rhsDict == nil {
			return cell{}, fmt.Errorf("%w: cast from string literal to string column '%s'", ErrUnsupportedOperation, cv.column)
		}

		s, err := cv.rhsDict.GetString(int32(iv))
		if err != nil {
			return cell{}, err
		}
		v = sqltypes.StringValue(s)
	}

	switch v := v.(type) {
	case sqltypes.NullValue:
		return cv.null()
	case sqltypes.Int64Value:
		return cv.fromInt(int64(v))
	case sqltypes.DoubleValue:
		return cv.fromFloat(float64(v))
	case sqltypes.FloatValue:
		return cv.fromFloat(float64(v))
	case sqltypes.StringValue:
		return cv.fromString(string(v))
	}

	return cell{}, fmt.Errorf("%w: unexpected value %T", ErrIllegalArguments, v)
}

func (cv *converter) null() (cell, error) {
	if cv.ti.NotNull {
		return cell{}, fmt.Errorf("%w: null written into NOT NULL column '%s'", ErrIllegalArguments, cv.column)
	}
	return nullCell(cv.ti), nil
}

func (cv *converter) fromInt(n int64) (cell, error) {
	ti := cv.ti

	switch {
	case ti.IsDictEncodedString():
		return cell{}, fmt.Errorf("%w: cast to string in column '%s'", ErrUnsupportedOperation, cv.column)

	case ti.IsFP():
		f := float64(n)
		if cv.rhsType.IsDecimal() {
			f /= float64(sqltypes.Pow10(cv.rhsType.Scale))
		}
		return cv.fromFloat(f)

	case ti.IsBoolean():
		if n != 0 {
			return cell{i: 1}, nil
		}
		return cell{i: 0}, nil

	case ti.IsDecimal():
		from := int32(0)
		if cv.rhsType.IsDecimal() {
			from = cv.rhsType.Scale
		}

		d, ok := rescale(n, from, ti.Scale)
		if !ok || !cv.fits(d) {
			return cell{}, cv.overflow(strconv.FormatInt(n, 10))
		}
		// the stored value must keep the sign of the source
		if n != 0 && (n > 0) != (d > 0) {
			return cell{}, cv.overflow(strconv.FormatInt(n, 10))
		}
		return cell{i: d}, nil
	}

	if cv.rhsType.IsDecimal() {
		n = int64(math.Round(float64(n) / float64(sqltypes.Pow10(cv.rhsType.Scale))))
	}

	if !cv.fits(n) {
		return cell{}, cv.overflow(strconv.FormatInt(n, 10))
	}

	return cell{i: n}, nil
}

// rescale moves n from scale from to scale to, reporting false on int64
// overflow.
func rescale(n int64, from, to int32) (int64, bool) {
	if to <= from {
		return n / sqltypes.Pow10(from-to), true
	}

	p := sqltypes.Pow10(to - from)
	if n > math.MaxInt64/p || n < math.MinInt64/p {
		return 0, false
	}
	return n * p, true
}

func (cv *converter) fromFloat(f float64) (cell, error) {
	ti := cv.ti
	repr := strconv.FormatFloat(f, 'g', -1, 64)

	switch {
	case ti.IsDictEncodedString():
		return cell{}, fmt.Errorf("%w: cast to string in column '%s'", ErrUnsupportedOperation, cv.column)

	case ti.IsFP():
		if ti.Type == sqltypes.Float && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return cell{}, cv.overflow(repr)
		}
		return cell{f: f}, nil

	case ti.IsBoolean():
		if f != 0 {
			return cell{i: 1}, nil
		}
		return cell{i: 0}, nil
	}

	if ti.IsDecimal() {
		f *= float64(sqltypes.Pow10(ti.Scale))
	}

	if math.IsNaN(f) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return cell{}, cv.overflow(repr)
	}

	n := int64(f)
	if ti.IsDecimal() {
		n = int64(math.Round(f))
	}

	if !cv.fits(n) {
		return cell{}, cv.overflow(repr)
	}

	return cell{i: n}, nil
}

func (cv *converter) fromString(s string) (cell, error) {
	ti := cv.ti

	if ti.IsDictEncodedString() {
		return cv.stringIndex(s)
	}

	// an empty literal is a null for every non string type
	if s == "" {
		return cv.null()
	}

	switch {
	case ti.IsBoolean():
		switch strings.TrimSpace(s) {
		case "t", "true", "T", "True", "TRUE", "1":
			return cell{i: 1}, nil
		}
		return cell{i: 0}, nil

	case ti.IsTime():
		n, err := sqltypes.ParseTime(s, ti)
		if err != nil {
			return cell{}, err
		}
		return cell{i: n}, nil

	case ti.IsInteger():
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return cv.fromInt(n)
		}
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return cell{}, fmt.Errorf("%w: invalid %s literal '%s' for column '%s'", ErrIllegalArguments, ti, s, cv.column)
	}

	return cv.fromFloat(f)
}

func (cv *converter) stringIndex(s string) (cell, error) {
	if cv.dict == nil {
		return cell{}, fmt.Errorf("%w: no dictionary for column '%s'", ErrUnsupportedOperation, cv.column)
	}

	id, ok := cv.dict.GetID(s)
	if !ok {
		return cell{pending: true, s: s}, nil
	}

	if !cv.fitsIndex(id) {
		return cell{}, cv.overflow(strconv.Quote(s))
	}

	return cell{i: int64(id)}, nil
}

// fitsIndex reports whether id is below the null sentinel narrow indexes
// reserve.
func (cv *converter) fitsIndex(id int32) bool {
	return cv.size >= 4 || int64(id) < cv.ti.NullInt()
}

// resolve adds the strings of pending cells to the dictionary and fills in
// their indexes. It runs once every row has converted, so a failed
// conversion never grows the dictionary. The range of the resolved cells is
// returned.
func (cv *converter) resolve(cells []cell) (stats, error) {
	st := newStats()

	var missing []string
	seen := make(map[string]bool)

	for _, c := range cells {
		if c.pending && !seen[c.s] {
			seen[c.s] = true
			missing = append(missing, c.s)
		}
	}

	if len(missing) == 0 {
		return st, nil
	}

	cv.dictMtx.Lock()
	defer cv.dictMtx.Unlock()

	ids := make(map[string]int32, len(missing))
	var fresh []string

	for _, s := range missing {
		if id, ok := cv.dict.GetID(s); ok {
			if !cv.fitsIndex(id) {
				return st, cv.overflow(strconv.Quote(s))
			}
			ids[s] = id
		} else {
			fresh = append(fresh, s)
		}
	}

	if cv.size < 4 {
		room := max(cv.ti.NullInt()-int64(cv.dict.Size()), 0)
		if int64(len(fresh)) > room {
			return st, cv.overflow(strconv.Quote(fresh[room]))
		}
	}

	for _, s := range fresh {
		id, err := cv.dict.GetOrAdd(s)
		if err != nil {
			return st, err
		}
		ids[s] = id
	}

	for i := range cells {
		if cells[i].pending {
			cells[i] = cell{i: int64(ids[cells[i].s])}
			st.add(cv.ti, cells[i])
		}
	}

	return st, nil
}
