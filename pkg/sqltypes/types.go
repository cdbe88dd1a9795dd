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

// Package sqltypes describes column types and the scalar values written
// into them.
package sqltypes

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/codenotary/colcat/embedded"
)

var ErrIllegalArguments = embedded.ErrIllegalArguments

// SQLType is the base type of a column. Values are persisted in catalog
// rows and must not be renumbered.
type SQLType int32

const (
	NullType SQLType = iota
	Boolean
	Char
	Varchar
	Numeric
	Decimal
	Int
	SmallInt
	Float
	Double
	Time
	Timestamp
	BigInt
	Text
	Date
	Array
	IntervalDayTime
	IntervalYearMonth
	Point
	LineString
	Polygon
	MultiPolygon
	TinyInt
)

var typeNames = map[SQLType]string{
	NullType:          "NULL",
	Boolean:           "BOOLEAN",
	Char:              "CHAR",
	Varchar:           "VARCHAR",
	Numeric:           "NUMERIC",
	Decimal:           "DECIMAL",
	Int:               "INTEGER",
	SmallInt:          "SMALLINT",
	Float:             "FLOAT",
	Double:            "DOUBLE",
	Time:              "TIME",
	Timestamp:         "TIMESTAMP",
	BigInt:            "BIGINT",
	Text:              "TEXT",
	Date:              "DATE",
	Array:             "ARRAY",
	IntervalDayTime:   "INTERVAL_DAY_TIME",
	IntervalYearMonth: "INTERVAL_YEAR_MONTH",
	Point:             "POINT",
	LineString:        "LINESTRING",
	Polygon:           "POLYGON",
	MultiPolygon:      "MULTIPOLYGON",
	TinyInt:           "TINYINT",
}

func (t SQLType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("SQLType(%d)", int32(t))
}

// ParseSQLType accepts the names produced by String plus a few aliases.
func ParseSQLType(s string) (SQLType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "INT":
		return Int, nil
	case "BOOL":
		return Boolean, nil
	case "STRING":
		return Text, nil
	}

	for t, n := range typeNames {
		if n == name && t != NullType {
			return t, nil
		}
	}

	return NullType, fmt.Errorf("%w: unknown type '%s'", ErrIllegalArguments, s)
}

// EncodingType is the compression applied to a column.
type EncodingType int32

const (
	EncodingNone EncodingType = iota
	EncodingFixed
	EncodingRL
	EncodingDiff
	EncodingDict
	EncodingSparse
	EncodingGeoInt
)

// TypeInfo fully describes the type of a column. For dictionary encoded
// strings CompParam holds the dictionary id once the column exists and Size
// the width in bytes of the stored index.
type TypeInfo struct {
	Type        SQLType
	SubType     SQLType
	Dimension   int32
	Scale       int32
	NotNull     bool
	Compression EncodingType
	CompParam   int32
	Size        int32
}

// NewTypeInfo returns the uncompressed type info of t.
func NewTypeInfo(t SQLType) TypeInfo {
	ti := TypeInfo{Type: t}
	ti.Size = ti.logicalSize()
	return ti
}

// DecimalType returns a DECIMAL(dimension, scale) type.
func DecimalType(dimension, scale int32) TypeInfo {
	ti := TypeInfo{Type: Decimal, Dimension: dimension, Scale: scale}
	ti.Size = ti.logicalSize()
	return ti
}

// DictText returns a dictionary encoded TEXT type whose index is bits wide.
func DictText(bits int32) TypeInfo {
	if bits == 0 {
		bits = 32
	}
	return TypeInfo{Type: Text, Compression: EncodingDict, CompParam: bits, Size: bits / 8}
}

// ArrayOf returns a variable length array of sub.
func ArrayOf(sub SQLType) TypeInfo {
	return TypeInfo{Type: Array, SubType: sub, Size: -1}
}

// FixedArrayOf returns an array of n elements of sub.
func FixedArrayOf(sub SQLType, n int32) TypeInfo {
	elem := NewTypeInfo(sub)
	return TypeInfo{Type: Array, SubType: sub, Size: elem.Size * n}
}

func (ti TypeInfo) logicalSize() int32 {
	switch ti.Type {
	case Boolean, TinyInt:
		return 1
	case SmallInt:
		return 2
	case Int, Float:
		return 4
	case BigInt, Double, Time, Timestamp, Date, IntervalDayTime, IntervalYearMonth:
		return 8
	case Numeric, Decimal:
		switch {
		case ti.Dimension > 9 || ti.Dimension == 0:
			return 8
		case ti.Dimension > 4:
			return 4
		default:
			return 2
		}
	case Text, Varchar, Char:
		if ti.Compression == EncodingDict {
			return ti.Size
		}
	}
	return -1
}

func (ti TypeInfo) String() string {
	switch {
	case ti.IsDecimal():
		return fmt.Sprintf("%s(%d,%d)", ti.Type, ti.Dimension, ti.Scale)
	case ti.Type == Array:
		return ti.SubType.String() + "[]"
	case ti.IsDictEncodedString():
		return fmt.Sprintf("%s ENCODING DICT(%d)", ti.Type, ti.Size*8)
	}
	return ti.Type.String()
}

func (ti TypeInfo) IsString() bool {
	return ti.Type == Text || ti.Type == Varchar || ti.Type == Char
}

func (ti TypeInfo) IsDictEncodedString() bool {
	return ti.IsString() && ti.Compression == EncodingDict
}

func (ti TypeInfo) IsStringArray() bool {
	return ti.Type == Array && (ti.SubType == Text || ti.SubType == Varchar || ti.SubType == Char)
}

func (ti TypeInfo) IsArray() bool {
	return ti.Type == Array
}

func (ti TypeInfo) IsGeometry() bool {
	return ti.Type == Point || ti.Type == LineString || ti.Type == Polygon || ti.Type == MultiPolygon
}

func (ti TypeInfo) IsDecimal() bool {
	return ti.Type == Decimal || ti.Type == Numeric
}

func (ti TypeInfo) IsInteger() bool {
	return ti.Type == TinyInt || ti.Type == SmallInt || ti.Type == Int || ti.Type == BigInt
}

func (ti TypeInfo) IsFP() bool {
	return ti.Type == Float || ti.Type == Double
}

func (ti TypeInfo) IsBoolean() bool {
	return ti.Type == Boolean
}

func (ti TypeInfo) IsTime() bool {
	return ti.Type == Time || ti.Type == Timestamp || ti.Type == Date
}

// IsIntegral is true for every type stored as a plain integer.
func (ti TypeInfo) IsIntegral() bool {
	return ti.IsInteger() || ti.IsDecimal() || ti.IsBoolean() || ti.IsTime() || ti.IsDictEncodedString()
}

// PhysicalColumnCount is the number of physical columns a geometry column
// expands to.
func (ti TypeInfo) PhysicalColumnCount() int {
	switch ti.Type {
	case Point:
		return 1
	case LineString:
		return 2
	case Polygon:
		return 4
	case MultiPolygon:
		return 5
	}
	return 0
}

// NullInt is the sentinel stored for a null in an integral column.
func (ti TypeInfo) NullInt() int64 {
	if ti.IsDictEncodedString() {
		switch ti.Size {
		case 1:
			return math.MaxUint8
		case 2:
			return math.MaxUint16
		}
		return math.MinInt32
	}

	switch ti.Size {
	case 1:
		return math.MinInt8
	case 2:
		return math.MinInt16
	case 4:
		return math.MinInt32
	}
	return math.MinInt64
}

var (
	NullFloat  = math.Float32frombits(0x00800000)
	NullDouble = math.Float64frombits(0x0010000000000000)
)

// Pow10 returns 10^n for small non-negative n.
func Pow10(n int32) int64 {
	p := int64(1)
	for i := int32(0); i < n; i++ {
		p *= 10
	}
	return p
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseTime converts a literal into the epoch based value stored by a time
// column: seconds since the epoch for dates and timestamps, seconds since
// midnight for times.
func ParseTime(s string, ti TypeInfo) (int64, error) {
	s = strings.TrimSpace(s)

	if ti.Type == Time {
		for _, layout := range []string{"15:04:05", "15:04"} {
			if t, err := time.Parse(layout, s); err == nil {
				return int64(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
			}
		}
		return 0, fmt.Errorf("%w: invalid time literal '%s'", ErrIllegalArguments, s)
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if ti.Type == Date {
				return t.UTC().Truncate(24 * time.Hour).Unix(), nil
			}
			return t.Unix(), nil
		}
	}

	return 0, fmt.Errorf("%w: invalid %s literal '%s'", ErrIllegalArguments, ti.Type, s)
}
