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

package sqltypes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeInfoSizes(t *testing.T) {
	require.EqualValues(t, 4, NewTypeInfo(Int).Size)
	require.EqualValues(t, 8, NewTypeInfo(Timestamp).Size)
	require.EqualValues(t, 1, NewTypeInfo(Boolean).Size)
	require.EqualValues(t, -1, NewTypeInfo(Text).Size)

	require.EqualValues(t, 2, DecimalType(4, 2).Size)
	require.EqualValues(t, 4, DecimalType(9, 3).Size)
	require.EqualValues(t, 8, DecimalType(18, 3).Size)

	dict := DictText(16)
	require.True(t, dict.IsDictEncodedString())
	require.EqualValues(t, 2, dict.Size)
	require.True(t, dict.IsIntegral())

	require.EqualValues(t, 32, FixedArrayOf(Double, 4).Size)
}

func TestTypeInfoNulls(t *testing.T) {
	require.EqualValues(t, math.MinInt32, NewTypeInfo(Int).NullInt())
	require.EqualValues(t, math.MinInt8, NewTypeInfo(Boolean).NullInt())
	require.EqualValues(t, math.MaxUint16, DictText(16).NullInt())
	require.EqualValues(t, math.MinInt32, DictText(32).NullInt())
	require.Equal(t, float32(1.17549435e-38), NullFloat)
}

func TestGeometryPhysicalColumns(t *testing.T) {
	require.Equal(t, 1, NewTypeInfo(Point).PhysicalColumnCount())
	require.Equal(t, 2, NewTypeInfo(LineString).PhysicalColumnCount())
	require.Equal(t, 4, NewTypeInfo(Polygon).PhysicalColumnCount())
	require.Equal(t, 5, NewTypeInfo(MultiPolygon).PhysicalColumnCount())
	require.Equal(t, 0, NewTypeInfo(Int).PhysicalColumnCount())
}

func TestParseSQLType(t *testing.T) {
	typ, err := ParseSQLType("int")
	require.NoError(t, err)
	require.Equal(t, Int, typ)

	typ, err = ParseSQLType("multipolygon")
	require.NoError(t, err)
	require.Equal(t, MultiPolygon, typ)

	_, err = ParseSQLType("json")
	require.ErrorIs(t, err, ErrIllegalArguments)
}

func TestParseTime(t *testing.T) {
	v, err := ParseTime("1970-01-02 00:00:00", NewTypeInfo(Timestamp))
	require.NoError(t, err)
	require.EqualValues(t, 86400, v)

	v, err = ParseTime("01:00:05", NewTypeInfo(Time))
	require.NoError(t, err)
	require.EqualValues(t, 3605, v)

	v, err = ParseTime("1970-01-03", NewTypeInfo(Date))
	require.NoError(t, err)
	require.EqualValues(t, 2*86400, v)

	_, err = ParseTime("yesterday", NewTypeInfo(Timestamp))
	require.ErrorIs(t, err, ErrIllegalArguments)
}

func TestFormatValue(t *testing.T) {
	require.Equal(t, "42", FormatValue(Int64Value(42)))
	require.Equal(t, "1.5", FormatValue(DoubleValue(1.5)))
	require.Equal(t, "abc", FormatValue(StringValue("abc")))
	require.Equal(t, "NULL", FormatValue(NullValue{}))
}
