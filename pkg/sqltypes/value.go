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

import "strconv"

// Value is a scalar right-hand value of an update. It is one of
// Int64Value, DoubleValue, FloatValue, StringValue or NullValue.
type Value interface {
	isValue()
}

type Int64Value int64

type DoubleValue float64

type FloatValue float32

type StringValue string

type NullValue struct{}

func (Int64Value) isValue()  {}
func (DoubleValue) isValue() {}
func (FloatValue) isValue()  {}
func (StringValue) isValue() {}
func (NullValue) isValue()   {}

// FormatValue renders v for messages.
func FormatValue(v Value) string {
	switch v := v.(type) {
	case Int64Value:
		return strconv.FormatInt(int64(v), 10)
	case DoubleValue:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case FloatValue:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case StringValue:
		return string(v)
	}
	return "NULL"
}
