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

package catalog

import (
	"fmt"

	"github.com/codenotary/colcat/pkg/sqltypes"
)

// expandGeoColumn returns the physical columns backing a geometry column,
// in storage order. Non geometry columns expand to nothing.
func expandGeoColumn(cd ColumnDescriptor) ([]ColumnDescriptor, error) {
	ti := cd.ColumnType
	if !ti.IsGeometry() {
		return nil, nil
	}

	phy := func(suffix string, ti sqltypes.TypeInfo) ColumnDescriptor {
		ti.NotNull = true
		return ColumnDescriptor{
			ColumnName:  cd.ColumnName + suffix,
			ColumnType:  ti,
			IsGeoPhyCol: true,
		}
	}

	coords := sqltypes.ArrayOf(sqltypes.TinyInt)
	ringSizes := sqltypes.ArrayOf(sqltypes.Int)
	polyRings := sqltypes.ArrayOf(sqltypes.Int)
	bounds := sqltypes.FixedArrayOf(sqltypes.Double, 4)
	renderGroup := sqltypes.NewTypeInfo(sqltypes.Int)

	switch ti.Type {
	case sqltypes.Point:
		unit := int32(8)
		if ti.Compression == sqltypes.EncodingGeoInt && ti.CompParam == 32 {
			unit = 4
		} else if ti.Compression != sqltypes.EncodingNone {
			return nil, fmt.Errorf("%w: unsupported encoding of point column '%s'", ErrUnsupportedOperation, cd.ColumnName)
		}
		coords.Size = 2 * unit

		return []ColumnDescriptor{
			phy("_coords", coords),
		}, nil

	case sqltypes.LineString:
		return []ColumnDescriptor{
			phy("_coords", coords),
			phy("_bounds", bounds),
		}, nil

	case sqltypes.Polygon:
		return []ColumnDescriptor{
			phy("_coords", coords),
			phy("_ring_sizes", ringSizes),
			phy("_bounds", bounds),
			phy("_render_group", renderGroup),
		}, nil

	case sqltypes.MultiPolygon:
		return []ColumnDescriptor{
			phy("_coords", coords),
			phy("_ring_sizes", ringSizes),
			phy("_poly_rings", polyRings),
			phy("_bounds", bounds),
			phy("_render_group", renderGroup),
		}, nil
	}

	return nil, fmt.Errorf("%w: unrecognized geometry type %s", ErrUnsupportedOperation, ti.Type)
}

const (
	spiMagic1 = uint32(0xFFFFFFFF) / 4
	spiMagic2 = uint32(8)
)

// GeoPhysicalSpi encodes the sequential position of the i-th physical
// column of the geometry column col.
func GeoPhysicalSpi(col, i int) int {
	return int(spiMagic1) + int(spiMagic2)*(col+1) + i
}
