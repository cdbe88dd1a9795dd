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
	"math"
	"sync"

	"github.com/codenotary/colcat/pkg/sqltypes"
)

// Datum holds a statistic for either an integral or a floating point column.
type Datum struct {
	IntVal    int64   `json:"i,omitempty"`
	DoubleVal float64 `json:"d,omitempty"`
}

type ChunkStats struct {
	Min      Datum `json:"min"`
	Max      Datum `json:"max"`
	HasNulls bool  `json:"nulls,omitempty"`
}

// ChunkMetadata summarizes one chunk.
type ChunkMetadata struct {
	Type        sqltypes.TypeInfo `json:"type"`
	NumBytes    int64             `json:"bytes"`
	NumElements int64             `json:"elems"`
	Stats       ChunkStats        `json:"stats"`
}

// Encoder tracks the statistics of a chunk as values are written. Stats
// only ever widen.
type Encoder struct {
	mu sync.Mutex

	ti       sqltypes.TypeInfo
	numElems int64
	numBytes int64

	minI, maxI int64
	minD, maxD float64
	hasNulls   bool
}

func NewEncoder(ti sqltypes.TypeInfo) *Encoder {
	return &Encoder{
		ti:   ti,
		minI: math.MaxInt64,
		maxI: math.MinInt64,
		minD: math.MaxFloat64,
		maxD: -math.MaxFloat64,
	}
}

func (e *Encoder) Type() sqltypes.TypeInfo {
	return e.ti
}

// UpdateStatsInt widens integral stats to cover [min, max]. An empty range
// (min > max) is ignored.
func (e *Encoder) UpdateStatsInt(min, max int64) {
	if min > max {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if min < e.minI {
		e.minI = min
	}
	if max > e.maxI {
		e.maxI = max
	}
}

// UpdateStatsFloat widens floating point stats to cover [min, max].
func (e *Encoder) UpdateStatsFloat(min, max float64) {
	if min > max {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if min < e.minD {
		e.minD = min
	}
	if max > e.maxD {
		e.maxD = max
	}
}

func (e *Encoder) SetHasNulls() {
	e.mu.Lock()
	e.hasNulls = true
	e.mu.Unlock()
}

// AddElements accounts for n appended values occupying bytes bytes.
func (e *Encoder) AddElements(n, bytes int64) {
	e.mu.Lock()
	e.numElems += n
	e.numBytes += bytes
	e.mu.Unlock()
}

func (e *Encoder) NumElements() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.numElems
}

// Metadata snapshots the chunk statistics.
func (e *Encoder) Metadata() ChunkMetadata {
	e.mu.Lock()
	defer e.mu.Unlock()

	md := ChunkMetadata{
		Type:        e.ti,
		NumBytes:    e.numBytes,
		NumElements: e.numElems,
	}
	md.Stats.HasNulls = e.hasNulls

	if e.ti.IsFP() {
		if e.minD <= e.maxD {
			md.Stats.Min.DoubleVal = e.minD
			md.Stats.Max.DoubleVal = e.maxD
		}
	} else if e.minI <= e.maxI {
		md.Stats.Min.IntVal = e.minI
		md.Stats.Max.IntVal = e.maxI
	}

	return md
}

// Reset restores the encoder state described by md.
func (e *Encoder) Reset(md ChunkMetadata) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ti = md.Type
	e.numElems = md.NumElements
	e.numBytes = md.NumBytes
	e.hasNulls = md.Stats.HasNulls

	e.minI, e.maxI = math.MaxInt64, math.MinInt64
	e.minD, e.maxD = math.MaxFloat64, -math.MaxFloat64

	if md.NumElements == 0 {
		return
	}

	if md.Type.IsFP() {
		e.minD, e.maxD = md.Stats.Min.DoubleVal, md.Stats.Max.DoubleVal
	} else {
		e.minI, e.maxI = md.Stats.Min.IntVal, md.Stats.Max.IntVal
	}
}
