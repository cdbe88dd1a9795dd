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
	"strings"

	"github.com/codenotary/colcat/pkg/datamgr"
	"github.com/codenotary/colcat/pkg/dictionary"
	"github.com/codenotary/colcat/pkg/sqltypes"
)

const (
	RootUserID     = int32(0)
	SystemDBID     = int32(1)
	RowIDColumn    = "rowid"
	DeletedColumn  = "$deleted$"
	physicalTag    = "_shard_#"
	rowIDVirtualFn = "FRAG_ID * ROWS_PER_FRAG + FRAG_ROW_ID"
)

type UserMetadata struct {
	UserID     int32
	UserName   string
	PasswdHash string
	IsSuper    bool

	// IsReallySuper keeps the stored flag when IsSuper is lowered for a
	// session.
	IsReallySuper bool
}

type DBMetadata struct {
	DBID    int32
	DBName  string
	DBOwner int32
}

type FragmenterType int32

const InsertOrderFragmenter FragmenterType = 0

// TableDescriptor describes a logical table, one of its shards or a view.
// Descriptors are owned by the catalog that built them and must only be
// changed through it.
type TableDescriptor struct {
	TableID   int32
	TableName string
	UserID    int32
	NColumns  int32

	IsView  bool
	ViewSQL string

	Fragments    string
	FragType     FragmenterType
	MaxFragRows  int32
	MaxChunkSize int64
	FragPageSize int32
	MaxRows      int64
	Partitions   string

	ShardedColumnID int32
	Shard           int32
	NShards         int32
	KeyMetainfo     string

	PersistenceLevel datamgr.MemoryLevel
	HasDeletedCol    bool

	columnIDBySpi []int32
	fragmenter    Fragmenter
}

// IsTemporary reports whether the table lives in memory only.
func (td *TableDescriptor) IsTemporary() bool {
	return td.PersistenceLevel != datamgr.DiskLevel
}

// IsShard reports whether the table is a physical shard of a logical one.
func (td *TableDescriptor) IsShard() bool {
	return td.Shard >= 0
}

func (td *TableDescriptor) clone() TableDescriptor {
	c := *td
	c.columnIDBySpi = append([]int32(nil), td.columnIDBySpi...)
	c.fragmenter = nil
	return c
}

// NewTableDescriptor returns a disk resident, unsharded table descriptor
// with default fragmentation settings.
func NewTableDescriptor(name string) TableDescriptor {
	return TableDescriptor{
		TableName:        name,
		FragType:         InsertOrderFragmenter,
		MaxFragRows:      DefaultMaxFragRows,
		MaxChunkSize:     DefaultMaxChunkSize,
		FragPageSize:     DefaultFragPageSize,
		MaxRows:          DefaultMaxRows,
		Shard:            -1,
		KeyMetainfo:      "[]",
		PersistenceLevel: datamgr.DiskLevel,
	}
}

type ColumnDescriptor struct {
	TableID    int32
	ColumnID   int32
	ColumnName string
	ColumnType sqltypes.TypeInfo
	Chunks     string

	IsSystemCol  bool
	IsVirtualCol bool
	VirtualExpr  string
	IsDeletedCol bool
	IsGeoPhyCol  bool
}

func NewColumnDescriptor(name string, ti sqltypes.TypeInfo) ColumnDescriptor {
	return ColumnDescriptor{ColumnName: name, ColumnType: ti}
}

func (cd *ColumnDescriptor) usesDictionary() bool {
	return cd.ColumnType.Compression == sqltypes.EncodingDict && cd.ColumnType.CompParam > 0
}

// DictDescriptor describes a string dictionary. RefCount is the number of
// columns using it; the dictionary is dropped when it reaches zero.
type DictDescriptor struct {
	Ref        dictionary.Ref
	Name       string
	NBits      int32
	IsShared   bool
	RefCount   int32
	FolderPath string
	IsTemp     bool

	dict dictionary.StringDictionary
}

// StringDict returns the dictionary handle, nil until loaded.
func (dd *DictDescriptor) StringDict() dictionary.StringDictionary {
	return dd.dict
}

// SharedDictionaryDef declares that Column reuses the dictionary of
// ForeignTable.ForeignColumn.
type SharedDictionaryDef struct {
	Column        string
	ForeignTable  string
	ForeignColumn string
}

type FrontendViewDescriptor struct {
	ViewID       int32
	ViewName     string
	ViewState    string
	ImageHash    string
	UpdateTime   string
	UserID       int32
	ViewMetadata string
}

func dashboardKey(userID int32, name string) string {
	return itoa(userID) + ":" + name
}

type LinkDescriptor struct {
	LinkID       int32
	UserID       int32
	Link         string
	ViewState    string
	UpdateTime   string
	ViewMetadata string
}

// PhysicalTableName is the name of the shard-th (1-based) shard of a
// logical table.
func PhysicalTableName(logical string, shard int32) string {
	return logical + physicalTag + itoa(shard)
}

func upper(s string) string {
	return strings.ToUpper(s)
}
