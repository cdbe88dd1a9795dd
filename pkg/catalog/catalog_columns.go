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
	"context"
	"fmt"
	"sync"

	"github.com/codenotary/colcat/pkg/lock"
)

// columnChange is one staged column addition or removal. old is nil for
// additions, new for removals.
type columnChange struct {
	td  *TableDescriptor
	old *ColumnDescriptor
	new *ColumnDescriptor

	// dictionary created by the change, dropped on rollback
	newDict *DictDescriptor
}

// SchemaChange stages column additions and removals. The store writes run
// in one transaction and the catalog stays write locked until Commit or
// Rollback is called. Exactly one of them takes effect; later calls fail
// with ErrSchemaChangeDone.
type SchemaChange struct {
	cat *Catalog

	// carries the lock ownership taken by BeginSchemaChange
	ctx   context.Context
	guard *lock.Guard

	mtx     sync.Mutex
	changes []columnChange
	done    bool
}

func (c *Catalog) BeginSchemaChange(ctx context.Context) (*SchemaChange, error) {
	ctx, g := lock.WriteStore(ctx, c)

	err := c.store.Begin(ctx)
	if err != nil {
		g.Release()
		return nil, err
	}

	return &SchemaChange{cat: c, ctx: ctx, guard: g}, nil
}

// AddColumn adds cd to td and to every shard of td. The assigned column is
// returned; it is visible right away to the holder of the change but only
// reachable by sequential position once committed.
func (s *SchemaChange) AddColumn(td *TableDescriptor, cd ColumnDescriptor) (*ColumnDescriptor, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.done {
		return nil, ErrSchemaChangeDone
	}

	c := s.cat

	if td.IsShard() {
		return nil, fmt.Errorf("%w: '%s' is a shard", ErrIllegalArguments, td.TableName)
	}
	if td.IsView {
		return nil, fmt.Errorf("%w: '%s' is a view", ErrIllegalArguments, td.TableName)
	}
	if c.tableByIDLocked(td.TableID) != td {
		return nil, fmt.Errorf("%w: '%s'", ErrTableNotFound, td.TableName)
	}
	if cd.ColumnName == "" {
		return nil, fmt.Errorf("%w: empty column name", ErrIllegalArguments)
	}
	if upper(cd.ColumnName) == upper(RowIDColumn) || upper(cd.ColumnName) == upper(DeletedColumn) {
		return nil, fmt.Errorf("%w: column name '%s' is reserved", ErrIllegalArguments, cd.ColumnName)
	}
	if c.columnByNameLocked(td.TableID, cd.ColumnName) != nil {
		return nil, fmt.Errorf("%w: '%s' in table '%s'", ErrColumnAlreadyExists, cd.ColumnName, td.TableName)
	}

	cd.IsSystemCol = false
	cd.IsDeletedCol = false
	cd.IsGeoPhyCol = false

	phys, err := expandGeoColumn(cd)
	if err != nil {
		return nil, err
	}
	if len(phys) > 0 && td.IsTemporary() {
		return nil, fmt.Errorf("%w: geometry column '%s' in temporary table '%s'", ErrUnsupportedOperation, cd.ColumnName, td.TableName)
	}

	cols := append([]ColumnDescriptor{cd}, phys...)

	var (
		dd    *DictDescriptor
		added *ColumnDescriptor
	)

	for _, t := range append([]*TableDescriptor{td}, c.shardsOf(td)...) {
		nextID := int32(1)
		for _, ecd := range c.columnsOf(t.TableID) {
			if ecd.ColumnID >= nextID {
				nextID = ecd.ColumnID + 1
			}
		}

		for i, col := range cols {
			ncd := col
			ncd.TableID = t.TableID
			ncd.ColumnID = nextID + int32(i)

			if i == 0 && usesDictionaryType(ncd.ColumnType) {
				if dd == nil {
					dd, err = c.newDictionary(s.ctx, td, &ncd)
					if err != nil {
						return nil, err
					}
					c.dictByID[dd.Ref.DictID] = dd
					s.changes = append(s.changes, columnChange{td: td, newDict: dd})
				} else {
					ncd.ColumnType = added.ColumnType
				}
			}

			if !t.IsTemporary() {
				err = insertColumn(s.ctx, c.store, &ncd)
				if err != nil {
					return nil, err
				}
			}

			p := &ncd
			c.putColumn(p)
			t.NColumns++

			if i == 0 && t == td {
				added = p
			}

			s.changes = append(s.changes, columnChange{td: t, new: p})
		}

		if !t.IsTemporary() {
			_, err = c.store.Exec(s.ctx, "UPDATE tables SET ncolumns = ncolumns + ? WHERE tableid = ?", len(cols), t.TableID)
			if err != nil {
				return nil, err
			}
		}
	}

	return added, nil
}

// DropColumn removes a column, with its geometry physical columns, from td
// and every shard of td.
func (s *SchemaChange) DropColumn(td *TableDescriptor, name string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.done {
		return ErrSchemaChangeDone
	}

	c := s.cat

	if td.IsShard() {
		return fmt.Errorf("%w: '%s' is a shard", ErrIllegalArguments, td.TableName)
	}

	cd := c.columnByNameLocked(td.TableID, name)
	if cd == nil {
		return fmt.Errorf("%w: '%s' in table '%s'", ErrColumnNotFound, name, td.TableName)
	}
	if cd.IsSystemCol || cd.IsGeoPhyCol {
		return fmt.Errorf("%w: column '%s' cannot be dropped", ErrIllegalArguments, cd.ColumnName)
	}

	userCols := 0
	for _, ecd := range c.columnsOf(td.TableID) {
		if !ecd.IsSystemCol && !ecd.IsGeoPhyCol {
			userCols++
		}
	}
	if userCols <= 1 {
		return fmt.Errorf("%w: cannot drop the last column of '%s'", ErrIllegalArguments, td.TableName)
	}

	n := int32(1 + cd.ColumnType.PhysicalColumnCount())
	firstID := cd.ColumnID

	for _, t := range append([]*TableDescriptor{td}, c.shardsOf(td)...) {
		var dropped []*ColumnDescriptor
		for id := firstID; id < firstID+n; id++ {
			if tcd := c.columnByIDLocked(t.TableID, id); tcd != nil {
				dropped = append(dropped, tcd)
			}
		}

		if !t.IsTemporary() {
			_, err := c.store.Exec(s.ctx, "DELETE FROM columns WHERE tableid = ? AND columnid >= ? AND columnid < ?",
				t.TableID, firstID, firstID+n)
			if err != nil {
				return err
			}

			_, err = c.store.Exec(s.ctx, "UPDATE tables SET ncolumns = ncolumns - ? WHERE tableid = ?", len(dropped), t.TableID)
			if err != nil {
				return err
			}

			if t == td && cd.usesDictionary() {
				err = c.releaseDictionaryInStore(s.ctx, cd.ColumnType.CompParam)
				if err != nil {
					return err
				}
			}
		}

		for _, dcd := range dropped {
			c.removeColumn(dcd)
			s.changes = append(s.changes, columnChange{td: t, old: dcd})
		}
		t.NColumns -= int32(len(dropped))
	}

	return nil
}

// Commit makes the staged changes durable and visible.
func (s *SchemaChange) Commit() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.done {
		return ErrSchemaChangeDone
	}
	s.done = true

	defer s.guard.Release()

	c := s.cat

	err := c.store.Commit()
	if err != nil {
		s.rollBackward()
		return err
	}

	s.rollForward()

	return nil
}

// Rollback discards the staged changes.
func (s *SchemaChange) Rollback() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.done {
		return ErrSchemaChangeDone
	}
	s.done = true

	defer s.guard.Release()

	err := s.cat.store.Rollback()

	s.rollBackward()

	return err
}

func (s *SchemaChange) rollForward() {
	c := s.cat
	touched := make(map[string]bool)

	for _, ch := range s.changes {
		if ch.old != nil {
			removeSpi(ch.td, ch.old.ColumnID)

			if !ch.td.IsShard() && ch.old.usesDictionary() {
				c.releaseDictionary(ch.old.ColumnType.CompParam)
			}

			if !ch.td.IsShard() && !ch.old.IsGeoPhyCol {
				metricsDDL.WithLabelValues(c.db.DBName, "drop_column").Inc()
			}
		}

		if ch.new != nil {
			if !ch.new.IsGeoPhyCol {
				ch.td.columnIDBySpi = append(ch.td.columnIDBySpi, ch.new.ColumnID)
			}

			if !ch.td.IsShard() && !ch.new.IsGeoPhyCol {
				metricsDDL.WithLabelValues(c.db.DBName, "add_column").Inc()
			}
		}

		if !ch.td.IsShard() {
			touched[ch.td.TableName] = true
		}
	}

	for name := range touched {
		c.notify(s.ctx, name)
	}
}

func (s *SchemaChange) rollBackward() {
	c := s.cat

	for i := len(s.changes) - 1; i >= 0; i-- {
		ch := s.changes[i]

		if ch.new != nil {
			c.removeColumn(ch.new)
			ch.td.NColumns--
		}

		if ch.newDict != nil {
			c.dropDictionary(ch.newDict)
		}

		if ch.old != nil {
			c.putColumn(ch.old)
			ch.td.NColumns++
		}
	}

	s.changes = nil
}

func removeSpi(td *TableDescriptor, columnID int32) {
	for i, id := range td.columnIDBySpi {
		if id == columnID {
			td.columnIDBySpi = append(td.columnIDBySpi[:i], td.columnIDBySpi[i+1:]...)
			return
		}
	}
}

// AddColumn adds a single column in its own schema change.
func (c *Catalog) AddColumn(ctx context.Context, td *TableDescriptor, cd ColumnDescriptor) (*ColumnDescriptor, error) {
	sc, err := c.BeginSchemaChange(ctx)
	if err != nil {
		return nil, err
	}

	added, err := sc.AddColumn(td, cd)
	if err != nil {
		sc.Rollback()
		return nil, err
	}

	err = sc.Commit()
	if err != nil {
		return nil, err
	}

	c.log.Infof("column '%s' added to table '%s' of database '%s'", added.ColumnName, td.TableName, c.db.DBName)

	return added, nil
}

// DropColumn drops a single column in its own schema change.
func (c *Catalog) DropColumn(ctx context.Context, td *TableDescriptor, name string) error {
	sc, err := c.BeginSchemaChange(ctx)
	if err != nil {
		return err
	}

	err = sc.DropColumn(td, name)
	if err != nil {
		sc.Rollback()
		return err
	}

	err = sc.Commit()
	if err != nil {
		return err
	}

	c.log.Infof("column '%s' dropped from table '%s' of database '%s'", name, td.TableName, c.db.DBName)

	return nil
}
