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

// Package sqlstore wraps the relational store holding catalog rows.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codenotary/colcat/embedded"
	"github.com/codenotary/colcat/embedded/logger"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidOptions = fmt.Errorf("%w: invalid options", embedded.ErrIllegalArguments)
	ErrStoreFailure   = embedded.ErrStoreFailure
	ErrAlreadyClosed  = embedded.ErrAlreadyClosed
	ErrNoTransaction  = fmt.Errorf("%w: no transaction in progress", embedded.ErrIllegalState)
	ErrRolledBack     = fmt.Errorf("%w: transaction marked for rollback", embedded.ErrStoreFailure)
	ErrConstraint     = fmt.Errorf("%w: constraint violation", embedded.ErrAlreadyExists)
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Connector is one connection to one store file. Callers serialize access
// through the store lock of the owning catalog; the connector only guards
// its own transaction state.
type Connector struct {
	name string
	path string

	db *sql.DB

	mu           sync.Mutex
	tx           *sql.Tx
	depth        int
	rollbackOnly bool
	closed       bool

	log logger.Logger
}

// Exists reports whether the store file name exists under dir.
func Exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// Open opens, creating it if missing, the store file name under dir.
func Open(dir, name string, opts *Options) (*Connector, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, name)
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=%s",
		path, opts.busyTimeout.Milliseconds(), opts.journalMode)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	// a single connection keeps statements of a transaction and those
	// issued outside of it on the same session
	db.SetMaxOpenConns(1)

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	opts.logger.Debugf("store '%s' opened at '%s'", name, path)

	return &Connector{
		name: name,
		path: path,
		db:   db,
		log:  opts.logger,
	}, nil
}

func (c *Connector) Name() string {
	return c.name
}

func (c *Connector) Path() string {
	return c.path
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}

	if c.tx != nil {
		c.tx.Rollback()
		c.tx = nil
		c.depth = 0
	}

	c.closed = true

	return c.db.Close()
}

func (c *Connector) current() (execer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrAlreadyClosed
	}

	if c.tx != nil {
		return c.tx, nil
	}
	return c.db, nil
}

// Begin opens a transaction. Nested calls join the outermost one.
func (c *Connector) Begin(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrAlreadyClosed
	}

	if c.depth == 0 {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStoreFailure, err)
		}
		c.tx = tx
		c.rollbackOnly = false
	}

	c.depth++

	return nil
}

// TxDepth is the number of transactions currently open on the connector.
func (c *Connector) TxDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.depth
}

// Commit ends the innermost transaction. Only the outermost commit reaches
// the store; it fails if a nested transaction rolled back.
func (c *Connector) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.depth == 0 {
		return ErrNoTransaction
	}

	c.depth--
	if c.depth > 0 {
		return nil
	}

	tx := c.tx
	c.tx = nil

	if c.rollbackOnly {
		tx.Rollback()
		return ErrRolledBack
	}

	err := tx.Commit()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	return nil
}

// Rollback ends the innermost transaction, discarding the outermost one
// once it ends.
func (c *Connector) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.depth == 0 {
		return ErrNoTransaction
	}

	c.depth--
	if c.depth > 0 {
		c.rollbackOnly = true
		return nil
	}

	tx := c.tx
	c.tx = nil

	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%w: %w", ErrStoreFailure, err)
	}

	return nil
}

// InTx runs fn inside a transaction, rolling back and returning the error
// of fn when it fails.
func (c *Connector) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := c.Begin(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx)
	if err != nil {
		rerr := c.Rollback()
		if rerr != nil {
			c.log.Errorf("rollback of store '%s' failed: %v", c.name, rerr)
		}
		return err
	}

	return c.Commit()
}

func (c *Connector) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	e, err := c.current()
	if err != nil {
		return nil, err
	}

	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}

	return res, nil
}

// QueryRow runs a query expected to return at most one row.
func (c *Connector) QueryRow(ctx context.Context, query string, args ...interface{}) *Row {
	e, err := c.current()
	if err != nil {
		return &Row{err: err}
	}

	return &Row{row: e.QueryRowContext(ctx, query, args...)}
}

// Each calls fn for every row of the query. fn must not issue statements
// on the connector.
func (c *Connector) Each(ctx context.Context, query string, args []interface{}, fn func(rows *sql.Rows) error) error {
	e, err := c.current()
	if err != nil {
		return err
	}

	rows, err := e.QueryContext(ctx, query, args...)
	if err != nil {
		return wrapErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		err = fn(rows)
		if err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return wrapErr(err)
	}

	return nil
}

// Count runs a query returning a single integer.
func (c *Connector) Count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	err := c.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}

// TableExists reports whether a table is defined in the store.
func (c *Connector) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := c.Count(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ColumnNames returns the columns of a table in declaration order.
func (c *Connector) ColumnNames(ctx context.Context, table string) ([]string, error) {
	var cols []string

	err := c.Each(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table), nil, func(rows *sql.Rows) error {
		var (
			cid      int
			name     string
			typ      string
			notNull  bool
			defValue sql.NullString
			pk       int
		)
		err := rows.Scan(&cid, &name, &typ, &notNull, &defValue, &pk)
		if err != nil {
			return err
		}
		cols = append(cols, name)
		return nil
	})

	return cols, err
}

// HasColumn reports whether table defines column.
func (c *Connector) HasColumn(ctx context.Context, table, column string) (bool, error) {
	cols, err := c.ColumnNames(ctx, table)
	if err != nil {
		return false, err
	}

	for _, col := range cols {
		if col == column {
			return true, nil
		}
	}
	return false, nil
}

// Row defers errors to Scan like sql.Row.
type Row struct {
	row *sql.Row
	err error
}

// Scan returns sql.ErrNoRows when the query returned nothing.
func (r *Row) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}

	err := r.row.Scan(dest...)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return wrapErr(err)
	}
	return err
}

func wrapErr(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w: %w", ErrStoreFailure, ErrConstraint, err)
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}
