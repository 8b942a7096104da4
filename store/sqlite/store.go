// Package sqlite implements the store contract on SQLite via Grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/creditkit/creditkit/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

type objectModel struct {
	grove.BaseModel `grove:"table:creditkit_objects"`

	ID        string    `grove:"id,pk"`
	Data      string    `grove:"data"`
	UpdatedAt time.Time `grove:"updated_at"`
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite object store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Init creates the objects table using the grove migration orchestrator.
func (s *Store) Init(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("store/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("store/sqlite: migration failed: %w", err)
	}
	return nil
}

// LoadObject fetches and decodes an object row.
func (s *Store) LoadObject(ctx context.Context, id string, allowMissing bool) (store.Object, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	m := new(objectModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			if allowMissing {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("store/sqlite: load %s: %w", id, err)
	}
	var obj store.Object
	if err := json.Unmarshal([]byte(m.Data), &obj); err != nil {
		return nil, fmt.Errorf("store/sqlite: decode %s: %w", id, err)
	}
	return obj, nil
}

// StoreObject upserts an object row.
func (s *Store) StoreObject(ctx context.Context, id string, obj store.Object) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("store/sqlite: encode %s: %w", id, err)
	}
	m := &objectModel{ID: id, Data: string(data), UpdatedAt: time.Now().UTC()}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store/sqlite: store %s: %w", id, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
