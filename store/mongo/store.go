// Package mongo implements the store contract on MongoDB via Grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/creditkit/creditkit/store"
)

// colObjects is the collection holding ledger objects.
const colObjects = "creditkit_objects"

// compile-time interface check
var _ store.Store = (*Store)(nil)

type objectModel struct {
	grove.BaseModel `grove:"table:creditkit_objects"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Data      bson.M    `grove:"data"       bson:"data"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB object store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Init creates the object collection index. Idempotent; MongoDB creates the
// collection on first write anyway.
func (s *Store) Init(ctx context.Context) error {
	model := mongo.IndexModel{Keys: bson.D{{Key: "updated_at", Value: 1}}}
	if _, err := s.mdb.Collection(colObjects).Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("store/mongo: init indexes: %w", err)
	}
	return nil
}

// LoadObject fetches an object document.
func (s *Store) LoadObject(ctx context.Context, id string, allowMissing bool) (store.Object, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	var m objectModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": id}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			if allowMissing {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("store/mongo: load %s: %w", id, err)
	}
	return store.Object(m.Data), nil
}

// StoreObject upserts an object document.
func (s *Store) StoreObject(ctx context.Context, id string, obj store.Object) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	m := &objectModel{ID: id, Data: bson.M(obj), UpdatedAt: time.Now().UTC()}
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": id}).
		SetUpdate(bson.M{"$set": bson.M{
			"_id":        m.ID,
			"data":       m.Data,
			"updated_at": m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store/mongo: store %s: %w", id, err)
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

// isNoDocuments checks for the mongo no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
