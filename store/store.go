// Package store defines the storage strategy contract for ledger objects.
//
// A Store persists whole JSON objects keyed by identifier. The write-back
// cache sitting above it decides when objects are written; the store only has
// to load and save them atomically per object.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors raised by store implementations.
var (
	ErrNotFound      = errors.New("store: object not found")
	ErrAlreadyExists = errors.New("store: object already exists")
	ErrUnsafeID      = errors.New("store: object identifiers may only contain letters and digits")
	ErrStoreClosed   = errors.New("store: store is closed")
)

// Object is a schemaless JSON record as persisted: property name to value.
// Balances inside it are decoded as float64 by encoding/json and re-snapped
// to the fixed-point grid at the ledger boundary.
type Object = map[string]any

// Store is the storage strategy interface.
type Store interface {
	// Init prepares the backing storage. Idempotent.
	Init(ctx context.Context) error

	// LoadObject fetches an object by ID. A missing object is ErrNotFound
	// when allowMissing is false, and (nil, nil) when true, so callers can
	// tell "doesn't exist yet" from "failed to read".
	LoadObject(ctx context.Context, id string, allowMissing bool) (Object, error)

	// StoreObject persists an object under the given ID, replacing any
	// previous version.
	StoreObject(ctx context.Context, id string, obj Object) error

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// BatchStore is an optional interface for backends that can persist a set of
// objects in one shot. The write-back cache prefers it during flushes.
type BatchStore interface {
	StoreBatch(ctx context.Context, objects map[string]Object) error
}

// CheckID validates an object identifier against the safe-identifier rule
// (^[A-Za-z0-9]+$). Anything else could escape the storage root.
func CheckID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty identifier", ErrUnsafeID)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			continue
		}
		return fmt.Errorf("%w: %q", ErrUnsafeID, id)
	}
	return nil
}

// Clone deep-copies an object through its JSON representation, so cached
// copies never alias stored ones.
func Clone(obj Object) Object {
	if obj == nil {
		return nil
	}
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return Clone(vv)
	case []any:
		out := make([]any, len(vv))
		for i, e := range vv {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return vv
	}
}
