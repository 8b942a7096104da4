package ledger

import (
	"fmt"

	"github.com/creditkit/creditkit/id"
)

// reserved properties present on every object regardless of schema.
var reservedFields = map[string]struct{}{
	"type":             {},
	"accountNumber":    {},
	"availableBalance": {},
	"lockedBalance":    {},
	"controllers":      {},
}

type typeDef struct {
	prefix id.Prefix
	fields map[string]struct{}
}

// Schema declares the object types a ledger manages: each type has a
// display-ID prefix and a set of allowed properties. Balances, the account
// number and the controller map exist on every type implicitly.
type Schema struct {
	types map[string]typeDef
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{types: make(map[string]typeDef)}
}

// Register declares an object type. Registering the same type twice panics:
// schemas are built once at startup and a duplicate is a configuration bug.
func (s *Schema) Register(name string, prefix id.Prefix, fields ...string) *Schema {
	if _, ok := s.types[name]; ok {
		panic(fmt.Sprintf("ledger: type %q registered twice", name))
	}
	def := typeDef{prefix: prefix, fields: make(map[string]struct{}, len(fields))}
	for _, f := range fields {
		def.fields[f] = struct{}{}
	}
	s.types[name] = def
	return s
}

// Types returns the registered type names.
func (s *Schema) Types() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	return names
}

func (s *Schema) lookup(name string) (typeDef, error) {
	def, ok := s.types[name]
	if !ok {
		return typeDef{}, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return def, nil
}

func (d typeDef) checkField(typ, field string) error {
	if _, ok := reservedFields[field]; ok {
		return nil
	}
	if _, ok := d.fields[field]; !ok {
		return fmt.Errorf("%w: %s on type %s", ErrInvalidProperty, field, typ)
	}
	return nil
}
