// Package entity describes persistent record types and which of them carry a
// soft-delete marker.
//
// Models opt into soft delete by embedding SoftDelete (or by implementing
// SoftDeletable themselves). A Catalog is built once at startup from the
// application's models and is read-only afterwards, so it can be shared by
// every goroutine that rewrites queries.
package entity

import (
	"reflect"
	"strings"
	"time"
)

// DefaultDeletedAtColumn is the marker column used by the SoftDelete mixin.
const DefaultDeletedAtColumn = "deleted_at"

// DefaultIdentityColumn is the identity column assumed by Catalog options
// when a model does not implement Identifiable.
const DefaultIdentityColumn = "id"

// Model is a record type mapped to a table.
type Model interface {
	TableName() string
}

// SoftDeletable is implemented by models whose rows are tombstoned instead of
// removed. The named column holds the deletion time and is NULL while the row
// is live.
type SoftDeletable interface {
	DeletedAtColumn() string
}

// Identifiable is implemented by models with an identity column. The
// identity is NULL only when an outer join produced no row for the model.
type Identifiable interface {
	IdentityColumn() string
}

// Tombstoned is implemented by loaded instances that know whether they are
// soft-deleted.
type Tombstoned interface {
	IsDeleted() bool
}

// SoftDelete is a mixin granting the soft-delete capability.
//
//	type Order struct {
//	    ID int64
//	    entity.SoftDelete
//	}
type SoftDelete struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// DeletedAtColumn implements SoftDeletable.
func (SoftDelete) DeletedAtColumn() string { return DefaultDeletedAtColumn }

// IsDeleted reports whether the record has been tombstoned.
func (s SoftDelete) IsDeleted() bool { return s.DeletedAt != nil }

// MarkDeleted records the deletion time. The time is stored in UTC.
func (s *SoftDelete) MarkDeleted(now time.Time) {
	t := now.UTC()
	s.DeletedAt = &t
}

// Restore clears the deletion marker.
func (s *SoftDelete) Restore() { s.DeletedAt = nil }

// Timestamps is a mixin for created/updated bookkeeping.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Touch sets UpdatedAt, and CreatedAt if it is still zero.
func (t *Timestamps) Touch(now time.Time) {
	now = now.UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// DefaultTableName derives a table name from a value's Go type: the type name
// lowercased, with pointers dereferenced. Order and *Order both map to
// "order".
func DefaultTableName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return strings.ToLower(t.Name())
}

// typeName is the unqualified Go type name of v, pointers dereferenced.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// Entity is the catalog's view of one model.
type Entity struct {
	// Name is the table name, the canonical key for the entity.
	Name string `json:"name"`
	// TypeName is the Go type name, accepted anywhere Name is.
	TypeName string `json:"type_name,omitempty"`
	// DeletedAtColumn is empty when the entity is not soft-deletable.
	DeletedAtColumn string `json:"deleted_at_column,omitempty"`
	// IdentityColumn is empty when the entity has no identity column.
	IdentityColumn string `json:"identity_column,omitempty"`
}

// SoftDeletable reports whether the entity carries a deletion marker.
func (e Entity) SoftDeletable() bool { return e.DeletedAtColumn != "" }

// HasIdentity reports whether the entity has an identity column.
func (e Entity) HasIdentity() bool { return e.IdentityColumn != "" }

// Matches reports whether name refers to this entity by table or type name.
func (e Entity) Matches(name string) bool {
	return name != "" && (name == e.Name || name == e.TypeName)
}
