package entity

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Catalog is the immutable set of known entities, keyed by table name and
// by Go type name.
type Catalog struct {
	entities []Entity
	byName   map[string]int
}

// NewCatalog builds a catalog from model values. Table names come from
// Model.TableName when implemented and non-empty, otherwise from
// DefaultTableName. Identity columns come from Identifiable, or from an
// exported ID field (or a field tagged db:"id").
func NewCatalog(models ...any) (*Catalog, error) {
	entities := make([]Entity, 0, len(models))
	for _, m := range models {
		entities = append(entities, Describe(m))
	}
	return NewCatalogFromEntities(entities...)
}

// MustCatalog is like NewCatalog but panics on error. Intended for package
// level catalogs built from a fixed list of models.
func MustCatalog(models ...any) *Catalog {
	c, err := NewCatalog(models...)
	if err != nil {
		panic(err)
	}
	return c
}

// Describe derives the Entity for a single model value.
func Describe(m any) Entity {
	e := Entity{TypeName: typeName(m)}
	if tm, ok := m.(Model); ok {
		e.Name = tm.TableName()
	}
	if e.Name == "" {
		e.Name = DefaultTableName(m)
	}
	if sd, ok := m.(SoftDeletable); ok {
		e.DeletedAtColumn = sd.DeletedAtColumn()
	}
	if id, ok := m.(Identifiable); ok {
		e.IdentityColumn = id.IdentityColumn()
	} else if hasIDField(m) {
		e.IdentityColumn = DefaultIdentityColumn
	}
	return e
}

// NewCatalogFromEntities builds a catalog from explicit descriptions, as
// loaded from a catalog file.
func NewCatalogFromEntities(entities ...Entity) (*Catalog, error) {
	c := &Catalog{
		entities: make([]Entity, 0, len(entities)),
		byName:   make(map[string]int, len(entities)*2),
	}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("%w (type %q)", ErrEmptyTableName, e.TypeName)
		}
		if err := validateColumn(e.Name, "deleted_at column", e.DeletedAtColumn); err != nil {
			return nil, err
		}
		if err := validateColumn(e.Name, "identity column", e.IdentityColumn); err != nil {
			return nil, err
		}
		idx := len(c.entities)
		for _, key := range []string{e.Name, e.TypeName} {
			if key == "" {
				continue
			}
			if prev, dup := c.byName[key]; dup && prev != idx {
				return nil, fmt.Errorf("%w: %q is claimed by both %q and %q",
					ErrDuplicateEntity, key, c.entities[prev].Name, e.Name)
			}
			c.byName[key] = idx
		}
		c.entities = append(c.entities, e)
	}
	return c, nil
}

func validateColumn(table, what, col string) error {
	if col == "" {
		return nil
	}
	if strings.TrimSpace(col) != col || strings.ContainsAny(col, ".,;()\"' ") {
		return fmt.Errorf("%w: %s %q on %q", ErrInvalidColumn, what, col, table)
	}
	return nil
}

// Lookup finds an entity by table name or Go type name.
func (c *Catalog) Lookup(name string) (Entity, bool) {
	if c == nil {
		return Entity{}, false
	}
	idx, ok := c.byName[name]
	if !ok {
		return Entity{}, false
	}
	return c.entities[idx], true
}

// LookupModel finds the entity describing a model value.
func (c *Catalog) LookupModel(m any) (Entity, bool) {
	if e, ok := c.Lookup(typeName(m)); ok {
		return e, true
	}
	return c.Lookup(Describe(m).Name)
}

// Entities returns all entities in registration order. The slice is a copy.
func (c *Catalog) Entities() []Entity {
	if c == nil {
		return nil
	}
	out := make([]Entity, len(c.entities))
	copy(out, c.entities)
	return out
}

// SoftDeletable returns the soft-deletable entities sorted by name.
func (c *Catalog) SoftDeletable() []Entity {
	var out []Entity
	for _, e := range c.Entities() {
		if e.SoftDeletable() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of entities.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entities)
}

func hasIDField(m any) bool {
	t := reflect.TypeOf(m)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("db"), ",")
		if tag == DefaultIdentityColumn || (tag == "" && f.Name == "ID") {
			return true
		}
	}
	return false
}
