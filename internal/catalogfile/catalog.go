// Package catalogfile reads entity catalogs and query descriptions from
// YAML files for the tombstone CLI.
package catalogfile

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/pthm/tombstone/pkg/entity"
)

var (
	// ErrInvalidCatalog is returned for catalog files that parse but do not
	// describe a usable catalog.
	ErrInvalidCatalog = errors.New("catalogfile: invalid catalog")

	// ErrInvalidQuery is returned for query files that do not describe a
	// statement.
	ErrInvalidQuery = errors.New("catalogfile: invalid query")
)

// Defaults fill entity fields a catalog file leaves unset.
type Defaults struct {
	DeletedAtColumn string
	IdentityColumn  string
}

// CatalogFile is the YAML layout of an entity catalog:
//
//	entities:
//	  - name: orders
//	    type: Order
//	  - name: notes
//	    identity_column: ""   # no identity column
//	  - name: countries
//	    soft_delete: false
type CatalogFile struct {
	Entities []EntitySpec `json:"entities"`
}

// EntitySpec describes one entity. Nil pointers take the Defaults.
type EntitySpec struct {
	Name            string  `json:"name"`
	Type            string  `json:"type,omitempty"`
	SoftDelete      *bool   `json:"soft_delete,omitempty"`
	DeletedAtColumn *string `json:"deleted_at_column,omitempty"`
	IdentityColumn  *string `json:"identity_column,omitempty"`
}

// Entity resolves the entry against defaults.
func (s EntitySpec) Entity(d Defaults) entity.Entity {
	e := entity.Entity{
		Name:            s.Name,
		TypeName:        s.Type,
		DeletedAtColumn: orDefault(s.DeletedAtColumn, d.DeletedAtColumn),
		IdentityColumn:  orDefault(s.IdentityColumn, d.IdentityColumn),
	}
	if s.SoftDelete != nil && !*s.SoftDelete {
		e.DeletedAtColumn = ""
	}
	return e
}

func orDefault(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

// ParseCatalog builds a catalog from YAML.
func ParseCatalog(data []byte, d Defaults) (*entity.Catalog, error) {
	var f CatalogFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if len(f.Entities) == 0 {
		return nil, fmt.Errorf("%w: no entities", ErrInvalidCatalog)
	}
	entities := make([]entity.Entity, len(f.Entities))
	for i, s := range f.Entities {
		entities[i] = s.Entity(d)
	}
	c, err := entity.NewCatalogFromEntities(entities...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	return c, nil
}

// LoadCatalog reads and parses a catalog file.
func LoadCatalog(path string, d Defaults) (*entity.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	c, err := ParseCatalog(data, d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
