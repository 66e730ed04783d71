package softdelete

import (
	"context"
	"sort"

	"github.com/pthm/tombstone/pkg/entity"
)

// Options are the per-execution opt-outs consulted by the Interceptor.
// The zero value applies soft-delete filtering to every entity.
type Options struct {
	// IncludeDeleted disables filtering for the whole execution.
	IncludeDeleted bool
	// Excluded names entities, by table or type name, that are not filtered.
	Excluded map[string]struct{}
}

// ExecOption sets an opt-out on Options.
type ExecOption func(*Options)

// IncludeDeleted returns tombstoned rows of every entity.
func IncludeDeleted() ExecOption {
	return func(o *Options) {
		o.IncludeDeleted = true
	}
}

// ExcludeEntities returns tombstoned rows of the named entities only. Names
// may be table names or Go type names; unknown names are ignored.
func ExcludeEntities(names ...string) ExecOption {
	return func(o *Options) {
		if len(names) == 0 {
			return
		}
		excluded := make(map[string]struct{}, len(o.Excluded)+len(names))
		for n := range o.Excluded {
			excluded[n] = struct{}{}
		}
		for _, n := range names {
			excluded[n] = struct{}{}
		}
		o.Excluded = excluded
	}
}

// NewOptions applies opts to the zero Options.
func NewOptions(opts ...ExecOption) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// With returns a copy of o with opts applied. The receiver is not modified.
func (o Options) With(opts ...ExecOption) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Merge returns the union of o and other: filtering is disabled globally if
// either disables it, and the exclusion sets are combined.
func (o Options) Merge(other Options) Options {
	if other.IncludeDeleted {
		o.IncludeDeleted = true
	}
	if len(other.Excluded) == 0 {
		return o
	}
	names := make([]string, 0, len(other.Excluded))
	for n := range other.Excluded {
		names = append(names, n)
	}
	return o.With(ExcludeEntities(names...))
}

// IsExcluded reports whether filtering is disabled for e, either globally or
// because its table or type name was excluded.
func (o Options) IsExcluded(e entity.Entity) bool {
	if o.IncludeDeleted {
		return true
	}
	if len(o.Excluded) == 0 {
		return false
	}
	if _, ok := o.Excluded[e.Name]; ok {
		return true
	}
	if e.TypeName != "" {
		_, ok := o.Excluded[e.TypeName]
		return ok
	}
	return false
}

// ExcludedNames returns the excluded names sorted, for logging.
func (o Options) ExcludedNames() []string {
	names := make([]string, 0, len(o.Excluded))
	for n := range o.Excluded {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type optionsKey struct{}

// ContextWith returns a context carrying opts merged onto any options already
// present. Session executions started with the context honor them.
func ContextWith(ctx context.Context, opts ...ExecOption) context.Context {
	return context.WithValue(ctx, optionsKey{}, FromContext(ctx).With(opts...))
}

// FromContext returns the options stored by ContextWith, or the zero Options.
func FromContext(ctx context.Context) Options {
	if o, ok := ctx.Value(optionsKey{}).(Options); ok {
		return o
	}
	return Options{}
}
