package store

import "fmt"

// Schema describes how an entity maps onto a single table.
type Schema[E any] struct {
	// Entity is a human readable name used in errors.
	Entity string
	Table  string
	// Key names the store-assigned int64 identity column.
	Key    string
	Fields []Field[E]
	// Unique lists fields whose values must not repeat across rows.
	Unique []string
	// New returns an entity carrying column defaults.
	New func() E
}

func (s Schema[E]) validate() error {
	if s.Table == "" {
		return fmt.Errorf("schema %q: table is required", s.Entity)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %q: duplicate field %q", s.Entity, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	if _, ok := seen[s.Key]; !ok {
		return fmt.Errorf("schema %q: key field %q is not declared", s.Entity, s.Key)
	}
	for _, name := range s.Unique {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("schema %q: unique field %q is not declared", s.Entity, name)
		}
	}
	return nil
}

func (s Schema[E]) blank() E {
	if s.New != nil {
		return s.New()
	}
	var e E
	return e
}

// Values is a raw field-name to value mapping used for writes.
type Values map[string]any

// Values lets a raw mapping be passed wherever an Input is accepted.
func (v Values) Values() Values {
	return v
}

// Input is a creation or update shape that reports only the fields it sets.
type Input interface {
	Values() Values
}

// Filters maps field names to a scalar (equality) or a list (membership).
type Filters map[string]any

// In marks a filter value as a membership test.
type In []any

// ListOptions controls paging, filtering and ordering of GetMulti.
type ListOptions struct {
	Skip    int
	Limit   int
	Filters Filters
	// OrderBy is a field name, prefixed with "-" for descending order.
	OrderBy string
}

// DefaultLimit applies when ListOptions.Limit is not positive.
const DefaultLimit = 100
