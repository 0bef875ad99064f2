package store

import (
	"context"
	"sort"
	"strings"
)

type condition[E any] struct {
	field  Field[E]
	values []any
	in     bool
}

type assignment[E any] struct {
	field Field[E]
	value any
}

type ordering[E any] struct {
	field Field[E]
	desc  bool
}

type query[E any] struct {
	where  []condition[E]
	order  *ordering[E]
	offset int
	limit  int
}

// driver executes resolved operations against a backing store.
type driver[E any] interface {
	insert(ctx context.Context, sets []assignment[E]) (E, error)
	find(ctx context.Context, q query[E]) ([]E, error)
	count(ctx context.Context, where []condition[E]) (int64, error)
	update(ctx context.Context, where []condition[E], sets []assignment[E]) (int64, error)
	remove(ctx context.Context, where []condition[E]) (int64, error)
}

// Store provides CRUD and query operations for one entity type.
type Store[E any] struct {
	schema Schema[E]
	fields map[string]Field[E]
	key    Field[E]
	driver driver[E]
}

func newStore[E any](schema Schema[E], build func(Schema[E], Field[E]) driver[E]) (*Store[E], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}
	fields := make(map[string]Field[E], len(schema.Fields))
	for _, f := range schema.Fields {
		fields[f.Name] = f
	}
	key := fields[schema.Key]
	return &Store[E]{
		schema: schema,
		fields: fields,
		key:    key,
		driver: build(schema, key),
	}, nil
}

// Field looks up a declared field by name.
func (s *Store[E]) Field(name string) (Field[E], bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Entity returns the entity name used in errors.
func (s *Store[E]) Entity() string {
	return s.schema.Entity
}

// Create persists the fields set by in and returns the stored entity.
func (s *Store[E]) Create(ctx context.Context, in Input) (E, error) {
	sets, err := s.assignments(in)
	if err != nil {
		var zero E
		return zero, err
	}
	entity, err := s.driver.insert(ctx, sets)
	if err != nil {
		var zero E
		return zero, &PersistenceError{Entity: s.schema.Entity, Op: "create", Err: err}
	}
	return entity, nil
}

// Get returns the entity with the given id; found is false when absent.
func (s *Store[E]) Get(ctx context.Context, id int64) (E, bool, error) {
	return s.first(ctx, "get", s.key, id)
}

// GetByID is an alias of Get.
func (s *Store[E]) GetByID(ctx context.Context, id int64) (E, bool, error) {
	return s.Get(ctx, id)
}

// GetByField returns the first entity whose field equals value.
func (s *Store[E]) GetByField(ctx context.Context, name string, value any) (E, bool, error) {
	f, err := s.lookup(name)
	if err != nil {
		var zero E
		return zero, false, err
	}
	return s.first(ctx, "get by "+name, f, value)
}

// GetMulti returns a page of entities. Unknown filter and order fields are ignored.
func (s *Store[E]) GetMulti(ctx context.Context, opts ListOptions) ([]E, error) {
	where, err := s.conditions(opts.Filters)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := opts.Skip
	if offset < 0 {
		offset = 0
	}

	entities, err := s.driver.find(ctx, query[E]{
		where:  where,
		order:  s.ordering(opts.OrderBy),
		offset: offset,
		limit:  limit,
	})
	if err != nil {
		return nil, &PersistenceError{Entity: s.schema.Entity, Op: "list", Err: err}
	}
	return entities, nil
}

// Count returns how many entities match filters.
func (s *Store[E]) Count(ctx context.Context, filters Filters) (int64, error) {
	where, err := s.conditions(filters)
	if err != nil {
		return 0, err
	}
	n, err := s.driver.count(ctx, where)
	if err != nil {
		return 0, &PersistenceError{Entity: s.schema.Entity, Op: "count", Err: err}
	}
	return n, nil
}

// Update merges the fields set by in into the entity with the given id.
func (s *Store[E]) Update(ctx context.Context, id int64, in Input) (E, bool, error) {
	var zero E
	sets, err := s.assignments(in)
	if err != nil {
		return zero, false, err
	}
	where := []condition[E]{{field: s.key, values: []any{id}}}

	if len(sets) == 0 {
		return s.Get(ctx, id)
	}

	n, err := s.driver.update(ctx, where, sets)
	if err != nil {
		return zero, false, &PersistenceError{Entity: s.schema.Entity, Op: "update", Err: err}
	}
	if n == 0 {
		return zero, false, nil
	}
	return s.Get(ctx, id)
}

// UpdateBulk applies in to every entity matching filters and returns the
// number of affected entities. Entity hooks are not run.
func (s *Store[E]) UpdateBulk(ctx context.Context, filters Filters, in Input) (int64, error) {
	sets, err := s.assignments(in)
	if err != nil {
		return 0, err
	}
	where, err := s.conditions(filters)
	if err != nil {
		return 0, err
	}
	if len(sets) == 0 {
		return 0, nil
	}
	n, err := s.driver.update(ctx, where, sets)
	if err != nil {
		return 0, &PersistenceError{Entity: s.schema.Entity, Op: "bulk update", Err: err}
	}
	return n, nil
}

// Delete removes the entity with the given id and reports whether it existed.
func (s *Store[E]) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := s.driver.remove(ctx, []condition[E]{{field: s.key, values: []any{id}}})
	if err != nil {
		return false, &PersistenceError{Entity: s.schema.Entity, Op: "delete", Err: err}
	}
	return n > 0, nil
}

// DeleteBulk removes every entity matching filters.
func (s *Store[E]) DeleteBulk(ctx context.Context, filters Filters) (int64, error) {
	where, err := s.conditions(filters)
	if err != nil {
		return 0, err
	}
	n, err := s.driver.remove(ctx, where)
	if err != nil {
		return 0, &PersistenceError{Entity: s.schema.Entity, Op: "bulk delete", Err: err}
	}
	return n, nil
}

// Exists reports whether an entity with the given id exists.
func (s *Store[E]) Exists(ctx context.Context, id int64) (bool, error) {
	_, found, err := s.Get(ctx, id)
	return found, err
}

// ExistsByField reports whether any entity's field equals value.
func (s *Store[E]) ExistsByField(ctx context.Context, name string, value any) (bool, error) {
	_, found, err := s.GetByField(ctx, name, value)
	return found, err
}

func (s *Store[E]) first(ctx context.Context, op string, f Field[E], value any) (E, bool, error) {
	var zero E
	v, err := f.convert(value)
	if err != nil {
		return zero, false, &InvalidFieldError{Entity: s.schema.Entity, Field: f.Name, Reason: err.Error()}
	}
	entities, err := s.driver.find(ctx, query[E]{
		where: []condition[E]{{field: f, values: []any{v}}},
		limit: 1,
	})
	if err != nil {
		return zero, false, &PersistenceError{Entity: s.schema.Entity, Op: op, Err: err}
	}
	if len(entities) == 0 {
		return zero, false, nil
	}
	return entities[0], true, nil
}

func (s *Store[E]) lookup(name string) (Field[E], error) {
	f, ok := s.fields[name]
	if !ok {
		return Field[E]{}, &InvalidFieldError{Entity: s.schema.Entity, Field: name}
	}
	return f, nil
}

func (s *Store[E]) assignments(in Input) ([]assignment[E], error) {
	if in == nil {
		return nil, nil
	}
	values := in.Values()
	names := sortedKeys(values)

	sets := make([]assignment[E], 0, len(names))
	for _, name := range names {
		f, err := s.lookup(name)
		if err != nil {
			return nil, err
		}
		if name == s.schema.Key {
			return nil, &InvalidFieldError{Entity: s.schema.Entity, Field: name, Reason: "field is immutable"}
		}
		v, err := f.convert(values[name])
		if err != nil {
			return nil, &InvalidFieldError{Entity: s.schema.Entity, Field: name, Reason: err.Error()}
		}
		sets = append(sets, assignment[E]{field: f, value: v})
	}
	return sets, nil
}

func (s *Store[E]) conditions(filters Filters) ([]condition[E], error) {
	names := sortedKeys(filters)
	where := make([]condition[E], 0, len(names))
	for _, name := range names {
		f, ok := s.fields[name]
		if !ok {
			continue
		}
		raw, in := members(filters[name])
		if !in {
			raw = []any{filters[name]}
		}
		values := make([]any, 0, len(raw))
		for _, r := range raw {
			v, err := f.convert(r)
			if err != nil {
				return nil, &InvalidFieldError{Entity: s.schema.Entity, Field: name, Reason: err.Error()}
			}
			values = append(values, v)
		}
		where = append(where, condition[E]{field: f, values: values, in: in})
	}
	return where, nil
}

func (s *Store[E]) ordering(orderBy string) *ordering[E] {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return nil
	}
	desc := strings.HasPrefix(orderBy, "-")
	f, ok := s.fields[strings.TrimPrefix(orderBy, "-")]
	if !ok {
		return nil
	}
	return &ordering[E]{field: f, desc: desc}
}

func members(value any) ([]any, bool) {
	switch list := value.(type) {
	case In:
		return list, true
	case []any:
		return list, true
	case []string:
		return toAny(list), true
	case []int64:
		return toAny(list), true
	case []int:
		return toAny(list), true
	case []bool:
		return toAny(list), true
	default:
		return nil, false
	}
}

func toAny[T any](list []T) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
