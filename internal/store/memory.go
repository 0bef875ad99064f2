package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// NewMemory returns a Store kept in process memory. Unique fields declared on
// the schema are enforced the way a database index would.
func NewMemory[E any](schema Schema[E]) (*Store[E], error) {
	return newStore(schema, func(schema Schema[E], key Field[E]) driver[E] {
		return &memoryDriver[E]{schema: schema, key: key, unique: uniqueFields(schema)}
	})
}

type memoryDriver[E any] struct {
	mu     sync.RWMutex
	schema Schema[E]
	key    Field[E]
	unique []Field[E]
	rows   []E
	nextID int64
}

func uniqueFields[E any](schema Schema[E]) []Field[E] {
	var out []Field[E]
	for _, name := range schema.Unique {
		for _, f := range schema.Fields {
			if f.Name == name {
				out = append(out, f)
			}
		}
	}
	return out
}

func (d *memoryDriver[E]) insert(ctx context.Context, sets []assignment[E]) (E, error) {
	if err := ctx.Err(); err != nil {
		var zero E
		return zero, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	entity := d.schema.blank()
	if err := apply(&entity, sets); err != nil {
		var zero E
		return zero, err
	}
	if err := d.checkUnique(&entity, -1); err != nil {
		var zero E
		return zero, err
	}

	d.nextID++
	if err := d.key.set(&entity, d.nextID); err != nil {
		var zero E
		return zero, err
	}
	d.rows = append(d.rows, entity)
	return entity, nil
}

func (d *memoryDriver[E]) find(ctx context.Context, q query[E]) ([]E, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	matched := d.match(q.where)
	d.mu.RUnlock()

	order := ordering[E]{field: d.key}
	if q.order != nil {
		order = *q.order
	}
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareValues(order.field.get(&matched[i]), order.field.get(&matched[j]))
		if c == 0 {
			return compareValues(d.key.get(&matched[i]), d.key.get(&matched[j])) < 0
		}
		if order.desc {
			return c > 0
		}
		return c < 0
	})

	if q.offset >= len(matched) {
		return []E{}, nil
	}
	matched = matched[q.offset:]
	if q.limit > 0 && q.limit < len(matched) {
		matched = matched[:q.limit]
	}
	return matched, nil
}

func (d *memoryDriver[E]) count(ctx context.Context, where []condition[E]) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.match(where))), nil
}

func (d *memoryDriver[E]) update(ctx context.Context, where []condition[E], sets []assignment[E]) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make([]E, len(d.rows))
	copy(next, d.rows)
	var changed []int
	for i := range next {
		if !matches(&next[i], where) {
			continue
		}
		if err := apply(&next[i], sets); err != nil {
			return 0, err
		}
		changed = append(changed, i)
	}
	for _, i := range changed {
		if err := d.checkUniqueIn(next, &next[i], i); err != nil {
			return 0, err
		}
	}
	d.rows = next
	return int64(len(changed)), nil
}

func (d *memoryDriver[E]) remove(ctx context.Context, where []condition[E]) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	kept := d.rows[:0]
	var removed int64
	for i := range d.rows {
		if matches(&d.rows[i], where) {
			removed++
			continue
		}
		kept = append(kept, d.rows[i])
	}
	d.rows = kept
	return removed, nil
}

func (d *memoryDriver[E]) match(where []condition[E]) []E {
	out := make([]E, 0, len(d.rows))
	for i := range d.rows {
		if matches(&d.rows[i], where) {
			out = append(out, d.rows[i])
		}
	}
	return out
}

// checkUnique rejects entity when a stored row, other than index skip, holds
// the same value in a unique field.
func (d *memoryDriver[E]) checkUnique(entity *E, skip int) error {
	return d.checkUniqueIn(d.rows, entity, skip)
}

// checkUniqueIn is checkUnique against rows, which may be a pending state
// where several rows changed at once.
func (d *memoryDriver[E]) checkUniqueIn(rows []E, entity *E, skip int) error {
	for _, f := range d.unique {
		value := f.get(entity)
		if value == nil {
			continue
		}
		for i := range rows {
			if i == skip {
				continue
			}
			if compareValues(f.get(&rows[i]), value) == 0 {
				return fmt.Errorf("%w: %s.%s", ErrUniqueViolation, d.schema.Table, f.Name)
			}
		}
	}
	return nil
}

func apply[E any](entity *E, sets []assignment[E]) error {
	for _, a := range sets {
		if err := a.field.set(entity, a.value); err != nil {
			return err
		}
	}
	return nil
}

func matches[E any](entity *E, where []condition[E]) bool {
	for _, c := range where {
		value := c.field.get(entity)
		hit := false
		for _, want := range c.values {
			if compareValues(value, want) == 0 {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// compareValues orders nil first, then values of the same kind naturally.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmpOrdered(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
