package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Field binds a column name to a typed accessor on entity E.
type Field[E any] struct {
	Name string

	get     func(*E) any
	set     func(*E, any) error
	ptr     func(*E) any
	convert func(any) (any, error)
	parse   func(string) (any, error)
}

// Column declares a field whose Go value lives at ref(entity).
func Column[E, V any](name string, ref func(*E) *V) Field[E] {
	return Field[E]{
		Name: name,
		get: func(e *E) any {
			return plain(*ref(e))
		},
		set: func(e *E, value any) error {
			v, err := coerce[V](value)
			if err != nil {
				return err
			}
			*ref(e) = v
			return nil
		},
		ptr: func(e *E) any {
			return ref(e)
		},
		convert: func(value any) (any, error) {
			v, err := coerce[V](value)
			if err != nil {
				return nil, err
			}
			return plain(v), nil
		},
		parse: func(raw string) (any, error) {
			v, err := parseAs[V](raw)
			if err != nil {
				return nil, err
			}
			return plain(v), nil
		},
	}
}

// Value returns the field's value on e with pointers dereferenced.
func (f Field[E]) Value(e *E) any {
	return f.get(e)
}

// Parse converts a free-form string, typically a query parameter, into the field's type.
func (f Field[E]) Parse(raw string) (any, error) {
	v, err := f.parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.Name, err)
	}
	return v, nil
}

func coerce[V any](value any) (V, error) {
	if v, ok := value.(V); ok {
		return v, nil
	}

	var out V
	switch dst := any(&out).(type) {
	case *int64:
		n, ok := asInt64(value)
		if !ok {
			return out, fmt.Errorf("cannot use %T as int64", value)
		}
		*dst = n
	case *int:
		n, ok := asInt64(value)
		if !ok {
			return out, fmt.Errorf("cannot use %T as int", value)
		}
		*dst = int(n)
	case *float64:
		switch n := value.(type) {
		case float32:
			*dst = float64(n)
		default:
			i, ok := asInt64(value)
			if !ok {
				return out, fmt.Errorf("cannot use %T as float64", value)
			}
			*dst = float64(i)
		}
	case **string:
		switch s := value.(type) {
		case nil:
			*dst = nil
		case string:
			*dst = &s
		default:
			return out, fmt.Errorf("cannot use %T as *string", value)
		}
	case **int64:
		if value == nil {
			*dst = nil
			break
		}
		n, ok := asInt64(value)
		if !ok {
			return out, fmt.Errorf("cannot use %T as *int64", value)
		}
		*dst = &n
	case **bool:
		switch b := value.(type) {
		case nil:
			*dst = nil
		case bool:
			*dst = &b
		default:
			return out, fmt.Errorf("cannot use %T as *bool", value)
		}
	default:
		return out, fmt.Errorf("cannot use %T as %T", value, out)
	}
	return out, nil
}

func asInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

func parseAs[V any](raw string) (V, error) {
	var out V
	raw = strings.TrimSpace(raw)

	switch dst := any(&out).(type) {
	case *string:
		*dst = raw
	case **string:
		*dst = &raw
	case *int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return out, err
		}
		*dst = n
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return out, err
		}
		*dst = n
	case *float64:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return out, err
		}
		*dst = n
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return out, err
		}
		*dst = b
	default:
		return out, fmt.Errorf("unsupported field type %T", out)
	}
	return out, nil
}

// plain dereferences optional values so comparisons and SQL arguments see the
// underlying value or nil.
func plain(value any) any {
	switch v := value.(type) {
	case *string:
		if v == nil {
			return nil
		}
		return *v
	case *int64:
		if v == nil {
			return nil
		}
		return *v
	case *bool:
		if v == nil {
			return nil
		}
		return *v
	case int:
		return int64(v)
	default:
		return value
	}
}
