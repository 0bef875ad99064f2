package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const defaultQueryTimeout = 5 * time.Second

// DB is the subset of pgxpool.Pool the Postgres driver relies on. Each call
// acquires a pooled connection and releases it before returning.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPostgres returns a Store backed by a PostgreSQL table.
func NewPostgres[E any](db DB, schema Schema[E]) (*Store[E], error) {
	return newStore(schema, func(schema Schema[E], key Field[E]) driver[E] {
		return &postgresDriver[E]{
			db:      db,
			schema:  schema,
			key:     key,
			timeout: defaultQueryTimeout,
		}
	})
}

type postgresDriver[E any] struct {
	db      DB
	schema  Schema[E]
	key     Field[E]
	timeout time.Duration
}

func (d *postgresDriver[E]) insert(ctx context.Context, sets []assignment[E]) (E, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sql, args := buildInsert(d.schema, sets)
	entity := d.schema.blank()
	if err := d.db.QueryRow(ctx, sql, args...).Scan(scanTargets(d.schema, &entity)...); err != nil {
		var zero E
		return zero, err
	}
	return entity, nil
}

func (d *postgresDriver[E]) find(ctx context.Context, q query[E]) ([]E, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sql, args := buildSelect(d.schema, d.key, q)
	rows, err := d.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]E, 0)
	for rows.Next() {
		entity := d.schema.blank()
		if err := rows.Scan(scanTargets(d.schema, &entity)...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.schema.Entity, err)
		}
		out = append(out, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *postgresDriver[E]) count(ctx context.Context, where []condition[E]) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sql, args := buildCount(d.schema, where)
	var n int64
	if err := d.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (d *postgresDriver[E]) update(ctx context.Context, where []condition[E], sets []assignment[E]) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sql, args := buildUpdate(d.schema, where, sets)
	tag, err := d.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (d *postgresDriver[E]) remove(ctx context.Context, where []condition[E]) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sql, args := buildDelete(d.schema, where)
	tag, err := d.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanTargets[E any](schema Schema[E], entity *E) []any {
	targets := make([]any, len(schema.Fields))
	for i, f := range schema.Fields {
		targets[i] = f.ptr(entity)
	}
	return targets
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func columnList[E any](schema Schema[E]) string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = ident(f.Name)
	}
	return strings.Join(cols, ", ")
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

func buildInsert[E any](schema Schema[E], sets []assignment[E]) (string, []any) {
	var b strings.Builder
	var params args

	fmt.Fprintf(&b, "INSERT INTO %s ", ident(schema.Table))
	if len(sets) == 0 {
		b.WriteString("DEFAULT VALUES")
	} else {
		cols := make([]string, len(sets))
		holders := make([]string, len(sets))
		for i, s := range sets {
			cols[i] = ident(s.field.Name)
			holders[i] = params.add(s.value)
		}
		fmt.Fprintf(&b, "(%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(holders, ", "))
	}
	fmt.Fprintf(&b, " RETURNING %s", columnList(schema))
	return b.String(), params
}

func buildSelect[E any](schema Schema[E], key Field[E], q query[E]) (string, []any) {
	var b strings.Builder
	var params args

	fmt.Fprintf(&b, "SELECT %s FROM %s", columnList(schema), ident(schema.Table))
	writeWhere(&b, &params, q.where)

	switch {
	case q.order == nil || q.order.field.Name == key.Name:
		dir := "ASC"
		if q.order != nil && q.order.desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", ident(key.Name), dir)
	default:
		dir := "ASC"
		if q.order.desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s, %s ASC", ident(q.order.field.Name), dir, ident(key.Name))
	}

	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s", params.add(q.limit))
	}
	if q.offset > 0 {
		fmt.Fprintf(&b, " OFFSET %s", params.add(q.offset))
	}
	return b.String(), params
}

func buildCount[E any](schema Schema[E], where []condition[E]) (string, []any) {
	var b strings.Builder
	var params args

	fmt.Fprintf(&b, "SELECT COUNT(*) FROM %s", ident(schema.Table))
	writeWhere(&b, &params, where)
	return b.String(), params
}

func buildUpdate[E any](schema Schema[E], where []condition[E], sets []assignment[E]) (string, []any) {
	var b strings.Builder
	var params args

	assigns := make([]string, len(sets))
	for i, s := range sets {
		assigns[i] = fmt.Sprintf("%s = %s", ident(s.field.Name), params.add(s.value))
	}
	fmt.Fprintf(&b, "UPDATE %s SET %s", ident(schema.Table), strings.Join(assigns, ", "))
	writeWhere(&b, &params, where)
	return b.String(), params
}

func buildDelete[E any](schema Schema[E], where []condition[E]) (string, []any) {
	var b strings.Builder
	var params args

	fmt.Fprintf(&b, "DELETE FROM %s", ident(schema.Table))
	writeWhere(&b, &params, where)
	return b.String(), params
}

func writeWhere[E any](b *strings.Builder, params *args, where []condition[E]) {
	if len(where) == 0 {
		return
	}
	clauses := make([]string, 0, len(where))
	for _, c := range where {
		col := ident(c.field.Name)
		if !c.in {
			if c.values[0] == nil {
				clauses = append(clauses, col+" IS NULL")
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s = %s", col, params.add(c.values[0])))
			continue
		}
		if len(c.values) == 0 {
			clauses = append(clauses, "FALSE")
			continue
		}
		// NULL never compares equal inside IN, so a nil member becomes IS NULL.
		holders := make([]string, 0, len(c.values))
		withNull := false
		for _, v := range c.values {
			if v == nil {
				withNull = true
				continue
			}
			holders = append(holders, params.add(v))
		}
		switch {
		case withNull && len(holders) == 0:
			clauses = append(clauses, col+" IS NULL")
		case withNull:
			clauses = append(clauses, fmt.Sprintf("(%s IS NULL OR %s IN (%s))", col, col, strings.Join(holders, ", ")))
		default:
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, strings.Join(holders, ", ")))
		}
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(clauses, " AND "))
}
