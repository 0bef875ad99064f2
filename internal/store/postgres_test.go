package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsert(t *testing.T) {
	schema := gadgetSchema()
	fields := fieldMap(schema)

	sql, args := buildInsert(schema, []assignment[gadget]{
		{field: fields["code"], value: "a1"},
		{field: fields["weight"], value: int64(2)},
	})
	assert.Equal(t,
		`INSERT INTO "gadgets" ("code", "weight") VALUES ($1, $2) RETURNING "id", "code", "label", "weight", "enabled"`,
		sql)
	assert.Equal(t, []any{"a1", int64(2)}, args)

	sql, args = buildInsert(schema, nil)
	assert.Equal(t, `INSERT INTO "gadgets" DEFAULT VALUES RETURNING "id", "code", "label", "weight", "enabled"`, sql)
	assert.Empty(t, args)
}

func TestBuildSelect(t *testing.T) {
	schema := gadgetSchema()
	fields := fieldMap(schema)

	sql, args := buildSelect(schema, fields["id"], query[gadget]{
		where: []condition[gadget]{
			{field: fields["enabled"], values: []any{true}},
			{field: fields["code"], values: []any{"a", "b"}, in: true},
			{field: fields["label"], values: []any{nil}},
		},
		order:  &ordering[gadget]{field: fields["weight"], desc: true},
		offset: 20,
		limit:  10,
	})
	assert.Equal(t,
		`SELECT "id", "code", "label", "weight", "enabled" FROM "gadgets" WHERE "enabled" = $1 AND "code" IN ($2, $3) AND "label" IS NULL ORDER BY "weight" DESC, "id" ASC LIMIT $4 OFFSET $5`,
		sql)
	assert.Equal(t, []any{true, "a", "b", 10, 20}, args)
}

func TestBuildSelectDefaultsToKeyOrder(t *testing.T) {
	schema := gadgetSchema()
	fields := fieldMap(schema)

	sql, args := buildSelect(schema, fields["id"], query[gadget]{limit: 1})
	assert.Equal(t, `SELECT "id", "code", "label", "weight", "enabled" FROM "gadgets" ORDER BY "id" ASC LIMIT $1`, sql)
	assert.Equal(t, []any{1}, args)
}

func TestBuildCountWithEmptyMembership(t *testing.T) {
	schema := gadgetSchema()
	fields := fieldMap(schema)

	sql, args := buildCount(schema, []condition[gadget]{{field: fields["code"], in: true}})
	assert.Equal(t, `SELECT COUNT(*) FROM "gadgets" WHERE FALSE`, sql)
	assert.Empty(t, args)
}

func TestBuildCountWithNullMembership(t *testing.T) {
	schema := gadgetSchema()
	fields := fieldMap(schema)

	sql, args := buildCount(schema, []condition[gadget]{{field: fields["label"], values: []any{"x", nil}, in: true}})
	assert.Equal(t, `SELECT COUNT(*) FROM "gadgets" WHERE ("label" IS NULL OR "label" IN ($1))`, sql)
	assert.Equal(t, []any{"x"}, args)

	sql, args = buildCount(schema, []condition[gadget]{{field: fields["label"], values: []any{nil}, in: true}})
	assert.Equal(t, `SELECT COUNT(*) FROM "gadgets" WHERE "label" IS NULL`, sql)
	assert.Empty(t, args)
}

func TestBuildUpdateAndDelete(t *testing.T) {
	schema := gadgetSchema()
	fields := fieldMap(schema)
	where := []condition[gadget]{{field: fields["id"], values: []any{int64(3)}}}

	sql, args := buildUpdate(schema, where, []assignment[gadget]{{field: fields["enabled"], value: false}})
	assert.Equal(t, `UPDATE "gadgets" SET "enabled" = $1 WHERE "id" = $2`, sql)
	assert.Equal(t, []any{false, int64(3)}, args)

	sql, args = buildDelete(schema, where)
	assert.Equal(t, `DELETE FROM "gadgets" WHERE "id" = $1`, sql)
	assert.Equal(t, []any{int64(3)}, args)
}

func fieldMap(schema Schema[gadget]) map[string]Field[gadget] {
	out := make(map[string]Field[gadget], len(schema.Fields))
	for _, f := range schema.Fields {
		out[f.Name] = f
	}
	return out
}

type recordingDB struct {
	sql         []string
	rowErr      error
	tag         string
	hadDeadline bool
}

func (db *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.record(ctx, sql)
	return pgconn.NewCommandTag(db.tag), nil
}

func (db *recordingDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.record(ctx, sql)
	return nil, errors.New("not supported")
}

func (db *recordingDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.record(ctx, sql)
	return gadgetRow{err: db.rowErr}
}

func (db *recordingDB) record(ctx context.Context, sql string) {
	_, db.hadDeadline = ctx.Deadline()
	db.sql = append(db.sql, sql)
}

type gadgetRow struct{ err error }

func (r gadgetRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = 7
	*dest[1].(*string) = "g-7"
	*dest[3].(*int64) = 3
	*dest[4].(*bool) = true
	return nil
}

func TestPostgresDriverCreate(t *testing.T) {
	db := &recordingDB{}
	s, err := NewPostgres(db, gadgetSchema())
	require.NoError(t, err)

	created, err := s.Create(context.Background(), Values{"code": "g-7", "weight": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.Equal(t, "g-7", created.Code)
	assert.True(t, db.hadDeadline, "statements run under a deadline")
	require.Len(t, db.sql, 1)
	assert.Contains(t, db.sql[0], `INSERT INTO "gadgets"`)
}

func TestPostgresDriverWrapsUniqueViolation(t *testing.T) {
	db := &recordingDB{rowErr: &pgconn.PgError{Code: "23505", ConstraintName: "gadgets_code_key"}}
	s, err := NewPostgres(db, gadgetSchema())
	require.NoError(t, err)

	_, err = s.Create(context.Background(), Values{"code": "dup"})
	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "create", persistErr.Op)
	assert.True(t, IsUniqueViolation(err))
}

func TestPostgresDriverBulkCounts(t *testing.T) {
	db := &recordingDB{tag: "UPDATE 3"}
	s, err := NewPostgres(db, gadgetSchema())
	require.NoError(t, err)

	n, err := s.UpdateBulk(context.Background(), Filters{"enabled": true}, Values{"weight": 0})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	db.tag = "DELETE 2"
	n, err = s.DeleteBulk(context.Background(), Filters{"code": In{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, db.sql[len(db.sql)-1], `DELETE FROM "gadgets"`)
}
