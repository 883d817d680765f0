package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// TableSpec describes a record table.
type TableSpec struct {
	// Name is the table name.
	Name string

	// Columns are the writable columns, excluding id and timestamps.
	Columns []string

	// Filters maps query parameter names to the columns they filter on.
	// Parameters not listed are ignored.
	Filters map[string]string

	// OrderBy defaults to "id".
	OrderBy string
}

// Table is a CRUD repository for one record table. Rows map onto T by db
// tags; T must map every column of the table.
type Table[T any, PT interface {
	*T
	SetID(int64)
}] struct {
	db   *sqlx.DB
	spec TableSpec

	insertQuery string
	updateQuery string
}

// NewTable builds a repository for spec.
func NewTable[T any, PT interface {
	*T
	SetID(int64)
}](db *sqlx.DB, spec TableSpec) *Table[T, PT] {
	if spec.OrderBy == "" {
		spec.OrderBy = "id"
	}

	params := make([]string, len(spec.Columns))
	sets := make([]string, len(spec.Columns))
	for i, col := range spec.Columns {
		params[i] = ":" + col
		sets[i] = col + " = :" + col
	}

	return &Table[T, PT]{
		db:   db,
		spec: spec,
		insertQuery: fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
			spec.Name,
			strings.Join(spec.Columns, ", "),
			strings.Join(params, ", "),
		),
		updateQuery: fmt.Sprintf(
			"UPDATE %s SET %s, updated_at = NOW() WHERE id = :id RETURNING *",
			spec.Name,
			strings.Join(sets, ", "),
		),
	}
}

// Name returns the table name.
func (t *Table[T, PT]) Name() string {
	return t.spec.Name
}

func (t *Table[T, PT]) where(filters map[string]string) sq.Eq {
	eq := sq.Eq{}
	for param, value := range filters {
		col, ok := t.spec.Filters[param]
		if !ok {
			continue
		}
		eq[col] = value
	}
	return eq
}

// List returns one page of rows matching filters plus the total number of
// matching rows.
func (t *Table[T, PT]) List(ctx context.Context, filters map[string]string, offset, limit int) ([]T, int, error) {
	where := t.where(filters)

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(t.spec.Name).Where(where).ToSql()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := t.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, translate(err)
	}

	q := psql.Select("*").
		From(t.spec.Name).
		Where(where).
		OrderBy(t.spec.OrderBy).
		Offset(uint64(max(offset, 0)))
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows := make([]T, 0)
	if err := t.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, translate(err)
	}
	return rows, total, nil
}

func (t *Table[T, PT]) Get(ctx context.Context, id int64) (T, error) {
	var row T
	query, args, err := psql.Select("*").From(t.spec.Name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return row, err
	}
	if err := t.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, ErrNotFound
		}
		return row, translate(err)
	}
	return row, nil
}

func (t *Table[T, PT]) Create(ctx context.Context, item T) (T, error) {
	return namedReturning[T](ctx, t.db, t.insertQuery, item)
}

// Update overwrites the writable columns of row id.
func (t *Table[T, PT]) Update(ctx context.Context, id int64, item T) (T, error) {
	PT(&item).SetID(id)
	return namedReturning[T](ctx, t.db, t.updateQuery, item)
}

func (t *Table[T, PT]) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete(t.spec.Name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	result, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateDelete(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// namedReturning runs a named statement ending in RETURNING * and scans the
// single returned row.
func namedReturning[T any](ctx context.Context, ext sqlx.ExtContext, query string, arg any) (T, error) {
	var out T
	rows, err := sqlx.NamedQueryContext(ctx, ext, query, arg)
	if err != nil {
		return out, translate(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return out, translate(err)
		}
		return out, ErrNotFound
	}
	if err := rows.StructScan(&out); err != nil {
		return out, err
	}
	return out, rows.Err()
}
