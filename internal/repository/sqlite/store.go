package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"user-admin/internal/domain"
	"user-admin/internal/repository"
)

// Table maps an entity type onto a sqlite table whose first column is an
// INTEGER PRIMARY KEY named id.
type Table[T repository.Entity[T]] struct {
	Name   string
	Schema string
	// Columns lists every column except id, in the order Values returns them.
	Columns []string
	Values  func(entity T) []any
	// Scan reads id followed by Columns.
	Scan func(row scanner) (T, error)
}

func (t Table[T]) selectSQL() string {
	return fmt.Sprintf("SELECT id, %s FROM %s", strings.Join(t.Columns, ", "), t.Name)
}

// Store is a repository.Store backed by one sqlite table.
type Store[T repository.Entity[T]] struct {
	db    dbtx
	table Table[T]
}

func NewStore[T repository.Entity[T]](db dbtx, table Table[T]) *Store[T] {
	return &Store[T]{db: db, table: table}
}

func (s *Store[T]) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.table.Schema); err != nil {
		return fmt.Errorf("create %s table: %w", s.table.Name, err)
	}
	return nil
}

// All streams rows while the sequence is ranged over. The pool holds a single
// connection, so the loop body must not issue statements of its own.
func (s *Store[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		rows, err := s.db.QueryContext(ctx, s.table.selectSQL()+" ORDER BY id ASC")
		if err != nil {
			yield(zero, domain.StorageFault("query "+s.table.Name, err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			item, err := s.table.Scan(rows)
			if err != nil {
				yield(zero, domain.StorageFault("scan "+s.table.Name, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, domain.StorageFault("iterate "+s.table.Name, err))
		}
	}
}

func (s *Store[T]) List(ctx context.Context) ([]T, error) {
	items := []T{}
	for item, err := range s.All(ctx) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store[T]) Get(ctx context.Context, id int64) (T, error) {
	row := s.db.QueryRowContext(ctx, s.table.selectSQL()+" WHERE id = ?", id)
	item, err := s.table.Scan(row)
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, domain.ErrNotFound
		}
		return zero, domain.StorageFault("scan "+s.table.Name, err)
	}
	return item, nil
}

func (s *Store[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := entity.Validate(); err != nil {
		return zero, err
	}
	if entity.EntityID() < 0 {
		return zero, domain.NewValidationError("id", "must be positive")
	}

	columns := s.table.Columns
	args := s.table.Values(entity)
	if entity.EntityID() > 0 {
		columns = append([]string{"id"}, columns...)
		args = append([]any{entity.EntityID()}, args...)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.table.Name, strings.Join(columns, ", "), placeholders,
	), args...)
	if err != nil {
		if entity.EntityID() > 0 && isUniqueViolation(err) {
			return zero, domain.NewValidationError("id", "is already taken")
		}
		return zero, domain.StorageFault("insert "+s.table.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return zero, domain.StorageFault(s.table.Name+" last insert id", err)
	}
	return entity.WithID(id), nil
}

func (s *Store[T]) Update(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := entity.Validate(); err != nil {
		return zero, err
	}

	assignments := make([]string, len(s.table.Columns))
	for i, c := range s.table.Columns {
		assignments[i] = c + " = ?"
	}
	args := append(s.table.Values(entity), entity.EntityID())

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"UPDATE %s SET %s WHERE id = ?",
		s.table.Name, strings.Join(assignments, ", "),
	), args...)
	if err != nil {
		return zero, domain.StorageFault("update "+s.table.Name, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return zero, domain.StorageFault(s.table.Name+" update rows affected", err)
	}
	if aff == 0 {
		return zero, domain.ErrNotFound
	}
	return entity, nil
}

func (s *Store[T]) Delete(ctx context.Context, entity T) error {
	_, err := s.DeleteByID(ctx, entity.EntityID())
	return err
}

func (s *Store[T]) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table.Name), id)
	if err != nil {
		return false, domain.StorageFault("delete "+s.table.Name, err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageFault(s.table.Name+" delete rows affected", err)
	}
	return aff > 0, nil
}
