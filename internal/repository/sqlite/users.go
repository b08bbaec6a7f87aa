package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"user-admin/internal/domain"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	forename TEXT NOT NULL,
	surname TEXT NOT NULL,
	email TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 0,
	date_of_birth TEXT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_is_active ON users(is_active);
`

// UsersTable maps domain.User onto the users table.
var UsersTable = Table[domain.User]{
	Name:    "users",
	Schema:  createUsersTable,
	Columns: []string{"forename", "surname", "email", "is_active", "date_of_birth"},
	Values: func(u domain.User) []any {
		return []any{u.Forename, u.Surname, u.Email, u.IsActive, nullTime(u.DateOfBirth)}
	},
	Scan: scanUser,
}

func NewUserStore(db dbtx) *Store[domain.User] {
	return NewStore(db, UsersTable)
}

func scanUser(row scanner) (domain.User, error) {
	var (
		user domain.User
		dob  sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Forename,
		&user.Surname,
		&user.Email,
		&user.IsActive,
		&dob,
	); err != nil {
		return domain.User{}, err
	}

	if dob.Valid && dob.String != "" {
		t, err := time.Parse(time.RFC3339Nano, dob.String)
		if err != nil {
			return domain.User{}, fmt.Errorf("parse date_of_birth: %w", err)
		}
		user.DateOfBirth = &t
	}
	return user, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
