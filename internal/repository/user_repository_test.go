package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doorman/internal/domain"
)

type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch target := d.(type) {
		case *string:
			*target = r.values[i].(string)
		case *time.Time:
			*target = r.values[i].(time.Time)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

type stubQuerier struct {
	row  stubRow
	sql  string
	args []any
}

func (q *stubQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestUserRepositoryCreate(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &stubQuerier{row: stubRow{values: []any{"5b0c1c1e-0000-4000-8000-000000000001", created, created}}}
	repo := NewUserRepository(db)

	user := &domain.User{Username: "jordan", PasswordHash: "$2a$hash"}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, "5b0c1c1e-0000-4000-8000-000000000001", user.ID)
	assert.Equal(t, created, user.CreatedAt)
	assert.True(t, strings.Contains(db.sql, "INSERT INTO users"))
	assert.Equal(t, []any{"jordan", "$2a$hash"}, db.args)
}

func TestUserRepositoryCreateErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantDup bool
	}{
		{name: "unique violation", err: &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}, wantDup: true},
		{name: "wrapped unique violation", err: errors.Join(errors.New("tx"), &pgconn.PgError{Code: "23505"}), wantDup: true},
		{name: "other constraint", err: &pgconn.PgError{Code: "23502"}},
		{name: "connection", err: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewUserRepository(&stubQuerier{row: stubRow{err: tt.err}})
			err := repo.Create(context.Background(), &domain.User{Username: "jordan"})
			require.Error(t, err)
			if tt.wantDup {
				assert.ErrorIs(t, err, ErrDuplicateUsername)
			} else {
				assert.NotErrorIs(t, err, ErrDuplicateUsername)
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestUserRepositoryGetByUsername(t *testing.T) {
	now := time.Now().UTC()
	db := &stubQuerier{row: stubRow{values: []any{"id-1", "jordan", "$2a$hash", now, now}}}
	user, err := NewUserRepository(db).GetByUsername(context.Background(), "jordan")
	require.NoError(t, err)
	assert.Equal(t, domain.User{ID: "id-1", Username: "jordan", PasswordHash: "$2a$hash", CreatedAt: now, UpdatedAt: now}, *user)
	assert.Equal(t, []any{"jordan"}, db.args)

	missing := &stubQuerier{row: stubRow{err: pgx.ErrNoRows}}
	user, err = NewUserRepository(missing).GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Nil(t, user)
}
