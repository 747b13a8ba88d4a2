package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/tokenguard"
	"github.com/jackc/pgx/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLookup(t *testing.T) {
	m := NewMemory(tokenguard.UserRecord{Username: "alice", PasswordHash: "h", Roles: []string{"USER"}})

	u, err := m.FindUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"USER"}, u.Roles)

	u.Roles[0] = "ADMIN"
	again, _ := m.FindUserByUsername(context.Background(), "alice")
	assert.Equal(t, "USER", again.Roles[0], "callers must not alias stored roles")

	m.Delete("alice")
	_, err = m.FindUserByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, tokenguard.ErrUserNotFound)
}

func TestFromSeed(t *testing.T) {
	m, err := FromSeed([]SeedUser{
		{Username: "alice", PasswordHash: "h1", Roles: []string{"USER"}},
		{Username: "bob", PasswordHash: "h2", Roles: []string{"USER", "ADMIN"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	_, err = FromSeed([]SeedUser{{Username: "alice"}})
	assert.Error(t, err, "missing hash must fail validation")

	_, err = FromSeed([]SeedUser{
		{Username: "alice", PasswordHash: "h"},
		{Username: "alice", PasswordHash: "h"},
	})
	assert.Error(t, err, "duplicates must be rejected")

	_, err = FromSeed([]SeedUser{{Username: "alice", PasswordHash: "h", Roles: []string{""}}})
	assert.Error(t, err, "blank roles must be rejected")
}

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.values[0].(string)
	*dest[1].(*string) = r.values[1].(string)
	*dest[2].(*[]string) = r.values[2].([]string)
	return nil
}

type fakeQuerier struct {
	row     fakeRow
	gotSQL  string
	gotArgs []interface{}
	pingErr error
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	q.gotSQL = sql
	q.gotArgs = args
	return q.row
}

func (q *fakeQuerier) Ping(context.Context) error { return q.pingErr }

func TestPostgresFindUser(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []interface{}{"alice", "$2a$10$hash", []string{"ADMIN", "USER"}}}}
	p := NewPostgres(q)

	u, err := p.FindUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, tokenguard.UserRecord{Username: "alice", PasswordHash: "$2a$10$hash", Roles: []string{"ADMIN", "USER"}}, u)
	assert.Equal(t, []interface{}{"alice"}, q.gotArgs)
	assert.Contains(t, q.gotSQL, "user_roles")
}

func TestPostgresErrors(t *testing.T) {
	p := NewPostgres(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})
	_, err := p.FindUserByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, tokenguard.ErrUserNotFound)

	boom := errors.New("connection reset")
	p = NewPostgres(&fakeQuerier{row: fakeRow{err: boom}, pingErr: boom})
	_, err = p.FindUserByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, tokenguard.ErrUserNotFound)
	assert.ErrorIs(t, p.Ping(context.Background()), boom)
}
