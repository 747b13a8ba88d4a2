package userstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/tokenguard"
	"github.com/go-playground/validator/v10"
)

// SeedUser is the configuration form of a user record.
type SeedUser struct {
	Username     string   `mapstructure:"username" validate:"required"`
	PasswordHash string   `mapstructure:"password_hash" validate:"required"`
	Roles        []string `mapstructure:"roles" validate:"dive,required"`
}

// Memory is a process-local user provider, safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	users map[string]tokenguard.UserRecord
}

func NewMemory(users ...tokenguard.UserRecord) *Memory {
	m := &Memory{users: make(map[string]tokenguard.UserRecord, len(users))}
	for _, u := range users {
		m.Put(u)
	}
	return m
}

// FromSeed validates seeds and loads them. Duplicate usernames are rejected.
func FromSeed(seeds []SeedUser) (*Memory, error) {
	v := validator.New()
	m := NewMemory()
	for i, s := range seeds {
		if err := v.Struct(s); err != nil {
			return nil, fmt.Errorf("userstore: seed user %d: %w", i, err)
		}
		if _, exists := m.users[s.Username]; exists {
			return nil, fmt.Errorf("userstore: duplicate seed user %q", s.Username)
		}
		m.Put(tokenguard.UserRecord{
			Username:     s.Username,
			PasswordHash: s.PasswordHash,
			Roles:        s.Roles,
		})
	}
	return m, nil
}

// Put inserts or replaces a user.
func (m *Memory) Put(u tokenguard.UserRecord) {
	u.Roles = append([]string(nil), u.Roles...)
	m.mu.Lock()
	m.users[u.Username] = u
	m.mu.Unlock()
}

func (m *Memory) Delete(username string) {
	m.mu.Lock()
	delete(m.users, username)
	m.mu.Unlock()
}

func (m *Memory) FindUserByUsername(_ context.Context, username string) (tokenguard.UserRecord, error) {
	m.mu.RLock()
	u, ok := m.users[username]
	m.mu.RUnlock()
	if !ok {
		return tokenguard.UserRecord{}, tokenguard.ErrUserNotFound
	}
	u.Roles = append([]string(nil), u.Roles...)
	return u, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
