package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryConfig tunes the in-process backends.
type MemoryConfig struct {
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
	// InlinePurgeEvery bounds how often IsRevoked/Lookup run a full purge
	// inline. Zero disables inline full purges; single expired entries are
	// still removed when looked up.
	InlinePurgeEvery time.Duration
}

func (c MemoryConfig) clock() func() time.Time {
	if c.Now == nil {
		return time.Now
	}
	return c.Now
}

// inlinePurge lets one caller per window run a full purge.
type inlinePurge struct {
	every time.Duration
	last  atomic.Int64
}

func (p *inlinePurge) due(now time.Time) bool {
	if p.every <= 0 {
		return false
	}
	last := p.last.Load()
	if now.UnixNano()-last < int64(p.every) {
		return false
	}
	return p.last.CompareAndSwap(last, now.UnixNano())
}

// MemoryBlacklist is a process-local [Blacklist].
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
	inline  inlinePurge
}

// NewMemoryBlacklist returns an empty process-local blacklist.
func NewMemoryBlacklist(cfg MemoryConfig) *MemoryBlacklist {
	b := &MemoryBlacklist{
		entries: make(map[string]time.Time),
		now:     cfg.clock(),
	}
	b.inline.every = cfg.InlinePurgeEvery
	b.inline.last.Store(b.now().UnixNano())
	return b
}

func (b *MemoryBlacklist) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	b.mu.Lock()
	b.entries[tokenID] = expiresAt
	b.mu.Unlock()
	return nil
}

func (b *MemoryBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	now := b.now()
	if b.inline.due(now) {
		_, _ = b.PurgeExpired(ctx, now)
	}

	b.mu.RLock()
	expiresAt, ok := b.entries[tokenID]
	b.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if expiresAt.After(now) {
		return true, nil
	}

	b.mu.Lock()
	// A concurrent Revoke may have extended the entry since the read above.
	if current, ok := b.entries[tokenID]; ok && !current.After(now) {
		delete(b.entries, tokenID)
	}
	b.mu.Unlock()
	return false, nil
}

func (b *MemoryBlacklist) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, expiresAt := range b.entries {
		if !expiresAt.After(now) {
			delete(b.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (b *MemoryBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// MemoryBindings is a process-local [Bindings].
type MemoryBindings struct {
	mu       sync.RWMutex
	bindings map[string]Binding
	now      func() time.Time
	inline   inlinePurge
}

// NewMemoryBindings returns an empty process-local binding store.
func NewMemoryBindings(cfg MemoryConfig) *MemoryBindings {
	s := &MemoryBindings{
		bindings: make(map[string]Binding),
		now:      cfg.clock(),
	}
	s.inline.every = cfg.InlinePurgeEvery
	s.inline.last.Store(s.now().UnixNano())
	return s
}

func (s *MemoryBindings) Bind(_ context.Context, tokenID, ip string, expiresAt time.Time) error {
	if tokenID == "" {
		return ErrEmptyTokenID
	}
	s.mu.Lock()
	s.bindings[tokenID] = Binding{IP: ip, ExpiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *MemoryBindings) Lookup(ctx context.Context, tokenID string) (Binding, error) {
	now := s.now()
	if s.inline.due(now) {
		_, _ = s.PurgeExpired(ctx, now)
	}

	s.mu.RLock()
	binding, ok := s.bindings[tokenID]
	s.mu.RUnlock()
	if !ok {
		return Binding{}, ErrBindingNotFound
	}
	if binding.ExpiresAt.After(now) {
		return binding, nil
	}

	s.mu.Lock()
	if current, ok := s.bindings[tokenID]; ok && !current.ExpiresAt.After(now) {
		delete(s.bindings, tokenID)
	}
	s.mu.Unlock()
	return Binding{}, ErrBindingNotFound
}

func (s *MemoryBindings) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, binding := range s.bindings {
		if !binding.ExpiresAt.After(now) {
			delete(s.bindings, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored bindings, expired or not.
func (s *MemoryBindings) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}
