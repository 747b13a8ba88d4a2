package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/tokenguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	identities map[string]*tokenguard.Identity
	calls      int
}

func (s *stubValidator) Validate(_ context.Context, token string) (*tokenguard.Identity, error) {
	s.calls++
	id, ok := s.identities[token]
	if !ok {
		return nil, tokenguard.ErrTokenRevoked
	}
	return id, nil
}

func newStub() *stubValidator {
	return &stubValidator{identities: map[string]*tokenguard.Identity{
		"user-token":  {Subject: "alice", Roles: []string{"USER"}},
		"admin-token": {Subject: "bob", Roles: []string{"ROLE_ADMIN"}},
	}}
}

func serve(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGate(t *testing.T) {
	var seen *tokenguard.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{name: "anonymous", header: "", wantStatus: http.StatusNoContent},
		{name: "valid bearer", header: "Bearer user-token", wantStatus: http.StatusNoContent, wantSubject: "alice"},
		{name: "wrong prefix", header: "Token user-token", wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "rejected token", header: "Bearer revoked", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			rec := serve(Gate(newStub(), "")(next), tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantSubject == "" {
				assert.Nil(t, seen)
				return
			}
			require.NotNil(t, seen)
			assert.Equal(t, tt.wantSubject, seen.Subject)
		})
	}
}

func TestGateSkipsValidatorWithoutHeader(t *testing.T) {
	stub := newStub()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	serve(Gate(stub, "Bearer ")(next), "")
	assert.Zero(t, stub.calls)
}

func TestRequireRoles(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	userOrAdmin := Gate(newStub(), "")(RequireRoles("USER", "ADMIN")(ok))
	adminOnly := Gate(newStub(), "")(RequireRoles("ADMIN")(ok))

	assert.Equal(t, http.StatusUnauthorized, serve(userOrAdmin, "").Code)
	assert.Equal(t, http.StatusOK, serve(userOrAdmin, "Bearer user-token").Code)
	assert.Equal(t, http.StatusOK, serve(userOrAdmin, "Bearer admin-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(adminOnly, "Bearer user-token").Code)
	assert.Equal(t, http.StatusOK, serve(adminOnly, "Bearer admin-token").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(adminOnly, "Bearer revoked").Code)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc", "")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("bearer abc", "Bearer ")
	assert.False(t, ok)

	token, ok = BearerToken("JWT abc", "JWT ")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)
}
