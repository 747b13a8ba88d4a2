package tokenguard

import (
	"context"
	"errors"
	"time"
)

// Audit event types.
const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshRateLimited = "refresh_rate_limited"
	auditEventLogout             = "logout"
	auditEventLogoutFailure      = "logout_failure"
	auditEventTokenRejected      = "token_rejected"
	auditEventPurge              = "purge"
)

// AuditErrorCode is the stable, non-sensitive error label carried by
// failed AuditEvents.
type AuditErrorCode string

// auditCodes is checked in order; the first match labels the event.
var auditCodes = []struct {
	code AuditErrorCode
	errs []error
}{
	{"invalid_credentials", []error{ErrInvalidCredentials}},
	{"missing_token", []error{ErrMissingToken}},
	{"invalid_token", []error{ErrTokenMalformed, ErrTokenBadSignature}},
	{"expired", []error{ErrTokenExpired}},
	{"revoked", []error{ErrTokenRevoked}},
	{"invalid_binding", []error{ErrInvalidBinding}},
	{"ip_mismatch", []error{ErrIPMismatch}},
	{"user_not_found", []error{ErrUserNotFound}},
	{"rate_limited", []error{ErrLoginRateLimited, ErrRefreshRateLimited}},
	{"not_ready", []error{ErrEngineNotReady}},
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}
	for _, c := range auditCodes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.code
			}
		}
	}
	return "internal_error"
}

// auditRecord builds one event. record returns nil while auditing is off
// and every method is a no-op on nil.
type auditRecord struct {
	ctx   context.Context
	sink  *auditDispatcher
	event AuditEvent
}

func (e *Engine) record(ctx context.Context, eventType string) *auditRecord {
	if e == nil || e.audit == nil {
		return nil
	}
	return &auditRecord{
		ctx:  ctx,
		sink: e.audit,
		event: AuditEvent{
			Timestamp: e.now().UTC(),
			EventType: eventType,
			IP:        ClientIPFromContext(ctx),
			Success:   true,
		},
	}
}

func (r *auditRecord) token(subject, tokenID string) *auditRecord {
	if r != nil {
		r.event.Subject, r.event.TokenID = subject, tokenID
	}
	return r
}

// fail marks the event unsuccessful when err is non-nil.
func (r *auditRecord) fail(err error) *auditRecord {
	if r != nil && err != nil {
		r.event.Success = false
		r.event.Error = string(auditErrorCode(err))
	}
	return r
}

// meta adds key=value; empty values are skipped.
func (r *auditRecord) meta(key, value string) *auditRecord {
	if r == nil || value == "" {
		return r
	}
	if r.event.Metadata == nil {
		r.event.Metadata = make(map[string]string, 2)
	}
	r.event.Metadata[key] = value
	return r
}

func (r *auditRecord) expires(t time.Time) *auditRecord {
	if t.IsZero() {
		return r
	}
	return r.meta("expires_at", t.UTC().Format(time.RFC3339))
}

func (r *auditRecord) send() {
	if r != nil {
		r.sink.Emit(r.ctx, r.event)
	}
}
