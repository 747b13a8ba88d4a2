package tokenguard

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEvent is one security-relevant outcome. Tokens and passwords never
// appear in events; TokenID is the jti, which is not a credential.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	TokenID   string            `json:"token_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// MarshalLogObject lets zap encode the event without reflection. Metadata
// keys are written in sorted order.
func (e AuditEvent) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("event_time", e.Timestamp)
	enc.AddBool("success", e.Success)
	for _, kv := range [...][2]string{
		{"subject", e.Subject},
		{"token_id", e.TokenID},
		{"ip", e.IP},
		{"error_code", e.Error},
	} {
		if kv[1] != "" {
			enc.AddString(kv[0], kv[1])
		}
	}
	if len(e.Metadata) == 0 {
		return nil
	}
	return enc.AddObject("metadata", zapcore.ObjectMarshalerFunc(func(m zapcore.ObjectEncoder) error {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.AddString(k, e.Metadata[k])
		}
		return nil
	}))
}

// AuditSink receives events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// AuditSinkFunc adapts a function to AuditSink.
type AuditSinkFunc func(ctx context.Context, event AuditEvent)

func (f AuditSinkFunc) Emit(ctx context.Context, event AuditEvent) { f(ctx, event) }

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel, mostly for tests.
type ChannelSink struct {
	ch chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan AuditEvent, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.ch
}

// JSONWriterSink writes one JSON object per line. Encoding errors drop the
// event.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		w = io.Discard
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}

// ZapSink logs events under the "audit" logger: successes at Info,
// failures at Warn, with the event type as the message.
type ZapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) *ZapSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &ZapSink{log: log.Named("audit")}
}

func (s *ZapSink) Emit(_ context.Context, event AuditEvent) {
	level := zapcore.WarnLevel
	if event.Success {
		level = zapcore.InfoLevel
	}
	if ce := s.log.Check(level, event.EventType); ce != nil {
		ce.Write(zap.Inline(event))
	}
}
