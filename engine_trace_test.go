package tokenguard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestEngineRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	engine, err := New().
		WithConfig(testConfig()).
		WithUserProvider(newTestUserProvider(t)).
		WithTracerProvider(tp).
		Build()
	require.NoError(t, err)
	defer engine.Close()

	pair, err := engine.Login(ipContext("1.2.3.4"), "alice", testPassword)
	require.NoError(t, err)
	_, err = engine.Refresh(ipContext("5.6.7.8"), pair.RefreshToken)
	require.ErrorIs(t, err, ErrIPMismatch)
	require.NoError(t, engine.Logout(context.Background(), pair.AccessToken))
	_, err = engine.Validate(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenRevoked)
	_, err = engine.PurgeExpired(context.Background())
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 5)

	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{
		"tokenguard.Login",
		"tokenguard.Refresh",
		"tokenguard.Logout",
		"tokenguard.Validate",
		"tokenguard.PurgeExpired",
	}, names)

	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, codes.Error, spans[3].Status().Code)
	for _, ev := range spans[1].Events() {
		for _, attr := range ev.Attributes {
			assert.NotContains(t, attr.Value.Emit(), pair.RefreshToken)
		}
	}
}
