package tokenguard

import "context"

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. Login binds the
// refresh token to it and Refresh compares against it; the login throttle
// and audit events use it too.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the IP set by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
