package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/internal/logger"
	"github.com/MrEthical07/tokenguard/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// DefaultCORSOrigin is the Vite dev server.
const DefaultCORSOrigin = "http://localhost:5173"

const readyTimeout = 2 * time.Second

// Authenticator is the engine surface the handlers use. *tokenguard.Engine
// satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (tokenguard.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (tokenguard.TokenPair, error)
	Logout(ctx context.Context, token string) error
	Validate(ctx context.Context, token string) (*tokenguard.Identity, error)
	Ping(ctx context.Context) error
}

// Options configures NewRouter. Zero values are usable.
type Options struct {
	CORSOrigins  []string
	TrustProxy   bool
	BearerPrefix string
	Logger       *logger.Logger
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

type handlers struct {
	auth     Authenticator
	prefix   string
	log      *logger.Logger
	validate *validator.Validate
}

// NewRouter wires every route and wraps the result in CORS handling.
func NewRouter(auth Authenticator, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Wrap(zap.NewNop())
	}
	prefix := opts.BearerPrefix
	if prefix == "" {
		prefix = middleware.DefaultBearerPrefix
	}
	h := &handlers{
		auth:     auth,
		prefix:   prefix,
		log:      log.Named("http"),
		validate: validator.New(),
	}

	router := mux.NewRouter()
	router.Use(requestID, clientIP(opts.TrustProxy), accessLog(h.log))

	// Logout inspects its own token so an expired or already revoked one
	// can still be logged out; it sits in front of the gate.
	router.HandleFunc("/api/auth/logout", h.logout).Methods(http.MethodPost)

	gated := router.NewRoute().Subrouter()
	gated.Use(middleware.Gate(auth, prefix))

	gated.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	gated.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	if opts.Metrics != nil {
		gated.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	api := gated.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/refresh-token", h.refresh).Methods(http.MethodPost)

	user := api.NewRoute().Subrouter()
	user.Use(middleware.RequireRoles("USER", "ADMIN"))
	user.HandleFunc("/protected-message", h.protectedMessage).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.RequireRoles("ADMIN"))
	admin.HandleFunc("/protected-message-admin", h.adminMessage).Methods(http.MethodGet)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{DefaultCORSOrigin}
	}
	co := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return co.Handler(router)
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := h.auth.Ping(ctx); err != nil {
		h.log.WithContext(r.Context()).Warn("readiness check failed", zap.Error(err))
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}
