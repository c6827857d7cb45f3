// Package httpapi binds the engine to an HTTP surface: a chi router
// with JSON request/response bodies and the status mapping downstream
// clients expect.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/rescuelink/authcore"
)

// API serves the engine over HTTP.
type API struct {
	engine *authcore.Engine
	log    *zap.Logger
}

func New(engine *authcore.Engine, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{engine: engine, log: log}
}

// Router builds the full route tree.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", a.handleLogin)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/revoke", a.handleRevoke)
		r.Get("/validate", a.handleValidate)
	})

	r.Route("/v1/account", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Post("/unlock/request", a.handleUnlockRequest)
		r.Post("/unlock/confirm", a.handleUnlockConfirm)
		r.Post("/verification/request", a.handleVerifyRequest)
		r.Post("/verification/confirm", a.handleVerifyConfirm)
		r.Post("/password-reset/request", a.handleResetRequest)
		r.Post("/password-reset/confirm", a.handleResetConfirm)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "endpoint not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
