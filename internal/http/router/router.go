// Package router arma el chi.Router del gateway.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Auth   *authctrl.Controllers
	Health *healthctrl.HealthController

	// LoginLimiter limita /login/* y /oauth/callback/*. nil = sin límite.
	LoginLimiter rate.Limiter
	// Metrics nil desactiva las métricas HTTP.
	Metrics *mw.HTTPMetrics
	// MetricsHandler se monta en /metrics si no es nil.
	MetricsHandler http.Handler
}

// New construye el handler raíz.
//
// Orden global: RequestID → Logging → Recover → Metrics.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithRecover(),
		mw.WithMetrics(d.Metrics),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
	}
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	if a := d.Auth; a != nil {
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore(), mw.WithRateLimit(d.LoginLimiter, mw.IPPathRateKey))
			r.Get("/login/{provider}", a.Login.Start)
			r.Get("/oauth/callback/{provider}", a.Callback.Callback)
		})
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.Get("/logout", a.Session.Logout)
			r.Post("/leave", a.Session.Leave)
			r.Get("/me", a.Session.Me)
		})
		r.Get("/providers", a.Providers.List)
	}
	return r
}

// MetricsHandler expone los collectors de g en formato prometheus.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
