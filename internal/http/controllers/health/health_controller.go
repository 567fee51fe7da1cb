// Package health contiene el controller para health checks.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

// Check verifica un componente (DB, cache). nil = ok.
type Check func(ctx context.Context) error

// HealthResponse es el cuerpo de /healthz.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// HealthController maneja GET /healthz.
type HealthController struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewHealthController crea el controller con los checks nombrados.
func NewHealthController(checks map[string]Check) *HealthController {
	return &HealthController{checks: checks, timeout: 2 * time.Second}
}

// Healthz responde 200 si todos los componentes responden, 503 si alguno falla.
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Healthz"))

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "ok", Components: map[string]string{}}
	status := http.StatusOK
	for _, name := range names {
		if err := c.checks[name](ctx); err != nil {
			log.Warn("health check failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "up"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
