package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/oauth"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// LoginController maneja GET /login/{provider}.
type LoginController struct {
	flows    *oauth.Registry
	sessions *session.Store
}

// Start guarda el state del login y redirige al proveedor.
func (c *LoginController) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("LoginController.Start"))

	p, ok := types.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnsupportedProvider)
		return
	}
	flow, err := c.flows.Get(p)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrUnsupportedProvider.WithDetail("provider not enabled"))
		return
	}

	state := uuid.NewString()
	verifier := oauth.NewVerifier()
	pending := session.Pending{
		Provider:     p,
		CodeVerifier: verifier,
		Next:         safeNext(r.URL.Query().Get("next")),
	}
	if err := c.sessions.SavePending(ctx, state, pending); err != nil {
		log.Error("save pending login failed", logger.Provider(string(p)), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}

	log.Debug("login started", logger.Provider(string(p)))
	http.Redirect(w, r, flow.AuthCodeURL(state, verifier), http.StatusFound)
}
