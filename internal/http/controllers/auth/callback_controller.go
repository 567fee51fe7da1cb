package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	dto "github.com/dropDatabas3/socialgate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/provisioning"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// CallbackController maneja GET /oauth/callback/{provider}.
type CallbackController struct {
	deps Deps
}

// Callback canjea el code, normaliza la identidad, la provisiona y abre la sesión.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	p, ok := types.ParseProvider(chi.URLParam(r, "provider"))
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnsupportedProvider)
		return
	}
	log = log.With(logger.Provider(string(p)))

	q := r.URL.Query()
	if e := strings.TrimSpace(q.Get("error")); e != "" {
		log.Info("authorization denied by provider", logger.String("error", e))
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("authorization denied"))
		return
	}
	state, code := strings.TrimSpace(q.Get("state")), strings.TrimSpace(q.Get("code"))
	if state == "" || code == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("state and code are required"))
		return
	}

	pending, err := c.deps.Sessions.TakePending(ctx, state)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			httperrors.WriteError(w, httperrors.ErrInvalidState)
			return
		}
		log.Error("load pending login failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}
	if pending.Provider != p {
		httperrors.WriteError(w, httperrors.ErrInvalidState.WithDetail("provider mismatch"))
		return
	}

	flow, err := c.deps.Flows.Get(p)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrUnsupportedProvider.WithDetail("provider not enabled"))
		return
	}

	raw, err := flow.Exchange(ctx, code, pending.CodeVerifier)
	if err != nil {
		log.Warn("oauth exchange failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithCause(err))
		return
	}

	id, err := c.deps.Normalizers.Normalize(ctx, p, raw)
	if err != nil {
		log.Warn("normalize failed", logger.String("kind", provisioning.Kind(err)), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithCause(err))
		return
	}

	out, err := c.deps.Provisioner.ClassifyAndProvision(ctx, id)
	if err != nil {
		log.Error("provisioning failed",
			logger.ExternalID(id.ExternalUserID),
			logger.String("kind", provisioning.Kind(err)),
			logger.Err(err),
		)
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithCause(err))
		return
	}

	sess := &session.Session{
		SubjectID:      out.SubjectID,
		Provider:       p,
		ExternalUserID: id.ExternalUserID,
		DisplayName:    id.DisplayName,
	}
	if out.Auth != nil {
		sess.IDToken = out.Auth.IDToken
		sess.AccessToken = out.Auth.AccessToken
		sess.RefreshToken = out.Auth.RefreshToken
		sess.TokenType = out.Auth.TokenType
		if out.Auth.ExpiresIn > 0 {
			sess.ExpiresAt = time.Now().UTC().Add(time.Duration(out.Auth.ExpiresIn) * time.Second)
		}
	}

	// Un login nuevo reemplaza la sesión previa del browser.
	if old := c.deps.Cookie.FromRequest(r); old != "" {
		_ = c.deps.Sessions.Delete(ctx, old)
	}
	sid, err := c.deps.Sessions.Create(ctx, sess)
	if err != nil {
		log.Error("create session failed", logger.SubjectID(out.SubjectID), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
		return
	}
	http.SetCookie(w, c.deps.Cookie.Cookie(sid, c.deps.Sessions.TTL()))

	log.Info("login completed",
		logger.SubjectID(out.SubjectID),
		logger.State(out.Path.String()),
	)

	if pending.Next != "" {
		http.Redirect(w, r, pending.Next, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, dto.LoginResponse{
		SubjectID: out.SubjectID,
		Provider:  string(p),
		Flow:      out.Path.String(),
		TokenType: sess.TokenType,
		ExpiresAt: sess.ExpiresAt,
	})
}
