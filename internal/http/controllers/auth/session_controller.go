package auth

import (
	"errors"
	"net/http"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	dto "github.com/dropDatabas3/socialgate/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/provisioning"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// SessionController maneja /logout, /leave y /me.
type SessionController struct {
	prov     Provisioner
	sessions *session.Store
	cookie   session.CookieConfig
}

// current carga la sesión de la cookie. Escribe el error si no hay.
func (c *SessionController) current(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := c.sessions.Get(r.Context(), c.cookie.FromRequest(r))
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.From(r.Context()).Error("load session failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrServiceUnavailable)
			return nil, false
		}
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return nil, false
	}
	return sess, true
}

func (c *SessionController) finish(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.cookie.Deletion())
	if next := safeNext(r.URL.Query().Get("next")); next != "" {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logout maneja GET /logout. Idempotente: sin sesión igual limpia la cookie.
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if id := c.cookie.FromRequest(r); id != "" {
		if err := c.sessions.Delete(ctx, id); err != nil {
			logger.From(ctx).Warn("delete session failed", logger.Op("SessionController.Logout"), logger.Err(err))
		}
	}
	c.finish(w, r)
}

// Leave maneja POST|GET /leave: da de baja la cuenta en el directorio y el store local.
func (c *SessionController) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Leave"))

	sess, ok := c.current(w, r)
	if !ok {
		return
	}

	if err := c.prov.Unregister(ctx, sess.Provider, sess.ExternalUserID, sess.SubjectID); err != nil {
		log.Error("unregister failed",
			logger.Provider(string(sess.Provider)),
			logger.SubjectID(sess.SubjectID),
			logger.String("kind", provisioning.Kind(err)),
			logger.Err(err),
		)
		httperrors.WriteError(w, httperrors.ErrLeaveFailed.WithCause(err))
		return
	}
	_ = c.sessions.Delete(ctx, sess.ID)

	log.Info("account removed", logger.Provider(string(sess.Provider)), logger.SubjectID(sess.SubjectID))
	c.finish(w, r)
}

// Me maneja GET /me. Los claims se decodifican sin verificar la firma: el token
// fue recibido directamente del directorio y vive solo en la sesión server-side.
func (c *SessionController) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.current(w, r)
	if !ok {
		return
	}

	claims := jwtv5.MapClaims{}
	if sess.IDToken != "" {
		if _, _, err := jwtv5.NewParser().ParseUnverified(sess.IDToken, claims); err != nil {
			logger.From(r.Context()).Warn("id token decode failed", logger.Op("SessionController.Me"), logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("invalid session token"))
			return
		}
	}

	writeJSON(w, http.StatusOK, dto.MeResponse{
		SubjectID: sess.SubjectID,
		Provider:  string(sess.Provider),
		Claims:    claims,
	})
}
