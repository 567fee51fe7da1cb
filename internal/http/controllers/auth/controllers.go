// Package auth contiene los controllers de login social, logout, baja y /me.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/normalize"
	"github.com/dropDatabas3/socialgate/internal/oauth"
	"github.com/dropDatabas3/socialgate/internal/provisioning"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// Provisioner es lo que los controllers necesitan de provisioning.Service.
type Provisioner interface {
	ClassifyAndProvision(ctx context.Context, id types.CanonicalIdentity) (*provisioning.Outcome, error)
	Unregister(ctx context.Context, p types.Provider, externalUserID, subjectID string) error
}

// Deps agrupa las dependencias compartidas por los controllers.
type Deps struct {
	Flows       *oauth.Registry
	Normalizers *normalize.Registry
	Provisioner Provisioner
	Sessions    *session.Store
	Cookie      session.CookieConfig
}

// Controllers agrupa todos los controllers del dominio auth.
type Controllers struct {
	Login     *LoginController
	Callback  *CallbackController
	Session   *SessionController
	Providers *ProvidersController
}

// NewControllers crea el set completo de controllers.
func NewControllers(d Deps) *Controllers {
	return &Controllers{
		Login:     &LoginController{flows: d.Flows, sessions: d.Sessions},
		Callback:  &CallbackController{deps: d},
		Session:   &SessionController{prov: d.Provisioner, sessions: d.Sessions, cookie: d.Cookie},
		Providers: &ProvidersController{flows: d.Flows},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// safeNext acepta solo paths locales ("/x"), nunca URLs absolutas ni "//host".
func safeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return raw
}
