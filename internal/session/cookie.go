package session

import (
	"net/http"
	"strings"
	"time"
)

// CookieConfig son los flags de la cookie de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	SameSite string
	Secure   bool
}

// parseSameSite acepta "", "lax", "strict", "none" (case-insensitive). Default: Lax.
func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Cookie construye la cookie de sesión con id y duración ttl.
func (c CookieConfig) Cookie(id string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  time.Now().UTC().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(c.SameSite),
	}
}

// Deletion devuelve una cookie que borra la sesión del browser.
// Mismo nombre/domain/samesite para que el user-agent la sobreescriba.
func (c CookieConfig) Deletion() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   c.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(c.SameSite),
	}
}

// FromRequest lee el id de sesión de la cookie. Vacío si no hay.
func (c CookieConfig) FromRequest(r *http.Request) string {
	ck, err := r.Cookie(c.Name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}
