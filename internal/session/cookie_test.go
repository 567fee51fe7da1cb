package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieConfig(t *testing.T) {
	cfg := CookieConfig{Name: "sg_session", SameSite: "Strict", Secure: true}

	ck := cfg.Cookie("abc", time.Hour)
	assert.Equal(t, "sg_session", ck.Name)
	assert.Equal(t, "abc", ck.Value)
	assert.Equal(t, 3600, ck.MaxAge)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Secure)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)

	del := cfg.Deletion()
	assert.Equal(t, -1, del.MaxAge)
	assert.Empty(t, del.Value)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, cfg.FromRequest(req))
	req.AddCookie(&http.Cookie{Name: "sg_session", Value: "abc"})
	assert.Equal(t, "abc", cfg.FromRequest(req))
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite(""))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite("weird"))
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("none"))
}
