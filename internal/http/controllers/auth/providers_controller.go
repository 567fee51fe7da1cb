package auth

import (
	"net/http"
	"strings"

	dto "github.com/dropDatabas3/socialgate/internal/http/dto/auth"
	"github.com/dropDatabas3/socialgate/internal/oauth"
)

// ProvidersController maneja GET /providers.
type ProvidersController struct {
	flows *oauth.Registry
}

// List devuelve los proveedores habilitados y su URL de login.
func (c *ProvidersController) List(w http.ResponseWriter, r *http.Request) {
	resp := dto.ProvidersResponse{Providers: []dto.ProviderInfo{}}
	for _, p := range c.flows.Providers() {
		resp.Providers = append(resp.Providers, dto.ProviderInfo{
			Name:     string(p),
			LoginURL: "/login/" + strings.ToLower(string(p)),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
