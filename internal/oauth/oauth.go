// Package oauth implementa el lado navegador de los logins sociales: URL de autorización,
// intercambio del code y armado del payload crudo que consume normalize.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/normalize"
)

var (
	// ErrProviderDisabled indica un proveedor sin flujo configurado.
	ErrProviderDisabled = errors.New("oauth: provider not enabled")
	// ErrExchange indica que el proveedor rechazó el code o el lookup del usuario.
	ErrExchange = errors.New("oauth: exchange failed")
)

// Flow es el flujo authorization-code de un proveedor.
type Flow interface {
	Provider() types.Provider
	// AuthCodeURL arma la URL de autorización. verifier vacío desactiva PKCE.
	AuthCodeURL(state, verifier string) string
	// Exchange canjea el code y retorna el payload crudo del proveedor.
	Exchange(ctx context.Context, code, verifier string) (normalize.RawResponse, error)
}

// Config son los datos comunes de un cliente OAuth2.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
	HTTPClient   *http.Client
}

func (c Config) oauth2(defAuth, defToken string, style oauth2.AuthStyle) *oauth2.Config {
	auth, token := c.AuthURL, c.TokenURL
	if auth == "" {
		auth = defAuth
	}
	if token == "" {
		token = defToken
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: auth, TokenURL: token, AuthStyle: style},
	}
}

func withClient(ctx context.Context, hc *http.Client) context.Context {
	if hc == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

func authCodeURL(cfg *oauth2.Config, state, verifier string) string {
	if verifier == "" {
		return cfg.AuthCodeURL(state)
	}
	return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

func exchange(ctx context.Context, cfg *oauth2.Config, code, verifier string) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExchange, err)
	}
	return tok, nil
}

// NewVerifier genera un code_verifier PKCE.
func NewVerifier() string { return oauth2.GenerateVerifier() }

// Registry agrupa los flujos habilitados.
type Registry struct {
	flows map[types.Provider]Flow
}

func NewRegistry(flows ...Flow) *Registry {
	r := &Registry{flows: make(map[types.Provider]Flow, len(flows))}
	for _, f := range flows {
		r.flows[f.Provider()] = f
	}
	return r
}

// Get retorna el flujo del proveedor o ErrProviderDisabled.
func (r *Registry) Get(p types.Provider) (Flow, error) {
	f, ok := r.flows[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, p)
	}
	return f, nil
}

// Providers lista los proveedores habilitados, ordenados.
func (r *Registry) Providers() []types.Provider {
	out := make([]types.Provider, 0, len(r.flows))
	for p := range r.flows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
