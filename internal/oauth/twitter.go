package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/normalize"
)

const (
	twitterAuthURL  = "https://twitter.com/i/oauth2/authorize"
	twitterTokenURL = "https://api.twitter.com/2/oauth2/token"
	twitterAPI      = "https://api.twitter.com"
)

// Twitter usa OAuth 2.0 con PKCE. El token no trae el usuario, así que se consulta
// /2/users/me y se arma el payload {user_id, screen_name, profile_image_url}.
type Twitter struct {
	cfg  *oauth2.Config
	base string
	hc   *http.Client
}

func NewTwitter(c Config) *Twitter {
	base := strings.TrimRight(c.APIBaseURL, "/")
	if base == "" {
		base = twitterAPI
	}
	return &Twitter{
		cfg:  c.oauth2(twitterAuthURL, twitterTokenURL, oauth2.AuthStyleInHeader),
		base: base,
		hc:   c.HTTPClient,
	}
}

func (t *Twitter) Provider() types.Provider { return types.ProviderTwitter }

func (t *Twitter) AuthCodeURL(state, verifier string) string {
	return authCodeURL(t.cfg, state, verifier)
}

type twitterMe struct {
	Data struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

func (t *Twitter) Exchange(ctx context.Context, code, verifier string) (normalize.RawResponse, error) {
	ctx = withClient(ctx, t.hc)
	tok, err := exchange(ctx, t.cfg, code, verifier)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.base+"/2/users/me?user.fields=profile_image_url", nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: users/me: %w", ErrExchange, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: users/me status %d", ErrExchange, resp.StatusCode)
	}

	var me twitterMe
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("%w: decode users/me: %w", ErrExchange, err)
	}
	return normalize.RawResponse{
		"user_id":           me.Data.ID,
		"screen_name":       me.Data.Username,
		"profile_image_url": me.Data.ProfileImageURL,
	}, nil
}
