package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/normalize"
)

const (
	kakaoAuthURL  = "https://kauth.kakao.com/oauth/authorize"
	kakaoTokenURL = "https://kauth.kakao.com/oauth/token"
)

// Kakao entrega solo el access token; el perfil lo resuelve el normalizer con /v2/user/me.
type Kakao struct {
	cfg *oauth2.Config
	hc  *http.Client
}

func NewKakao(c Config) *Kakao {
	return &Kakao{cfg: c.oauth2(kakaoAuthURL, kakaoTokenURL, oauth2.AuthStyleInParams), hc: c.HTTPClient}
}

func (k *Kakao) Provider() types.Provider { return types.ProviderKakao }

func (k *Kakao) AuthCodeURL(state, verifier string) string {
	return authCodeURL(k.cfg, state, verifier)
}

func (k *Kakao) Exchange(ctx context.Context, code, verifier string) (normalize.RawResponse, error) {
	tok, err := exchange(withClient(ctx, k.hc), k.cfg, code, verifier)
	if err != nil {
		return nil, err
	}
	return normalize.RawResponse{"access_token": tok.AccessToken}, nil
}
