package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
)

const defaultKakaoAPI = "https://kapi.kakao.com"

// KakaoConfig configures the Kakao normalizer.
type KakaoConfig struct {
	// APIBaseURL defaults to https://kapi.kakao.com.
	APIBaseURL string
	HTTPClient *http.Client
}

// Kakao normalizes the Kakao authorization result.
//
// The token response only carries an access token, so the profile comes from
// POST /v2/user/me. When the raw payload already contains that document
// (keys "id" and "kakao_account") it is used as is.
type Kakao struct {
	base string
	http *http.Client
}

// NewKakao creates the Kakao normalizer.
func NewKakao(cfg KakaoConfig) *Kakao {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultKakaoAPI
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Kakao{base: base, http: hc}
}

func (k *Kakao) Provider() types.Provider { return types.ProviderKakao }

type kakaoUserDoc struct {
	ID           json.Number `json:"id"`
	KakaoAccount struct {
		Email   string `json:"email"`
		Profile struct {
			Nickname          string `json:"nickname"`
			ProfileImageURL   string `json:"profile_image_url"`
			ThumbnailImageURL string `json:"thumbnail_image_url"`
		} `json:"profile"`
	} `json:"kakao_account"`
	Properties struct {
		Nickname string `json:"nickname"`
	} `json:"properties"`
}

func (k *Kakao) Normalize(ctx context.Context, raw RawResponse) (types.CanonicalIdentity, error) {
	var doc kakaoUserDoc
	if _, ok := raw["kakao_account"]; ok && raw["id"] != nil {
		b, err := json.Marshal(raw)
		if err != nil {
			return types.CanonicalIdentity{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if err := decodeKakao(bytes.NewReader(b), &doc); err != nil {
			return types.CanonicalIdentity{}, err
		}
	} else {
		token := stringField(raw, "access_token")
		if token == "" {
			return types.CanonicalIdentity{}, fmt.Errorf("%w: missing access_token", ErrMalformedResponse)
		}
		if err := k.fetchProfile(ctx, token, &doc); err != nil {
			// /v2/user/me is the only source of the user id
			return types.CanonicalIdentity{}, fmt.Errorf("%w: kakao profile: %v", ErrMalformedResponse, err)
		}
	}

	p := doc.KakaoAccount.Profile
	name := p.Nickname
	if name == "" {
		name = doc.Properties.Nickname
	}
	avatar := p.ProfileImageURL
	if avatar == "" {
		avatar = p.ThumbnailImageURL
	}
	return types.CanonicalIdentity{
		ExternalUserID: doc.ID.String(),
		DisplayName:    strings.TrimSpace(name),
		AvatarURL:      avatar,
		Email:          strings.TrimSpace(doc.KakaoAccount.Email),
	}, nil
}

func (k *Kakao) fetchProfile(ctx context.Context, accessToken string, doc *kakaoUserDoc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.base+"/v2/user/me", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := k.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return decodeKakao(resp.Body, doc)
}

func decodeKakao(r io.Reader, doc *kakaoUserDoc) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
