package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
)

const defaultTwitterAPI = "https://api.twitter.com"

// TwitterConfig configures the Twitter normalizer.
type TwitterConfig struct {
	// BearerToken is the app-only token used for the avatar lookup.
	BearerToken string
	// APIBaseURL defaults to https://api.twitter.com.
	APIBaseURL string
	HTTPClient *http.Client
}

// Twitter normalizes the Twitter authorization result:
//
//	{"user_id": "342144389", "screen_name": "__kjw_", "profile_image_url": "..."}
//
// The avatar is not part of the token exchange, so it is looked up with one extra
// best-effort call; email is never available.
type Twitter struct {
	bearer string
	base   string
	http   *http.Client
}

// NewTwitter creates the Twitter normalizer.
func NewTwitter(cfg TwitterConfig) *Twitter {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = defaultTwitterAPI
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Twitter{bearer: cfg.BearerToken, base: base, http: hc}
}

func (t *Twitter) Provider() types.Provider { return types.ProviderTwitter }

func (t *Twitter) Normalize(ctx context.Context, raw RawResponse) (types.CanonicalIdentity, error) {
	id := types.CanonicalIdentity{
		ExternalUserID: stringField(raw, "user_id"),
		DisplayName:    stringField(raw, "screen_name"),
		AvatarURL:      stringField(raw, "profile_image_url"),
	}
	if id.ExternalUserID == "" || t.bearer == "" {
		return id, nil
	}

	avatar, err := t.fetchAvatar(ctx, id.ExternalUserID)
	if err != nil {
		logger.From(ctx).Warn("twitter avatar lookup failed",
			logger.Component("normalize.twitter"),
			logger.ExternalID(id.ExternalUserID),
			logger.Err(err),
		)
	} else if avatar != "" {
		id.AvatarURL = avatar
	}
	return id, nil
}

type twitterUserDoc struct {
	Data struct {
		ID              string `json:"id"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

func (t *Twitter) fetchAvatar(ctx context.Context, userID string) (string, error) {
	u := t.base + "/2/users/" + url.PathEscape(userID) + "?user.fields=profile_image_url"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.bearer)

	resp, err := t.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("users lookup status %d", resp.StatusCode)
	}

	var doc twitterUserDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("decode users lookup: %w", err)
	}
	return doc.Data.ProfileImageURL, nil
}
