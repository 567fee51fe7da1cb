package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const devYAML = `
app:
  app_env: dev
  base_url: http://localhost:8080/
storage:
  driver: memory
directory:
  driver: memory
providers:
  kakao:
    enabled: true
    client_id: kakao-client
`

func TestLoad_DefaultsAndRedirects(t *testing.T) {
	c, err := Load(writeYAML(t, devYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "memory", c.Cache.Kind)
	assert.Equal(t, "sg_session", c.Session.CookieName)
	assert.Equal(t, 20, c.Rate.Login.Limit)
	assert.Equal(t, "http://localhost:8080/oauth/callback/kakao", c.Providers.Kakao.RedirectURL)
	assert.Equal(t, "http://localhost:8080/oauth/callback/twitter", c.Providers.Twitter.RedirectURL)
	assert.Contains(t, c.Providers.Kakao.Scopes, "account_email")
	assert.Equal(t, 200*time.Millisecond, Dur(c.Directory.RetryDelay, 0))
	assert.False(t, c.Session.Secure)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("CACHE_KIND", "redis")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RATE_ENABLED", "true")
	t.Setenv("RATE_LOGIN_LIMIT", "5")
	t.Setenv("KAKAO_SCOPES", "profile_nickname, account_email")
	t.Setenv("TWITTER_BEARER_TOKEN", "app-token")

	c, err := Load(writeYAML(t, devYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "redis", c.Cache.Kind)
	assert.Equal(t, "127.0.0.1:6379", c.Cache.Redis.Addr)
	assert.Equal(t, 3, c.Cache.Redis.DB)
	assert.True(t, c.Rate.Enabled)
	assert.Equal(t, 5, c.Rate.Login.Limit)
	assert.Equal(t, []string{"profile_nickname", "account_email"}, c.Providers.Kakao.Scopes)
	assert.Equal(t, "app-token", c.Providers.Twitter.BearerToken)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("STORAGE_DSN", "postgres://localhost/socialgate")
	t.Setenv("AWS_REGION", "ap-northeast-2")
	t.Setenv("COGNITO_USER_POOL_ID", "ap-northeast-2_abc")
	t.Setenv("COGNITO_APP_CLIENT_ID", "client")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, "cognito", c.Directory.Driver)
	assert.Equal(t, "ap-northeast-2", c.Directory.Cognito.Region)
}

func TestLoad_ProdForcesSecureCookie(t *testing.T) {
	c, err := Load(writeYAML(t, `
app:
  app_env: prod
storage:
  driver: memory
directory:
  driver: cognito
  cognito:
    region: ap-northeast-2
    user_pool_id: pool
    app_client_id: client
`))
	require.NoError(t, err)
	assert.True(t, c.Session.Secure)
	assert.True(t, c.IsProd())
}

func TestValidate_Errors(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": `
directory: {driver: memory}
`,
		"bad duration": `
storage: {driver: memory}
directory: {driver: memory}
session: {ttl: soon}
`,
		"redis without addr": `
storage: {driver: memory}
directory: {driver: memory}
cache: {kind: redis}
`,
		"memory directory in prod": `
app: {app_env: prod}
storage: {driver: memory}
directory: {driver: memory}
`,
		"cognito incomplete": `
storage: {driver: memory}
directory: {driver: cognito}
`,
		"enabled provider without client": `
storage: {driver: memory}
directory: {driver: memory}
providers:
  twitter: {enabled: true, redirect_url: "http://x/cb"}
`,
		"unknown samesite": `
storage: {driver: memory}
directory: {driver: memory}
session: {samesite: sometimes}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDur(t *testing.T) {
	assert.Equal(t, time.Minute, Dur("1m", time.Second))
	assert.Equal(t, time.Second, Dur("", time.Second))
	assert.Equal(t, time.Second, Dur("nope", time.Second))
}
