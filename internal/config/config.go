package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
		// URL pública del gateway; se usa para autogenerar redirect URLs.
		BaseURL string `yaml:"base_url"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Directory struct {
		// cognito | memory
		Driver string `yaml:"driver"`
		// Espera antes del reintento por falla transitoria.
		RetryDelay string `yaml:"retry_delay"`
		Cognito    struct {
			Region          string `yaml:"region"`
			UserPoolID      string `yaml:"user_pool_id"`
			AppClientID     string `yaml:"app_client_id"`
			AppClientSecret string `yaml:"app_client_secret"`
			PasswordSecret  string `yaml:"password_secret"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			Profile         string `yaml:"profile"`
			Endpoint        string `yaml:"endpoint"`
		} `yaml:"cognito"`
	} `yaml:"directory"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"`
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// Límite para /login/* y /oauth/callback/*
		Login struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	Providers struct {
		Kakao   OAuthProvider `yaml:"kakao"`
		Twitter OAuthProvider `yaml:"twitter"`
	} `yaml:"providers"`
}

// OAuthProvider configura un proveedor OAuth2.
type OAuthProvider struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	APIBaseURL   string   `yaml:"api_base_url"`
	// Solo Twitter: token app-only para el lookup de avatar.
	BearerToken string `yaml:"bearer_token"`
}

// Load lee el YAML (si path no es vacío), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	// Si RedirectURL vacío pero tenemos base_url ⇒ autogenerar
	if base := strings.TrimRight(strings.TrimSpace(c.App.BaseURL), "/"); base != "" {
		if strings.TrimSpace(c.Providers.Kakao.RedirectURL) == "" {
			c.Providers.Kakao.RedirectURL = base + "/oauth/callback/kakao"
		}
		if strings.TrimSpace(c.Providers.Twitter.RedirectURL) == "" {
			c.Providers.Twitter.RedirectURL = base + "/oauth/callback/twitter"
		}
	}

	// Guardia dura: en prod la cookie de sesión siempre es Secure.
	if c.IsProd() {
		c.Session.Secure = true
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "15s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Directory.Driver == "" {
		c.Directory.Driver = "cognito"
	}
	if c.Directory.RetryDelay == "" {
		c.Directory.RetryDelay = "200ms"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "socialgate:"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sg_session"
	}
	if c.Session.SameSite == "" {
		c.Session.SameSite = "Lax"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "12h"
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 20
	}
	if c.Rate.Login.Window == "" {
		c.Rate.Login.Window = "1m"
	}
	if len(c.Providers.Kakao.Scopes) == 0 {
		c.Providers.Kakao.Scopes = []string{"profile_nickname", "profile_image", "account_email"}
	}
	if len(c.Providers.Twitter.Scopes) == 0 {
		c.Providers.Twitter.Scopes = []string{"users.read", "tweet.read"}
	}
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

func setStr(dst *string, key string) {
	if v, ok := getEnvStr(key); ok {
		*dst = v
	}
}

func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	setStr(&c.App.BaseURL, "APP_BASE_URL")
	setStr(&c.Log.Level, "LOG_LEVEL")

	// SERVER
	setStr(&c.Server.Addr, "SERVER_ADDR")
	setStr(&c.Server.ReadTimeout, "SERVER_READ_TIMEOUT")
	setStr(&c.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	setStr(&c.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT")

	// STORAGE
	setStr(&c.Storage.Driver, "STORAGE_DRIVER")
	setStr(&c.Storage.DSN, "STORAGE_DSN")
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	setStr(&c.Storage.Postgres.ConnMaxLifetime, "POSTGRES_CONN_MAX_LIFETIME")

	// DIRECTORY
	setStr(&c.Directory.Driver, "DIRECTORY_DRIVER")
	setStr(&c.Directory.RetryDelay, "DIRECTORY_RETRY_DELAY")
	cg := &c.Directory.Cognito
	setStr(&cg.Region, "AWS_REGION")
	setStr(&cg.Region, "COGNITO_REGION")
	setStr(&cg.UserPoolID, "COGNITO_USER_POOL_ID")
	setStr(&cg.AppClientID, "COGNITO_APP_CLIENT_ID")
	setStr(&cg.AppClientSecret, "COGNITO_APP_CLIENT_SECRET")
	setStr(&cg.PasswordSecret, "COGNITO_PASSWORD_SECRET")
	setStr(&cg.AccessKeyID, "COGNITO_ACCESS_KEY_ID")
	setStr(&cg.SecretAccessKey, "COGNITO_SECRET_ACCESS_KEY")
	setStr(&cg.Profile, "COGNITO_PROFILE")
	setStr(&cg.Endpoint, "COGNITO_ENDPOINT")

	// CACHE
	setStr(&c.Cache.Kind, "CACHE_KIND")
	setStr(&c.Cache.Redis.Addr, "REDIS_ADDR")
	setStr(&c.Cache.Redis.Password, "REDIS_PASSWORD")
	setStr(&c.Cache.Redis.Prefix, "REDIS_PREFIX")
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// SESSION
	setStr(&c.Session.CookieName, "SESSION_COOKIE_NAME")
	setStr(&c.Session.Domain, "SESSION_DOMAIN")
	setStr(&c.Session.SameSite, "SESSION_SAMESITE")
	setStr(&c.Session.TTL, "SESSION_TTL")
	if v, ok := getEnvBool("SESSION_SECURE"); ok {
		c.Session.Secure = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	setStr(&c.Rate.Login.Window, "RATE_LOGIN_WINDOW")

	// PROVIDERS
	applyProviderEnv(&c.Providers.Kakao, "KAKAO")
	applyProviderEnv(&c.Providers.Twitter, "TWITTER")
}

func applyProviderEnv(p *OAuthProvider, prefix string) {
	if v, ok := getEnvBool(prefix + "_ENABLED"); ok {
		p.Enabled = v
	}
	setStr(&p.ClientID, prefix+"_CLIENT_ID")
	setStr(&p.ClientSecret, prefix+"_CLIENT_SECRET")
	setStr(&p.RedirectURL, prefix+"_REDIRECT_URL")
	setStr(&p.AuthURL, prefix+"_AUTH_URL")
	setStr(&p.TokenURL, prefix+"_TOKEN_URL")
	setStr(&p.APIBaseURL, prefix+"_API_BASE_URL")
	setStr(&p.BearerToken, prefix+"_BEARER_TOKEN")
	if v, ok := getEnvCSV(prefix + "_SCOPES"); ok {
		p.Scopes = v
	}
}

// Validate revisa duraciones y campos requeridos según los drivers elegidos.
func (c *Config) Validate() error {
	var errs []error

	durations := map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"directory.retry_delay":              c.Directory.RetryDelay,
		"session.ttl":                        c.Session.TTL,
		"rate.login.window":                  c.Rate.Login.Window,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for driver postgres"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	switch c.Directory.Driver {
	case "cognito":
		cg := c.Directory.Cognito
		if cg.Region == "" || cg.UserPoolID == "" || cg.AppClientID == "" {
			errs = append(errs, errors.New("directory.cognito: region, user_pool_id and app_client_id are required"))
		}
	case "memory":
		if c.IsProd() {
			errs = append(errs, errors.New("directory.driver memory is not allowed in prod"))
		}
	default:
		errs = append(errs, fmt.Errorf("directory.driver: unknown driver %q", c.Directory.Driver))
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for kind redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind: unknown kind %q", c.Cache.Kind))
	}

	switch strings.ToLower(c.Session.SameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, fmt.Errorf("session.samesite: unknown value %q", c.Session.SameSite))
	}

	for name, p := range map[string]OAuthProvider{"kakao": c.Providers.Kakao, "twitter": c.Providers.Twitter} {
		if !p.Enabled {
			continue
		}
		if p.ClientID == "" || p.RedirectURL == "" {
			errs = append(errs, fmt.Errorf("providers.%s: client_id and redirect_url are required when enabled", name))
		}
	}

	return errors.Join(errs...)
}

// IsProd indica si corremos en producción.
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// Dur parsea una duración ya validada. Retorna def si está vacía.
func Dur(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
