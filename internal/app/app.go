// Package app arma el grafo de dependencias del gateway a partir de la config.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dropDatabas3/socialgate/internal/cache"
	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/directory"
	"github.com/dropDatabas3/socialgate/internal/domain/repository"
	authctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/http/router"
	"github.com/dropDatabas3/socialgate/internal/normalize"
	"github.com/dropDatabas3/socialgate/internal/oauth"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/provisioning"
	"github.com/dropDatabas3/socialgate/internal/rate"
	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/dropDatabas3/socialgate/internal/store/memory"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
)

// Core son las piezas que necesitan tanto el server como los comandos de operador.
type Core struct {
	Directory    directory.Client
	Repo         repository.FederatedUserRepository
	Provisioning *provisioning.Service
	Registry     *prometheus.Registry
	// Pool es nil con storage.driver=memory.
	Pool *pgxpool.Pool

	closers []func() error
}

// Close libera los recursos en orden inverso a su creación.
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// OpenPool abre el pool de postgres según la config.
func OpenPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pc := cfg.Storage.Postgres
	return pg.Connect(ctx, pg.PoolConfig{
		DSN:             cfg.Storage.DSN,
		MaxConns:        int32(pc.MaxOpenConns),
		MinConns:        int32(pc.MinConns),
		MaxConnLifetime: config.Dur(pc.ConnMaxLifetime, 0),
	})
}

// NewCore construye store, directorio y servicio de provisioning.
func NewCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	log := logger.From(ctx).With(logger.Component("app"))
	c := &Core{Registry: prometheus.NewRegistry()}
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("using in-memory user store; data is lost on restart")
		c.Repo = memory.NewRepo()
	default:
		pool, err := OpenPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		c.Pool = pool
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		c.Registry.MustRegister(pg.NewPoolCollector(pool))
		c.Repo = pg.NewRepo(pool)
	}

	switch cfg.Directory.Driver {
	case "memory":
		log.Warn("using in-memory directory")
		c.Directory = directory.NewMemory()
	default:
		cg := cfg.Directory.Cognito
		dir, err := directory.NewCognito(ctx, directory.CognitoConfig{
			Region:          cg.Region,
			UserPoolID:      cg.UserPoolID,
			AppClientID:     cg.AppClientID,
			AppClientSecret: cg.AppClientSecret,
			PasswordSecret:  cg.PasswordSecret,
			AccessKeyID:     cg.AccessKeyID,
			SecretAccessKey: cg.SecretAccessKey,
			SharedProfile:   cg.Profile,
			Endpoint:        cg.Endpoint,
		})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("directory: %w", err)
		}
		c.Directory = dir
	}

	metrics, err := provisioning.NewMetrics(c.Registry)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	svc, err := provisioning.NewService(provisioning.Deps{
		Directory:  c.Directory,
		Repo:       c.Repo,
		Metrics:    metrics,
		RetryDelay: config.Dur(cfg.Directory.RetryDelay, 0),
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Provisioning = svc
	return c, nil
}

// App es el server HTTP completo.
type App struct {
	*Core
	Cache   cache.Client
	Handler http.Handler
}

// Build construye el Core y la capa HTTP.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	core, err := NewCore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Core: core}

	cc, err := cache.New(ctx, cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}
	a.Cache = cc
	core.closers = append(core.closers, cc.Close)

	httpMetrics, err := mw.NewHTTPMetrics(core.Registry)
	if err != nil {
		_ = core.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	checks := map[string]healthctrl.Check{"cache": cc.Ping}
	if core.Pool != nil {
		checks["db"] = core.Pool.Ping
	}

	a.Handler = router.New(router.Deps{
		Auth: authctrl.NewControllers(authctrl.Deps{
			Flows:       newFlows(cfg),
			Normalizers: newNormalizers(cfg),
			Provisioner: core.Provisioning,
			Sessions:    session.NewStore(cc, config.Dur(cfg.Session.TTL, 12*time.Hour)),
			Cookie: session.CookieConfig{
				Name:     cfg.Session.CookieName,
				Domain:   cfg.Session.Domain,
				SameSite: cfg.Session.SameSite,
				Secure:   cfg.Session.Secure,
			},
		}),
		Health:         healthctrl.NewHealthController(checks),
		LoginLimiter:   newLoginLimiter(cfg, cc),
		Metrics:        httpMetrics,
		MetricsHandler: router.MetricsHandler(core.Registry),
	})
	return a, nil
}

func oauthConfig(p config.OAuthProvider) oauth.Config {
	return oauth.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURL,
		Scopes:       p.Scopes,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		APIBaseURL:   p.APIBaseURL,
	}
}

func newFlows(cfg *config.Config) *oauth.Registry {
	var flows []oauth.Flow
	if p := cfg.Providers.Kakao; p.Enabled {
		flows = append(flows, oauth.NewKakao(oauthConfig(p)))
	}
	if p := cfg.Providers.Twitter; p.Enabled {
		flows = append(flows, oauth.NewTwitter(oauthConfig(p)))
	}
	return oauth.NewRegistry(flows...)
}

func newNormalizers(cfg *config.Config) *normalize.Registry {
	return normalize.NewRegistry(
		normalize.NewKakao(normalize.KakaoConfig{APIBaseURL: cfg.Providers.Kakao.APIBaseURL}),
		normalize.NewTwitter(normalize.TwitterConfig{
			BearerToken: cfg.Providers.Twitter.BearerToken,
			APIBaseURL:  cfg.Providers.Twitter.APIBaseURL,
		}),
	)
}

// newLoginLimiter usa Redis si la cache es Redis (límite compartido entre réplicas).
func newLoginLimiter(cfg *config.Config, cc cache.Client) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	window := config.Dur(cfg.Rate.Login.Window, time.Minute)
	if rc, ok := cache.Redis(cc); ok {
		return rate.NewRedisLimiter(rc, cfg.Cache.Redis.Prefix+"rl:", cfg.Rate.Login.Limit, window)
	}
	return rate.NewMemoryLimiter(cfg.Rate.Login.Limit, window)
}
