package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	migrations "github.com/dropDatabas3/socialgate/migrations/postgres"

	"github.com/dropDatabas3/socialgate/internal/app"
	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/domain/types"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/store/pg"
)

func main() {
	// .env es opcional; en prod las variables vienen del entorno.
	_ = godotenv.Load()

	var configPath string

	root := &cobra.Command{
		Use:           "socialgate",
		Short:         "Gateway de login social (Kakao, Twitter) federado en Cognito",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", envOr("SOCIALGATE_CONFIG", ""), "Path al YAML de config (env SOCIALGATE_CONFIG)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "socialgate"})
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return serve(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones embebidas de postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return migrate(cmd.Context(), cfg)
		},
	}

	var provider, externalID, subjectID string
	unregisterCmd := &cobra.Command{
		Use:   "unregister",
		Short: "Elimina una cuenta federada del directorio y del store local",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, ok := types.ParseProvider(provider)
			if !ok {
				return fmt.Errorf("--provider inválido %q (kakao|twitter)", provider)
			}
			if externalID == "" {
				return errors.New("--external-id es requerido")
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx := cmd.Context()
			core, err := app.NewCore(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = core.Close() }()

			if subjectID == "" {
				s, found, err := core.Directory.LookupSubject(ctx, p, externalID)
				if err != nil {
					return fmt.Errorf("lookup: %w", err)
				}
				if !found {
					return fmt.Errorf("%s no existe en el directorio; indicar --subject para limpiar el store local", types.DirectoryUsername(p, externalID))
				}
				subjectID = s.ID
			}
			if err := core.Provisioning.Unregister(ctx, p, externalID, subjectID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unregistered %s\n", types.DirectoryUsername(p, externalID))
			return nil
		},
	}
	unregisterCmd.Flags().StringVar(&provider, "provider", "", "kakao|twitter")
	unregisterCmd.Flags().StringVar(&externalID, "external-id", "", "ID del usuario en el proveedor")
	unregisterCmd.Flags().StringVar(&subjectID, "subject", "", "Subject del directorio (se busca si se omite)")

	root.AddCommand(serveCmd, migrateCmd, unregisterCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.L().With(logger.Component("server"))

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("cleanup error", logger.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.Handler,
		ReadTimeout:       config.Dur(cfg.Server.ReadTimeout, 15*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      config.Dur(cfg.Server.WriteTimeout, 30*time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			logger.String("addr", cfg.Server.Addr),
			logger.String("env", cfg.App.Env),
			logger.String("storage", cfg.Storage.Driver),
			logger.String("directory", cfg.Directory.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), config.Dur(cfg.Server.ShutdownTimeout, 10*time.Second))
	defer cancel()
	return srv.Shutdown(shCtx)
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrate: storage.driver=%s no usa migraciones", cfg.Storage.Driver)
	}
	log := logger.L().With(logger.Component("migrate"))

	pool, err := app.OpenPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	res, err := pg.NewMigrator(migrations.FS, migrations.Dir).Run(ctx, pool)
	if err != nil {
		return err
	}
	log.Info("migrations done",
		logger.Any("applied", res.Applied),
		logger.Int("skipped", len(res.Skipped)),
		logger.Duration(res.Duration),
	)
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
