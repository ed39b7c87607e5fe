package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmy/musiclip/internal/api"
	"github.com/timmy/musiclip/internal/api/middleware"
	"github.com/timmy/musiclip/internal/app"
	"github.com/timmy/musiclip/internal/config"
	"github.com/timmy/musiclip/internal/logger"
)

const shutdownTimeout = 5 * time.Second

type apiFlags struct {
	configPath string
	port       int
	admin      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &apiFlags{}
	cmd := &cobra.Command{
		Use:           "musiclip-api",
		Short:         "Serve catalogue queries over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(f)
		},
	}
	// Support CONFIG_PATH environment variable for production deployments
	cmd.Flags().StringVar(&f.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")
	cmd.Flags().IntVar(&f.port, "port", 0, "Listen port (0 uses the config value)")
	cmd.Flags().BoolVar(&f.admin, "admin", false, "Mount the /admin/ingest endpoints")
	return cmd
}

func serve(f *apiFlags) error {
	appLogger := app.NewLogger("musiclip-api")
	defer logger.Sync()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if f.port > 0 {
		cfg.Server.Port = f.port
	}

	role := app.RoleQuery
	if f.admin {
		role = app.RoleIngest
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, appLogger, role)
	if err != nil {
		return err
	}
	defer a.Close()

	services := api.Services{
		Search:    a.NewSearchService(),
		Embedding: a.Embedding,
	}
	if f.admin {
		ingestService, err := a.NewIngestService()
		if err != nil {
			return err
		}
		services.Ingest = ingestService
		if a.Runs != nil {
			services.Runs = a.Runs
		}
	}

	router, admin := api.SetupRouter(services, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, appLogger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		appLogger.WithFields(logger.Fields{
			"port":  cfg.Server.Port,
			"mode":  cfg.Server.Mode,
			"admin": f.admin,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if admin != nil {
		appLogger.Info("Waiting for background ingestion to finish...")
		admin.Wait()
	}

	appLogger.Info("Server exited")
	return nil
}
