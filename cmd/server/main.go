package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embedded zone database for agenda bucketing on hosts without tzdata.
	_ "time/tzdata"

	"github.com/diewo77/go-chantiers/internal/config"
	"github.com/diewo77/go-chantiers/internal/db"
	"github.com/diewo77/go-chantiers/internal/policy"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type rootOptions struct {
	Verbose bool
	cfg     *config.Config
	log     *slog.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	serve := newServeCommand(opts)

	cmd := &cobra.Command{
		Use:   "chantiers",
		Short: "Back office for construction companies",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables from .env file
			_ = godotenv.Load()
			opts.cfg = config.Load()
			opts.log = newLogger(opts.cfg.App.Dev, opts.Verbose)
			slog.SetDefault(opts.log)
			return nil
		},
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(serve)
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	return cmd
}

func newLogger(dev, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if dev {
		return slog.New(slog.NewTextHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
}

func connect(ctx context.Context, opts *rootOptions) (*gorm.DB, error) {
	d := opts.cfg.Database
	opts.log.Info("connecting to database", "type", d.Type, "host", d.Host, "port", d.Port, "dbname", d.DBName)
	return db.Open(ctx, d, opts.log)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var sqlMigrations bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := db.Prepare(conn, opts.cfg.Database, sqlMigrations, opts.log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			opts.log.Info("migrations completed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&sqlMigrations, "sql", true, "apply the embedded SQL migrations on postgres")
	return cmd
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo company and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := db.Seed(conn, opts.cfg.App.TrialDays); err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			opts.log.Info("seed completed", "code", db.DemoCode, "email", db.DemoEmail)
			return nil
		},
	}
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.log

	conn, err := connect(ctx, opts)
	if err != nil {
		return err
	}

	// Run migrations on startup if enabled
	if cfg.App.Migrations {
		if err := db.Prepare(conn, cfg.Database, true, log); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	if cfg.App.Seed {
		if err := db.Seed(conn, cfg.App.TrialDays); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
	}

	routerCfg, err := policy.NewRouterConfig(conn, cfg, log)
	if err != nil {
		return err
	}
	app := NewApp(routerCfg, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
		log.Info("shutdown signal received")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", "err", err)
	}
	if c, ok := routerCfg.Bucket.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Error("error closing bucket", "err", err)
		}
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped gracefully")
	return nil
}
