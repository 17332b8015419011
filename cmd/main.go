/*
Package main is the entry point for the voice relay server.

The default command loads configuration, initializes the global logger, optionally
connects the activity database, serves HTTP and WebSocket traffic, and shuts down
gracefully on SIGINT or SIGTERM. The admin-token command mints operator tokens for
the admin room API.
*/
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

	"github.com/spf13/cobra"

	"voicerelay/internal/app/chat"
	"voicerelay/internal/app/db"
	"voicerelay/internal/configs"
	"voicerelay/internal/handler"
	"voicerelay/internal/pkg/auth/jwt"
	"voicerelay/internal/pkg/logx"
)

const (
	shutdownTimeout = 5 * time.Second

	// activityBufferSize is the number of activity records held in memory before drops.
	activityBufferSize = 1024
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "voicerelay",
		Short:         "Real-time voice relay server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the relay server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(newAdminTokenCmd(&configPath))

	return root
}

func newAdminTokenCmd(configPath *string) *cobra.Command {
	var (
		operator string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Print a signed token for the admin room API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configs.LoadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			token, err := jwt.GenerateToken(&jwt.Payload{
				Operator: operator,
				Role:     jwt.RoleAdmin,
			}, cfg.JWTSecret, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "admin", "name recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", jwt.AdminTokenExpiration, "token lifetime")

	return cmd
}

func serve(parent context.Context, configPath string) error {
	cfg, err := configs.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("max_room_size", cfg.MaxRoomSize).
		Bool("activity_log", cfg.DatabaseDSN != "").
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []chat.Option
	deps := &handler.AppDeps{Config: cfg}

	var activity *db.ActivityStore
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		activity = db.NewActivityStore(pool, activityBufferSize)
		opts = append(opts, chat.WithActivityRecorder(activity))
		deps.Activity = activity
	}

	registry := chat.NewRegistry(cfg.MaxRoomSize)
	deps.Coordinator = chat.NewCoordinator(registry, opts...)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler.Router(ctx, deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logx.Info(fmt.Sprintf("Voice relay starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// Hijacked WebSocket connections are not tracked by Shutdown; the registry closes them.
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	registry.Shutdown()

	if activity != nil {
		activity.Close()
	}

	logx.Info("Server gracefully stopped.")
	return nil
}
