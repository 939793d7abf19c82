package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tkahng/countdown"
	"github.com/tkahng/countdown/config"
	"github.com/tkahng/countdown/logger"
	"github.com/tkahng/countdown/server"
)

const releaseVersion = "0.1.0"

func main() {
	cobra.CheckErr(config.LoadDotEnv())
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "server <port> <gameType> <numPlayers>",
		Short:         "Host a single countdown game over TCP.",
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ParseArgs(args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	cfg.AddFlags(fs)
	config.BindEnv(fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("countdown server v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(os.Stderr, cfg.LogLevel(), cfg.LogJSON)

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Addr(), err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := countdown.NewMetrics(reg)

	session, err := countdown.NewSession(cfg.NumPlayers, cfg.StartTotal)
	if err != nil {
		_ = listener.Close()
		return err
	}

	var auditor countdown.Auditor = countdown.LogAuditor{Logger: log}
	var feed *server.Feed
	if cfg.OpsAddr != "" {
		feed = server.NewFeed(log)
		go feed.Run(ctx)
		auditor = countdown.MultiAuditor{auditor, feed}
	}

	engine := countdown.NewEngine(session, countdown.EngineConfig{
		MoveTimeout:  cfg.MoveTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Auditor:      auditor,
		Metrics:      metrics,
		Logger:       log,
	})

	log.Info("starting server",
		slog.String("version", releaseVersion),
		slog.String("game_type", cfg.GameType),
		slog.Int("players", cfg.NumPlayers),
		slog.Int("start_total", cfg.StartTotal),
		slog.Duration("move_timeout", cfg.MoveTimeout),
		slog.String("session", session.ID),
	)

	if cfg.OpsAddr != "" {
		ops := server.NewOpsServer(session, feed, reg, cfg.AllowedOrigins, log)
		// nolint:exhaustruct
		httpServer := &http.Server{
			Addr:              cfg.OpsAddr,
			Handler:           ops.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("ops server listening", slog.String("addr", cfg.OpsAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("ops server shutdown error", slog.Any("error", err))
			}
		}()
	}

	return countdown.NewCoordinator(engine, listener, log).Run(ctx)
}
