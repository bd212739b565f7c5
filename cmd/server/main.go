package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/liars-dice-backend/internal/config"
	"github.com/DoyleJ11/liars-dice-backend/internal/engine"
	"github.com/DoyleJ11/liars-dice-backend/internal/events"
	"github.com/DoyleJ11/liars-dice-backend/internal/gateway"
	"github.com/DoyleJ11/liars-dice-backend/internal/httpapi"
	"github.com/DoyleJ11/liars-dice-backend/internal/logging"
	"github.com/DoyleJ11/liars-dice-backend/internal/registry"
	"github.com/DoyleJ11/liars-dice-backend/internal/room"
	"github.com/DoyleJ11/liars-dice-backend/internal/scheduler"
	"github.com/DoyleJ11/liars-dice-backend/internal/ws"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cobra.CheckErr(config.LoadDotEnv(".env"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(config.NewCommand(version, serve).ExecuteContext(ctx))
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var pub events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		p, err := events.ConnectNATS(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return err
		}
		pub = p
	}
	defer pub.Close()

	reg := registry.New(ctx, room.Options{
		Rules:       engine.Rules{StartingDice: cfg.StartingDice},
		RevealDelay: cfg.RevealDelay,
		ResetDelay:  cfg.ResetDelay,
		Scheduler:   scheduler.New(nil),
		Publisher:   pub,
		Logger:      logger,
	}, logger)

	gw := gateway.New(reg, logger)
	gw.OutboxSize = cfg.OutboxSize

	// Build the router with the registry and gateway injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Registry: reg,
		Gateway:  gw,
		WS: ws.Options{
			OutboxSize:  cfg.OutboxSize,
			ActionRate:  rate.Limit(cfg.ActionRate),
			ActionBurst: cfg.ActionBurst,
			Logger:      logger,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		Version:        version,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("version", version),
			zap.Int("starting_dice", cfg.StartingDice),
			zap.Bool("nats", cfg.NATSURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Closing the rooms closes every websocket; Shutdown does not wait on
		// hijacked connections.
		if err := reg.Send(sctx, registry.Shutdown{}); err != nil && !errors.Is(err, registry.ErrClosed) {
			logger.Warn("registry shutdown", zap.Error(err))
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
