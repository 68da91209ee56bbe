package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	authservice "castellan/internal/auth/service"
	authstore "castellan/internal/auth/store"
	"castellan/internal/auth/verifier"
	"castellan/internal/directory/schema"
	dirservice "castellan/internal/directory/service"
	dirstore "castellan/internal/directory/store"
	"castellan/internal/platform/config"
	"castellan/internal/platform/health"
	"castellan/internal/platform/logger"
	"castellan/internal/platform/metrics"
	"castellan/internal/proto"
	"castellan/internal/seeder"
	"castellan/internal/token"
	httptransport "castellan/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	log.Info("initializing castellan",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	m := metrics.New()

	entries := dirstore.NewInMemory()
	directory := dirservice.New(entries, schema.NewBasic(),
		dirservice.WithLogger(log),
		dirservice.WithMetrics(m),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seeder.New(entries, log).SeedAll(ctx, cfg.AdminPassword); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	sessions := authstore.NewInMemory(cfg.AuthSessionTTL)
	creds := verifier.New(entries)
	auth := authservice.New(sessions, creds, creds,
		authservice.WithLogger(log),
		authservice.WithMetrics(m),
	)
	tokens := token.NewService(cfg.JWTSigningKey, cfg.Issuer, cfg.TokenTTL)

	healthHandler := health.New(cfg.Environment)
	healthHandler.RegisterCheck("directory", func() error {
		found, err := entries.FindByAttrValue(context.Background(), proto.AttrName, "anonymous")
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return errors.New("bootstrap entries missing")
		}
		return nil
	})
	handler := httptransport.NewHandler(auth, tokens, directory, log)
	router := httptransport.NewRouter(handler, tokens, healthHandler, m, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if expired := sessions.Sweep(ctx); expired > 0 {
					m.SessionsExpired.Add(float64(expired))
					log.Info("expired auth sessions swept", "count", expired)
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
