package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/tabularium/tabularium/internal/auth"
	"github.com/tabularium/tabularium/internal/config"
	"github.com/tabularium/tabularium/internal/health"
	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/metrics"
	"github.com/tabularium/tabularium/internal/records"
	"github.com/tabularium/tabularium/internal/server"
)

// minSecretLength is the shortest JWT secret that doesn't degrade the status report
const minSecretLength = 32

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("error initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, close := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clock := clockwork.NewRealClock()
	authServer := auth.NewServer(
		auth.NewUsers(bcrypt.DefaultCost),
		auth.NewIssuer(cfg.JwtSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, clock),
		metrics.NewPrometheusAuthObserver(reg),
		logger.Named("auth"),
	)
	healthServer := health.NewServer(health.Check{
		Name: "token signing",
		Run: func() error {
			if len(cfg.JwtSecret) < minSecretLength {
				return fmt.Errorf("JWT_SECRET is shorter than %d bytes", minSecretLength)
			}
			return nil
		},
	})
	srv := server.New(
		authServer,
		records.NewServer(records.NewStore(clock)),
		healthServer,
		reg,
		cfg.CorsAllowedOrigins,
		logger.Named("http"),
	)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ListenPort)
	httpServer := &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("closing server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("error running server", zap.Error(err))
	}
	logger.Info("server closed")
}
