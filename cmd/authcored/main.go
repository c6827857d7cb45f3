// Command authcored runs the authentication engine as an HTTP service.
//
// Configuration comes from the environment (a .env file is loaded when
// present). The credential store is the in-memory development store; a
// production deployment embeds the engine and supplies its own
// CredentialStore implementation instead of running this binary as-is.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rescuelink/authcore"
	"github.com/rescuelink/authcore/delivery"
	"github.com/rescuelink/authcore/httpapi"
	"github.com/rescuelink/authcore/memstore"
	"github.com/rescuelink/authcore/password"
)

func main() {
	_ = godotenv.Load()

	log, err := buildLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log); err != nil {
		log.Fatal("authcored exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg := authcore.DefaultConfig()
	cfg.Token.Secret = []byte(os.Getenv("AUTHCORE_TOKEN_SECRET"))
	if issuer := os.Getenv("AUTHCORE_TOKEN_ISSUER"); issuer != "" {
		cfg.Token.Issuer = issuer
	}
	if m := envInt("AUTHCORE_ACCESS_TTL_MINUTES", 0); m > 0 {
		cfg.Token.AccessTTL = time.Duration(m) * time.Minute
	}
	if d := envInt("AUTHCORE_REFRESH_TTL_DAYS", 0); d > 0 {
		cfg.Token.RefreshTTL = time.Duration(d) * 24 * time.Hour
	}
	if n := envInt("AUTHCORE_MAX_FAILED_ATTEMPTS", 0); n > 0 {
		cfg.Security.MaxFailedAttempts = n
	}
	if m := envInt("AUTHCORE_LOCKOUT_MINUTES", 0); m > 0 {
		cfg.Security.LockoutDuration = time.Duration(m) * time.Minute
	}
	if m := envInt("AUTHCORE_OTP_MINUTES", 0); m > 0 {
		cfg.Security.OTPTTL = time.Duration(m) * time.Minute
	}
	if v := os.Getenv("AUTHCORE_FAIL_OPEN"); v != "" {
		cfg.Security.FailOpen = v == "true" || v == "1"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return err
	}

	gateway, err := buildGateway(log)
	if err != nil {
		return err
	}

	store := memstore.New()
	if err := seedDevPrincipal(store, cfg.Password); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	engine, err := authcore.NewEngine(cfg, authcore.Deps{
		Redis:       rdb,
		Credentials: store,
		Gateway:     gateway,
		Logger:      log,
		AuditSink:   authcore.NewJSONWriterSink(os.Stdout),
		Registry:    registry,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	root := chi.NewRouter()
	root.Mount("/", httpapi.New(engine, log).Router())
	root.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              envDefault("AUTHCORE_ADDR", ":8080"),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("authcored listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("AUTHCORE_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// buildGateway returns an SMTP gateway when AUTHCORE_DELIVERY=smtp,
// otherwise the code-logging development gateway.
func buildGateway(log *zap.Logger) (delivery.Gateway, error) {
	if os.Getenv("AUTHCORE_DELIVERY") != "smtp" {
		return delivery.NewLogGateway(log.Named("delivery")), nil
	}
	return delivery.NewSMTPGateway(delivery.SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Port:     envInt("SMTP_PORT", 587),
		From:     os.Getenv("SMTP_FROM"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		TLSMode:  envDefault("SMTP_TLS_MODE", "auto"),
	}, log.Named("delivery"))
}

// seedDevPrincipal inserts one account when AUTHCORE_SEED_EMAIL and
// AUTHCORE_SEED_PASSWORD are set, so the flows can be exercised against
// the in-memory store.
func seedDevPrincipal(store *memstore.Store, pwCfg password.Config) error {
	email := os.Getenv("AUTHCORE_SEED_EMAIL")
	plain := os.Getenv("AUTHCORE_SEED_PASSWORD")
	if email == "" || plain == "" {
		return nil
	}

	hasher, err := password.New(pwCfg)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		return err
	}
	store.Seed(authcore.PrincipalRecord{
		ID:           "dev-seed",
		Kind:         authcore.KindRegisteredUser,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Verified:     true,
	})
	return nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
