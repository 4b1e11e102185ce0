package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"mywill/internal/deathcheck"
	"mywill/internal/deathcheck/lock"
	deathcheckmetrics "mywill/internal/deathcheck/metrics"
	jwttoken "mywill/internal/jwt_token"
	"mywill/internal/platform/config"
	"mywill/internal/platform/httpserver"
	"mywill/internal/platform/logger"
	"mywill/internal/platform/postgres"
	redisclient "mywill/internal/platform/redis"
	ratelimitmetrics "mywill/internal/ratelimit/metrics"
	ratelimit "mywill/internal/ratelimit/middleware"
	ratelimitmodels "mywill/internal/ratelimit/models"
	"mywill/internal/ratelimit/store/bucket"
	httptransport "mywill/internal/transport/http"
	trusthandler "mywill/internal/trust/handler"
	trustmetrics "mywill/internal/trust/metrics"
	trustservice "mywill/internal/trust/service"
	ownerstore "mywill/internal/trust/store/owner"
	"mywill/internal/trust/store/trustedperson"
	willadapters "mywill/internal/will/adapters"
	willhandler "mywill/internal/will/handler"
	willmetrics "mywill/internal/will/metrics"
	willservice "mywill/internal/will/service"
	willstore "mywill/internal/will/store"
	"mywill/pkg/email"
	audit "mywill/pkg/platform/audit"
	"mywill/pkg/platform/audit/publisher"
	auditkafka "mywill/pkg/platform/audit/store/kafka"
	auditmemory "mywill/pkg/platform/audit/store/memory"
	"mywill/pkg/platform/circuit"
)

// main wires dependencies, runs the HTTP server and the death-check scheduler,
// and shuts both down on SIGINT/SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

type infra struct {
	db    *sql.DB
	redis *redisclient.Client
	close []func()
}

func (i *infra) shutdown() {
	for j := len(i.close) - 1; j >= 0; j-- {
		i.close[j]()
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	inf, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer inf.shutdown()

	auditStore, err := buildAuditStore(ctx, cfg, log, inf)
	if err != nil {
		return err
	}
	auditor := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	)
	defer auditor.Close()

	willStore := buildWillStore(inf)
	trust := buildTrustService(cfg, log, inf, auditor, willStore)
	wills := buildWillService(log, willStore, trust, auditor)

	locks := buildLockProvider(cfg, inf)
	scheduler := deathcheck.New(trust, locks, deathcheck.Config{
		Interval:       cfg.DeathCheck.Interval,
		InitialDelay:   cfg.DeathCheck.InitialDelay,
		LockAtMostFor:  cfg.DeathCheck.LockAtMostFor,
		LockAtLeastFor: cfg.DeathCheck.LockAtLeastFor,
	},
		deathcheck.WithLogger(log),
		deathcheck.WithMetrics(deathcheckmetrics.New()),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:    log,
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Modules: []httptransport.RouteRegistrar{
			trusthandler.New(trust, log),
			willhandler.New(wills, log),
		},
		RateLimit: buildRateLimiter(cfg, log, inf).RateLimitAuthenticated(),
		Checks:    healthChecks(inf),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mywill", "addr", cfg.Addr, "lock_backend", cfg.DeathCheck.LockBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("death check scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	inf := &infra{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		inf.close = append(inf.close, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			inf.shutdown()
			return nil, err
		}
		inf.db = db
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		inf.shutdown()
		return nil, err
	}
	if client != nil {
		inf.redis = client
		inf.close = append(inf.close, func() { _ = client.Close() })
	}
	return inf, nil
}

func buildAuditStore(ctx context.Context, cfg config.Server, log *slog.Logger, inf *infra) (audit.Store, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return auditmemory.NewInMemoryStore(), nil
	}
	client, err := auditkafka.Connect(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	inf.close = append(inf.close, client.Close)
	if err := auditkafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3); err != nil {
		return nil, err
	}
	log.Info("audit events published to kafka", "topic", cfg.Kafka.AuditTopic)
	return auditkafka.New(client, cfg.Kafka.AuditTopic), nil
}

func buildMailer(cfg config.Server, log *slog.Logger) email.Mailer {
	logMailer := email.NewLogMailer(log)
	if cfg.SMTP.Host == "" {
		return logMailer
	}
	smtp := email.NewSMTPMailer(email.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	return email.NewBreakerMailer(smtp, logMailer, circuit.New("smtp"), log)
}

// buildTrustService wires account deletion to the will store so an owner's
// wills go with their account.
func buildTrustService(cfg config.Server, log *slog.Logger, inf *infra, auditor audit.Publisher, wills willservice.Store) *trustservice.Service {
	opts := []trustservice.Option{
		trustservice.WithOwnedData(wills),
		trustservice.WithMailer(buildMailer(cfg, log)),
		trustservice.WithAuditPublisher(auditor),
		trustservice.WithMetrics(trustmetrics.New()),
		trustservice.WithLogger(log),
		trustservice.WithDefaultDeathTimeout(cfg.DefaultDeathTimeout),
	}
	if inf.db == nil {
		return trustservice.New(ownerstore.NewInMemory(), trustedperson.NewInMemory(), opts...)
	}
	owners := ownerstore.NewPostgres(inf.db)
	people := trustedperson.NewPostgres(inf.db)
	opts = append(opts, trustservice.WithTx(newTrustPostgresTx(inf.db, owners, people)))
	return trustservice.New(owners, people, opts...)
}

func buildWillStore(inf *infra) willservice.Store {
	if inf.db != nil {
		return willstore.NewPostgres(inf.db)
	}
	return willstore.NewInMemory()
}

func buildWillService(log *slog.Logger, store willservice.Store, trust *trustservice.Service, auditor audit.Publisher) *willservice.Service {
	return willservice.New(store, willadapters.NewOwnerStatusAdapter(trust),
		willservice.WithAuditPublisher(auditor),
		willservice.WithMetrics(willmetrics.New()),
		willservice.WithLogger(log),
	)
}

func buildLockProvider(cfg config.Server, inf *infra) lock.Provider {
	switch cfg.DeathCheck.LockBackend {
	case config.LockRedis:
		return lock.NewRedis(inf.redis.Client)
	case config.LockPostgres:
		return lock.NewPostgres(inf.db)
	default:
		return lock.NewLocal()
	}
}

func buildRateLimiter(cfg config.Server, log *slog.Logger, inf *infra) *ratelimit.Middleware {
	limits := ratelimitmodels.Limits{
		ratelimitmodels.ClassRead:   {Requests: cfg.RateLimit.ReadPerMinute, Window: time.Minute},
		ratelimitmodels.ClassWrite:  {Requests: cfg.RateLimit.WritePerMinute, Window: time.Minute},
		ratelimitmodels.ClassInvite: {Requests: cfg.RateLimit.InvitesPerHour, Window: time.Hour},
	}
	opts := []ratelimit.Option{
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	}
	if inf.redis == nil {
		return ratelimit.New(bucket.New(), limits, log, opts...)
	}
	opts = append(opts, ratelimit.WithFallback(bucket.New(), circuit.New("ratelimit")))
	return ratelimit.New(bucket.NewRedis(inf.redis.Client), limits, log, opts...)
}

func healthChecks(inf *infra) map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if inf.db != nil {
		checks["postgres"] = inf.db.PingContext
	}
	if inf.redis != nil {
		checks["redis"] = inf.redis.Health
	}
	return checks
}
