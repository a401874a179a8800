// Command notifyq runs the notification queue service: the delivery worker,
// the maintenance janitor and the ops HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifyq/internal/db/migrations"
	"github.com/dmitrymomot/notifyq/modules/notifications"
	"github.com/dmitrymomot/notifyq/pkg/config"
	"github.com/dmitrymomot/notifyq/pkg/dispatch"
	"github.com/dmitrymomot/notifyq/pkg/email"
	"github.com/dmitrymomot/notifyq/pkg/httpserver"
	"github.com/dmitrymomot/notifyq/pkg/logger"
	"github.com/dmitrymomot/notifyq/pkg/mongo"
	"github.com/dmitrymomot/notifyq/pkg/notifyq"
	"github.com/dmitrymomot/notifyq/pkg/notifyq/mongostore"
	"github.com/dmitrymomot/notifyq/pkg/notifyq/pgstore"
	"github.com/dmitrymomot/notifyq/pkg/pg"
	"github.com/dmitrymomot/notifyq/pkg/redis"
	"github.com/dmitrymomot/notifyq/pkg/requestid"
	"github.com/dmitrymomot/notifyq/pkg/webhook"
)

const (
	driverPostgres = "postgres"
	driverMongo    = "mongo"
	driverMemory   = "memory"
)

type appConfig struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithContextExtractors(requestid.LoggerExtractor()))
	logger.SetAsDefault(log)

	if err := run(ctx, log); err != nil {
		log.Error("notifyq stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("notifyq stopped")
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		appCfg   appConfig
		queueCfg notifyq.Config
		workCfg  dispatch.Config
		httpCfg  httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&appCfg) },
		func() error { return config.Load(&queueCfg) },
		func() error { return config.Load(&workCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	checks := make(map[string]httpserver.Check)

	store, closeStore, err := openStore(ctx, log, appCfg.StoreDriver, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	queue, err := notifyq.NewQueue(store, notifyq.WithConfig(queueCfg), notifyq.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}

	senders, closeSenders, err := buildSenders(ctx, log, checks)
	if err != nil {
		return err
	}
	defer closeSenders()

	worker, err := dispatch.NewWorker(queue, dispatch.WithConfig(workCfg), dispatch.WithLogger(log))
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	if err := worker.RegisterSender(senders...); err != nil {
		return fmt.Errorf("register senders: %w", err)
	}

	janitor, err := notifyq.NewJanitor(queue,
		notifyq.WithCleanupInterval(queueCfg.CleanupInterval),
		notifyq.WithReapInterval(queueCfg.ReapInterval),
		notifyq.WithJanitorLogger(log),
	)
	if err != nil {
		return fmt.Errorf("create janitor: %w", err)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthCheckHandler(log, httpCfg.HealthTimeout, checks))
	r.Mount("/", notifications.Router(queue, notifications.WithLogger(log)))

	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(janitor.Run(ctx))
	g.Go(func() error { return server.Run(ctx, r) })

	return g.Wait()
}

// openStore connects the configured backend and registers its health check.
// The returned func releases the connection.
func openStore(ctx context.Context, log *slog.Logger, driver string, checks map[string]httpserver.Check) (notifyq.Store, func(), error) {
	switch driver {
	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			migrate := func() error { return pg.MigrateFS(ctx, pool, migrations.FS, cfg, log) }
			if cfg.MigrationsPath != "" {
				migrate = func() error { return pg.Migrate(ctx, pool, cfg, log) }
			}
			if err := migrate(); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		store, err := pgstore.New(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		checks["postgres"] = pg.Healthcheck(pool)
		log.Info("using postgres store")
		return store, pool.Close, nil

	case driverMongo:
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, cfg, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		disconnect := func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ConnectTimeout)
			defer cancel()
			if err := db.Client().Disconnect(ctx); err != nil {
				log.Error("failed to disconnect from mongodb", logger.Error(err))
			}
		}
		store, err := mongostore.New(db)
		if err != nil {
			disconnect()
			return nil, nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, err
		}
		checks["mongodb"] = mongo.Healthcheck(db.Client())
		log.Info("using mongodb store", slog.String("database", cfg.Database))
		return store, disconnect, nil

	case driverMemory:
		log.Warn("using in-memory store, notifications are lost on restart")
		return notifyq.NewMemoryStorage(), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", driver)
}

// buildSenders assembles one sender per configured channel.
func buildSenders(ctx context.Context, log *slog.Logger, checks map[string]httpserver.Check) ([]dispatch.Sender, func(), error) {
	var (
		senders []dispatch.Sender
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var emailCfg email.Config
	if err := config.Load(&emailCfg); err != nil {
		return nil, nil, err
	}
	var mailer email.EmailSender
	if emailCfg.UsePostmark() {
		m, err := email.NewPostmarkClient(emailCfg)
		if err != nil {
			return nil, nil, err
		}
		mailer = m
	} else {
		log.Warn("postmark is not configured, emails are written to disk", slog.String("dir", emailCfg.DevOutputDir))
		mailer = email.NewDevSender(emailCfg.DevOutputDir)
	}
	emailSender, err := email.NewChannelSender(mailer)
	if err != nil {
		return nil, nil, err
	}
	senders = append(senders, emailSender)

	var gwCfg webhook.GatewayConfig
	if err := config.Load(&gwCfg); err != nil {
		return nil, nil, err
	}
	for ch, endpoint := range map[notifyq.Channel]string{
		notifyq.ChannelSMS:  gwCfg.SMSURL,
		notifyq.ChannelPush: gwCfg.PushURL,
	} {
		if endpoint == "" {
			continue
		}
		// Options builds a fresh circuit breaker per call, one per endpoint.
		gw, err := webhook.NewGatewaySender(ch, endpoint, gwCfg.Options()...)
		if err != nil {
			return nil, nil, fmt.Errorf("%s gateway: %w", ch, err)
		}
		senders = append(senders, gw)
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, nil, err
	}
	if redisCfg.ConnectionURL != "" {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
				log.Error("failed to close redis client", logger.Error(err))
			}
		})
		pub, err := redis.NewPublisher(client, redis.WithChannelPrefix(redisCfg.ChannelPrefix))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		checks["redis"] = redis.Healthcheck(client)
		senders = append(senders, pub)
	}

	return senders, closeAll, nil
}
