package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"ddrc/internal/admin"
	"ddrc/internal/mail"
	"ddrc/internal/oauth"
	oauthhandler "ddrc/internal/oauth/handler"
	"ddrc/internal/pdf"
	"ddrc/internal/platform/config"
	"ddrc/internal/platform/database"
	"ddrc/internal/platform/httpserver"
	"ddrc/internal/platform/logger"
	"ddrc/internal/platform/metrics"
	"ddrc/internal/platform/redis"
	"ddrc/internal/platform/secrets"
	"ddrc/internal/session"
	"ddrc/internal/storage"
	"ddrc/internal/taskqueue"
	httptransport "ddrc/internal/transport/http"
	"ddrc/internal/userflow"
	vrhandler "ddrc/internal/vitalrecords/handler"
	"ddrc/internal/vitalrecords/service"
	"ddrc/internal/vitalrecords/store"
	"ddrc/internal/vitalrecords/tasks"
	"ddrc/internal/web"
	"ddrc/pkg/platform/audit/kafka"
	"ddrc/pkg/platform/audit/publisher"
	"ddrc/pkg/platform/audit/store/sqlstore"
	txcontext "ddrc/pkg/platform/tx"
)

// main wires the portal: HTTP server, task worker and cleanup scheduler
// share one context that ends on SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat, cfg.Server.Debug)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ddrc stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("ddrc stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := database.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	txRunner := txcontext.SQLRunner{DB: db.DB}

	auditor, closeAudit, err := newAuditor(ctx, cfg.Audit, db, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	files, err := newStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	sessions, closeSessions, err := newSessions(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSessions()

	renderer, err := web.NewRenderer()
	if err != nil {
		return err
	}
	location, err := time.LoadLocation(cfg.Server.TimeZone)
	if err != nil {
		return fmt.Errorf("load time zone %s: %w", cfg.Server.TimeZone, err)
	}

	requests := store.NewSQL(db)
	taskStore := taskqueue.NewSQL(db)
	queue := taskqueue.NewQueue(taskStore, log)

	svc := service.New(requests, queue,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditor(auditor),
		service.WithTx(txRunner),
	)

	mailer := mail.NewSMTPSender(mail.Config{
		Host:      cfg.Mail.Host,
		Port:      cfg.Mail.Port,
		Username:  cfg.Mail.Username,
		Password:  cfg.Mail.Password,
		TLSPolicy: cfg.Mail.TLSPolicy,
		From:      cfg.Mail.From,
	})
	pipeline := tasks.New(requests, pdf.NewFiller(cfg.VitalRecords.TemplateDir), files, mailer, renderer, queue,
		cfg.VitalRecords.EmailTo,
		tasks.WithLogger(log),
		tasks.WithMetrics(m),
		tasks.WithAuditor(auditor),
		tasks.WithTx(txRunner),
		tasks.WithLocation(location),
	)
	worker := taskqueue.NewWorker(taskStore,
		taskqueue.WithLogger(log),
		taskqueue.WithMetrics(m),
		taskqueue.WithPollInterval(cfg.Tasks.PollInterval),
		taskqueue.WithTimeout(cfg.Tasks.Timeout),
		taskqueue.WithRetry(cfg.Tasks.MaxAttempts, cfg.Tasks.RetryBackoff),
		taskqueue.WithConcurrency(cfg.Tasks.Workers),
	)
	pipeline.Register(worker)
	scheduler := taskqueue.NewScheduler(queue, service.TaskGroup, service.TaskCleanup, struct{}{}, cfg.Tasks.CleanupInterval, log)

	flows := userflow.NewRegistry(userflow.FromConfig(cfg.OAuth))
	clients := oauth.NewRegistry(secrets.New(cfg.SecretsDir), cfg.Server.BaseURL+oauthhandler.AuthorizePath, nil)

	router := httptransport.NewRouter(
		httptransport.Config{Logger: log, Metrics: m, Gatherer: prometheus.DefaultGatherer},
		vrhandler.New(svc, sessions, flows, renderer, log),
		oauthhandler.New(clients, sessions, flows, renderer, cfg.Server.BaseURL,
			oauthhandler.WithLogger(log),
			oauthhandler.WithAuditor(auditor),
		),
		admin.New(svc, queue, auditor, cfg.Server.AdminTokenHash, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpserver.Run(ctx, srv, log) })
	g.Go(func() error { return ignoreCanceled(worker.Run(ctx)) })
	g.Go(func() error { return ignoreCanceled(scheduler.Run(ctx)) })
	return g.Wait()
}

// newAuditor stores events in the database and, when brokers are
// configured, also produces them to Kafka.
func newAuditor(ctx context.Context, cfg config.Audit, db *database.DB, log *slog.Logger) (*publisher.Publisher, func(), error) {
	opts := []publisher.Option{publisher.WithLogger(log), publisher.WithAsyncBuffer(cfg.Buffer)}
	var sink *kafka.Sink
	if len(cfg.KafkaBrokers) > 0 {
		var err error
		sink, err = kafka.NewSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		if err := sink.EnsureTopic(ctx); err != nil {
			sink.Close()
			return nil, nil, err
		}
		opts = append(opts, publisher.WithSinks(sink))
		log.Info("audit events mirrored to kafka", "topic", cfg.KafkaTopic)
	}
	p := publisher.NewPublisher(sqlstore.New(db), opts...)
	return p, func() {
		p.Close()
		if sink != nil {
			sink.Close()
		}
	}, nil
}

func newStorage(ctx context.Context, cfg config.Storage) (tasks.Storage, error) {
	if cfg.Backend == "minio" {
		return storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	}
	return storage.NewFS(cfg.Dir)
}

// newSessions keeps sessions in Redis when a URL is configured, in memory
// otherwise.
func newSessions(ctx context.Context, cfg config.Config, log *slog.Logger) (*session.Manager, func(), error) {
	opts := []session.Option{
		session.WithCookieName(cfg.Session.CookieName),
		session.WithTTL(cfg.Session.TTL),
		session.WithSecureCookie(cfg.Session.Secure),
		session.WithLogger(log),
	}
	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc == nil {
		log.Warn("DDRC_REDIS_URL not set, sessions are kept in memory")
		return session.NewManager(session.NewInMemory(), cfg.Session.SigningKey, opts...), func() {}, nil
	}
	return session.NewManager(session.NewRedis(rc.Client), cfg.Session.SigningKey, opts...), func() { _ = rc.Close() }, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
