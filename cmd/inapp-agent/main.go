// Package main is the entry point of the in-app messaging agent.
//
// The agent keeps the device's in-app and inbox lists in sync with the
// message store (PostgreSQL, or process memory when no database is
// configured), decides which in-app message to show, and serves the local
// HTTP bridge through which the UI process draws messages and reports user
// interactions. Consume and remove signals go to the store and, when
// configured, to the SQS sync-signal queue.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"inappkit/internal/api"
	"inappkit/internal/config"
	"inappkit/internal/db"
	"inappkit/internal/ingest"
	"inappkit/internal/messaging"
	"inappkit/internal/msgsync"
	"inappkit/internal/types"
)

// purgeInterval is how often retired messages are deleted from the database.
const purgeInterval = time.Hour

// slogAdapter wraps *slog.Logger to implement types.Logger, whose With
// returns types.Logger rather than *slog.Logger.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel).With("service", cfg.Service, "device_id", cfg.DeviceID)
	logger.Info("in-app agent starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := connectBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.close()

	a, err := newAgent(cfg, backends, logger)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

// backends are the external systems the agent talks to. Every field may be
// nil when the corresponding setting is empty.
type backends struct {
	pool       *pgxpool.Pool
	sqs        msgsync.SQSSender
	cloudwatch messaging.CloudWatchClient
}

func (b *backends) close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

func connectBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Database.URL.Unmask() != "" {
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		b.pool = pool
		logger.Info("connected to message database")
	} else {
		logger.Warn("DATABASE_URL not set; messages are kept in memory")
	}

	if cfg.AWS.SyncQueueURL == "" && !cfg.Observability.EnableMetrics {
		return b, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		b.close()
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	endpoint := cfg.AWS.EndpointURL

	if cfg.AWS.SyncQueueURL != "" {
		b.sqs = sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
	}
	if cfg.Observability.EnableMetrics {
		b.cloudwatch = cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
	}
	return b, nil
}

func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = dbCfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// agent is the wired application.
type agent struct {
	cfg    *config.Config
	logger *slog.Logger
	server *api.Server
	syncer *msgsync.Syncer
	repo   *db.MessageRepository
	clock  types.Clock
}

func newAgent(cfg *config.Config, b *backends, logger *slog.Logger) (*agent, error) {
	typed := &slogAdapter{logger: logger}
	clock := types.RealClock{}
	decoder := ingest.NewDecoder(clock)

	var (
		store     api.PayloadStore
		source    msgsync.Source
		notifiers msgsync.MultiNotifier
		probes    []api.HealthProbe
		repo      *db.MessageRepository
	)
	if b.pool != nil {
		repo = db.NewMessageRepository(b.pool, cfg.DeviceID)
		if err := repo.EnsureSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("preparing message schema: %w", err)
		}
		store, source = repo, repo
		notifiers = append(notifiers, repo)
		probes = append(probes, api.ProbeFunc{ProbeName: "database", Fn: b.pool.Ping})
	} else {
		mem := msgsync.NewMemoryStore(clock)
		store, source = mem, mem
		notifiers = append(notifiers, mem)
	}
	if b.sqs != nil {
		notifiers = append(notifiers, msgsync.NewSQSNotifier(b.sqs, cfg.AWS.SyncQueueURL, cfg.DeviceID, clock, typed))
	}

	var metrics messaging.DisplayMetrics = messaging.NopMetrics{}
	if b.cloudwatch != nil {
		metrics = messaging.NewCloudWatchDisplayMetrics(b.cloudwatch, cfg.Observability.MetricNamespace, typed)
	}

	actionLog := messaging.ActionHandlerFunc(func(_ context.Context, msg types.MessageCore, result types.ActionResult) {
		typed.Info("message action",
			"message_id", msg.MessageID,
			"campaign_id", msg.CampaignID,
			"action_type", string(result.Type),
			"data", result.Data,
		)
	})

	bridge := api.NewDisplayBridge(clock, typed)
	inApp := messaging.NewInAppManager(bridge, notifiers, typed,
		messaging.WithClock(clock),
		messaging.WithMetrics(metrics),
		messaging.WithActionHandlers(actionLog),
		messaging.WithDisplayInterval(cfg.Display.Interval),
		messaging.WithAutoDisplay(cfg.Display.AutoDisplay),
	)
	inbox := messaging.NewInboxManager(bridge, notifiers, typed,
		messaging.WithClock(clock),
		messaging.WithMetrics(metrics),
		messaging.WithActionHandlers(actionLog),
	)

	syncer := msgsync.NewSyncer(msgsync.SyncerConfig{
		RefreshInterval: cfg.Sync.RefreshInterval,
		Metrics:         metrics,
		Clock:           clock,
	}, decoder, inApp, inbox, typed, source)

	srv, err := api.NewServer(inApp, inbox, bridge, cfg.Server.BridgeToken, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Syncer = syncer
	srv.Decoder = decoder
	srv.Store = store
	srv.HealthProbes = probes
	srv.Actions = types.NewActionURLParser(cfg.Display.DismissSchemes...)
	srv.MountRoutes()

	return &agent{
		cfg:    cfg,
		logger: logger,
		server: srv,
		syncer: syncer,
		repo:   repo,
		clock:  clock,
	}, nil
}

// run serves HTTP and runs the sync loop (and the purge loop when a database
// is configured) until ctx is cancelled or one of them fails.
func (a *agent) run(ctx context.Context) error {
	addr := ":" + a.cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.syncer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if a.repo != nil {
		g.Go(func() error {
			a.purgeLoop(gctx)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		a.logger.Info("agent stopped cleanly")
	}
	return err
}

func (a *agent) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.purgeOnce(ctx)
		}
	}
}

func (a *agent) purgeOnce(ctx context.Context) {
	cutoff := a.clock.Now().Add(-a.cfg.Database.RetentionPeriod)
	n, err := a.repo.PurgeRetired(ctx, cutoff)
	if err != nil {
		a.logger.Error("failed to purge retired messages", "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("purged retired messages", "count", n, "cutoff", cutoff)
	}
}

// newLogger creates a JSON slog.Logger at the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
