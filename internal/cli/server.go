package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"openquest-settlement/internal/app"
	"openquest-settlement/internal/config"
	"openquest-settlement/internal/infra/memory"
	pgarchive "openquest-settlement/internal/infra/postgres"
	rediscache "openquest-settlement/internal/infra/redis"
	transport "openquest-settlement/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the settlement HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadWithLogger(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	service, closeStores, err := newSettlementService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting settlement service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newSettlementService wires the configured stores: Redis for the record cache and feed
// markers, Postgres for the archive, memory for anything left unconfigured.
func newSettlementService(ctx context.Context, cfg config.Config, log *zap.Logger) (*app.SettlementService, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	recordTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var cache app.RecordCache = memory.NewRecordCache(recordTTL)
	var feeds app.FeedRepository = memory.NewFeedStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		cache = rediscache.NewRecordCache(client, recordTTL)
		feeds = rediscache.NewFeedStore(client, recordTTL)
		log.Info("using redis record cache", zap.String("addr", cfg.Redis.Addr))
	}

	var archive app.RecordArchive = memory.NewRecordArchive()
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			closeAll()
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		archive = pgarchive.NewRecordArchive(pool)
		log.Info("using postgres settlement archive")
	}

	return app.NewSettlementService(cache, archive, feeds, log), closeAll, nil
}
