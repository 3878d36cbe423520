package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"openquest-settlement/internal/config"
	"openquest-settlement/internal/transport/rollup"
)

// NewRollupCmd runs the rollup request loop.
func NewRollupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rollup",
		Short: "Settle datasets delivered by a rollup HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollup(cmd.Context(), *configPath)
		},
	}
}

func runRollup(ctx context.Context, configPath string) error {
	cfg, log, err := loadWithLogger(configPath)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Rollup.URL == "" {
		return fmt.Errorf("rollup url not configured (set rollup.url or ROLLUP_HTTP_SERVER_URL)")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, closeStores, err := newSettlementService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	runner := rollup.NewRunner(cfg.Rollup.URL, service, config.TTLDuration(cfg.Rollup.PollInterval, time.Second), log)

	log.Info("starting rollup loop", zap.String("url", cfg.Rollup.URL))
	return runner.Run(ctx)
}
