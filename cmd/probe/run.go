package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shirou/gopsutil/v3/host"
	"go.uber.org/zap"

	pgcollector "github.com/vshulcz/pgprobe/internal/adapters/collector/postgres"
	"github.com/vshulcz/pgprobe/internal/adapters/publisher/fanout"
	"github.com/vshulcz/pgprobe/internal/adapters/publisher/httpjson"
	"github.com/vshulcz/pgprobe/internal/adapters/publisher/ndjson"
	filestore "github.com/vshulcz/pgprobe/internal/adapters/ratestore/file"
	pgstore "github.com/vshulcz/pgprobe/internal/adapters/ratestore/postgres"
	"github.com/vshulcz/pgprobe/internal/config"
	"github.com/vshulcz/pgprobe/internal/ports"
	"github.com/vshulcz/pgprobe/internal/services/probe"
	"github.com/vshulcz/pgprobe/pkg/util"
)

// run performs one probe pass. A nil collector means the real PostgreSQL collector.
func run(ctx context.Context, args []string, stdout io.Writer, collector ports.StatsCollector) error {
	cfg, err := config.LoadProbeConfig(args, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	if cfg.ShowVersion {
		return util.PrintBuildInfo(stdout, buildVersion, buildDate, buildCommit)
	}

	unit, err := probe.ParseUnit(cfg.Per)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := buildRateStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pub, err := buildPublisher(cfg, stdout, logger)
	if err != nil {
		return err
	}

	if collector == nil {
		collector = pgcollector.New(pgcollector.WithLogger(logger))
	}

	svc := probe.New(cfg.Conn, collector, probe.NewRateDeriver(store, unit), pub,
		probe.WithLogger(logger),
		probe.WithSource(hostname(ctx)),
	)
	out, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}
	logger.Debug("probe finished",
		zap.String("target", out.Envelope.Target),
		zap.Bool("emitted", out.Emitted),
		zap.Bool("failed", out.Envelope.Error != nil))
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func buildRateStore(ctx context.Context, cfg config.ProbeConfig, logger *zap.Logger) (ports.RateStore, func(), error) {
	if cfg.StateDSN != "" {
		st, err := pgstore.Open(ctx, cfg.StateDSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open state database: %w", err)
		}
		logger.Debug("state db connected & migrated")
		return st, func() {
			if err := st.Close(); err != nil {
				logger.Warn("close state database", zap.Error(err))
			}
		}, nil
	}
	logger.Debug("using state file", zap.String("file", cfg.StateFile))
	return filestore.New(cfg.StateFile), func() {}, nil
}

func buildPublisher(cfg config.ProbeConfig, stdout io.Writer, logger *zap.Logger) (ports.Publisher, error) {
	var targets []ports.Publisher
	if cfg.Address != "" {
		c, err := httpjson.New(cfg.Address, nil, cfg.Key, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init publisher: %w", err)
		}
		targets = append(targets, c)
	}
	switch cfg.Output {
	case "":
	case ndjson.Stdout:
		targets = append(targets, ndjson.NewStream(stdout))
	default:
		targets = append(targets, ndjson.New(cfg.Output))
	}
	return fanout.New(logger, targets...), nil
}

func hostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	h, _ := os.Hostname()
	return h
}
