package cli

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gustycube/quad9-domains/internal/aggregate"
	"github.com/gustycube/quad9-domains/internal/config"
	"github.com/gustycube/quad9-domains/internal/cti"
	"github.com/gustycube/quad9-domains/internal/dedup"
	"github.com/gustycube/quad9-domains/internal/logging"
	"github.com/gustycube/quad9-domains/internal/metrics"
	"github.com/gustycube/quad9-domains/internal/opstore"
	"github.com/gustycube/quad9-domains/internal/report"
	"github.com/gustycube/quad9-domains/internal/telemetry"
	"github.com/gustycube/quad9-domains/internal/tunnel"
	"github.com/gustycube/quad9-domains/internal/types"
)

const pushJob = "quad9_domains"

// loggedError marks an error that has already been written to the run log.
type loggedError struct{ error }

func (e *loggedError) Unwrap() error { return e.error }

// app holds the source constructors so tests can substitute them.
type app struct {
	openCTI    func(ctx context.Context, c *config.CTI, log *logging.Logger) (aggregate.ThreatIntelSource, func() error, error)
	newFetcher func(opts tunnel.Options, log *logging.Logger) aggregate.EndpointSource
}

func newApp() *app {
	return &app{
		openCTI: func(ctx context.Context, c *config.CTI, log *logging.Logger) (aggregate.ThreatIntelSource, func() error, error) {
			client, err := cti.Open(ctx, c, log)
			if err != nil {
				return nil, nil, err
			}
			return client, client.Close, nil
		},
		newFetcher: func(opts tunnel.Options, log *logging.Logger) aggregate.EndpointSource {
			return opstore.NewFetcher(opts, log)
		},
	}
}

func (a *app) run(ctx context.Context, cfg *config.Config, st, et string) error {
	// Bad dates fail before any file or network access.
	w, err := types.NewWindow(st, et)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := a.fetchAndWrite(ctx, cfg, log, w, st, et); err != nil {
		log.Errorw("run failed", "err", err)
		return &loggedError{err}
	}
	return nil
}

func (a *app) fetchAndWrite(ctx context.Context, cfg *config.Config, log *logging.Logger, w types.TimeWindow, st, et string) error {
	log.Infow("fetching domains for period", "start", w.Start, "end", w.End)
	if w.Empty() {
		log.Warnw("end date is not after start date, no domains can match", "st", st, "et", et)
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		ServiceName:    cfg.OTELService,
		ServiceVersion: version,
	})
	if err != nil {
		log.Warnw("otel init failed", "err", err)
	} else {
		defer func() {
			if err := shutdown(); err != nil {
				log.Warnw("otel shutdown failed", "err", err)
			}
		}()
	}

	endpoints, err := config.LoadEndpoints(cfg.EndpointsFile)
	if err != nil {
		return err
	}
	ctiCfg, err := config.LoadCTI(cfg.CTIFile)
	if err != nil {
		return err
	}

	ctiSource, closeCTI, err := a.openCTI(ctx, ctiCfg, log)
	if err != nil {
		return err
	}
	defer closeCTI()

	var set dedup.Set
	if cfg.RedisAddr != "" {
		key := dedup.KeyFor(st, et, uuid.NewString())
		rd, err := dedup.NewRedis(ctx, cfg.RedisAddr, key, time.Duration(cfg.RedisTTLSec)*time.Second)
		if err != nil {
			return err
		}
		defer func() {
			if err := rd.Discard(context.Background()); err != nil {
				log.Warnw("redis cleanup failed", "key", key, "err", err)
			}
			_ = rd.Close()
		}()
		log.Infow("redis union store enabled", "addr", cfg.RedisAddr, "key", key)
		set = rd
	} else {
		set = dedup.NewMemory()
	}

	var ops aggregate.EndpointSource
	if len(endpoints) > 0 {
		ops = a.newFetcher(tunnel.OptionsFrom(cfg), log)
	}
	agg := aggregate.New(ctiSource, ops, set, aggregate.Options{
		Parallel:          cfg.Parallel,
		SkipFailedQueries: cfg.SkipFailedQueries,
	}, log)

	domains, err := agg.Collect(ctx, w, endpoints)
	if err != nil {
		return err
	}

	path, err := report.Write(cfg.OutputDir, report.FileName(st, et), domains)
	if err != nil {
		return err
	}
	log.Infow("wrote domains", "path", path, "count", len(domains))

	metrics.ReportDomains.Set(float64(len(domains)))
	metrics.LastSuccessRun.SetToCurrentTime()
	if cfg.Pushgateway != "" {
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := metrics.Push(pctx, cfg.Pushgateway, pushJob); err != nil {
			log.Warnw("metrics push failed", "url", cfg.Pushgateway, "err", err)
		}
	}
	return nil
}
