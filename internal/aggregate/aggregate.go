// Package aggregate merges malicious domains from every configured source
// into one deduplicated set.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gustycube/quad9-domains/internal/config"
	"github.com/gustycube/quad9-domains/internal/dedup"
	"github.com/gustycube/quad9-domains/internal/logging"
	"github.com/gustycube/quad9-domains/internal/metrics"
	"github.com/gustycube/quad9-domains/internal/telemetry"
	"github.com/gustycube/quad9-domains/internal/types"
)

// ThreatIntelSource returns domains first seen within a window.
type ThreatIntelSource interface {
	Domains(ctx context.Context, w types.TimeWindow) ([]string, error)
}

// EndpointSource returns the malicious domains held by one operational
// endpoint.
type EndpointSource interface {
	Fetch(ctx context.Context, ep config.Endpoint, w types.TimeWindow) ([]string, error)
}

type Options struct {
	// Parallel bounds concurrent endpoint fetches. 1 keeps registry order.
	Parallel int
	// SkipFailedQueries treats endpoint query errors like tunnel errors.
	SkipFailedQueries bool
}

type Aggregator struct {
	cti  ThreatIntelSource
	ops  EndpointSource
	set  dedup.Set
	opts Options
	log  *logging.Logger
}

// New returns an Aggregator. ops may be nil when no endpoints are configured.
func New(cti ThreatIntelSource, ops EndpointSource, set dedup.Set, opts Options, log *logging.Logger) *Aggregator {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	return &Aggregator{cti: cti, ops: ops, set: set, opts: opts, log: log}
}

// Collect returns the union of every reachable endpoint's domains and the
// threat-intel domains for w. Endpoints whose tunnel fails contribute nothing.
func (a *Aggregator) Collect(ctx context.Context, w types.TimeWindow, endpoints []config.Endpoint) ([]string, error) {
	names := make([]string, len(endpoints))
	for i, ep := range endpoints {
		names[i] = ep.String()
	}
	a.log.Infow("Q servers", "servers", names)

	if len(endpoints) > 0 {
		if a.ops == nil {
			return nil, errors.New("endpoints configured without an endpoint source")
		}
		if err := a.fetchEndpoints(ctx, w, endpoints); err != nil {
			return nil, err
		}
	}

	if err := a.fetchThreatIntel(ctx, w); err != nil {
		return nil, err
	}
	return a.set.Members(ctx)
}

func (a *Aggregator) fetchEndpoints(ctx context.Context, w types.TimeWindow, endpoints []config.Endpoint) error {
	if a.opts.Parallel == 1 {
		for _, ep := range endpoints {
			if err := a.fetchEndpoint(ctx, w, ep); err != nil {
				return err
			}
		}
		return nil
	}

	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(a.opts.Parallel)
	for _, ep := range endpoints {
		ep := ep
		p.Go(func(ctx context.Context) error {
			return a.fetchEndpoint(ctx, w, ep)
		})
	}
	return p.Wait()
}

func (a *Aggregator) fetchEndpoint(ctx context.Context, w types.TimeWindow, ep config.Endpoint) error {
	ctx, span := telemetry.Tracer().Start(ctx, "FetchEndpoint")
	defer span.End()
	span.SetAttributes(attribute.String("endpoint.public", ep.PublicAddr), attribute.String("endpoint.private", ep.PrivateAddr))

	start := time.Now()
	domains, err := a.ops.Fetch(ctx, ep, w)
	metrics.FetchDuration.WithLabelValues("q").Observe(time.Since(start).Seconds())

	if err != nil {
		var te *types.TunnelError
		if errors.As(err, &te) {
			metrics.EndpointFetch.WithLabelValues(metrics.StatusTunnelFailed).Inc()
			span.SetStatus(codes.Error, "tunnel failed")
			a.log.Warnw("could not SSH-tunnel", "endpoint", ep, "err", err)
			return nil
		}
		metrics.EndpointFetch.WithLabelValues(metrics.StatusQueryFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		if a.opts.SkipFailedQueries {
			a.log.Warnw("endpoint query failed, skipping", "endpoint", ep, "err", err)
			return nil
		}
		return fmt.Errorf("%s: %w", ep, err)
	}

	metrics.EndpointFetch.WithLabelValues(metrics.StatusOK).Inc()
	metrics.SourceDomains.WithLabelValues("q").Add(float64(len(domains)))
	span.SetAttributes(attribute.Int("domains", len(domains)))

	added, err := a.set.Add(ctx, domains...)
	if err != nil {
		return fmt.Errorf("merge %s: %w", ep, err)
	}
	a.log.Debugw("merged endpoint domains", "endpoint", ep.String(), "fetched", len(domains), "new", added)
	return nil
}

func (a *Aggregator) fetchThreatIntel(ctx context.Context, w types.TimeWindow) error {
	ctx, span := telemetry.Tracer().Start(ctx, "FetchThreatIntel")
	defer span.End()

	start := time.Now()
	domains, err := a.cti.Domains(ctx, w)
	metrics.FetchDuration.WithLabelValues("cti").Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return err
	}
	metrics.SourceDomains.WithLabelValues("cti").Add(float64(len(domains)))
	span.SetAttributes(attribute.Int("domains", len(domains)))

	added, err := a.set.Add(ctx, domains...)
	if err != nil {
		return fmt.Errorf("merge cti: %w", err)
	}
	a.log.Debugw("merged CTI domains", "fetched", len(domains), "new", added)
	return nil
}
