package opstore

import (
	"context"
	"time"

	"github.com/gustycube/quad9-domains/internal/config"
	"github.com/gustycube/quad9-domains/internal/logging"
	"github.com/gustycube/quad9-domains/internal/tunnel"
	"github.com/gustycube/quad9-domains/internal/types"
)

// Fetcher reads one endpoint per call: tunnel up, query, tunnel down.
type Fetcher struct {
	opts tunnel.Options
	log  *logging.Logger
}

func NewFetcher(opts tunnel.Options, log *logging.Logger) *Fetcher {
	return &Fetcher{opts: opts, log: log}
}

// Fetch returns the malicious domains stored behind ep for w. A tunnel that
// cannot be established yields a *types.TunnelError; query failures yield a
// *types.QueryError. The tunnel is always stopped before returning.
func (f *Fetcher) Fetch(ctx context.Context, ep config.Endpoint, w types.TimeWindow) ([]string, error) {
	s, err := tunnel.Open(ctx, ep, f.opts, f.log)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	c, err := Connect(ctx, s.LocalAddr(), f.log)
	if err != nil {
		return nil, err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.Disconnect(dctx)
	}()

	return c.Domains(ctx, ep.DBName, w)
}
