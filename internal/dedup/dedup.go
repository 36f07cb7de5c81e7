// Package dedup holds the union of domains collected during a run.
package dedup

import "context"

// Set is a union store. Domains are compared byte-for-byte; no case or
// whitespace normalisation is applied.
type Set interface {
	// Add inserts domains and returns how many were not already present.
	Add(ctx context.Context, domains ...string) (int, error)
	// Members returns every domain in the set exactly once.
	Members(ctx context.Context) ([]string, error)
}
