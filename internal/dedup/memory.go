package dedup

import (
	"context"
	"sync"
)

// Memory is an in-process Set that keeps first-insertion order.
type Memory struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func NewMemory() *Memory { return &Memory{seen: make(map[string]struct{})} }

func (d *Memory) Add(_ context.Context, domains ...string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	added := 0
	for _, dom := range domains {
		if _, ok := d.seen[dom]; ok {
			continue
		}
		d.seen[dom] = struct{}{}
		d.order = append(d.order, dom)
		added++
	}
	return added, nil
}

func (d *Memory) Members(_ context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out, nil
}

// Len returns the number of distinct domains.
func (d *Memory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}
