package neoquery

import (
	"context"
	"errors"
	"sync"
)

// registry tracks every connection created in the process so the host
// application can close them all during its own shutdown.
type registry struct {
	mu    sync.Mutex
	conns []*Connection
}

var defaultRegistry = &registry{}

func (r *registry) add(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, c)
}

// open returns the registered connections that are still open.
func (r *registry) open() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Connection
	for _, c := range r.conns {
		if c.IsOpen() {
			out = append(out, c)
		}
	}
	return out
}

func (r *registry) shutdown(ctx context.Context) error {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range conns {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown closes every connection created by NewConnection that is still
// open and forgets all of them. Call it once from the application's shutdown
// sequence. Closing a single connection does not remove it from the set.
func Shutdown(ctx context.Context) error {
	return defaultRegistry.shutdown(ctx)
}

// OpenConnections reports how many registered connections are still open.
func OpenConnections() int {
	return len(defaultRegistry.open())
}
