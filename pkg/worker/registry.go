package worker

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/matzehuels/mosaic/pkg/errors"
)

// Registry tracks the workers of a process. Ids are never reused while the
// process lives.
type Registry struct {
	deps   Deps
	nextID atomic.Uint64

	mu      sync.Mutex
	workers map[ID]*Worker
}

// NewRegistry creates an empty registry whose workers share deps.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{deps: deps, workers: make(map[ID]*Worker)}
	r.nextID.Store(rand.Uint64() >> 1)
	return r
}

// Start launches a worker and registers it.
func (r *Registry) Start(ctx context.Context, opts Options) (ID, error) {
	id := ID(r.nextID.Add(1))
	w, err := Start(ctx, id, opts, r.deps)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.workers[id] = w
	r.mu.Unlock()
	return id, nil
}

// Get returns the worker with id. Workers removed by [Registry.Stop] are
// not returned; a worker that failed on its own stays registered so its
// error and last art remain readable.
func (r *Registry) Get(id ID) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	return w, ok
}

// Lookup is Get with an ErrCodeWorkerNotFound error.
func (r *Registry) Lookup(id ID) (*Worker, error) {
	if w, ok := r.Get(id); ok {
		return w, nil
	}
	return nil, errors.New(errors.ErrCodeWorkerNotFound, "worker %s not found", id)
}

// Stop unregisters and stops the worker. It reports false for an unknown
// id, so a second Stop of the same id is a no-op.
func (r *Registry) Stop(id ID) bool {
	r.mu.Lock()
	w, ok := r.workers[id]
	delete(r.workers, id)
	r.mu.Unlock()
	if ok {
		w.Stop()
	}
	return ok
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []ID {
	r.mu.Lock()
	ids := make([]ID, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// StopAll stops every worker concurrently and waits for all of them.
func (r *Registry) StopAll() {
	r.mu.Lock()
	workers := r.workers
	r.workers = make(map[ID]*Worker)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
