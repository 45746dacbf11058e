package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/store"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(quietDeps())
	ctx := context.Background()

	a, err := r.Start(ctx, testOptions())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	b, err := r.Start(ctx, testOptions())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if a == b {
		t.Fatalf("duplicate id %v", a)
	}

	ids := r.IDs()
	if len(ids) != 2 || ids[0] > ids[1] {
		t.Errorf("IDs() = %v", ids)
	}

	w, ok := r.Get(a)
	if !ok || w.ID() != a {
		t.Fatalf("Get(%v) = %v, %v", a, w, ok)
	}

	if !r.Stop(a) {
		t.Error("Stop() = false for running worker")
	}
	if r.Stop(a) {
		t.Error("second Stop() = true")
	}
	if _, ok := r.Get(a); ok {
		t.Error("Get() found stopped worker")
	}
	if w.Running() {
		t.Error("stopped worker still running")
	}
	if w.Art() == nil {
		t.Error("stopped worker lost its art")
	}

	_, err = r.Lookup(a)
	if !errors.Is(err, errors.ErrCodeWorkerNotFound) {
		t.Errorf("Lookup() = %v, want WORKER_NOT_FOUND", err)
	}

	r.StopAll()
	if r.Len() != 0 {
		t.Errorf("Len() = %d after StopAll", r.Len())
	}
}

func TestRegistryStartInvalid(t *testing.T) {
	r := NewRegistry(quietDeps())
	opts := testOptions()
	opts.TileSize = images.Square(3)

	if _, err := r.Start(context.Background(), opts); !errors.Is(err, errors.ErrCodeInvalidSize) {
		t.Errorf("Start() = %v, want INVALID_SIZE", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryConcurrentStart(t *testing.T) {
	r := NewRegistry(quietDeps())
	defer r.StopAll()

	const n = 20
	var wg sync.WaitGroup
	ids := make(chan ID, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Start(context.Background(), testOptions())
			if err != nil {
				t.Error(err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[ID]bool{}
	for id := range ids {
		if seen[id] {
			t.Errorf("id %v allocated twice", id)
		}
		seen[id] = true
	}
	if r.Len() != n {
		t.Errorf("Len() = %d, want %d", r.Len(), n)
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("18446744073709551615")
	if err != nil || id != ID(^uint64(0)) {
		t.Errorf("ParseID(max) = %v, %v", id, err)
	}
	if id.String() != "18446744073709551615" {
		t.Errorf("String() = %q", id.String())
	}
	if _, err := ParseID("abc"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ParseID(abc) = %v", err)
	}
}

func TestRegistryKeepsFailedWorker(t *testing.T) {
	deps := quietDeps()
	deps.Store = panickingStore{store.NewMemory()}
	r := NewRegistry(deps)
	defer r.StopAll()

	id, err := r.Start(context.Background(), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	w, _ := r.Get(id)
	if err := w.Submit(context.Background(), direct(100)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not terminate")
	}

	got, err := r.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup() of failed worker = %v", err)
	}
	if !errors.Is(got.Err(), errors.ErrCodeWorkerFailed) {
		t.Errorf("Err() = %v, want WORKER_FAILED", got.Err())
	}
	if !r.Stop(id) {
		t.Error("Stop() = false for failed worker")
	}
}
