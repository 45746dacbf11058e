package store

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

// Memory keeps records in process memory.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	ids     map[string]bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{ids: make(map[string]bool)}
}

func (m *Memory) Contains(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ids[id], nil
}

func (m *Memory) FindByHashtags(_ context.Context, tags []string, limit int, size images.Size) ([]post.Post, error) {
	m.mu.RLock()
	var matched []Record
	for i := len(m.records) - 1; i >= 0 && len(matched) < limit; i-- {
		if slices.Contains(tags, m.records[i].Hashtag) {
			matched = append(matched, m.records[i])
		}
	}
	m.mu.RUnlock()

	out := make([]post.Post, 0, len(matched))
	for _, r := range matched {
		p, err := r.Post(size)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, p post.Post) error {
	r, err := NewRecord(p)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[r.ID] {
		return nil
	}
	m.ids[r.ID] = true
	m.records = append(m.records, r)
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close(context.Context) error { return nil }

var _ Store = (*Memory)(nil)
