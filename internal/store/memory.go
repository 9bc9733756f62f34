// internal/store/memory.go
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/Shlok909/pawsitiveAI/internal/report"
)

// Memory is an in-process Store backend. Same contract as SQLite,
// nothing survives the process.
type Memory struct {
	mu      sync.Mutex
	entries map[string]report.Report
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]report.Report),
		now:     time.Now,
	}
}

func (m *Memory) Put(r *report.Report) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := NewID(m.now())
	m.entries[id] = *r
	return id, nil
}

func (m *Memory) Get(id string) (*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) List() ([]StoredReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]StoredReport, 0, len(m.entries))
	for id, r := range m.entries {
		out = append(out, StoredReport{ID: id, Report: r})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID > out[j].ID
	})
	return out, nil
}
