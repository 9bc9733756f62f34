// internal/chat/manager.go
package chat

import (
	"sync"

	"github.com/Shlok909/pawsitiveAI/internal/report"
)

// Getter is the slice of the report store chat needs.
type Getter interface {
	Get(id string) (*report.Report, error)
}

// Manager hands out one session per report id. An unknown id surfaces the
// store's not-found error; callers redirect to history rather than fail.
type Manager struct {
	store    Getter
	answerer Answerer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager over the report store.
func NewManager(st Getter, answerer Answerer) *Manager {
	return &Manager{
		store:    st,
		answerer: answerer,
		sessions: make(map[string]*Session),
	}
}

// Session returns the chat session for a report id, opening it on first
// use. Returns store.ErrNotFound for an unknown id.
func (m *Manager) Session(reportID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[reportID]; ok {
		return s, nil
	}

	rep, err := m.store.Get(reportID)
	if err != nil {
		return nil, err
	}

	s := Open(reportID, rep, m.answerer)
	m.sessions[reportID] = s
	return s, nil
}
