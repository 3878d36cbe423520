package memory

import (
	"context"
	"sync"

	"openquest-settlement/internal/app"
	"openquest-settlement/internal/domain"
)

// RecordArchive is an in-memory implementation of app.RecordArchive, used when no
// Postgres URL is configured.
type RecordArchive struct {
	mu     sync.RWMutex
	byID   map[string]struct{}
	latest map[string][]byte
}

func NewRecordArchive() *RecordArchive {
	return &RecordArchive{
		byID:   make(map[string]struct{}),
		latest: make(map[string][]byte),
	}
}

func (a *RecordArchive) Save(_ context.Context, s app.Settlement) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byID[s.ID]; ok {
		return nil
	}
	a.byID[s.ID] = struct{}{}
	stored := make([]byte, len(s.Envelope))
	copy(stored, s.Envelope)
	a.latest[s.Record.QuizID] = stored
	return nil
}

func (a *RecordArchive) Latest(_ context.Context, quizID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	envelope, ok := a.latest[quizID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return envelope, nil
}
