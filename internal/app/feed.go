package app

import (
	"sync"

	"openquest-settlement/internal/domain"
)

// NewFeed is exported for infrastructure layers that need to seed feeds.
func NewFeed(quizID string) *Feed {
	return &Feed{
		quizID:      quizID,
		subscribers: make(map[chan domain.SettlementRecord]struct{}),
	}
}

// Feed fans settlement records for one quiz out to live subscribers.
type Feed struct {
	quizID      string
	mu          sync.RWMutex
	last        *domain.SettlementRecord
	subscribers map[chan domain.SettlementRecord]struct{}
}

// QuizID returns the quiz this feed belongs to.
func (f *Feed) QuizID() string {
	return f.quizID
}

// IsEmpty reports whether the feed has no subscribers.
func (f *Feed) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers) == 0
}

func (f *Feed) subscribe() (chan domain.SettlementRecord, func()) {
	ch := make(chan domain.SettlementRecord, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	if f.last != nil {
		ch <- *f.last
	}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// prime delivers record to a fresh subscriber unless a newer record was already published,
// in which case ch has received that one.
func (f *Feed) prime(ch chan domain.SettlementRecord, record domain.SettlementRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last != nil {
		return
	}
	f.last = &record
	if _, ok := f.subscribers[ch]; !ok {
		return
	}
	select {
	case ch <- record:
	default:
	}
}

func (f *Feed) publish(record domain.SettlementRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = &record
	for ch := range f.subscribers {
		select {
		case ch <- record:
		default:
			// drop the oldest update so a slow subscriber never blocks settlement
			select {
			case <-ch:
			default:
			}
			ch <- record
		}
	}
}
