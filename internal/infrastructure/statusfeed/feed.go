// Package statusfeed buffers the orchestrator's observable output and fans it out
// to subscribers (HTTP event stream, CLI printer).
package statusfeed

import (
	"sync"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
)

const defaultCapacity = 100

// EventType distinguishes feed events.
type EventType string

const (
	EventStatus  EventType = "status"
	EventTokens  EventType = "tokens"
	EventOutcome EventType = "outcome"
)

// Event is one feed entry as delivered to subscribers.
type Event struct {
	Type    EventType             `json:"type"`
	Status  *entity.StatusMessage `json:"status,omitempty"`
	Tokens  []entity.TokenRecord  `json:"tokens,omitempty"`
	Outcome *entity.TrackOutcome  `json:"outcome,omitempty"`
}

// Feed implements port.TransferObserver.
type Feed struct {
	logger   port.Logger
	capacity int

	mu          sync.RWMutex
	messages    []entity.StatusMessage
	tokens      []entity.TokenRecord
	lastOutcome *entity.TrackOutcome
	subscribers map[int]chan Event
	nextID      int
}

var _ port.TransferObserver = (*Feed)(nil)

// New creates a feed keeping the last capacity messages (100 when capacity <= 0).
func New(capacity int, logger port.Logger) *Feed {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{logger: logger, capacity: capacity, subscribers: make(map[int]chan Event)}
}

// Publish records a status message.
func (f *Feed) Publish(msg entity.StatusMessage) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	if over := len(f.messages) - f.capacity; over > 0 {
		f.messages = append(f.messages[:0:0], f.messages[over:]...)
	}
	f.mu.Unlock()

	f.logger.Debug("Status", "severity", msg.Severity, "text", msg.Text)
	f.broadcast(Event{Type: EventStatus, Status: &msg})
}

// TokensUpdated replaces the displayed token list.
func (f *Feed) TokensUpdated(tokens []entity.TokenRecord) {
	f.mu.Lock()
	f.tokens = append([]entity.TokenRecord(nil), tokens...)
	f.mu.Unlock()
	f.broadcast(Event{Type: EventTokens, Tokens: tokens})
}

// Outcome records the terminal result of a tracked batch.
func (f *Feed) Outcome(outcome entity.TrackOutcome) {
	f.mu.Lock()
	f.lastOutcome = &outcome
	f.mu.Unlock()
	f.broadcast(Event{Type: EventOutcome, Outcome: &outcome})
}

// Messages returns the buffered messages, oldest first. limit > 0 keeps the newest limit.
func (f *Feed) Messages(limit int) []entity.StatusMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	msgs := f.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]entity.StatusMessage(nil), msgs...)
}

// Latest returns the newest message.
func (f *Feed) Latest() (entity.StatusMessage, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.messages) == 0 {
		return entity.StatusMessage{}, false
	}
	return f.messages[len(f.messages)-1], true
}

// Tokens returns the last published token list.
func (f *Feed) Tokens() []entity.TokenRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]entity.TokenRecord(nil), f.tokens...)
}

// LastOutcome returns the last terminal outcome, if any.
func (f *Feed) LastOutcome() (entity.TrackOutcome, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.lastOutcome == nil {
		return entity.TrackOutcome{}, false
	}
	return *f.lastOutcome, true
}

// Subscribe returns a channel receiving every following event and a cancel func.
// Slow subscribers lose events instead of blocking the publisher.
func (f *Feed) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscribers[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed) broadcast(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			f.logger.Debug("Dropping event for slow subscriber", "subscriber", id, "type", ev.Type)
		}
	}
}
