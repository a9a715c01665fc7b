// Package livesync implements the push-based subscription channel that
// delivers full ordered message snapshots whenever a conversation's log
// changes. Storage backends plug in a snapshot loader and call Notify after
// every append.
package livesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
)

const loadTimeout = 5 * time.Second

// Loader reads the current full ordered snapshot of a conversation.
type Loader func(ctx context.Context, conversationID string) ([]chat.Message, error)

// Hub fans conversation change signals out to registered subscribers. Each
// subscriber is served by its own goroutine that reloads and delivers
// snapshots sequentially, so a single subscriber's stream never reorders or
// regresses. Wakeups coalesce: a burst of appends may collapse into one
// delivery carrying all of them.
type Hub struct {
	load   Loader
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	closed bool
}

// NewHub builds a hub over the given snapshot loader.
func NewHub(load Loader, logger *slog.Logger) *Hub {
	return &Hub{
		load:   load,
		logger: logger,
		subs:   make(map[string]map[uint64]*subscriber),
	}
}

// Subscribe registers fn for a conversation and schedules the immediate
// initial snapshot delivery.
func (h *Hub) Subscribe(ctx context.Context, conversationID string, fn chat.SnapshotFunc) (chat.Subscription, error) {
	if fn == nil {
		return nil, errors.New("livesync: snapshot callback is required")
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, errors.New("livesync: hub closed")
	}
	h.nextID++
	sub := &subscriber{
		hub:            h,
		id:             h.nextID,
		conversationID: conversationID,
		fn:             fn,
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[uint64]*subscriber)
	}
	h.subs[conversationID][sub.id] = sub
	h.mu.Unlock()

	go sub.run()
	sub.signal()
	return sub, nil
}

// Notify wakes every subscriber of the conversation so they reload and
// deliver a fresh snapshot.
func (h *Hub) Notify(conversationID string) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[conversationID]))
	for _, sub := range h.subs[conversationID] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()
	for _, sub := range targets {
		sub.signal()
	}
}

// Close cancels every subscription. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	all := make([]*subscriber, 0)
	for _, byID := range h.subs {
		for _, sub := range byID {
			all = append(all, sub)
		}
	}
	h.subs = make(map[string]map[uint64]*subscriber)
	h.mu.Unlock()
	for _, sub := range all {
		sub.Cancel()
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byID := h.subs[sub.conversationID]
	delete(byID, sub.id)
	if len(byID) == 0 {
		delete(h.subs, sub.conversationID)
	}
}

type subscriber struct {
	hub            *Hub
	id             uint64
	conversationID string
	fn             chat.SnapshotFunc
	wake           chan struct{}
	done           chan struct{}
	once           sync.Once
}

// Cancel unregisters the subscriber and stops further deliveries. Calling it
// again is a no-op.
func (s *subscriber) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		msgs, err := s.hub.load(ctx, s.conversationID)
		cancel()
		if err != nil {
			if s.hub.logger != nil {
				s.hub.logger.Warn("live snapshot load failed", "conversation_id", s.conversationID, "error", err)
			}
			continue
		}
		select {
		case <-s.done:
			return
		default:
		}
		s.fn(msgs)
	}
}
