// Package router decodes raw push channel frames into typed events and
// dispatches them to registered subscribers.
package router

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/openagora/dashsync/internal/connection"
	"github.com/openagora/dashsync/internal/dedup"
	"github.com/openagora/dashsync/internal/metrics"
	"github.com/openagora/dashsync/internal/model"
)

// Router parses raw push channel messages and dispatches typed events
// to subscribers.
type Router interface {
	// Start begins routing messages from the input channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Register subscribes a handler to an event kind. Handlers for the
	// same kind run in registration order.
	Register(kind model.Kind, h Handler) Token

	// Unregister removes a single registration. Returns false if the
	// token was already removed.
	Unregister(tok Token) bool

	// UnregisterAll removes every handler for a kind.
	UnregisterAll(kind model.Kind)

	// Stats returns current router statistics.
	Stats() RouterStats
}

type registration struct {
	id uint64
	h  Handler
}

// router is the internal implementation.
type router struct {
	logger *slog.Logger
	m      *metrics.Metrics

	// Input from Connection Manager
	input <-chan connection.RawMessage

	// Redelivery suppression
	window *dedup.Window

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	handlers map[model.Kind][]registration
	nextID   uint64
	stats    RouterStats
}

// NewRouter creates a new event router. window and m may be nil to
// disable deduplication and metrics respectively.
func NewRouter(input <-chan connection.RawMessage, window *dedup.Window, m *metrics.Metrics, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		logger:   logger,
		m:        m,
		input:    input,
		window:   window,
		handlers: make(map[model.Kind][]registration),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("event router started")
	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping event router")

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("event router stopped")
	case <-ctx.Done():
		r.logger.Warn("event router stop timed out")
	}

	return nil
}

// Register subscribes a handler to an event kind.
func (r *router) Register(kind model.Kind, h Handler) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.handlers[kind] = append(r.handlers[kind], registration{id: r.nextID, h: h})

	return Token{kind: kind, id: r.nextID}
}

// Unregister removes a single registration.
func (r *router) Unregister(tok Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.handlers[tok.kind]
	for i, reg := range regs {
		if reg.id == tok.id {
			r.handlers[tok.kind] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// UnregisterAll removes every handler for a kind.
func (r *router) UnregisterAll(kind model.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, kind)
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case raw, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(raw)
		}
	}
}

// route decodes and dispatches a single message.
func (r *router) route(raw connection.RawMessage) {
	r.mu.Lock()
	r.stats.MessagesReceived++
	r.mu.Unlock()
	if r.m != nil {
		r.m.MessagesReceived.Inc()
	}

	ev, err := model.DecodeEvent(raw.Data, raw.ReceivedAt)
	if err != nil {
		var unknown *model.ErrUnknownKind
		if errors.As(err, &unknown) {
			// Control frames and event types this client does not
			// understand are skipped, not errors.
			r.logger.Debug("skipping unknown event", "error", err)
			r.mu.Lock()
			r.stats.UnknownEvents++
			r.mu.Unlock()
			if r.m != nil {
				r.m.UnknownEvents.Inc()
			}
			return
		}

		r.logger.Warn("failed to decode event", "error", err)
		r.mu.Lock()
		r.stats.ParseErrors++
		r.mu.Unlock()
		if r.m != nil {
			r.m.ParseErrors.Inc()
		}
		return
	}

	if r.window != nil && r.window.Seen(ev.DeliveryID) {
		r.logger.Debug("dropping redelivered event",
			"type", ev.Kind.String(),
			"delivery_id", ev.DeliveryID,
		)
		r.mu.Lock()
		r.stats.DuplicatesDropped++
		r.mu.Unlock()
		if r.m != nil {
			r.m.DuplicatesDropped.Inc()
		}
		return
	}

	r.dispatch(ev)
}

// dispatch calls every handler registered for the event's kind,
// synchronously and in registration order.
func (r *router) dispatch(ev model.Event) {
	r.mu.RLock()
	regs := r.handlers[ev.Kind]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	r.mu.RUnlock()

	for _, reg := range snapshot {
		r.invoke(reg, ev)
	}

	r.mu.Lock()
	r.stats.EventsDispatched++
	r.mu.Unlock()
	if r.m != nil {
		r.m.EventsDispatched.WithLabelValues(ev.Kind.String()).Inc()
	}
}

// invoke runs one handler with panic isolation.
func (r *router) invoke(reg registration, ev model.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked",
				"type", ev.Kind.String(),
				"panic", rec,
			)
			r.mu.Lock()
			r.stats.HandlerPanics++
			r.mu.Unlock()
			if r.m != nil {
				r.m.HandlerPanics.Inc()
			}
		}
	}()

	reg.h(ev)
}
