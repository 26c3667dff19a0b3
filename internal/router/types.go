package router

import (
	"github.com/openagora/dashsync/internal/model"
)

// Handler consumes a decoded event. Handlers run synchronously on the
// routing goroutine, in registration order. A panicking handler is
// recovered and logged without affecting the others.
type Handler func(ev model.Event)

// Token identifies a registration for later removal.
type Token struct {
	kind model.Kind
	id   uint64
}

// Kind returns the event kind this token is registered for.
func (t Token) Kind() model.Kind { return t.kind }

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived  int64
	EventsDispatched  int64
	ParseErrors       int64
	UnknownEvents     int64
	DuplicatesDropped int64
	HandlerPanics     int64
}
