// Package events routes decoded frames to the subsystems that care about
// them. Multiple subsystems can observe the same event type without knowing
// about each other; the router is their only coupling point.
package events

import (
	"panelchat/internal/models"
	"panelchat/pkg/logger"
)

type Handler func(models.Event)

type Router struct {
	handlers map[models.EventType][]Handler
}

func NewRouter() *Router {
	return &Router{
		handlers: make(map[models.EventType][]Handler),
	}
}

// On registers a handler for an event type. Handlers for the same type run
// in registration order. Registration is not safe for concurrent use with
// Dispatch; subsystems register during composition, before frames flow.
func (r *Router) On(eventType models.EventType, handler Handler) {
	r.handlers[eventType] = append(r.handlers[eventType], handler)
}

// Dispatch routes one event to every handler registered for its type,
// synchronously on the caller's goroutine. Handlers must not block; slow
// work gets handed off. Unknown event types are dropped so that newer
// servers never crash older clients.
func (r *Router) Dispatch(event models.Event) {
	handlers, ok := r.handlers[event.Type]
	if !ok {
		logger.Debug("Dropping event with unhandled type %q", event.Type)
		return
	}
	for _, handler := range handlers {
		handler(event)
	}
}
