package llm

import (
	"context"
	"time"
)

// LLMObserver receives a notification after every backend call, successful
// or not. Implementations must be safe for concurrent use when the agent runs
// extraction with concurrency above one.
type LLMObserver interface {
	OnLLMCall(ctx context.Context, event LLMCallEvent)
}

// LLMCallEvent describes one backend call.
type LLMCallEvent struct {
	Provider  string
	Model     string
	Messages  []Message
	Response  *Response // nil if the call failed
	Error     error
	Duration  time.Duration
	StartedAt time.Time
}

// ObserverFunc adapts a function to LLMObserver.
type ObserverFunc func(ctx context.Context, event LLMCallEvent)

// OnLLMCall implements LLMObserver.
func (f ObserverFunc) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	f(ctx, event)
}

// MultiObserver fans an event out to several observers.
type MultiObserver struct {
	observers []LLMObserver
}

// NewMultiObserver creates an observer that dispatches to all given observers.
func NewMultiObserver(observers ...LLMObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnLLMCall dispatches the event to every registered observer.
func (m *MultiObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	for _, obs := range m.observers {
		obs.OnLLMCall(ctx, event)
	}
}

// Add appends an observer.
func (m *MultiObserver) Add(obs LLMObserver) {
	m.observers = append(m.observers, obs)
}
