// Package server enforces x402 payments in front of an A2A agent executor.
package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kmjones1979/ampersend-sdk/a2a"
)

// AgentExecutor runs an agent for one inbound message, publishing progress to q.
type AgentExecutor interface {
	Execute(ctx context.Context, rc *RequestContext, q EventQueue) error
	Cancel(ctx context.Context, rc *RequestContext, q EventQueue) error
}

// ExecutorFunc adapts a function to AgentExecutor. Cancel is a no-op.
type ExecutorFunc func(ctx context.Context, rc *RequestContext, q EventQueue) error

func (f ExecutorFunc) Execute(ctx context.Context, rc *RequestContext, q EventQueue) error {
	return f(ctx, rc, q)
}

func (f ExecutorFunc) Cancel(context.Context, *RequestContext, EventQueue) error { return nil }

// EventQueue receives the events produced while serving a request.
type EventQueue interface {
	Enqueue(ctx context.Context, ev a2a.Event) error
}

// MemoryQueue buffers events in order. It is safe for concurrent use.
type MemoryQueue struct {
	mu     sync.Mutex
	events []a2a.Event
}

func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

func (q *MemoryQueue) Enqueue(_ context.Context, ev a2a.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, ev)
	return nil
}

func (q *MemoryQueue) Events() []a2a.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]a2a.Event(nil), q.events...)
}

// Stream replays the buffered events.
func (q *MemoryQueue) Stream() a2a.EventStream {
	return a2a.NewSliceStream(q.Events()...)
}

// State is request-scoped key/value storage shared by the executors and
// callbacks serving one message.
type State struct {
	mu sync.RWMutex
	m  map[string]any
}

func NewState() *State { return &State{m: map[string]any{}} }

func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *State) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = v
}

// Bool reports the value at key, treating anything but true as false.
func (s *State) Bool(key string) bool {
	v, _ := s.Get(key)
	b, _ := v.(bool)
	return b
}

// RequestContext describes the message being served.
type RequestContext struct {
	TaskID      string
	ContextID   string
	Message     *a2a.Message
	CurrentTask *a2a.Task
	Call        *a2a.CallContext
	State       *State
}

// NewRequestContext builds a context for msg. Task and context ids come from
// the message, then the current task, and are generated otherwise. The call
// context is taken from ctx when the transport installed one.
func NewRequestContext(ctx context.Context, msg *a2a.Message, current *a2a.Task) *RequestContext {
	rc := &RequestContext{Message: msg, CurrentTask: current, State: NewState()}
	if msg != nil {
		rc.TaskID = msg.TaskID
		rc.ContextID = msg.ContextID
	}
	if current != nil {
		if rc.TaskID == "" {
			rc.TaskID = current.ID
		}
		if rc.ContextID == "" {
			rc.ContextID = current.ContextID
		}
	}
	if rc.TaskID == "" {
		rc.TaskID = uuid.NewString()
	}
	if rc.ContextID == "" {
		rc.ContextID = uuid.NewString()
	}
	if call, ok := a2a.CallContextFrom(ctx); ok {
		rc.Call = call
	}
	rc.ensureDefaults()
	return rc
}

func (rc *RequestContext) ensureDefaults() {
	if rc.Call == nil {
		rc.Call = a2a.NewCallContext(a2a.ExtensionSet{})
	}
	if rc.State == nil {
		rc.State = NewState()
	}
}
