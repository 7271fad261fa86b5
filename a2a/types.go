// Package a2a holds the subset of the agent-to-agent wire model that payment
// negotiation touches: messages, tasks, status updates and agent cards.
package a2a

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether no further transitions follow this state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	}
	return false
}

const (
	KindMessage      = "message"
	KindTask         = "task"
	KindStatusUpdate = "status-update"
	KindText         = "text"
	KindData         = "data"
)

// Part is a text or data fragment of a message.
type Part struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: KindText, Text: text}
}

type Message struct {
	Kind       string         `json:"kind"`
	MessageID  string         `json:"messageId"`
	Role       Role           `json:"role"`
	Parts      []Part         `json:"parts"`
	TaskID     string         `json:"taskId,omitempty"`
	ContextID  string         `json:"contextId,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Extensions []string       `json:"extensions,omitempty"`
}

// Text concatenates the message's text parts.
func (m *Message) Text() string {
	var s string
	for _, p := range m.Parts {
		if p.Kind == KindText {
			s += p.Text
		}
	}
	return s
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type TaskStatusUpdateEvent struct {
	Kind      string         `json:"kind"`
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Event is one item of a streamed response: *Message, *Task or *TaskStatusUpdateEvent.
type Event interface {
	EventKind() string
}

func (*Message) EventKind() string               { return KindMessage }
func (*Task) EventKind() string                  { return KindTask }
func (*TaskStatusUpdateEvent) EventKind() string { return KindStatusUpdate }

// TaskOf returns the task view of a task-bearing event.
func TaskOf(ev Event) (*Task, bool) {
	switch e := ev.(type) {
	case *Task:
		return e, e != nil
	case *TaskStatusUpdateEvent:
		if e == nil {
			return nil, false
		}
		return &Task{Kind: KindTask, ID: e.TaskID, ContextID: e.ContextID, Status: e.Status}, true
	}
	return nil, false
}

// DecodeEvent decodes a JSON event by its "kind" discriminator.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var ev Event
	switch head.Kind {
	case KindMessage:
		ev = &Message{}
	case KindTask:
		ev = &Task{}
	case KindStatusUpdate:
		ev = &TaskStatusUpdateEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// EventStream yields events in transport order. Recv returns io.EOF once the
// stream is exhausted.
type EventStream interface {
	Recv() (Event, error)
	Close() error
}

// SliceStream replays a fixed list of events.
type SliceStream struct {
	events []Event
	closed bool
}

func NewSliceStream(events ...Event) *SliceStream {
	return &SliceStream{events: events}
}

func (s *SliceStream) Recv() (Event, error) {
	if s.closed || len(s.events) == 0 {
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Collect drains a stream and closes it.
func Collect(s EventStream) ([]Event, error) {
	defer s.Close()
	var out []Event
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

// Now renders the current time the way task status timestamps are written.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

type AgentExtension struct {
	URI         string         `json:"uri"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

type AgentCapabilities struct {
	Streaming  bool             `json:"streaming,omitempty"`
	Extensions []AgentExtension `json:"extensions,omitempty"`
}

type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
}
