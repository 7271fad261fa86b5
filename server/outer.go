package server

import (
	"context"
	"errors"

	"github.com/kmjones1979/ampersend-sdk/a2a"
	"github.com/kmjones1979/ampersend-sdk/logger"
)

var (
	ErrMissingMessage   = errors.New("A2A request must have a message")
	ErrMissingTaskID    = errors.New("A2A request must have a task ID")
	ErrMissingContextID = errors.New("A2A request must have a context ID")
)

// Executor opens new tasks with a submitted status and turns delegate errors
// into a failed status, so callers always see the task end.
type Executor struct {
	delegate AgentExecutor
	logger   logger.Logger
}

var _ AgentExecutor = (*Executor)(nil)

func NewExecutor(delegate AgentExecutor, opts ...Option) *Executor {
	o := applyOptions(opts)
	return &Executor{delegate: delegate, logger: o.logger}
}

func (e *Executor) Execute(ctx context.Context, rc *RequestContext, q EventQueue) error {
	switch {
	case rc == nil || rc.Message == nil:
		return ErrMissingMessage
	case rc.TaskID == "":
		return ErrMissingTaskID
	case rc.ContextID == "":
		return ErrMissingContextID
	}
	rc.ensureDefaults()

	if rc.CurrentTask == nil {
		if err := q.Enqueue(ctx, statusUpdate(rc, a2a.TaskStateSubmitted, rc.Message, false)); err != nil {
			return err
		}
	}

	err := e.delegate.Execute(ctx, rc, q)
	if err == nil {
		return nil
	}

	e.logger.Error("error handling A2A request", map[string]any{"task_id": rc.TaskID, "error": err})
	failed := statusUpdate(rc, a2a.TaskStateFailed, a2a.NewAgentMessage(rc.TaskID, rc.ContextID, err.Error()), true)
	if qerr := q.Enqueue(ctx, failed); qerr != nil {
		e.logger.Error("failed to publish failure event", map[string]any{"task_id": rc.TaskID, "error": qerr})
	}
	return nil
}

func (e *Executor) Cancel(ctx context.Context, rc *RequestContext, q EventQueue) error {
	return e.delegate.Cancel(ctx, rc, q)
}
