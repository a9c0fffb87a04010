package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/codecampus/campus-core/internal/jobs"
	"github.com/codecampus/campus-core/pkg/apperror"
	"github.com/codecampus/campus-core/pkg/logger"
)

// Gateway is the narrow surface through which the rest of the application
// runs durable work. Workflow ids are opaque string handles.
type Gateway interface {
	Submit(ctx context.Context, sub Submission) (string, error)
	GetStatus(ctx context.Context, workflowID string) (*TaskInfo, error)
	GetResult(ctx context.Context, workflowID string) (*TaskResult, error)
	Cancel(ctx context.Context, workflowID string) (bool, error)
	List(ctx context.Context, limit, offset int, state TaskState) ([]*TaskInfo, int, error)
}

// HandlerFunc executes one workflow and returns its output payload.
type HandlerFunc func(ctx context.Context, w *Workflow) (json.RawMessage, error)

// Engine is the PostgreSQL-backed execution engine behind the gateway.
// Submitted workflows are rows in the workflows table; a polling worker
// claims due rows and dispatches them to registered handlers.
type Engine struct {
	repo  *Repository
	queue *jobs.Queue
	log   *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewEngine creates the workflow engine.
func NewEngine(repo *Repository, queue *jobs.Queue, log *slog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		queue:    queue,
		log:      log.With(logger.Scope("tasks.engine")),
		handlers: map[string]HandlerFunc{},
	}
}

// Register binds a handler to a task name. Workflows with an unregistered
// task name fail on execution, not on submit, so producers and consumers can
// deploy independently.
func (e *Engine) Register(taskName string, fn HandlerFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[taskName] = fn
}

// Submit enqueues a workflow and returns its id. A caller-supplied workflow
// id makes the submit idempotent: resubmitting an existing id returns it
// without creating a second row.
func (e *Engine) Submit(ctx context.Context, sub Submission) (string, error) {
	if sub.TaskName == "" {
		return "", apperror.NewValidation(apperror.FieldError{
			Field: "taskName", Message: "task name is required", Type: "required",
		})
	}

	id := sub.WorkflowID
	if id != "" {
		existing, err := e.repo.FindByID(ctx, id)
		if err == nil {
			return existing.ID, nil
		}
	} else {
		id = uuid.NewString()
	}

	queue := sub.Queue
	if queue == "" {
		queue = "default"
	}
	params := sub.Parameters
	if params == nil {
		params = json.RawMessage("{}")
	}

	w := &Workflow{
		ID:         id,
		TaskName:   sub.TaskName,
		Queue:      queue,
		Parameters: params,
		Status:     string(StatePending),
		Priority:   sub.Priority,
	}
	if err := e.repo.Create(ctx, w); err != nil {
		return "", err
	}

	e.log.Debug("workflow submitted",
		slog.String("workflow_id", id),
		slog.String("task_name", sub.TaskName),
		slog.String("queue", queue))

	return id, nil
}

// GetStatus returns the status projection of a workflow.
func (e *Engine) GetStatus(ctx context.Context, workflowID string) (*TaskInfo, error) {
	w, err := e.repo.FindByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return w.Info(), nil
}

// GetResult returns the outcome of a workflow. Non-terminal workflows have
// no result yet.
func (e *Engine) GetResult(ctx context.Context, workflowID string) (*TaskResult, error) {
	w, err := e.repo.FindByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !TaskState(w.Status).Terminal() {
		return nil, apperror.NewConflict("CONF_002", "Workflow has not finished")
	}

	res := &TaskResult{WorkflowID: w.ID}
	switch TaskState(w.Status) {
	case StateCompleted:
		res.Output = w.Result
	case StateCancelled:
		msg := "cancelled"
		res.Error = &msg
	default:
		msg := "failed"
		if w.LastError != nil {
			msg = *w.LastError
		}
		res.Error = &msg
	}
	return res, nil
}

// Cancel cancels a pending workflow. A workflow already claimed by a worker
// runs to completion and Cancel reports false.
func (e *Engine) Cancel(ctx context.Context, workflowID string) (bool, error) {
	if _, err := e.repo.FindByID(ctx, workflowID); err != nil {
		return false, err
	}
	return e.queue.Cancel(ctx, workflowID)
}

// List returns status projections newest first with the total count.
func (e *Engine) List(ctx context.Context, limit, offset int, state TaskState) ([]*TaskInfo, int, error) {
	rows, total, err := e.repo.List(ctx, limit, offset, state)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*TaskInfo, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Info())
	}
	return out, total, nil
}

// Stats exposes queue counters for the admin surface.
func (e *Engine) Stats(ctx context.Context) (*jobs.Stats, error) {
	return e.queue.GetStats(ctx)
}

// RecoverStale re-queues workflows abandoned mid-processing.
func (e *Engine) RecoverStale(ctx context.Context, thresholdMinutes int) (int, error) {
	return e.queue.RecoverStale(ctx, thresholdMinutes)
}

// ProcessBatch claims one batch of due workflows and executes them. It is
// the poll callback of the background worker.
func (e *Engine) ProcessBatch(ctx context.Context) error {
	ids, err := e.queue.Dequeue(ctx, "", 0)
	if err != nil {
		return err
	}

	for _, id := range ids {
		e.execute(ctx, id)
	}
	return nil
}

func (e *Engine) execute(ctx context.Context, id string) {
	w, err := e.repo.FindByID(ctx, id)
	if err != nil {
		e.log.Error("claimed workflow vanished", logger.Error(err), slog.String("workflow_id", id))
		return
	}

	e.mu.RLock()
	fn, ok := e.handlers[w.TaskName]
	e.mu.RUnlock()
	if !ok {
		e.fail(ctx, w, "no handler registered for task "+w.TaskName)
		return
	}

	output, err := fn(ctx, w)
	if err != nil {
		e.fail(ctx, w, err.Error())
		return
	}

	if err := e.queue.MarkCompleted(ctx, w.ID, output); err != nil {
		e.log.Error("mark completed failed", logger.Error(err), slog.String("workflow_id", w.ID))
	}
}

func (e *Engine) fail(ctx context.Context, w *Workflow, msg string) {
	e.log.Warn("workflow attempt failed",
		slog.String("workflow_id", w.ID),
		slog.String("task_name", w.TaskName),
		slog.String("error", msg))
	if err := e.queue.MarkFailed(ctx, w.ID, w.AttemptCount, msg); err != nil {
		e.log.Error("mark failed failed", logger.Error(err), slog.String("workflow_id", w.ID))
	}
}
