package workflow

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for unknown workflows and executions.
	ErrNotFound = errors.New("not found")
	// ErrProtected is returned when deleting a predefined workflow.
	ErrProtected = errors.New("predefined workflows cannot be deleted")
	// ErrInvalidDefinition wraps schema violations on create.
	ErrInvalidDefinition = errors.New("invalid workflow definition")
	// ErrDisabled is returned when starting a disabled workflow.
	ErrDisabled = errors.New("workflow is disabled")
	// ErrTerminal is returned by UpdateExecution once an execution has
	// reached a terminal state.
	ErrTerminal = errors.New("execution already finished")
	// ErrInterrupted is recorded on executions whose worker stopped before
	// the last step finished.
	ErrInterrupted = errors.New("worker stopped before the execution finished")
	// ErrExists is returned when creating a record whose id is taken.
	ErrExists = errors.New("already exists")
)

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	GetWorkflow(ctx context.Context, id string) (Workflow, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	PutWorkflow(ctx context.Context, wf Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionFilter narrows ListExecutions. Empty fields match everything.
type ExecutionFilter struct {
	ID         string
	WorkflowID string
}

// Match reports whether e passes the filter.
func (f ExecutionFilter) Match(e Execution) bool {
	return (f.ID == "" || f.ID == e.ID) && (f.WorkflowID == "" || f.WorkflowID == e.WorkflowID)
}

// UpdateFunc mutates an execution in place.
type UpdateFunc func(*Execution) error

// ExecutionRepository stores executions. UpdateExecution must be atomic per
// execution and must refuse to touch terminal executions; implementations
// get that behaviour from ApplyUpdate.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, e Execution) error
	GetExecution(ctx context.Context, id string) (Execution, error)
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, error)
	UpdateExecution(ctx context.Context, id string, fn UpdateFunc) (Execution, error)
	DeleteExecution(ctx context.Context, id string) error
}

// ApplyUpdate runs fn against a copy of cur and returns the result. Terminal
// executions are returned unchanged with ErrTerminal.
func ApplyUpdate(cur Execution, fn UpdateFunc) (Execution, error) {
	if cur.Status.Terminal() {
		return cur, ErrTerminal
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return cur, err
	}
	return next, nil
}
