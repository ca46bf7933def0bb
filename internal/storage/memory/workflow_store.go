package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/JakeFAU/subsidy-portal/internal/workflow"
)

// WorkflowStore keeps workflow definitions in memory.
type WorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]workflow.Workflow
}

// NewWorkflowStore constructs a WorkflowStore.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{workflows: make(map[string]workflow.Workflow)}
}

// GetWorkflow fetches a workflow by id.
func (s *WorkflowStore) GetWorkflow(_ context.Context, id string) (workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return workflow.Workflow{}, workflow.ErrNotFound
	}
	return cloneWorkflow(wf), nil
}

// ListWorkflows returns predefined workflows first, then custom ones by
// creation time.
func (s *WorkflowStore) ListWorkflows(_ context.Context) ([]workflow.Workflow, error) {
	s.mu.RLock()
	out := make([]workflow.Workflow, 0, len(s.workflows))
	for _, wf := range s.workflows {
		out = append(out, cloneWorkflow(wf))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Predefined != out[j].Predefined {
			return out[i].Predefined
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PutWorkflow inserts or replaces a workflow.
func (s *WorkflowStore) PutWorkflow(_ context.Context, wf workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workflows[wf.ID] = cloneWorkflow(wf)
	return nil
}

// DeleteWorkflow removes a workflow.
func (s *WorkflowStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return workflow.ErrNotFound
	}
	delete(s.workflows, id)
	return nil
}

func cloneWorkflow(wf workflow.Workflow) workflow.Workflow {
	out := wf
	out.Steps = make([]workflow.Step, len(wf.Steps))
	for i, st := range wf.Steps {
		st.Config.Params = maps.Clone(st.Config.Params)
		out.Steps[i] = st
	}
	return out
}

// ExecutionStore keeps executions in memory. Updates are serialized by a
// single lock, which makes them atomic per execution.
type ExecutionStore struct {
	mu         sync.RWMutex
	executions map[string]workflow.Execution
}

// NewExecutionStore constructs an ExecutionStore.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{executions: make(map[string]workflow.Execution)}
}

// CreateExecution stores a new execution.
func (s *ExecutionStore) CreateExecution(_ context.Context, e workflow.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[e.ID]; exists {
		return workflow.ErrExists
	}
	s.executions[e.ID] = e.Clone()
	return nil
}

// GetExecution fetches an execution by id.
func (s *ExecutionStore) GetExecution(_ context.Context, id string) (workflow.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.executions[id]
	if !ok {
		return workflow.Execution{}, workflow.ErrNotFound
	}
	return e.Clone(), nil
}

// ListExecutions returns matching executions ordered by start time.
func (s *ExecutionStore) ListExecutions(_ context.Context, f workflow.ExecutionFilter) ([]workflow.Execution, error) {
	s.mu.RLock()
	out := make([]workflow.Execution, 0, len(s.executions))
	for _, e := range s.executions {
		if f.Match(e) {
			out = append(out, e.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateExecution applies fn under the store lock.
func (s *ExecutionStore) UpdateExecution(_ context.Context, id string, fn workflow.UpdateFunc) (workflow.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.executions[id]
	if !ok {
		return workflow.Execution{}, workflow.ErrNotFound
	}
	next, err := workflow.ApplyUpdate(cur, fn)
	if err != nil {
		return cur.Clone(), err
	}
	s.executions[id] = next
	return next.Clone(), nil
}

// DeleteExecution removes an execution.
func (s *ExecutionStore) DeleteExecution(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[id]; !ok {
		return workflow.ErrNotFound
	}
	delete(s.executions, id)
	return nil
}
