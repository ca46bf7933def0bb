// Package workflow runs declarative step pipelines (crawl, normalize,
// validate) as asynchronous executions that callers poll for status.
package workflow

import (
	"maps"
	"time"
)

// Status is the lifecycle state of an execution.
type Status string

// Execution states. completed, failed and cancelled are terminal.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// StepType names what a step does. Only crawl steps receive run params.
type StepType string

// Step types.
const (
	StepCrawl     StepType = "crawl"
	StepNormalize StepType = "normalize"
	StepValidate  StepType = "validate"
	StepTransform StepType = "transform"
	StepSave      StepType = "save"
)

// StepConfig declares the internal endpoint a step calls.
type StepConfig struct {
	API    string         `json:"api"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Step is one stage of a workflow. It carries no runtime state.
type Step struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           StepType   `json:"type"`
	Config         StepConfig `json:"config"`
	TimeoutSeconds int        `json:"timeoutSeconds,omitempty"`
}

// Workflow is an ordered list of steps.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Steps       []Step    `json:"steps"`
	Enabled     bool      `json:"enabled"`
	Predefined  bool      `json:"predefined"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Summary is the short form used in listings.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StepResult records a successful step.
type StepResult struct {
	StepID    string    `json:"stepId"`
	StepName  string    `json:"stepName"`
	Result    any       `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// StepError records the failure that halted an execution.
type StepError struct {
	StepID    string    `json:"stepId"`
	StepName  string    `json:"stepName"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Execution is one run of a workflow.
type Execution struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflowId"`
	Status      Status         `json:"status"`
	CurrentStep int            `json:"currentStep"`
	Progress    int            `json:"progress"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Results     []StepResult   `json:"results"`
	Errors      []StepError    `json:"errors"`
	Logs        []string       `json:"logs"`
}

// Clone returns a copy whose slices can be appended to independently.
func (e Execution) Clone() Execution {
	out := e
	out.Results = append([]StepResult{}, e.Results...)
	out.Errors = append([]StepError{}, e.Errors...)
	out.Logs = append([]string{}, e.Logs...)
	if e.Params != nil {
		out.Params = maps.Clone(e.Params)
	}
	if e.EndTime != nil {
		end := *e.EndTime
		out.EndTime = &end
	}
	return out
}

// Task is the queue message that asks a worker to run an execution.
type Task struct {
	ExecutionID string
}
