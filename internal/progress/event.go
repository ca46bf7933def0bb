package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the execution milestone an Event represents.
type Stage string

// Execution and step stages.
const (
	StageExecutionStart     Stage = "EXECUTION_START"
	StageStepStart          Stage = "STEP_START"
	StageStepDone           Stage = "STEP_DONE"
	StageStepError          Stage = "STEP_ERROR"
	StageExecutionDone      Stage = "EXECUTION_DONE"
	StageExecutionError     Stage = "EXECUTION_ERROR"
	StageExecutionCancelled Stage = "EXECUTION_CANCELLED"
)

// Finished reports whether the stage ends an execution.
func (s Stage) Finished() bool {
	switch s {
	case StageExecutionDone, StageExecutionError, StageExecutionCancelled:
		return true
	default:
		return false
	}
}

// Event is one execution milestone.
type Event struct {
	ExecutionID string
	WorkflowID  string
	// TS is the UTC time the emitter observed the milestone.
	TS    time.Time
	Stage Stage
	// Step fields are set for STEP_* stages only.
	StepID    string
	StepType  string
	StepIndex int
	// Dur is the step latency, or the execution runtime for finishing stages.
	Dur  time.Duration
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.ExecutionID == "" {
		return errors.New("execution id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageExecutionStart, StageExecutionDone, StageExecutionError, StageExecutionCancelled:
	case StageStepStart, StageStepDone, StageStepError:
		if e.StepID == "" {
			return fmt.Errorf("%s requires a step id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
