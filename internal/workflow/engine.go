package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"github.com/JakeFAU/subsidy-portal/internal/progress"
	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultStatusPath is the polling endpoint advertised in a Handle.
const DefaultStatusPath = "/api/workflow"

const abandonTimeout = 5 * time.Second

// Enqueuer accepts tasks for the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// IDGenerator allocates execution ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config tunes the engine.
type Config struct {
	// StatusPath prefixes the status URL returned from Start.
	StatusPath string
}

// Deps are the engine's collaborators. Clock, Emitter and Logger are optional.
type Deps struct {
	Workflows  WorkflowRepository
	Executions ExecutionRepository
	Queue      Enqueuer
	Invoker    Invoker
	IDs        IDGenerator
	Clock      clock.Clock
	Emitter    progress.Emitter
	Logger     *zap.Logger
}

// Engine starts, runs and cancels executions. Step loops run on workers
// that dequeue Tasks and call Execute.
type Engine struct {
	workflows  WorkflowRepository
	executions ExecutionRepository
	queue      Enqueuer
	invoker    Invoker
	ids        IDGenerator
	clock      clock.Clock
	emitter    progress.Emitter
	schema     *definitionValidator
	cfg        Config
	logger     *zap.Logger

	// base outlives requests; executions derive their context from it.
	base context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	running map[string]*tracker
}

type tracker struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (t *tracker) finish() { t.once.Do(func() { close(t.done) }) }

// Handle is returned by Start.
type Handle struct {
	ExecutionID string `json:"executionId"`
	StatusURL   string `json:"statusUrl"`

	engine *Engine
	done   <-chan struct{}
}

// Done is closed once the execution's step loop has stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel cancels the execution. It is a no-op once the execution finished.
func (h *Handle) Cancel(ctx context.Context) error {
	_, err := h.engine.Cancel(ctx, h.ExecutionID)
	return err
}

// NewEngine validates deps and compiles the definition schema.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Workflows == nil || deps.Executions == nil || deps.Queue == nil || deps.Invoker == nil || deps.IDs == nil {
		return nil, errors.New("workflow engine: repositories, queue, invoker and id generator are required")
	}
	schema, err := newDefinitionValidator()
	if err != nil {
		return nil, err
	}
	if cfg.StatusPath == "" {
		cfg.StatusPath = DefaultStatusPath
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Engine{
		workflows:  deps.Workflows,
		executions: deps.Executions,
		queue:      deps.Queue,
		invoker:    deps.Invoker,
		ids:        deps.IDs,
		clock:      deps.Clock,
		emitter:    deps.Emitter,
		schema:     schema,
		cfg:        cfg,
		logger:     deps.Logger.Named("workflow"),
		base:       base,
		stop:       stop,
		running:    make(map[string]*tracker),
	}, nil
}

// Seed stores the predefined workflows that are not present yet.
func (e *Engine) Seed(ctx context.Context) error {
	for _, wf := range Predefined(e.clock.Now()) {
		_, err := e.workflows.GetWorkflow(ctx, wf.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("seed %s: %w", wf.ID, err)
		}
		if err := e.workflows.PutWorkflow(ctx, wf); err != nil {
			return fmt.Errorf("seed %s: %w", wf.ID, err)
		}
	}
	return nil
}

// Shutdown cancels every in-flight execution context.
func (e *Engine) Shutdown() { e.stop() }

// Start persists a running execution for workflowID, enqueues it and
// returns without waiting for any step.
func (e *Engine) Start(ctx context.Context, workflowID string, params map[string]any) (*Handle, error) {
	wf, err := e.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	if !wf.Enabled {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrDisabled)
	}
	id, err := e.ids.NewID()
	if err != nil {
		return nil, err
	}

	exec := Execution{
		ID:         id,
		WorkflowID: wf.ID,
		Status:     StatusRunning,
		StartTime:  e.clock.Now(),
		Params:     maps.Clone(params),
		Results:    []StepResult{},
		Errors:     []StepError{},
		Logs:       []string{},
	}
	if err := e.executions.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	t := e.track(id)
	e.emit(progress.Event{ExecutionID: id, WorkflowID: wf.ID, Stage: progress.StageExecutionStart})
	if err := e.queue.Enqueue(ctx, Task{ExecutionID: id}); err != nil {
		e.untrack(id)
		e.fail(context.WithoutCancel(ctx), exec, "workflow", "워크플로우 실행", err)
		return nil, fmt.Errorf("enqueue execution: %w", err)
	}
	e.logger.Info("execution started", zap.String("execution_id", id), zap.String("workflow_id", wf.ID))
	return &Handle{ExecutionID: id, StatusURL: e.statusURL(id), engine: e, done: t.done}, nil
}

func (e *Engine) statusURL(id string) string {
	q := url.Values{"action": {"status"}, "executionId": {id}}
	return e.cfg.StatusPath + "?" + q.Encode()
}

func (e *Engine) track(id string) *tracker {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.running[id]; ok {
		return t
	}
	ctx, cancel := context.WithCancel(e.base)
	t := &tracker{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	e.running[id] = t
	return t
}

func (e *Engine) untrack(id string) {
	e.mu.Lock()
	t, ok := e.running[id]
	delete(e.running, id)
	e.mu.Unlock()
	if ok {
		t.cancel()
		t.finish()
	}
}

// Execute runs the step loop of task's execution. Workers call it; ctx is
// the worker's context and stops the loop when the worker shuts down. An
// execution interrupted by shutdown or a panic is marked failed unless it
// was cancelled first.
func (e *Engine) Execute(ctx context.Context, task Task) (err error) {
	t := e.track(task.ExecutionID)
	defer e.untrack(task.ExecutionID)
	stopOnWorkerExit := context.AfterFunc(ctx, t.cancel)
	defer stopOnWorkerExit()
	runCtx := t.ctx
	defer func() {
		if r := recover(); r != nil {
			e.abandon(task.ExecutionID, fmt.Errorf("execution panicked: %v", r))
			err = fmt.Errorf("execution %s panicked: %v", task.ExecutionID, r)
			return
		}
		if runCtx.Err() != nil {
			e.abandon(task.ExecutionID, ErrInterrupted)
		}
	}()

	exec, err := e.executions.GetExecution(runCtx, task.ExecutionID)
	if err != nil {
		return fmt.Errorf("load execution %s: %w", task.ExecutionID, err)
	}
	if exec.Status.Terminal() {
		return nil
	}
	wf, err := e.workflows.GetWorkflow(runCtx, exec.WorkflowID)
	if err != nil {
		e.fail(runCtx, exec, "workflow", "워크플로우 실행", err)
		return nil
	}

	var previous any
	total := len(wf.Steps)
	for i, step := range wf.Steps {
		if runCtx.Err() != nil {
			return nil
		}
		_, err := e.executions.UpdateExecution(runCtx, exec.ID, func(x *Execution) error {
			x.CurrentStep = i
			x.Progress = stepProgress(i, total)
			x.Logs = append(x.Logs, e.logLine("단계 %d/%d 시작: %s", i+1, total, step.Name))
			return nil
		})
		if err != nil {
			return e.stopped(exec.ID, err)
		}

		if step.Type == StepCrawl && len(exec.Params) > 0 {
			step.Config.Params = mergeParams(step.Config.Params, exec.Params)
		}
		result, err := e.runStep(runCtx, exec, i, step, previous)
		if err != nil {
			if runCtx.Err() != nil {
				return nil
			}
			e.failStep(runCtx, exec, i, total, step, err)
			return nil
		}

		_, err = e.executions.UpdateExecution(runCtx, exec.ID, func(x *Execution) error {
			x.Results = append(x.Results, StepResult{StepID: step.ID, StepName: step.Name, Result: result, Timestamp: e.clock.Now()})
			x.Logs = append(x.Logs, e.logLine("단계 %d/%d 완료: %s", i+1, total, step.Name))
			return nil
		})
		if err != nil {
			return e.stopped(exec.ID, err)
		}
		previous = result
	}

	final, err := e.executions.UpdateExecution(runCtx, exec.ID, func(x *Execution) error {
		now := e.clock.Now()
		x.Status = StatusCompleted
		x.Progress = 100
		x.EndTime = &now
		x.Logs = append(x.Logs, e.logLine("워크플로우 완료"))
		return nil
	})
	if err != nil {
		return e.stopped(exec.ID, err)
	}
	e.emit(progress.Event{ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Stage: progress.StageExecutionDone, Dur: final.EndTime.Sub(final.StartTime)})
	e.logger.Info("execution completed", zap.String("execution_id", exec.ID))
	return nil
}

// stopped treats ErrTerminal as a cancelled execution and reports other
// repository failures.
func (e *Engine) stopped(id string, err error) error {
	if errors.Is(err, ErrTerminal) || errors.Is(err, context.Canceled) {
		e.logger.Debug("execution stopped", zap.String("execution_id", id), zap.Error(err))
		return nil
	}
	return fmt.Errorf("update execution %s: %w", id, err)
}

func (e *Engine) runStep(ctx context.Context, exec Execution, index int, step Step, previous any) (any, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "workflow.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.execution_id", exec.ID),
		attribute.String("workflow.step_id", step.ID),
		attribute.String("workflow.step_type", string(step.Type)),
	)

	e.emit(progress.Event{ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Stage: progress.StageStepStart, StepID: step.ID, StepType: string(step.Type), StepIndex: index})
	start := time.Now()
	result, err := e.invoker.Invoke(ctx, step, previous)
	dur := time.Since(start)

	outcome := "success"
	stage := progress.StageStepDone
	note := ""
	if err != nil {
		outcome, stage, note = "error", progress.StageStepError, err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	telemetry.ObserveStep(string(step.Type), outcome, dur)
	e.emit(progress.Event{ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Stage: stage, StepID: step.ID, StepType: string(step.Type), StepIndex: index, Dur: dur, Note: note})
	return result, err
}

func (e *Engine) failStep(ctx context.Context, exec Execution, index, total int, step Step, cause error) {
	e.logger.Warn("step failed", zap.String("execution_id", exec.ID), zap.String("step_id", step.ID), zap.Error(cause))
	_, err := e.executions.UpdateExecution(ctx, exec.ID, func(x *Execution) error {
		now := e.clock.Now()
		x.Errors = append(x.Errors, StepError{StepID: step.ID, StepName: step.Name, Error: cause.Error(), Timestamp: now})
		x.Logs = append(x.Logs, e.logLine("단계 %d/%d 실패: %s - %s", index+1, total, step.Name, cause.Error()))
		x.Status = StatusFailed
		x.EndTime = &now
		return nil
	})
	if err != nil {
		_ = e.stopped(exec.ID, err)
		return
	}
	e.emit(progress.Event{ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Stage: progress.StageExecutionError, Dur: e.clock.Now().Sub(exec.StartTime), Note: cause.Error()})
}

// fail marks an execution failed for a reason outside any step.
func (e *Engine) fail(ctx context.Context, exec Execution, stepID, stepName string, cause error) {
	_, err := e.executions.UpdateExecution(ctx, exec.ID, func(x *Execution) error {
		now := e.clock.Now()
		x.Errors = append(x.Errors, StepError{StepID: stepID, StepName: stepName, Error: cause.Error(), Timestamp: now})
		x.Status = StatusFailed
		x.EndTime = &now
		return nil
	})
	if err != nil {
		e.logger.Error("mark execution failed", zap.String("execution_id", exec.ID), zap.Error(err))
		return
	}
	e.emit(progress.Event{ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Stage: progress.StageExecutionError, Note: cause.Error()})
}

// abandon fails an execution whose run ended without reaching a terminal
// state. The run context is gone by then, so the write gets its own.
func (e *Engine) abandon(id string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), abandonTimeout)
	defer cancel()
	exec, err := e.executions.UpdateExecution(ctx, id, func(x *Execution) error {
		now := e.clock.Now()
		x.Errors = append(x.Errors, StepError{StepID: "workflow", StepName: "워크플로우 실행", Error: cause.Error(), Timestamp: now})
		x.Logs = append(x.Logs, e.logLine("실행 중단: %s", cause.Error()))
		x.Status = StatusFailed
		x.EndTime = &now
		return nil
	})
	switch {
	case errors.Is(err, ErrTerminal):
		return
	case err != nil:
		e.logger.Error("mark interrupted execution failed", zap.String("execution_id", id), zap.Error(err))
		return
	}
	e.logger.Warn("execution interrupted", zap.String("execution_id", id), zap.Error(cause))
	e.emit(progress.Event{ExecutionID: id, WorkflowID: exec.WorkflowID, Stage: progress.StageExecutionError, Dur: e.clock.Now().Sub(exec.StartTime), Note: cause.Error()})
}

// Cancel moves a running execution to cancelled and interrupts its current
// step. Cancelling a finished execution changes nothing and is not an error.
func (e *Engine) Cancel(ctx context.Context, executionID string) (Execution, error) {
	exec, err := e.executions.UpdateExecution(ctx, executionID, func(x *Execution) error {
		now := e.clock.Now()
		x.Status = StatusCancelled
		x.EndTime = &now
		x.Logs = append(x.Logs, e.logLine("사용자에 의해 취소됨"))
		return nil
	})
	switch {
	case errors.Is(err, ErrTerminal):
		return exec, nil
	case err != nil:
		return Execution{}, fmt.Errorf("execution %s: %w", executionID, err)
	}

	e.mu.Lock()
	t, ok := e.running[executionID]
	e.mu.Unlock()
	if ok {
		t.cancel()
	}
	e.emit(progress.Event{ExecutionID: exec.ID, WorkflowID: exec.WorkflowID, Stage: progress.StageExecutionCancelled, Dur: e.clock.Now().Sub(exec.StartTime)})
	e.logger.Info("execution cancelled", zap.String("execution_id", executionID))
	return exec, nil
}

// Execution returns the current state of an execution.
func (e *Engine) Execution(ctx context.Context, id string) (Execution, error) {
	exec, err := e.executions.GetExecution(ctx, id)
	if err != nil {
		return Execution{}, fmt.Errorf("execution %s: %w", id, err)
	}
	return exec, nil
}

// Executions lists executions matching f in start order.
func (e *Engine) Executions(ctx context.Context, f ExecutionFilter) ([]Execution, error) {
	return e.executions.ListExecutions(ctx, f)
}

// Workflow returns one workflow definition.
func (e *Engine) Workflow(ctx context.Context, id string) (Workflow, error) {
	wf, err := e.workflows.GetWorkflow(ctx, id)
	if err != nil {
		return Workflow{}, fmt.Errorf("workflow %s: %w", id, err)
	}
	return wf, nil
}

// Workflows lists every workflow definition.
func (e *Engine) Workflows(ctx context.Context) ([]Workflow, error) {
	return e.workflows.ListWorkflows(ctx)
}

// Summaries lists id, name and description of every workflow.
func (e *Engine) Summaries(ctx context.Context) ([]Summary, error) {
	wfs, err := e.workflows.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(wfs))
	for i, wf := range wfs {
		out[i] = Summary{ID: wf.ID, Name: wf.Name, Description: wf.Description}
	}
	return out, nil
}

// CreateWorkflow validates raw against the definition schema and stores it
// under a "custom_<unix millis>" id.
func (e *Engine) CreateWorkflow(ctx context.Context, raw []byte) (Workflow, error) {
	def, err := e.schema.parse(raw)
	if err != nil {
		return Workflow{}, err
	}
	now := e.clock.Now()
	wf := Workflow{
		Name:        def.Name,
		Description: def.Description,
		Steps:       def.Steps,
		Enabled:     def.Enabled == nil || *def.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for ms := now.UnixMilli(); ; ms++ {
		wf.ID = fmt.Sprintf("custom_%d", ms)
		if _, err := e.workflows.GetWorkflow(ctx, wf.ID); errors.Is(err, ErrNotFound) {
			break
		} else if err != nil {
			return Workflow{}, err
		}
	}
	if err := e.workflows.PutWorkflow(ctx, wf); err != nil {
		return Workflow{}, fmt.Errorf("store workflow: %w", err)
	}
	e.logger.Info("workflow created", zap.String("workflow_id", wf.ID), zap.Int("steps", len(wf.Steps)))
	return wf, nil
}

// DeleteWorkflow removes a custom workflow. Predefined ones are protected.
func (e *Engine) DeleteWorkflow(ctx context.Context, id string) error {
	wf, err := e.workflows.GetWorkflow(ctx, id)
	if err != nil {
		return fmt.Errorf("workflow %s: %w", id, err)
	}
	if wf.Predefined {
		return fmt.Errorf("workflow %s: %w", id, ErrProtected)
	}
	if err := e.workflows.DeleteWorkflow(ctx, id); err != nil {
		return fmt.Errorf("workflow %s: %w", id, err)
	}
	return nil
}

func (e *Engine) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = e.clock.Now()
	}
	e.emitter.Emit(evt)
}

func (e *Engine) logLine(format string, args ...any) string {
	return e.clock.Now().Format(time.RFC3339Nano) + ": " + fmt.Sprintf(format, args...)
}

// stepProgress is the share of steps finished before step i, kept below 100
// until the execution completes.
func stepProgress(i, total int) int {
	if total == 0 {
		return 0
	}
	return min(int(math.Round(float64(i)/float64(total)*100)), 99)
}

// mergeParams overlays run params onto a copy of a step's params.
func mergeParams(base, override map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(override))
	}
	maps.Copy(out, override)
	return out
}
