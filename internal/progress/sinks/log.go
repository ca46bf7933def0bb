package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/subsidy-portal/internal/progress"
)

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event. Failures are logged at warn level.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("execution_id", evt.ExecutionID),
			zap.String("workflow_id", evt.WorkflowID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		if evt.StepID != "" {
			fields = append(fields,
				zap.String("step_id", evt.StepID),
				zap.String("step_type", evt.StepType),
				zap.Int("step_index", evt.StepIndex),
			)
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StageStepError, progress.StageExecutionError:
			s.logger.Warn("workflow progress", fields...)
		default:
			s.logger.Info("workflow progress", fields...)
		}
	}
	return nil
}

// Close flushes buffered log output. Sync errors on terminals are ignored.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
