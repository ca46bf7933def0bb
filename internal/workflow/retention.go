package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/clock"
	"go.uber.org/zap"
)

// RetentionConfig bounds how many finished executions are kept. Zero values
// disable the corresponding limit.
type RetentionConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	MaxCount int           `mapstructure:"max_count"`
	Interval time.Duration `mapstructure:"interval"`
}

// Enabled reports whether any limit is set.
func (c RetentionConfig) Enabled() bool { return c.TTL > 0 || c.MaxCount > 0 }

// Janitor deletes finished executions past the retention limits. Running
// executions are never removed.
type Janitor struct {
	cfg    RetentionConfig
	repo   ExecutionRepository
	clock  clock.Clock
	logger *zap.Logger
}

// NewJanitor builds a janitor. A zero interval defaults to one minute.
func NewJanitor(cfg RetentionConfig, repo ExecutionRepository, clk clock.Clock, logger *zap.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{cfg: cfg, repo: repo, clock: clk, logger: logger.Named("janitor")}
}

// Run sweeps on every interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if !j.cfg.Enabled() {
		return
	}
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := j.Sweep(ctx); err != nil {
				j.logger.Warn("retention sweep failed", zap.Error(err))
			} else if n > 0 {
				j.logger.Info("retention sweep", zap.Int("deleted", n))
			}
		}
	}
}

// Sweep removes expired executions, then the oldest finished ones beyond
// MaxCount. It returns the number deleted.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	all, err := j.repo.ListExecutions(ctx, ExecutionFilter{})
	if err != nil {
		return 0, err
	}
	finished := make([]Execution, 0, len(all))
	for _, e := range all {
		if e.Status.Terminal() {
			finished = append(finished, e)
		}
	}
	sort.SliceStable(finished, func(a, b int) bool {
		return finishedAt(finished[a]).Before(finishedAt(finished[b]))
	})

	now := j.clock.Now()
	var doomed []string
	keep := finished[:0]
	for _, e := range finished {
		if j.cfg.TTL > 0 && now.Sub(finishedAt(e)) > j.cfg.TTL {
			doomed = append(doomed, e.ID)
			continue
		}
		keep = append(keep, e)
	}
	if j.cfg.MaxCount > 0 && len(keep) > j.cfg.MaxCount {
		for _, e := range keep[:len(keep)-j.cfg.MaxCount] {
			doomed = append(doomed, e.ID)
		}
	}

	deleted := 0
	for _, id := range doomed {
		if err := j.repo.DeleteExecution(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func finishedAt(e Execution) time.Time {
	if e.EndTime != nil {
		return *e.EndTime
	}
	return e.StartTime
}
