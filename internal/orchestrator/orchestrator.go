// Package orchestrator steps a simulation run forward one day at a time,
// coordinating the day-lock in internal/pacing with the day engine in
// internal/simengine and persistence in internal/store. Persistence calls
// are wrapped in a circuit breaker the same way sawpanic-cryptorun's
// infra/breakers package wraps its own outbound calls, so a struggling
// database does not turn a slow run into a hung one.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sherlockdev6/adsim-lab/internal/models"
	"github.com/sherlockdev6/adsim-lab/internal/pacing"
	"github.com/sherlockdev6/adsim-lab/internal/scenario"
	"github.com/sherlockdev6/adsim-lab/internal/simengine"
	"github.com/sherlockdev6/adsim-lab/internal/simerrors"
	"github.com/sherlockdev6/adsim-lab/internal/simrng"
)

// Persister is the subset of *store.Store the orchestrator depends on,
// narrowed to an interface so tests can substitute an in-memory double
// without standing up Postgres.
type Persister interface {
	CreateRun(ctx context.Context, scenarioSlug string, seed int64, nDays int) (int64, error)
	StartRun(ctx context.Context, runID int64) error
	FinishRun(ctx context.Context, runID int64, status models.RunStatus) error
	SaveDayMetrics(ctx context.Context, runID int64, m models.DayMetrics) error
}

// newBreaker returns a circuit breaker over persistence calls: three
// consecutive failures, or a >5% failure rate over at least 20 requests,
// trips it open for 60 seconds.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// Orchestrator drives one run of the day engine from day 1 to NDays,
// persisting each day's metrics and skipping any day the pacing day-lock
// already marks done. Each Execute call creates a new run record, so only
// days marked done under that same run ID are skipped.
type Orchestrator struct {
	store   Persister
	lock    *pacing.DayLock
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New builds an Orchestrator. lock may be nil, in which case every day is
// always attempted (no distributed coordination — suitable for a
// single-process run).
func New(persister Persister, lock *pacing.DayLock, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{store: persister, lock: lock, breaker: newBreaker("orchestrator.store"), logger: logger}
}

// RunRequest describes one simulation run to execute.
type RunRequest struct {
	ScenarioSlug  string
	Config        *scenario.Config
	InitialState  *models.SimState
	Seed          int64
	NDays         int
	ActionsByDay  map[int][]models.Action
}

// RunOutcome summarizes a completed (or partially completed) orchestrated run.
type RunOutcome struct {
	RunID        int64
	DaysRun      int
	DaysSkipped  int
	FinalState   *models.SimState
	DailyMetrics []models.DayMetrics
}

// Execute steps req's scenario forward day by day, persisting metrics as it
// goes. A day already marked done by the pacing lock is skipped without
// re-simulating it. If saving a day's metrics fails partway through, Execute
// marks the run failed and returns the error alongside whatever RunOutcome
// was accumulated up to that point.
func (o *Orchestrator) Execute(ctx context.Context, req RunRequest) (RunOutcome, error) {
	if req.Config == nil {
		return RunOutcome{}, simerrors.ConfigError("orchestrator.config", nil)
	}
	if req.NDays <= 0 {
		return RunOutcome{}, simerrors.DomainError("n_days must be positive")
	}

	runID, err := o.breakerCreateRun(ctx, req.ScenarioSlug, req.Seed, req.NDays)
	if err != nil {
		return RunOutcome{}, err
	}
	if err := o.breakerStartRun(ctx, runID); err != nil {
		return RunOutcome{}, err
	}

	outcome := RunOutcome{RunID: runID}
	state := req.InitialState.Clone()

	for day := 1; day <= req.NDays; day++ {
		if o.lock != nil {
			done, err := o.lock.IsDone(ctx, runID, day)
			if err != nil {
				o.logger.Warn("pacing check failed, proceeding without skip", zap.Int64("run_id", runID), zap.Int("day", day), zap.Error(err))
			} else if done {
				outcome.DaysSkipped++
				continue
			}

			acquired, err := o.lock.Acquire(ctx, runID, day)
			if err != nil {
				o.logger.Warn("pacing acquire failed, proceeding without lock", zap.Int64("run_id", runID), zap.Int("day", day), zap.Error(err))
			} else if !acquired {
				outcome.DaysSkipped++
				continue
			}
		}

		dayRNG := simrng.DayRNG(req.Seed, day)
		newState, metrics, _ := simengine.SimulateDay(state, req.ActionsByDay[day], day, req.Config, dayRNG)
		state = newState

		if err := o.breakerSaveDayMetrics(ctx, runID, metrics); err != nil {
			_ = o.store.FinishRun(ctx, runID, models.RunFailed)
			return outcome, err
		}
		if o.lock != nil {
			if err := o.lock.MarkDone(ctx, runID, day); err != nil {
				o.logger.Warn("pacing mark-done failed", zap.Int64("run_id", runID), zap.Int("day", day), zap.Error(err))
			}
		}

		outcome.DaysRun++
		outcome.DailyMetrics = append(outcome.DailyMetrics, metrics)
	}

	outcome.FinalState = state
	if err := o.breakerFinishRun(ctx, runID, models.RunCompleted); err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (o *Orchestrator) breakerCreateRun(ctx context.Context, slug string, seed int64, nDays int) (int64, error) {
	result, err := o.breaker.Execute(func() (interface{}, error) {
		return o.store.CreateRun(ctx, slug, seed, nDays)
	})
	if err != nil {
		return 0, fmt.Errorf("orchestrator: create run: %w", err)
	}
	return result.(int64), nil
}

func (o *Orchestrator) breakerStartRun(ctx context.Context, runID int64) error {
	_, err := o.breaker.Execute(func() (interface{}, error) {
		return nil, o.store.StartRun(ctx, runID)
	})
	if err != nil {
		return fmt.Errorf("orchestrator: start run %d: %w", runID, err)
	}
	return nil
}

func (o *Orchestrator) breakerFinishRun(ctx context.Context, runID int64, status models.RunStatus) error {
	_, err := o.breaker.Execute(func() (interface{}, error) {
		return nil, o.store.FinishRun(ctx, runID, status)
	})
	if err != nil {
		return fmt.Errorf("orchestrator: finish run %d: %w", runID, err)
	}
	return nil
}

func (o *Orchestrator) breakerSaveDayMetrics(ctx context.Context, runID int64, m models.DayMetrics) error {
	_, err := o.breaker.Execute(func() (interface{}, error) {
		return nil, o.store.SaveDayMetrics(ctx, runID, m)
	})
	if err != nil {
		return fmt.Errorf("orchestrator: save day %d metrics for run %d: %w", m.Day, runID, err)
	}
	return nil
}
