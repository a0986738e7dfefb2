package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"socialflow/internal/logging"
	"socialflow/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type FlowSource interface {
	ActiveFlows(ctx context.Context, tenantID string, triggerType models.TriggerType) ([]models.Flow, error)
}

type StatsRecorder interface {
	RecordExecution(ctx context.Context, flowID uint, success bool) error
	RecordRun(ctx context.Context, run *models.FlowRun) error
}

// Observer is notified after every flow execution.
type Observer interface {
	FlowExecuted(tenantID string, result RunResult)
}

// Waiter blocks until a suspended execution may resume.
type Waiter interface {
	Wait(ctx context.Context, until time.Time) error
}

// TimerWaiter waits on a timer and gives up when ctx is done.
type TimerWaiter struct{}

func (TimerWaiter) Wait(ctx context.Context, until time.Time) error {
	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type RunResult struct {
	FlowID         uint               `json:"flow_id"`
	FlowName       string             `json:"flow_name"`
	ExecutionID    string             `json:"execution_id"`
	TriggerType    models.TriggerType `json:"trigger_type"`
	Success        bool               `json:"success"`
	ActionsRun     int                `json:"actions_run"`
	ShortCircuited bool               `json:"short_circuited"`
	Error          string             `json:"error,omitempty"`
}

type Option func(*Engine)

func WithWaiter(w Waiter) Option {
	return func(e *Engine) { e.waiter = w }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// Engine matches inbound events against active flows and executes them.
type Engine struct {
	flows    FlowSource
	stats    StatsRecorder
	executor *Executor
	waiter   Waiter
	observer Observer
	log      zerolog.Logger

	// base is the context dispatched jobs run under; cancelling it stops
	// pending delays.
	base context.Context
	jobs sync.WaitGroup
}

func NewEngine(base context.Context, flows FlowSource, stats StatsRecorder, executor *Executor, opts ...Option) *Engine {
	e := &Engine{
		flows:    flows,
		stats:    stats,
		executor: executor,
		waiter:   TimerWaiter{},
		log:      logging.Component("engine"),
		base:     base,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunFlows executes every active flow of the tenant whose trigger matches the
// event, one after another. A failing flow never affects its siblings.
func (e *Engine) RunFlows(ctx context.Context, tenantID string, triggerType models.TriggerType, ev Event) ([]RunResult, error) {
	flows, err := e.flows.ActiveFlows(ctx, tenantID, triggerType)
	if err != nil {
		return nil, err
	}

	var results []RunResult
	for _, flow := range flows {
		if !Matches(flow.Trigger.Data(), ev) {
			continue
		}
		results = append(results, e.RunFlow(ctx, flow, ev))
	}
	return results, nil
}

// RunFlow executes a single flow without trigger matching and records its
// outcome.
func (e *Engine) RunFlow(ctx context.Context, flow models.Flow, ev Event) RunResult {
	exec := NewExecution(uuid.NewString(), flow, ev)
	log := e.log.With().
		Uint("flow_id", flow.ID).
		Str("tenant_id", flow.TenantID).
		Str("execution_id", exec.ID).
		Logger()

	start := time.Now()
	e.drive(ctx, exec)
	outcome := exec.Outcome

	result := RunResult{
		FlowID:         flow.ID,
		FlowName:       flow.Name,
		ExecutionID:    exec.ID,
		TriggerType:    exec.triggerType(),
		Success:        outcome.Success,
		ActionsRun:     outcome.ActionsRun,
		ShortCircuited: outcome.ShortCircuited,
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}

	// Bookkeeping outlives a cancelled job context.
	bg := context.WithoutCancel(ctx)
	if err := e.stats.RecordExecution(bg, flow.ID, outcome.Success); err != nil {
		log.Error().Err(err).Msg("failed to record execution stats")
	}
	run := &models.FlowRun{
		FlowID:         flow.ID,
		TenantID:       flow.TenantID,
		ExecutionID:    exec.ID,
		TriggerType:    result.TriggerType,
		Success:        result.Success,
		ActionsRun:     result.ActionsRun,
		ShortCircuited: result.ShortCircuited,
		ErrorMessage:   result.Error,
	}
	if err := e.stats.RecordRun(bg, run); err != nil {
		log.Error().Err(err).Msg("failed to record flow run")
	}

	if outcome.Success {
		log.Info().Int("actions_run", outcome.ActionsRun).Bool("short_circuited", outcome.ShortCircuited).
			Dur("took", time.Since(start)).Msg("flow executed")
	} else {
		log.Warn().Err(outcome.Err).Int("actions_run", outcome.ActionsRun).
			Dur("took", time.Since(start)).Msg("flow execution failed")
	}

	if e.observer != nil {
		e.observer.FlowExecuted(flow.TenantID, result)
	}
	return result
}

// drive advances exec to a terminal state, waiting out every delay.
func (e *Engine) drive(ctx context.Context, exec *Execution) {
	defer func() {
		if r := recover(); r != nil {
			exec.fail(fmt.Errorf("panic in flow %d: %v", exec.Flow.ID, r))
		}
	}()

	for {
		e.executor.Advance(ctx, exec)
		if exec.State != StateSuspended {
			return
		}
		if err := e.waiter.Wait(ctx, exec.ResumeAt); err != nil {
			exec.fail(fmt.Errorf("resume after delay: %w", err))
			return
		}
	}
}

// Dispatch processes an event in its own job, running the flows of each
// trigger type in the order given. Jobs for different events run
// concurrently; flows within one job run one at a time.
func (e *Engine) Dispatch(tenantID string, ev Event, triggerTypes ...models.TriggerType) {
	e.jobs.Add(1)
	go func() {
		defer e.jobs.Done()
		for _, tt := range triggerTypes {
			if _, err := e.RunFlows(e.base, tenantID, tt, ev); err != nil {
				e.log.Error().Err(err).
					Str("tenant_id", tenantID).
					Str("trigger_type", string(tt)).
					Msg("failed to load flows for event")
			}
		}
	}()
}

// Wait blocks until every dispatched job has finished.
func (e *Engine) Wait() {
	e.jobs.Wait()
}
