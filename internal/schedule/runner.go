// Package schedule fires schedule-triggered flows on their cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"socialflow/internal/automation"
	"socialflow/internal/logging"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type FlowLoader interface {
	ScheduledFlows(ctx context.Context) ([]models.Flow, error)
	Get(ctx context.Context, tenantID string, id uint) (*models.Flow, error)
}

type FlowRunner interface {
	RunFlow(ctx context.Context, flow models.Flow, ev automation.Event) automation.RunResult
}

type entry struct {
	expr string
	id   cron.EntryID
	flow models.Flow
}

// Runner keeps one cron entry per active schedule flow and re-reads the flow
// table periodically so edits take effect without a restart.
type Runner struct {
	flows    FlowLoader
	engine   FlowRunner
	interval time.Duration
	cron     *cron.Cron
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[uint]*entry
	ctx     context.Context
}

func NewRunner(flows FlowLoader, engine FlowRunner, reloadInterval time.Duration) *Runner {
	if reloadInterval <= 0 {
		reloadInterval = time.Minute
	}
	log := logging.Component("schedule")
	cl := cronLogger{log}
	return &Runner{
		flows:    flows,
		engine:   engine,
		interval: reloadInterval,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
		log:     log,
		entries: make(map[uint]*entry),
		ctx:     context.Background(),
	}
}

// Start loads the schedule and starts the cron loop. Flows fire under ctx.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	if err := r.Reload(ctx); err != nil {
		return err
	}
	_, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), func() {
		if err := r.Reload(ctx); err != nil {
			r.log.Error().Err(err).Msg("failed to reload schedule")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reload job: %w", err)
	}
	r.cron.Start()
	r.log.Info().Dur("reload_interval", r.interval).Msg("schedule runner started")
	return nil
}

// Stop halts the cron loop and returns a context that is done once running
// jobs have finished.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}

// Reload syncs cron entries with the active schedule flows: new flows are
// added, changed expressions re-registered and removed flows dropped.
func (r *Runner) Reload(ctx context.Context) error {
	flows, err := r.flows.ScheduledFlows(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled flows: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uint]bool, len(flows))
	for _, flow := range flows {
		expr := flow.Trigger.Data().ScheduleTime
		log := r.log.With().Uint("flow_id", flow.ID).Str("schedule", expr).Logger()
		if expr == "" {
			log.Warn().Msg("schedule flow has no scheduleTime")
			continue
		}
		seen[flow.ID] = true

		if e, ok := r.entries[flow.ID]; ok {
			e.flow = flow
			if e.expr == expr {
				continue
			}
			r.cron.Remove(e.id)
			delete(r.entries, flow.ID)
		}

		sched, err := cron.ParseStandard(expr)
		if err != nil {
			log.Warn().Err(err).Msg("invalid schedule expression")
			delete(seen, flow.ID)
			continue
		}
		flowID := flow.ID
		id := r.cron.Schedule(sched, cron.FuncJob(func() { r.fire(flowID) }))
		r.entries[flow.ID] = &entry{expr: expr, id: id, flow: flow}
		log.Info().Msg("flow scheduled")
	}

	for flowID, e := range r.entries {
		if !seen[flowID] {
			r.cron.Remove(e.id)
			delete(r.entries, flowID)
			r.log.Info().Uint("flow_id", flowID).Msg("flow unscheduled")
		}
	}
	return nil
}

// Scheduled maps each flow with a cron entry to its expression.
func (r *Runner) Scheduled() map[uint]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uint]string, len(r.entries))
	for id, e := range r.entries {
		out[id] = e.expr
	}
	return out
}

// fire re-reads the flow so a paused, deleted or retyped flow stops firing
// right away, then runs it when its trigger conditions hold.
func (r *Runner) fire(flowID uint) {
	r.mu.Lock()
	e, ok := r.entries[flowID]
	var tenantID string
	if ok {
		tenantID = e.flow.TenantID
	}
	ctx := r.ctx
	r.mu.Unlock()
	if !ok {
		return
	}

	log := r.log.With().Uint("flow_id", flowID).Str("tenant_id", tenantID).Logger()
	flow, err := r.flows.Get(ctx, tenantID, flowID)
	if err != nil && !store.IsNotFound(err) {
		log.Error().Err(err).Msg("failed to load scheduled flow")
		return
	}
	if err != nil || flow.Status != models.FlowStatusActive || flow.TriggerType != models.TriggerSchedule {
		r.unschedule(flowID)
		log.Info().Msg("flow no longer scheduled")
		return
	}

	ev := automation.Event{
		"flowId":      flowID,
		"scheduledAt": time.Now().UTC().Format(time.RFC3339),
	}
	if !automation.Evaluate(flow.Trigger.Data().Conditions, ev) {
		log.Debug().Msg("schedule conditions not met")
		return
	}
	r.engine.RunFlow(ctx, *flow, ev)
}

func (r *Runner) unschedule(flowID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[flowID]; ok {
		r.cron.Remove(e.id)
		delete(r.entries, flowID)
	}
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
