package api

import (
	"context"
	"net/http"

	"socialflow/internal/automation"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
)

// FlowRunner runs the tenant's matching flows for an event and waits for the
// results.
type FlowRunner interface {
	RunFlows(ctx context.Context, tenantID string, triggerType models.TriggerType, ev automation.Event) ([]automation.RunResult, error)
}

type FlowHandler struct {
	flows  *store.FlowRepository
	runner FlowRunner
}

func NewFlowHandler(flows *store.FlowRepository, runner FlowRunner) *FlowHandler {
	return &FlowHandler{flows: flows, runner: runner}
}

type flowRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description"`
	Status      models.FlowStatus   `json:"status" validate:"omitempty,oneof=draft active paused"`
	Trigger     models.Trigger      `json:"trigger"`
	Actions     []models.ActionSpec `json:"actions"`
}

// ValidateFlow checks everything the engine would otherwise only discover
// at execution time.
func ValidateFlow(trigger models.Trigger, actions []models.ActionSpec) error {
	if !trigger.Type.Valid() {
		return invalidf("unknown trigger type %q", trigger.Type)
	}
	if trigger.Type == models.TriggerSchedule {
		if _, err := cron.ParseStandard(trigger.ScheduleTime); err != nil {
			return invalidf("invalid scheduleTime %q: %v", trigger.ScheduleTime, err)
		}
	}
	if err := automation.ValidatePredicate(trigger.Conditions); err != nil {
		return invalidf("invalid trigger conditions: %v", err)
	}
	if _, err := automation.ParseActions(actions); err != nil {
		return invalidf("%v", err)
	}
	return nil
}

func (req *flowRequest) toFlow(tenantID string) (*models.Flow, error) {
	if err := ValidateFlow(req.Trigger, req.Actions); err != nil {
		return nil, err
	}
	actions := req.Actions
	if actions == nil {
		actions = []models.ActionSpec{}
	}
	return &models.Flow{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		TriggerType: req.Trigger.Type,
		Trigger:     datatypes.NewJSONType(req.Trigger),
		Actions:     datatypes.JSONSlice[models.ActionSpec](actions),
	}, nil
}

func (h *FlowHandler) ListFlows(c *gin.Context) {
	flows, err := h.flows.List(c.Request.Context(), tenantID(c), models.FlowStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	if flows == nil {
		flows = []models.Flow{}
	}
	c.JSON(http.StatusOK, flows)
}

func (h *FlowHandler) GetFlow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	flow, err := h.flows.Get(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

func (h *FlowHandler) CreateFlow(c *gin.Context) {
	var req flowRequest
	if !bind(c, &req) {
		return
	}
	flow, err := req.toFlow(tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.flows.Create(c.Request.Context(), flow); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flow)
}

func (h *FlowHandler) UpdateFlow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req flowRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	existing, err := h.flows.Get(ctx, tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	flow, err := req.toFlow(tenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	flow.ID = id
	if flow.Status == "" {
		flow.Status = existing.Status
	}
	if err := h.flows.Update(ctx, flow); err != nil {
		respondError(c, err)
		return
	}
	updated, err := h.flows.Get(ctx, tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *FlowHandler) DeleteFlow(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.flows.Delete(c.Request.Context(), tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Flow deleted successfully"})
}

// SetFlowStatus activates, pauses or drafts a flow.
func (h *FlowHandler) SetFlowStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.FlowStatus `json:"status" validate:"required,oneof=draft active paused"`
	}
	if !bind(c, &req) {
		return
	}
	if err := h.flows.SetStatus(c.Request.Context(), tenantID(c), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Flow status updated", "status": req.Status})
}

func (h *FlowHandler) GetFlowStats(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	stats, err := h.flows.Stats(c.Request.Context(), tenantID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetFlowRuns returns the flow's most recent execution records.
func (h *FlowHandler) GetFlowRuns(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.flows.Get(ctx, tenantID(c), id); err != nil {
		respondError(c, err)
		return
	}
	runs, err := h.flows.ListRuns(ctx, tenantID(c), id, queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []models.FlowRun{}
	}
	c.JSON(http.StatusOK, runs)
}

// GetAnalytics totals execution counters across the tenant's flows.
func (h *FlowHandler) GetAnalytics(c *gin.Context) {
	flows, err := h.flows.List(c.Request.Context(), tenantID(c), "")
	if err != nil {
		respondError(c, err)
		return
	}

	var stats struct {
		TotalFlows      int     `json:"total_flows"`
		ActiveFlows     int     `json:"active_flows"`
		TotalExecutions int64   `json:"total_executions"`
		SuccessfulExecs int64   `json:"successful_executions"`
		FailedExecs     int64   `json:"failed_executions"`
		SuccessRate     float64 `json:"success_rate"`
	}
	stats.TotalFlows = len(flows)
	for _, f := range flows {
		if f.Status == models.FlowStatusActive {
			stats.ActiveFlows++
		}
		stats.TotalExecutions += f.TotalExecutions
		stats.SuccessfulExecs += f.SuccessfulExecutions
		stats.FailedExecs += f.FailedExecutions
	}
	if stats.TotalExecutions > 0 {
		stats.SuccessRate = float64(stats.SuccessfulExecs) / float64(stats.TotalExecutions) * 100
	}
	c.JSON(http.StatusOK, stats)
}

// RunFlows dispatches an event by hand and returns the per-flow results.
func (h *FlowHandler) RunFlows(c *gin.Context) {
	var req struct {
		TriggerType models.TriggerType `json:"trigger_type" validate:"required"`
		Event       automation.Event   `json:"event"`
	}
	if !bind(c, &req) {
		return
	}
	if !req.TriggerType.Valid() {
		respondError(c, invalidf("unknown trigger type %q", req.TriggerType))
		return
	}
	if req.Event == nil {
		req.Event = automation.Event{}
	}
	results, err := h.runner.RunFlows(c.Request.Context(), tenantID(c), req.TriggerType, req.Event)
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []automation.RunResult{}
	}
	c.JSON(http.StatusOK, gin.H{"flows_executed": len(results), "results": results})
}
