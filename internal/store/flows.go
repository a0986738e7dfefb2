package store

import (
	"context"
	"fmt"
	"time"

	"socialflow/internal/models"

	"gorm.io/gorm"
)

type FlowRepository struct {
	db *gorm.DB
}

func NewFlowRepository(db *gorm.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// ActiveFlows returns the tenant's active flows for a trigger type in creation order.
func (r *FlowRepository) ActiveFlows(ctx context.Context, tenantID string, triggerType models.TriggerType) ([]models.Flow, error) {
	var flows []models.Flow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND trigger_type = ?", tenantID, models.FlowStatusActive, triggerType).
		Order("id ASC").
		Find(&flows).Error
	if err != nil {
		return nil, fmt.Errorf("query active flows: %w", err)
	}
	return flows, nil
}

// ScheduledFlows returns active schedule-triggered flows across all tenants.
func (r *FlowRepository) ScheduledFlows(ctx context.Context) ([]models.Flow, error) {
	var flows []models.Flow
	err := r.db.WithContext(ctx).
		Where("status = ? AND trigger_type = ?", models.FlowStatusActive, models.TriggerSchedule).
		Order("id ASC").
		Find(&flows).Error
	return flows, err
}

func (r *FlowRepository) Create(ctx context.Context, flow *models.Flow) error {
	if flow.Status == "" {
		flow.Status = models.FlowStatusDraft
	}
	return r.db.WithContext(ctx).Create(flow).Error
}

func (r *FlowRepository) Get(ctx context.Context, tenantID string, id uint) (*models.Flow, error) {
	var flow models.Flow
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&flow, id).Error; err != nil {
		return nil, notFound(err, ErrFlowNotFound)
	}
	return &flow, nil
}

func (r *FlowRepository) List(ctx context.Context, tenantID string, status models.FlowStatus) ([]models.Flow, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var flows []models.Flow
	err := q.Order("created_at DESC").Find(&flows).Error
	return flows, err
}

// Update writes the editable fields of a flow. Execution counters are never
// touched here.
func (r *FlowRepository) Update(ctx context.Context, flow *models.Flow) error {
	flow.TriggerType = flow.Trigger.Data().Type
	res := r.db.WithContext(ctx).
		Model(flow).
		Where("tenant_id = ?", flow.TenantID).
		Select("name", "description", "status", "trigger_type", "trigger", "actions", "updated_at").
		Updates(flow)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFlowNotFound
	}
	return nil
}

func (r *FlowRepository) SetStatus(ctx context.Context, tenantID string, id uint, status models.FlowStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Flow{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFlowNotFound
	}
	return nil
}

func (r *FlowRepository) Delete(ctx context.Context, tenantID string, id uint) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.Flow{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFlowNotFound
	}
	return nil
}

// RecordExecution bumps the flow's counters in a single UPDATE so concurrent
// executions never lose an increment. A missing flow is not an error.
func (r *FlowRepository) RecordExecution(ctx context.Context, flowID uint, success bool) error {
	outcome := "failed_executions"
	if success {
		outcome = "successful_executions"
	}
	return r.db.WithContext(ctx).
		Model(&models.Flow{}).
		Where("id = ?", flowID).
		UpdateColumns(map[string]interface{}{
			"total_executions": gorm.Expr("total_executions + 1"),
			outcome:            gorm.Expr(outcome + " + 1"),
			"last_executed_at": time.Now(),
		}).Error
}

type FlowStats struct {
	TotalExecutions      int64   `json:"total_executions"`
	SuccessfulExecutions int64   `json:"successful_executions"`
	FailedExecutions     int64   `json:"failed_executions"`
	SuccessRate          float64 `json:"success_rate"`
}

func (r *FlowRepository) Stats(ctx context.Context, tenantID string, id uint) (*FlowStats, error) {
	flow, err := r.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	stats := &FlowStats{
		TotalExecutions:      flow.TotalExecutions,
		SuccessfulExecutions: flow.SuccessfulExecutions,
		FailedExecutions:     flow.FailedExecutions,
	}
	if flow.TotalExecutions > 0 {
		stats.SuccessRate = float64(flow.SuccessfulExecutions) / float64(flow.TotalExecutions) * 100
	}
	return stats, nil
}

func (r *FlowRepository) RecordRun(ctx context.Context, run *models.FlowRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *FlowRepository) ListRuns(ctx context.Context, tenantID string, flowID uint, limit int) ([]models.FlowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []models.FlowRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND flow_id = ?", tenantID, flowID).
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
