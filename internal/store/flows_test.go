package store

import (
	"sync"
	"testing"

	"socialflow/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newFlow(tenant string, trigger models.Trigger, status models.FlowStatus) *models.Flow {
	return &models.Flow{
		TenantID: tenant,
		Name:     string(trigger.Type) + " flow",
		Status:   status,
		Trigger:  datatypes.NewJSONType(trigger),
		Actions:  datatypes.JSONSlice[models.ActionSpec]{{Type: "send_dm"}},
	}
}

func TestActiveFlowsFiltersAndOrders(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	dm := models.Trigger{Type: models.TriggerInstagramDM}

	first := newFlow("t1", dm, models.FlowStatusActive)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, newFlow("t1", dm, models.FlowStatusPaused)))
	require.NoError(t, repo.Create(ctx, newFlow("t2", dm, models.FlowStatusActive)))
	require.NoError(t, repo.Create(ctx, newFlow("t1", models.Trigger{Type: models.TriggerKeyword}, models.FlowStatusActive)))
	second := newFlow("t1", dm, models.FlowStatusActive)
	require.NoError(t, repo.Create(ctx, second))

	flows, err := repo.ActiveFlows(ctx, "t1", models.TriggerInstagramDM)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, first.ID, flows[0].ID)
	assert.Equal(t, second.ID, flows[1].ID)
	assert.Equal(t, models.TriggerInstagramDM, flows[0].TriggerType)
}

func TestCreateDefaultsToDraft(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	f := newFlow("t1", models.Trigger{Type: models.TriggerKeyword, Keywords: []string{"hi"}}, "")
	require.NoError(t, repo.Create(ctx, f))

	got, err := repo.Get(ctx, "t1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlowStatusDraft, got.Status)
	assert.Equal(t, []string{"hi"}, got.Trigger.Data().Keywords)
	assert.Len(t, got.Actions, 1)

	_, err = repo.Get(ctx, "t2", f.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestUpdateSetStatusDelete(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	f := newFlow("t1", models.Trigger{Type: models.TriggerInstagramDM}, models.FlowStatusDraft)
	require.NoError(t, repo.Create(ctx, f))

	f.Name = "renamed"
	f.Trigger = datatypes.NewJSONType(models.Trigger{Type: models.TriggerInstagramComment})
	require.NoError(t, repo.Update(ctx, f))
	require.NoError(t, repo.SetStatus(ctx, "t1", f.ID, models.FlowStatusActive))

	got, err := repo.Get(ctx, "t1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, models.TriggerInstagramComment, got.TriggerType)
	assert.Equal(t, models.FlowStatusActive, got.Status)

	assert.ErrorIs(t, repo.SetStatus(ctx, "t2", f.ID, models.FlowStatusPaused), ErrFlowNotFound)
	require.NoError(t, repo.Delete(ctx, "t1", f.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "t1", f.ID), ErrFlowNotFound)
}

func TestRecordExecutionConcurrent(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	f := newFlow("t1", models.Trigger{Type: models.TriggerInstagramDM}, models.FlowStatusActive)
	require.NoError(t, repo.Create(ctx, f))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, repo.RecordExecution(ctx, f.ID, i%4 != 0))
		}(i)
	}
	wg.Wait()

	stats, err := repo.Stats(ctx, "t1", f.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 20, stats.TotalExecutions)
	assert.EqualValues(t, 15, stats.SuccessfulExecutions)
	assert.EqualValues(t, 5, stats.FailedExecutions)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.001)

	got, err := repo.Get(ctx, "t1", f.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastExecutedAt)
}

func TestRecordExecutionMissingFlowIsNoop(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	assert.NoError(t, repo.RecordExecution(ctx, 404, true))
}

func TestStatsWithoutExecutions(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	f := newFlow("t1", models.Trigger{Type: models.TriggerInstagramDM}, models.FlowStatusActive)
	require.NoError(t, repo.Create(ctx, f))

	stats, err := repo.Stats(ctx, "t1", f.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.SuccessRate)
}

func TestRecordAndListRuns(t *testing.T) {
	repo := NewFlowRepository(newTestDB(t))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordRun(ctx, &models.FlowRun{FlowID: 7, TenantID: "t1", ExecutionID: "e", Success: true}))
	}
	runs, err := repo.ListRuns(ctx, "t1", 7, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)
}
