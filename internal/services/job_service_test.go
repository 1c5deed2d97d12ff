package services

import (
	"context"
	"testing"
	"time"

	"github.com/sjperalta/fintera-matching-api/internal/jobs"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobService_TriggerMatchingSweep(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	require.NoError(t, env.balances.RecordSale(ctx, team.seller.ID, models.LegLeft, d("1000")))
	require.NoError(t, env.balances.RecordSale(ctx, team.seller.ID, models.LegRight, d("400")))

	worker := jobs.NewWorker(1)
	defer worker.Shutdown()
	jobSvc := NewJobService(worker, env.sales, env.incomes)

	require.NoError(t, jobSvc.Trigger(ctx, JobMatchingSweep))

	balance, err := env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "600.00", balance.LeftAvailable.StringFixed(2))

	status := jobSvc.GetStatus()
	scheduled := status["scheduled"].([]jobs.ScheduledJobStatus)
	require.Len(t, scheduled, 1)
	assert.Equal(t, JobMatchingSweep, scheduled[0].Name)
	assert.Equal(t, int64(1), scheduled[0].Runs)

	assert.ErrorIs(t, jobSvc.Trigger(ctx, "unknown"), ErrNotFound)
}

func TestJobService_TriggerAsyncQueuesOnPool(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	require.NoError(t, env.balances.RecordSale(ctx, team.seller.ID, models.LegLeft, d("300")))
	require.NoError(t, env.balances.RecordSale(ctx, team.seller.ID, models.LegRight, d("500")))

	worker := jobs.NewWorker(1)
	jobSvc := NewJobService(worker, env.sales, env.incomes)

	assert.ErrorIs(t, jobSvc.TriggerAsync("unknown"), ErrNotFound)
	require.NoError(t, jobSvc.TriggerAsync(JobMatchingSweep))

	require.Eventually(t, func() bool {
		for _, s := range worker.GetStats().Scheduled {
			if s.Name == JobMatchingSweep && s.Runs == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	worker.Shutdown()

	balance, err := env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "200.00", balance.RightAvailable.StringFixed(2))

	assert.ErrorIs(t, jobSvc.TriggerAsync(JobMatchingSweep), jobs.ErrStopped)
}
