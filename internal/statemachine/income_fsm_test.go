package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingRecord(eligibleAt time.Time) *models.IncomeRecord {
	return &models.IncomeRecord{
		Status:                  models.IncomeStatusPending,
		EligibleForApprovalDate: eligibleAt,
	}
}

func TestIncomeFSM_HappyPath(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	record := pendingRecord(now.Add(-time.Hour))

	require.NoError(t, NewIncomeFSM(record).Approve(ctx, now))
	assert.Equal(t, models.IncomeStatusApproved, record.Status)

	require.NoError(t, NewIncomeFSM(record).Credit(ctx))
	assert.Equal(t, models.IncomeStatusCredited, record.Status)

	require.NoError(t, NewIncomeFSM(record).Pay(ctx))
	assert.Equal(t, models.IncomeStatusPaid, record.Status)
}

func TestIncomeFSM_ApproveBeforeEligibilityFails(t *testing.T) {
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	record := pendingRecord(now.Add(time.Hour))

	err := NewIncomeFSM(record).Approve(context.Background(), now)
	assert.Error(t, err)
	assert.Equal(t, models.IncomeStatusPending, record.Status)
}

func TestIncomeFSM_RejectedIsTerminal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	record := pendingRecord(now)

	require.NoError(t, NewIncomeFSM(record).Reject(ctx, now))
	assert.Equal(t, models.IncomeStatusRejected, record.Status)

	machine := NewIncomeFSM(record)
	assert.Empty(t, machine.AvailableTransitions())
	assert.Error(t, machine.Approve(ctx, now))
	assert.Error(t, machine.Credit(ctx))
	assert.Equal(t, models.IncomeStatusRejected, record.Status)
}

func TestIncomeFSM_CannotSkipCredit(t *testing.T) {
	record := &models.IncomeRecord{Status: models.IncomeStatusApproved}
	machine := NewIncomeFSM(record)

	assert.False(t, machine.Can(EventPay))
	assert.Error(t, machine.Pay(context.Background()))
	assert.Equal(t, models.IncomeStatusApproved, record.Status)
}
