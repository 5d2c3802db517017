package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/reconciler/backend/internal/domain/treasury"
	"github.com/reconciler/backend/internal/infrastructure/persistence"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"github.com/reconciler/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBatcher_RunDue(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	operations := persistence.NewGormTreasuryOperationRepository(db)
	batcher := NewBatcher(persistence.NewGormTreasuryRepository(db), operations, zap.NewNop())
	ctx := context.Background()

	testutil.SeedTreasury(t, db, 1, "Cafe", "periodic", map[string]any{
		"interval": 1, "interval_unit": "day", "hour": 6, "minute": 0,
	})
	testutil.SeedTreasury(t, db, 2, "Bakery", "payg", nil)

	seedOp := func(id string, minutes int, account *string, direction string) {
		testutil.SeedOperation(t, db, models.TreasuryOperationModel{
			ID: id, TreasuryID: 1, Amount: 100, Direction: direction, Status: "pending-periodic",
			CreatedAt: testutil.FixedTime.Add(-time.Duration(minutes) * time.Minute),
			Account:   account,
		})
	}
	seedOp("op1", 30, testutil.StrPtr("0xA"), "in")
	seedOp("op2", 20, testutil.StrPtr("0xA"), "in")
	seedOp("op3", 10, testutil.StrPtr("0xA"), "out")
	seedOp("orphan", 5, nil, "in")

	early := time.Date(2024, 5, 1, 5, 0, 0, 0, time.UTC)
	result, err := batcher.RunDue(ctx, early)
	require.NoError(t, err)
	assert.Zero(t, result.TreasuriesDue)

	result, err = batcher.RunDue(ctx, testutil.FixedTime)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TreasuriesDue)
	assert.Equal(t, 2, result.Groups)
	assert.Equal(t, int64(3), result.Released)
	assert.Equal(t, int64(1), result.Parked)

	rep, err := operations.FindByID(ctx, "op1")
	require.NoError(t, err)
	assert.Equal(t, treasury.OpStatusPending, rep.Status)
	meta, err := treasury.DecodeMetadata(treasury.StrategyPeriodic, rep.Metadata)
	require.NoError(t, err)
	assert.True(t, meta.IsGroupRepresentative())
	assert.Equal(t, []string{"op1", "op2"}, meta.Periodic.GroupedOperations)
	assert.Equal(t, int64(200), meta.Periodic.TotalAmount)

	orphan, err := operations.FindByID(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, treasury.OpStatusProcessedAccountMissing, orphan.Status)

	// same slot again: nothing to do
	seedOp("late", 1, testutil.StrPtr("0xB"), "in")
	result, err = batcher.RunDue(ctx, testutil.FixedTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, result.TreasuriesDue)
	late, err := operations.FindByID(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, treasury.OpStatusPendingPeriodic, late.Status)

	// next day picks it up
	result, err = batcher.RunDue(ctx, testutil.FixedTime.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Groups)
}

func TestBatcher_RunTreasury_Empty(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	batcher := NewBatcher(persistence.NewGormTreasuryRepository(db),
		persistence.NewGormTreasuryOperationRepository(db), zap.NewNop())

	result, err := batcher.RunTreasury(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{}, result)
}
