package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/reconciler/backend/internal/domain/treasury"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"github.com/reconciler/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestGormTreasuryRepository_FindByID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormTreasuryRepository(db)
	ctx := context.Background()

	testutil.SeedTreasury(t, db, 1, "Cafe Brussels", "periodic", map[string]any{
		"interval": 2, "interval_unit": "week", "day_of_week": 1,
	})
	testutil.SeedTreasury(t, db, 2, "Bakery", "payg", nil)

	got, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cafe Brussels", got.BusinessName)
	assert.Equal(t, treasury.StrategyPeriodic, got.SyncStrategy)
	require.NotNil(t, got.Periodic)
	assert.Equal(t, 2, got.Periodic.Interval)
	assert.Equal(t, treasury.UnitWeek, got.Periodic.IntervalUnit)
	creds, ok := got.Credentials.(treasury.StripeCredentials)
	require.True(t, ok)
	assert.Equal(t, "sk_test_1", creds.SecretKey)

	missing, err := repo.FindByID(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, missing)

	periodic, err := repo.FindByStrategy(ctx, treasury.StrategyPeriodic)
	require.NoError(t, err)
	require.Len(t, periodic, 1)
	assert.Equal(t, int64(1), periodic[0].ID)
}

func TestGormTreasuryOperationRepository_Lifecycle(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormTreasuryOperationRepository(db)
	ctx := context.Background()

	testutil.SeedOperation(t, db, models.TreasuryOperationModel{
		ID: "op1", TreasuryID: 1, Amount: 1250, Status: "pending", Account: testutil.StrPtr("0xA"),
	})

	rows, err := repo.AttachTxHash(ctx, []string{"op1"}, "0xTX1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	got := testutil.LoadOperation(t, db, "op1")
	assert.Equal(t, "confirming", got.Status)
	assert.Equal(t, "0xTX1", *got.TxHash)

	// a second attach does not overwrite the hash
	rows, err = repo.AttachTxHash(ctx, []string{"op1"}, "0xOTHER")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	at := testutil.FixedTime.Add(time.Hour)
	rows, err = repo.ConfirmByTxHash(ctx, "0xTX1", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	got = testutil.LoadOperation(t, db, "op1")
	assert.Equal(t, "processed", got.Status)
	assert.True(t, got.UpdatedAt.Equal(at))

	rows, err = repo.ConfirmByTxHash(ctx, "0xTX1", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)
	assert.Equal(t, "processed", testutil.LoadOperation(t, db, "op1").Status)
}

func TestGormTreasuryOperationRepository_FindByTreasuryAndStatus(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormTreasuryOperationRepository(db)
	ctx := context.Background()

	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "b", TreasuryID: 1, Status: "pending-periodic", CreatedAt: testutil.FixedTime})
	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "a", TreasuryID: 1, Status: "pending-periodic", CreatedAt: testutil.FixedTime})
	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "c", TreasuryID: 1, Status: "pending-periodic", CreatedAt: testutil.FixedTime.Add(-time.Minute)})
	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "d", TreasuryID: 1, Status: "pending"})
	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "e", TreasuryID: 2, Status: "pending-periodic"})

	ops, err := repo.FindByTreasuryAndStatus(ctx, 1, treasury.OpStatusPendingPeriodic)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{ops[0].ID, ops[1].ID, ops[2].ID})
}

func TestGormTreasuryOperationRepository_ApplyGroup(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*GormTreasuryOperationRepository, treasury.Group) {
		db := testutil.NewSQLiteDB(t)
		repo := NewGormTreasuryOperationRepository(db)
		for i, id := range []string{"op1", "op2"} {
			testutil.SeedOperation(t, db, models.TreasuryOperationModel{
				ID: id, TreasuryID: 1, Amount: 500, Status: "pending-periodic",
				CreatedAt: testutil.FixedTime.Add(time.Duration(i) * time.Minute),
				Account:   testutil.StrPtr("0xA"),
			})
		}
		ops, err := repo.FindByTreasuryAndStatus(ctx, 1, treasury.OpStatusPendingPeriodic)
		require.NoError(t, err)
		groups := treasury.GroupOperations(ops)
		require.Len(t, groups, 1)
		return repo, groups[0]
	}

	t.Run("releases every member", func(t *testing.T) {
		repo, group := seed(t)

		rows, err := repo.ApplyGroup(ctx, group)
		require.NoError(t, err)
		assert.Equal(t, int64(2), rows)

		rep, err := repo.FindByID(ctx, "op1")
		require.NoError(t, err)
		assert.Equal(t, treasury.OpStatusPending, rep.Status)
		meta, err := treasury.DecodeMetadata(treasury.StrategyPeriodic, rep.Metadata)
		require.NoError(t, err)
		assert.Equal(t, []string{"op1", "op2"}, meta.Periodic.GroupedOperations)
		assert.Equal(t, int64(1000), meta.Periodic.TotalAmount)

		member, err := repo.FindByID(ctx, "op2")
		require.NoError(t, err)
		assert.Equal(t, treasury.OpStatusPending, member.Status)
	})

	t.Run("rolls back when a member moved", func(t *testing.T) {
		repo, group := seed(t)
		require.NoError(t, repo.db.Model(&models.TreasuryOperationModel{}).
			Where("id = ?", "op2").Update("status", "processed").Error)

		_, err := repo.ApplyGroup(ctx, group)
		assert.ErrorIs(t, err, ErrGroupChanged)

		rep, err := repo.FindByID(ctx, "op1")
		require.NoError(t, err)
		assert.Equal(t, treasury.OpStatusPendingPeriodic, rep.Status)
		assert.JSONEq(t, "{}", string(rep.Metadata))
	})
}

func TestGormTreasuryOperationRepository_ApplyGroup_Transaction(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()
	repo := NewGormTreasuryOperationRepository(mockDB.DB)

	group := treasury.Group{
		Representative: treasury.Operation{ID: "op1"},
		Metadata:       treasury.PeriodicMetadata{GroupedOperations: []string{"op1", "op2"}, TotalAmount: 10},
	}

	mockDB.Mock.ExpectBegin()
	mockDB.Mock.ExpectExec(`UPDATE "treasury_operations" SET .*"metadata"=.* WHERE id = \$\d+ AND status IN \(\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectExec(`UPDATE "treasury_operations" SET .*"status"=.* WHERE id IN \(\$\d+,\$\d+\) AND status IN \(\$\d+\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.Mock.ExpectRollback()

	_, err := repo.ApplyGroup(context.Background(), group)
	assert.ErrorIs(t, err, ErrGroupChanged)
	mockDB.ExpectationsWereMet(t)
}

func TestGormTreasuryOperationRepository_MarkAccountMissing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewGormTreasuryOperationRepository(db)
	ctx := context.Background()

	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "x", TreasuryID: 1, Status: "pending-periodic"})
	testutil.SeedOperation(t, db, models.TreasuryOperationModel{ID: "y", TreasuryID: 1, Status: "pending", Metadata: datatypes.JSON(`{"description":"d"}`)})

	rows, err := repo.MarkAccountMissing(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.Equal(t, "processed-account-not-found", testutil.LoadOperation(t, db, "x").Status)
	assert.Equal(t, "pending", testutil.LoadOperation(t, db, "y").Status)

	rows, err = repo.MarkAccountMissing(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, rows)
}
