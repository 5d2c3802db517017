package order

import (
	"context"
	"errors"
	"testing"

	appidentity "github.com/reconciler/backend/internal/application/identity"
	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/domain/shared"
	"github.com/reconciler/backend/internal/infrastructure/persistence"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"github.com/reconciler/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db         *gorm.DB
	service    *Service
	dispatcher *testutil.MockDispatcher
}

func newFixture(t *testing.T) fixture {
	db := testutil.NewSQLiteDB(t)
	places := persistence.NewGormPlaceRepository(db)
	resolver := appidentity.NewResolver(
		persistence.NewGormProfileRepository(db), places, nil,
		identity.ImageConfig{Domain: "ipfs.example.org", DefaultImage: "QmDefault"},
		zap.NewNop())
	dispatcher := new(testutil.MockDispatcher)
	svc := NewService(persistence.NewGormOrderRepository(db), places, resolver, dispatcher, zap.NewNop())
	return fixture{db: db, service: svc, dispatcher: dispatcher}
}

func refundPendingOrder() *order.Order {
	return &order.Order{
		ID:      42,
		Total:   1000,
		Fees:    50,
		PlaceID: 7,
		Status:  order.StatusRefundPending,
		Account: testutil.StrPtr("0xcustomer"),
	}
}

func TestService_ProcessRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedPlace(t, f.db, 7, 1, "Cafe", "0xcafe")
	testutil.SeedOrder(t, f.db, models.OrderModel{ID: 42, Total: 1000, Fees: 50, PlaceID: 7, Status: "refund_pending"})

	f.dispatcher.On("HasSigner", ledger.SignerPointOfSale).Return(true)
	f.dispatcher.On("Transfer", mock.Anything, ledger.TransferRequest{
		Signer:      ledger.SignerPointOfSale,
		From:        "0xcafe",
		To:          "0xcustomer",
		Amount:      "9.50",
		Description: "refund from: Cafe for order #42",
	}).Return("0xREFUND", nil).Once()

	outcome, err := f.service.ProcessRefund(ctx, refundPendingOrder())
	require.NoError(t, err)
	assert.True(t, outcome.Processed)

	got := testutil.LoadOrder(t, f.db, 42)
	assert.Equal(t, "refund", got.Status)
	require.NotNil(t, got.TxHash)
	assert.Equal(t, "0xREFUND", *got.TxHash)

	var profiles int64
	require.NoError(t, f.db.Model(&models.ProfileModel{}).Count(&profiles).Error)
	assert.Equal(t, int64(2), profiles)
	f.dispatcher.AssertExpectations(t)
}

func TestService_ProcessRefund_Ignored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := refundPendingOrder()
	paid.Status = order.StatusPaid
	outcome, err := f.service.ProcessRefund(ctx, paid)
	require.NoError(t, err)
	assert.False(t, outcome.Processed)

	anonymous := refundPendingOrder()
	anonymous.Account = nil
	outcome, err = f.service.ProcessRefund(ctx, anonymous)
	require.NoError(t, err)
	assert.False(t, outcome.Processed)

	f.dispatcher.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
}

func TestService_ProcessRefund_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("place missing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.ProcessRefund(ctx, refundPendingOrder())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("key missing", func(t *testing.T) {
		f := newFixture(t)
		testutil.SeedPlace(t, f.db, 7, 1, "Cafe", "0xcafe")
		f.dispatcher.On("HasSigner", ledger.SignerPointOfSale).Return(false)

		_, err := f.service.ProcessRefund(ctx, refundPendingOrder())
		assert.ErrorIs(t, err, shared.ErrConfiguration)
		f.dispatcher.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything)
	})

	t.Run("dispatch fails and order is untouched", func(t *testing.T) {
		f := newFixture(t)
		testutil.SeedPlace(t, f.db, 7, 1, "Cafe", "0xcafe")
		testutil.SeedOrder(t, f.db, models.OrderModel{ID: 42, Total: 1000, PlaceID: 7, Status: "refund_pending"})
		f.dispatcher.On("HasSigner", ledger.SignerPointOfSale).Return(true)
		f.dispatcher.On("Transfer", mock.Anything, mock.Anything).Return("", errors.New("relay down"))

		_, err := f.service.ProcessRefund(ctx, refundPendingOrder())
		assert.ErrorIs(t, err, shared.ErrDispatch)
		got := testutil.LoadOrder(t, f.db, 42)
		assert.Equal(t, "refund_pending", got.Status)
		assert.Nil(t, got.TxHash)
	})

	t.Run("empty hash", func(t *testing.T) {
		f := newFixture(t)
		testutil.SeedPlace(t, f.db, 7, 1, "Cafe", "0xcafe")
		f.dispatcher.On("HasSigner", ledger.SignerPointOfSale).Return(true)
		f.dispatcher.On("Transfer", mock.Anything, mock.Anything).Return("", nil)

		_, err := f.service.ProcessRefund(ctx, refundPendingOrder())
		assert.ErrorIs(t, err, shared.ErrDispatch)
	})
}

func TestService_FinalizeByTxHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testutil.SeedOrder(t, f.db, models.OrderModel{ID: 1, Due: 500, Status: "pending", TxHash: testutil.StrPtr("0xTX")})
	testutil.SeedOrder(t, f.db, models.OrderModel{ID: 42, Due: 1000, Status: "refund", TxHash: testutil.StrPtr("0xTX")})

	n, err := f.service.FinalizeByTxHash(ctx, "0xTX", "lunch")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "paid", testutil.LoadOrder(t, f.db, 1).Status)
	refund := testutil.LoadOrder(t, f.db, 42)
	assert.Equal(t, "refund", refund.Status)
	assert.Equal(t, int64(0), refund.Due)
	assert.Equal(t, "lunch", refund.Description)
}
