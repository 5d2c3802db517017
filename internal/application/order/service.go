package order

import (
	"context"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/domain/place"
	"github.com/reconciler/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ProfileEnsurer creates missing profiles for settlement parties
type ProfileEnsurer interface {
	EnsureProfiles(ctx context.Context, accounts ...string) error
}

// Service drives the order side of settlement: finalizing orders matched to a
// ledger entry and dispatching refunds.
type Service struct {
	orders     order.Repository
	places     place.Repository
	profiles   ProfileEnsurer
	dispatcher ledger.Dispatcher
	logger     *zap.Logger
}

// NewService creates a new order Service
func NewService(
	orders order.Repository,
	places place.Repository,
	profiles ProfileEnsurer,
	dispatcher ledger.Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		orders:     orders,
		places:     places,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Finalize settles an order: due drops to zero and the status becomes target,
// unless the order is already a refund.
func (s *Service) Finalize(ctx context.Context, orderID int64, description string, target order.Status) error {
	rows, err := s.orders.Finalize(ctx, orderID, description, target)
	if err != nil {
		return shared.NewPersistenceError(err, "finalize order %d", orderID)
	}
	if rows == 0 {
		s.logger.Warn("Finalize matched no order", zap.Int64("order_id", orderID))
	}
	return nil
}

// FinalizeByTxHash finalizes every order correlated with a chain tx hash and
// returns how many were found
func (s *Service) FinalizeByTxHash(ctx context.Context, txHash, description string) (int, error) {
	orders, err := s.orders.FindByTxHash(ctx, txHash)
	if err != nil {
		return 0, shared.NewPersistenceError(err, "find orders by tx hash %s", txHash)
	}
	for _, o := range orders {
		if err := s.Finalize(ctx, o.ID, description, order.StatusPaid); err != nil {
			return 0, err
		}
	}
	return len(orders), nil
}

// AttachTxHash records a dispatch hash on an order together with its new status
func (s *Service) AttachTxHash(ctx context.Context, orderID int64, txHash string, status order.Status) error {
	if _, err := s.orders.AttachTxHash(ctx, orderID, txHash, status); err != nil {
		return shared.NewPersistenceError(err, "attach tx hash to order %d", orderID)
	}
	return nil
}

// ProcessRefund pays back an order awaiting refund from its place's account.
// Orders in any other state, or without a customer account, are ignored.
func (s *Service) ProcessRefund(ctx context.Context, o *order.Order) (shared.Outcome, error) {
	if o.Status != order.StatusRefundPending {
		return shared.Ignored("order is not refund pending"), nil
	}
	if !o.HasAccount() {
		return shared.Ignored("order has no account"), nil
	}

	p, err := s.places.FindByID(ctx, o.PlaceID)
	if err != nil {
		return shared.Outcome{}, shared.NewPersistenceError(err, "find place %d", o.PlaceID)
	}
	if p == nil {
		return shared.Outcome{}, shared.NewNotFoundError("place %d not found", o.PlaceID)
	}
	placeAccount := p.PrimaryAccount()
	if placeAccount == "" {
		return shared.Outcome{}, shared.NewNotFoundError("place %d has no account", p.ID)
	}

	if err := s.profiles.EnsureProfiles(ctx, placeAccount, *o.Account); err != nil {
		return shared.Outcome{}, shared.NewPersistenceError(err, "ensure refund profiles")
	}

	if !s.dispatcher.HasSigner(ledger.SignerPointOfSale) {
		return shared.Outcome{}, shared.NewConfigurationError("point of sale key is not configured")
	}

	req := ledger.TransferRequest{
		Signer:      ledger.SignerPointOfSale,
		From:        placeAccount,
		To:          *o.Account,
		Amount:      o.RefundAmount(),
		Description: order.RefundDescription(p.Name, o.ID),
	}
	if o.Token != nil {
		req.Token = *o.Token
	}

	hash, err := s.dispatcher.Transfer(ctx, req)
	if err != nil {
		return shared.Outcome{}, shared.NewDispatchError(err, "refund order %d", o.ID)
	}
	if hash == "" {
		return shared.Outcome{}, shared.NewDispatchError(nil, "refund order %d returned no tx hash", o.ID)
	}

	if err := s.AttachTxHash(ctx, o.ID, hash, order.StatusRefund); err != nil {
		return shared.Outcome{}, err
	}

	s.logger.Info("Refund dispatched",
		zap.Int64("order_id", o.ID),
		zap.String("tx_hash", hash),
		zap.String("amount", req.Amount))
	return shared.Processed("transaction processed"), nil
}
