package treasury

import (
	"context"
	"time"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/domain/shared"
	"github.com/reconciler/backend/internal/domain/treasury"
	"go.uber.org/zap"
)

// ProfileEnsurer creates missing profiles for settlement parties
type ProfileEnsurer interface {
	EnsureProfiles(ctx context.Context, accounts ...string) error
}

// Service drives treasury operations from pending to processed
type Service struct {
	treasuries treasury.Repository
	operations treasury.OperationRepository
	orders     order.Repository
	profiles   ProfileEnsurer
	dispatcher ledger.Dispatcher
	logger     *zap.Logger
}

// NewService creates a new treasury Service
func NewService(
	treasuries treasury.Repository,
	operations treasury.OperationRepository,
	orders order.Repository,
	profiles ProfileEnsurer,
	dispatcher ledger.Dispatcher,
	logger *zap.Logger,
) *Service {
	return &Service{
		treasuries: treasuries,
		operations: operations,
		orders:     orders,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Attach moves one pending operation to confirming under txHash
func (s *Service) Attach(ctx context.Context, id, txHash string) error {
	return s.AttachMany(ctx, []string{id}, txHash)
}

// AttachMany moves every listed pending operation to confirming under txHash.
// Operations no longer pending are left alone.
func (s *Service) AttachMany(ctx context.Context, ids []string, txHash string) error {
	rows, err := s.operations.AttachTxHash(ctx, ids, txHash)
	if err != nil {
		return shared.NewPersistenceError(err, "attach tx hash %s", txHash)
	}
	if rows < int64(len(ids)) {
		s.logger.Warn("Some treasury operations were not pending",
			zap.Strings("ids", ids),
			zap.Int64("attached", rows))
	}
	return nil
}

// Confirm settles every confirming operation carrying txHash. A repeated
// confirmation finds nothing left and succeeds.
func (s *Service) Confirm(ctx context.Context, txHash string, at time.Time) (int64, error) {
	rows, err := s.operations.ConfirmByTxHash(ctx, txHash, at.UTC())
	if err != nil {
		return 0, shared.NewPersistenceError(err, "confirm treasury operations for %s", txHash)
	}
	return rows, nil
}

// ProcessOperation dispatches the mint or burn for a pending operation and
// advances it, and every operation it settles, to confirming.
func (s *Service) ProcessOperation(ctx context.Context, op *treasury.Operation) (shared.Outcome, error) {
	if op.Status != treasury.OpStatusPending {
		return shared.Ignored("treasury operation is not pending"), nil
	}
	if !op.HasAccount() {
		return shared.Ignored("treasury operation has no account"), nil
	}

	t, err := s.treasuries.FindByID(ctx, op.TreasuryID)
	if err != nil {
		return shared.Outcome{}, shared.NewPersistenceError(err, "find treasury %d", op.TreasuryID)
	}
	if t == nil {
		return shared.Outcome{}, shared.NewNotFoundError("treasury %d not found", op.TreasuryID)
	}

	if err := s.profiles.EnsureProfiles(ctx, *op.Account); err != nil {
		return shared.Outcome{}, shared.NewPersistenceError(err, "ensure operation profile")
	}

	if !s.dispatcher.HasSigner(ledger.SignerTreasury) {
		return shared.Outcome{}, shared.NewConfigurationError("treasury custodian key is not configured")
	}

	meta, err := treasury.DecodeMetadata(t.SyncStrategy, op.Metadata)
	if err != nil {
		return shared.Outcome{}, shared.NewValidationError("treasury operation %s metadata: %v", op.ID, err)
	}
	if t.SyncStrategy == treasury.StrategyPeriodic && !meta.IsGroupRepresentative() {
		return shared.Ignored("treasury operation is settled by its group"), nil
	}

	linkedDescription, err := s.linkedOrderDescription(ctx, meta)
	if err != nil {
		return shared.Outcome{}, err
	}
	plan := treasury.PlanSettlement(t, op, meta, linkedDescription)

	req := ledger.TransferRequest{
		Signer:      ledger.SignerTreasury,
		Token:       t.Token,
		To:          *op.Account,
		Amount:      plan.Amount,
		Description: plan.Description,
	}
	var hash string
	switch plan.Action {
	case treasury.ActionBurn:
		req.To = ""
		req.From = *op.Account
		hash, err = s.dispatcher.Burn(ctx, req)
	default:
		hash, err = s.dispatcher.Mint(ctx, req)
	}
	if err != nil {
		return shared.Outcome{}, shared.NewDispatchError(err, "%s for treasury operation %s", plan.Action, op.ID)
	}
	if hash == "" {
		return shared.Outcome{}, shared.NewDispatchError(nil, "%s for treasury operation %s returned no tx hash", plan.Action, op.ID)
	}

	if err := s.AttachMany(ctx, plan.IDs, hash); err != nil {
		return shared.Outcome{}, err
	}

	if t.SyncStrategy == treasury.StrategyPayg && meta.Payg != nil && meta.Payg.OrderID != nil {
		status := order.StatusPaid
		if op.Direction == treasury.DirectionOut {
			status = order.StatusRefund
		}
		if _, err := s.orders.AttachTxHash(ctx, *meta.Payg.OrderID, hash, status); err != nil {
			return shared.Outcome{}, shared.NewPersistenceError(err, "attach tx hash to order %d", *meta.Payg.OrderID)
		}
	}

	s.logger.Info("Treasury operation dispatched",
		zap.String("operation_id", op.ID),
		zap.String("action", string(plan.Action)),
		zap.String("amount", plan.Amount),
		zap.Strings("settled_ids", plan.IDs),
		zap.String("tx_hash", hash))
	return shared.Processed("transaction processed"), nil
}

func (s *Service) linkedOrderDescription(ctx context.Context, meta treasury.OperationMetadata) (string, error) {
	if meta.Payg == nil || meta.Payg.OrderID == nil || meta.Payg.Description != "" {
		return "", nil
	}
	o, err := s.orders.FindByID(ctx, *meta.Payg.OrderID)
	if err != nil {
		return "", shared.NewPersistenceError(err, "find order %d", *meta.Payg.OrderID)
	}
	if o == nil {
		return "", nil
	}
	return o.Description, nil
}
