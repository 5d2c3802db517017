// Package reconcile correlates on-chain transfer events with the off-chain
// records they settle: ledger entries, orders, treasury operations and the
// interaction feed.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/place"
	"github.com/reconciler/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Correlation steps, as reported to the Recorder
const (
	StepIdentity    = "identity"
	StepEnrichment  = "enrichment"
	StepTransaction = "transaction"
	StepOrders      = "orders"
	StepTreasury    = "treasury"
	StepInteraction = "interaction"
)

// ProfileEnsurer creates missing profiles for transfer parties
type ProfileEnsurer interface {
	EnsureProfiles(ctx context.Context, accounts ...string) error
}

// OrderFinalizer settles the orders correlated with a chain tx hash
type OrderFinalizer interface {
	FinalizeByTxHash(ctx context.Context, txHash, description string) (int, error)
}

// OperationConfirmer settles the treasury operations dispatched under a chain tx hash
type OperationConfirmer interface {
	Confirm(ctx context.Context, txHash string, at time.Time) (int64, error)
}

// Recorder observes step failures
type Recorder interface {
	RecordStepFailure(ctx context.Context, step string)
}

// Config holds the chain settings of the correlator
type Config struct {
	ChainID       string
	TokenDecimals int32
}

// Dependencies are the collaborators of a Correlator. Recorder may be nil.
type Dependencies struct {
	Profiles     ProfileEnsurer
	Logs         ledger.LogRepository
	Transactions ledger.TransactionRepository
	Orders       OrderFinalizer
	Operations   OperationConfirmer
	Places       place.Repository
	Interactions ledger.InteractionRepository
	Recorder     Recorder
}

// Correlator applies one transfer event to every record it settles. Each step
// is idempotent on its own, so a failed invocation is retried as a whole.
type Correlator struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewCorrelator creates a new Correlator
func NewCorrelator(deps Dependencies, cfg Config, logger *zap.Logger) *Correlator {
	return &Correlator{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Process correlates one event. Events that are not successful ERC-20
// transfers are ignored without touching any state. Write steps run even when
// an earlier one failed; their errors are joined into a persistence error.
func (c *Correlator) Process(ctx context.Context, ev ledger.TransferEvent) (shared.Outcome, error) {
	if ev.Status != ledger.StatusSuccess {
		return shared.Ignored("transaction is not successful"), nil
	}
	if !ev.IsSuccessfulTransfer() {
		return shared.Ignored("not a token transfer"), nil
	}

	log := c.logger.With(
		zap.String("event_hash", ev.Hash),
		zap.String("tx_hash", ev.TxHash))

	if err := c.deps.Profiles.EnsureProfiles(ctx, ev.Data.From, ev.Data.To); err != nil {
		c.fail(ctx, log, StepIdentity, err)
		return shared.Outcome{}, shared.NewPersistenceError(err, "ensure profiles for %s", ev.Hash)
	}

	description, err := c.description(ctx, ev.Hash)
	if err != nil {
		c.fail(ctx, log, StepEnrichment, err)
		return shared.Outcome{}, shared.NewPersistenceError(err, "read log data for %s", ev.Hash)
	}

	tx := ledger.NewTransaction(&ev, c.cfg.TokenDecimals, description)

	var errs []error
	if err := c.deps.Transactions.Upsert(ctx, tx); err != nil {
		c.fail(ctx, log, StepTransaction, err)
		errs = append(errs, err)
	}

	if n, err := c.deps.Orders.FinalizeByTxHash(ctx, ev.TxHash, description); err != nil {
		c.fail(ctx, log, StepOrders, err)
		errs = append(errs, err)
	} else if n > 0 {
		log.Info("Finalized orders", zap.Int("count", n))
	}

	if n, err := c.deps.Operations.Confirm(ctx, ev.TxHash, c.now()); err != nil {
		c.fail(ctx, log, StepTreasury, err)
		errs = append(errs, err)
	} else if n > 0 {
		log.Info("Confirmed treasury operations", zap.Int64("count", n))
	}

	if err := c.upsertInteractions(ctx, tx); err != nil {
		c.fail(ctx, log, StepInteraction, err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return shared.Outcome{}, shared.NewPersistenceError(errors.Join(errs...), "correlate %s", ev.Hash)
	}
	return shared.Processed("transaction processed"), nil
}

// Backfill applies the ledger part of correlation to a stored log: identities,
// enrichment and the ledger entry, keeping the log's own status. Orders and
// treasury operations are settled by live events only. Logs whose payload
// names no parties are skipped.
func (c *Correlator) Backfill(ctx context.Context, ev ledger.TransferEvent) (bool, error) {
	if !ev.HasParties() {
		return false, nil
	}
	if err := c.deps.Profiles.EnsureProfiles(ctx, ev.Data.From, ev.Data.To); err != nil {
		return false, shared.NewPersistenceError(err, "ensure profiles for %s", ev.Hash)
	}
	description, err := c.description(ctx, ev.Hash)
	if err != nil {
		return false, shared.NewPersistenceError(err, "read log data for %s", ev.Hash)
	}
	if err := c.deps.Transactions.Upsert(ctx, ledger.NewTransaction(&ev, c.cfg.TokenDecimals, description)); err != nil {
		return false, shared.NewPersistenceError(err, "upsert transaction %s", ev.Hash)
	}
	return true, nil
}

func (c *Correlator) description(ctx context.Context, hash string) (string, error) {
	data, err := c.deps.Logs.FindLogData(ctx, c.cfg.ChainID, hash)
	if err != nil || data == nil {
		return "", err
	}
	return data.Description, nil
}

// The receiving place wins; a payment from a place (e.g. a refund) falls back
// to the sender.
func (c *Correlator) upsertInteractions(ctx context.Context, tx ledger.Transaction) error {
	var placeID *int64
	for _, account := range []string{tx.To, tx.From} {
		places, err := c.deps.Places.FindByAccount(ctx, account)
		if err != nil {
			return err
		}
		if len(places) > 0 {
			id := places[0].ID
			placeID = &id
			break
		}
	}
	return c.deps.Interactions.Upsert(ctx, ledger.InteractionsFor(tx, placeID))
}

func (c *Correlator) fail(ctx context.Context, log *zap.Logger, step string, err error) {
	log.Error("Correlation step failed", zap.String("step", step), zap.Error(err))
	if c.deps.Recorder != nil {
		c.deps.Recorder.RecordStepFailure(ctx, step)
	}
}
