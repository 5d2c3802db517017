// Package app assembles the repositories and services shared by the server and
// the command line tools.
package app

import (
	identityapp "github.com/reconciler/backend/internal/application/identity"
	orderapp "github.com/reconciler/backend/internal/application/order"
	"github.com/reconciler/backend/internal/application/reconcile"
	treasuryapp "github.com/reconciler/backend/internal/application/treasury"
	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/config"
	"github.com/reconciler/backend/internal/infrastructure/persistence"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options are the optional collaborators of a Container
type Options struct {
	// Dispatcher submits settlements. Required by the refund and treasury paths.
	Dispatcher ledger.Dispatcher
	// Recorder observes correlation step failures
	Recorder reconcile.Recorder
	// ProfileSource is consulted before place and anonymous profiles
	ProfileSource identity.Source
}

// Container holds the wired engine
type Container struct {
	Logs       *persistence.GormLogRepository
	Resolver   *identityapp.Resolver
	Orders     *orderapp.Service
	Treasury   *treasuryapp.Service
	Batcher    *treasuryapp.Batcher
	Correlator *reconcile.Correlator
	Backfiller *reconcile.Backfiller
}

// NewContainer wires repositories and services on db
func NewContainer(cfg *config.Config, db *gorm.DB, log *zap.Logger, opts Options) *Container {
	orders := persistence.NewGormOrderRepository(db)
	places := persistence.NewGormPlaceRepository(db)
	profiles := persistence.NewGormProfileRepository(db)
	treasuries := persistence.NewGormTreasuryRepository(db)
	operations := persistence.NewGormTreasuryOperationRepository(db)
	transactions := persistence.NewGormTransactionRepository(db)
	interactions := persistence.NewGormInteractionRepository(db)
	logs := persistence.NewGormLogRepository(db)

	resolver := identityapp.NewResolver(profiles, places, opts.ProfileSource, identity.ImageConfig{
		Domain:       cfg.Identity.IPFSDomain,
		DefaultImage: cfg.Identity.DefaultProfileImage,
	}, log.Named("identity"))

	orderService := orderapp.NewService(orders, places, resolver, opts.Dispatcher, log.Named("order"))
	treasuryService := treasuryapp.NewService(treasuries, operations, orders, resolver, opts.Dispatcher, log.Named("treasury"))

	correlator := reconcile.NewCorrelator(reconcile.Dependencies{
		Profiles:     resolver,
		Logs:         logs,
		Transactions: transactions,
		Orders:       orderService,
		Operations:   treasuryService,
		Places:       places,
		Interactions: interactions,
		Recorder:     opts.Recorder,
	}, reconcile.Config{
		ChainID:       cfg.Chain.ChainID,
		TokenDecimals: cfg.Chain.TokenDecimals,
	}, log.Named("reconcile"))

	return &Container{
		Logs:       logs,
		Resolver:   resolver,
		Orders:     orderService,
		Treasury:   treasuryService,
		Batcher:    treasuryapp.NewBatcher(treasuries, operations, log.Named("batcher")),
		Correlator: correlator,
		Backfiller: reconcile.NewBackfiller(logs, correlator, cfg.Reconcile.BackfillPageSize, log.Named("backfill")),
	}
}
