package identity

import (
	"context"
	"fmt"

	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/domain/place"
	"go.uber.org/zap"
)

// Resolver makes sure every account touched by a settlement has a profile.
// Writes of derived profiles never overwrite an existing row, so concurrent
// resolution of the same account is safe.
type Resolver struct {
	profiles identity.Repository
	places   place.Repository
	source   identity.Source
	images   identity.ImageConfig
	logger   *zap.Logger
}

// NewResolver creates a new Resolver. source may be nil.
func NewResolver(
	profiles identity.Repository,
	places place.Repository,
	source identity.Source,
	images identity.ImageConfig,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		profiles: profiles,
		places:   places,
		source:   source,
		images:   images,
		logger:   logger,
	}
}

// EnsureProfiles resolves each distinct non-empty account in order
func (r *Resolver) EnsureProfiles(ctx context.Context, accounts ...string) error {
	seen := make(map[string]struct{}, len(accounts))
	for _, account := range accounts {
		if account == "" {
			continue
		}
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}
		if err := r.EnsureProfile(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

// EnsureProfile creates a profile for account unless one exists. The first
// source that knows the account wins: the profile source, then the places
// registered for the account, then an anonymous profile.
func (r *Resolver) EnsureProfile(ctx context.Context, account string) error {
	existing, err := r.profiles.FindByAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("find profile %s: %w", account, err)
	}
	if existing != nil {
		return nil
	}

	if r.source != nil {
		p, err := r.source.Lookup(ctx, account)
		if err != nil {
			// The store is still authoritative; fall through to derived profiles.
			r.logger.Warn("Profile source lookup failed",
				zap.String("account", account),
				zap.Error(err))
		} else if p != nil {
			p.Account = account
			if err := r.profiles.Upsert(ctx, r.images.WithImages(*p)); err != nil {
				return fmt.Errorf("upsert profile %s: %w", account, err)
			}
			return nil
		}
	}

	places, err := r.places.FindByAccount(ctx, account)
	if err != nil {
		return fmt.Errorf("find places for %s: %w", account, err)
	}
	if len(places) == 0 {
		if _, err := r.profiles.InsertIfAbsent(ctx, identity.AnonymousProfile(account, r.images)); err != nil {
			return fmt.Errorf("insert anonymous profile %s: %w", account, err)
		}
		r.logger.Debug("Created anonymous profile", zap.String("account", account))
		return nil
	}

	for _, p := range places {
		if _, err := r.profiles.InsertIfAbsent(ctx, identity.PlaceProfile(account, p, r.images)); err != nil {
			return fmt.Errorf("insert place profile %s: %w", account, err)
		}
	}
	return nil
}
