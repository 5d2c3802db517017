package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/reconciler/backend/internal/domain/identity"
	"github.com/reconciler/backend/internal/infrastructure/persistence"
	"github.com/reconciler/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testImages = identity.ImageConfig{Domain: "ipfs.example.org", DefaultImage: "QmDefault"}

func newTestResolver(t *testing.T, source identity.Source) (*Resolver, *gorm.DB, *persistence.GormProfileRepository) {
	db := testutil.NewSQLiteDB(t)
	profiles := persistence.NewGormProfileRepository(db)
	places := persistence.NewGormPlaceRepository(db)
	return NewResolver(profiles, places, source, testImages, zap.NewNop()), db, profiles
}

func TestResolver_Anonymous(t *testing.T) {
	r, _, profiles := newTestResolver(t, nil)
	ctx := context.Background()

	require.NoError(t, r.EnsureProfile(ctx, "0xA"))

	p, err := profiles.FindByAccount(ctx, "0xA")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "anonymous", p.Username)
	assert.Equal(t, "Anonymous", p.Name)
	assert.Equal(t, "This user does not have a profile", p.Description)
	assert.Equal(t, "https://ipfs.example.org/QmDefault", p.Image)
}

func TestResolver_PlaceProfile(t *testing.T) {
	r, db, profiles := newTestResolver(t, nil)
	ctx := context.Background()
	testutil.SeedPlace(t, db, 7, 1, "Cafe Brussels", "0xcafe")

	require.NoError(t, r.EnsureProfile(ctx, "0xcafe"))

	p, err := profiles.FindByAccount(ctx, "0xcafe")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Cafe Brussels", p.Username)
	require.NotNil(t, p.PlaceID)
	assert.Equal(t, int64(7), *p.PlaceID)
	assert.Equal(t, "https://ipfs.example.org/QmDefault", p.Image)
}

func TestResolver_ExistingProfileIsKept(t *testing.T) {
	source := new(testutil.MockProfileSource)
	r, _, profiles := newTestResolver(t, source)
	ctx := context.Background()
	require.NoError(t, profiles.Upsert(ctx, identity.Profile{Account: "0xA", Username: "alice", Name: "Alice"}))

	require.NoError(t, r.EnsureProfile(ctx, "0xA"))

	p, err := profiles.FindByAccount(ctx, "0xA")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	source.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestResolver_SourceWins(t *testing.T) {
	source := new(testutil.MockProfileSource)
	r, _, profiles := newTestResolver(t, source)
	ctx := context.Background()

	source.On("Lookup", mock.Anything, "0xA").
		Return(&identity.Profile{Username: "bob", Name: "Bob", Image: "ipfs://QmBob"}, nil).Once()

	require.NoError(t, r.EnsureProfile(ctx, "0xA"))

	p, err := profiles.FindByAccount(ctx, "0xA")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Username)
	assert.Equal(t, "https://ipfs.example.org/QmBob", p.Image)
	source.AssertExpectations(t)
}

func TestResolver_SourceFailureFallsBack(t *testing.T) {
	source := new(testutil.MockProfileSource)
	r, _, profiles := newTestResolver(t, source)
	ctx := context.Background()

	source.On("Lookup", mock.Anything, "0xA").Return(nil, errors.New("rpc down")).Once()

	require.NoError(t, r.EnsureProfile(ctx, "0xA"))
	p, err := profiles.FindByAccount(ctx, "0xA")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", p.Username)
}

func TestResolver_EnsureProfilesSkipsDuplicates(t *testing.T) {
	source := new(testutil.MockProfileSource)
	r, _, _ := newTestResolver(t, source)

	source.On("Lookup", mock.Anything, "0xA").Return(nil, nil).Once()
	source.On("Lookup", mock.Anything, "0xB").Return(nil, nil).Once()

	require.NoError(t, r.EnsureProfiles(context.Background(), "0xA", "", "0xB", "0xA"))
	source.AssertExpectations(t)
}
