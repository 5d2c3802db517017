package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FixedTime is the reference instant used by fixtures
var FixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// StrPtr returns a pointer to s
func StrPtr(s string) *string { return &s }

// Int64Ptr returns a pointer to i
func Int64Ptr(i int64) *int64 { return &i }

// SeedOrder inserts an order row. Zero CreatedAt defaults to FixedTime.
func SeedOrder(t *testing.T, db *gorm.DB, m models.OrderModel) models.OrderModel {
	t.Helper()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = FixedTime
	}
	if m.Items == nil {
		m.Items = datatypes.JSON("[]")
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

// SeedPlace inserts a place owning accounts
func SeedPlace(t *testing.T, db *gorm.DB, id, businessID int64, name string, accounts ...string) models.PlaceModel {
	t.Helper()
	raw, err := json.Marshal(accounts)
	require.NoError(t, err)
	m := models.PlaceModel{
		ID:         id,
		CreatedAt:  FixedTime,
		BusinessID: businessID,
		Slug:       name,
		Name:       name,
		Accounts:   raw,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

// SeedTreasury inserts a business and its treasury. periodic may be nil for a
// pay-as-you-go treasury.
func SeedTreasury(t *testing.T, db *gorm.DB, id int64, businessName, strategy string, periodic map[string]any) models.TreasuryModel {
	t.Helper()
	require.NoError(t, db.Create(&models.BusinessModel{ID: id, Name: businessName}).Error)

	cfg := datatypes.JSON("{}")
	if periodic != nil {
		raw, err := json.Marshal(periodic)
		require.NoError(t, err)
		cfg = raw
	}
	m := models.TreasuryModel{
		ID:                      id,
		BusinessID:              id,
		CreatedAt:               FixedTime,
		Token:                   "0x5815E61eF72c9E6107b5c5A05FD121F334f7a7f1",
		SyncProvider:            "stripe",
		SyncProviderCredentials: datatypes.JSON(`{"secret_key":"sk_test_1"}`),
		SyncStrategy:            strategy,
		SyncStrategyConfig:      cfg,
		SyncCurrencySymbol:      "EUR",
	}
	require.NoError(t, db.Omit("Business").Create(&m).Error)
	return m
}

// SeedOperation inserts a treasury operation. Zero timestamps default to FixedTime.
func SeedOperation(t *testing.T, db *gorm.DB, m models.TreasuryOperationModel) models.TreasuryOperationModel {
	t.Helper()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = FixedTime
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.Metadata == nil {
		m.Metadata = datatypes.JSON("{}")
	}
	if m.Direction == "" {
		m.Direction = "in"
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

// LoadOrder reads an order row back
func LoadOrder(t *testing.T, db *gorm.DB, id int64) models.OrderModel {
	t.Helper()
	var m models.OrderModel
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	return m
}

// LoadOperation reads a treasury operation row back
func LoadOperation(t *testing.T, db *gorm.DB, id string) models.TreasuryOperationModel {
	t.Helper()
	var m models.TreasuryOperationModel
	require.NoError(t, db.First(&m, "id = ?", id).Error)
	return m
}
