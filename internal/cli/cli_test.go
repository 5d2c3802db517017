package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/config"
	"github.com/reconciler/backend/internal/infrastructure/persistence/models"
	"github.com/reconciler/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	testChain    = "42220"
	testContract = "0xToken"
)

func testConfig() *config.Config {
	return &config.Config{
		Chain: config.ChainConfig{ChainID: testChain, TokenContract: testContract, TokenDecimals: 6},
		Identity: config.IdentityConfig{
			IPFSDomain:          "ipfs.example.org",
			DefaultProfileImage: "QmDefault",
		},
		Reconcile: config.ReconcileConfig{BackfillPageSize: 2},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	db := testutil.NewSQLiteDB(t)
	logsTable, err := ledger.LogsTable(testChain, testContract)
	require.NoError(t, err)
	dataTable, err := ledger.LogsDataTable(testChain)
	require.NoError(t, err)
	testutil.MigrateLogTables(t, db, logsTable, dataTable)
	return db
}

func seedTransferLogs(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	table, err := ledger.LogsTable(testChain, testContract)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, db.Table(table).Create(&models.LogModel{
			Hash:      fmt.Sprintf("0xlog%d", i),
			TxHash:    fmt.Sprintf("0xtx%d", i),
			CreatedAt: testutil.FixedTime.Add(time.Duration(i) * time.Minute),
			UpdatedAt: testutil.FixedTime,
			Sender:    "0xA",
			To:        testContract,
			Value:     "0",
			Data: datatypes.JSON(`{"topic":"` + ledger.TransferTopic +
				`","from":"0xA","to":"0xB","value":"2500000"}`),
			Status: ledger.StatusSuccess,
		}).Error)
	}
}

// run executes the CLI against db and returns its output
func run(t *testing.T, db *gorm.DB, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	closed := false
	opts := &RootOptions{Open: func(context.Context) (*Runtime, error) {
		return &Runtime{Config: cfg, Logger: zap.NewNop(), DB: db, Close: func() error {
			closed = true
			return nil
		}}, nil
	}}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if db != nil && err == nil {
		assert.True(t, closed, "runtime should be closed")
	}
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "reconciler", cmd.Use)

	for _, name := range []string{"backfill", "batch"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, FormatText, format.DefValue)

	backfill, _, _ := cmd.Find([]string{"backfill"})
	for _, flag := range []string{"chain-id", "contract", "page-size"} {
		assert.NotNil(t, backfill.Flags().Lookup(flag), flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, nil, testConfig(), "backfill", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBackfillCommand(t *testing.T) {
	db := newTestDB(t)
	seedTransferLogs(t, db, 3)

	out, err := run(t, db, testConfig(), "backfill")
	require.NoError(t, err)
	assert.Equal(t, "backfill 42220/0xToken: read=3 applied=3 skipped=0 failed=0\n", out)

	var count int64
	require.NoError(t, db.Model(&models.TransactionModel{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
	require.NoError(t, db.Model(&models.ProfileModel{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// replaying converges on the same rows
	out, err = run(t, db, testConfig(), "backfill", "--format", "json", "--page-size", "10")
	require.NoError(t, err)
	var resp struct {
		Status string         `json:"status"`
		Data   BackfillResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Applied)
	require.NoError(t, db.Model(&models.TransactionModel{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestBackfillCommand_MissingChain(t *testing.T) {
	cfg := testConfig()
	cfg.Chain.TokenContract = ""

	_, err := run(t, newTestDB(t), cfg, "backfill")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBackfillCommand_UnknownContractTable(t *testing.T) {
	_, err := run(t, newTestDB(t), testConfig(), "backfill", "--contract", "0xOther")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestBatchCommand(t *testing.T) {
	db := newTestDB(t)
	testutil.SeedTreasury(t, db, 1, "Cafe", "periodic", map[string]any{
		"interval": 1, "interval_unit": "month", "day_of_month": 1, "hour": 0, "minute": 0,
	})
	for i, id := range []string{"op1", "op2"} {
		testutil.SeedOperation(t, db, models.TreasuryOperationModel{
			ID: id, TreasuryID: 1, Amount: 100, Status: "pending-periodic",
			CreatedAt: testutil.FixedTime.Add(time.Duration(i) * time.Minute),
			Account:   testutil.StrPtr("0xA"),
		})
	}

	out, err := run(t, db, testConfig(), "batch", "--treasury", "1")
	require.NoError(t, err)
	assert.Equal(t, "batch: treasuries=0 groups=1 released=2 parked=0\n", out)
	assert.Equal(t, "pending", testutil.LoadOperation(t, db, "op1").Status)
}

func TestOpenFailure(t *testing.T) {
	opts := &RootOptions{Open: func(context.Context) (*Runtime, error) {
		return nil, WrapExitError(ExitCommandError, "failed to connect to database", errors.New("refused"))
	}}
	cmd := newRootCommand(opts)
	cmd.SetArgs([]string{"batch"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "refused")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad"))))
}
