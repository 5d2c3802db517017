package treasury

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata(t *testing.T) {
	t.Run("payg with numeric order id", func(t *testing.T) {
		meta, err := DecodeMetadata(StrategyPayg, []byte(`{"order_id": 42, "description": "lunch"}`))
		require.NoError(t, err)
		require.NotNil(t, meta.Payg)
		assert.Nil(t, meta.Periodic)
		require.NotNil(t, meta.Payg.OrderID)
		assert.Equal(t, int64(42), *meta.Payg.OrderID)
		assert.Equal(t, "lunch", meta.Payg.Description)
	})

	t.Run("payg with string order id", func(t *testing.T) {
		meta, err := DecodeMetadata(StrategyPayg, []byte(`{"order_id": "17"}`))
		require.NoError(t, err)
		require.NotNil(t, meta.Payg.OrderID)
		assert.Equal(t, int64(17), *meta.Payg.OrderID)
	})

	t.Run("payg empty document", func(t *testing.T) {
		meta, err := DecodeMetadata(StrategyPayg, nil)
		require.NoError(t, err)
		require.NotNil(t, meta.Payg)
		assert.Nil(t, meta.Payg.OrderID)
	})

	t.Run("periodic group", func(t *testing.T) {
		meta, err := DecodeMetadata(StrategyPeriodic, []byte(`{"grouped_operations":["op1","op2"],"total_amount":3000}`))
		require.NoError(t, err)
		require.NotNil(t, meta.Periodic)
		assert.Equal(t, []string{"op1", "op2"}, meta.Periodic.GroupedOperations)
		assert.Equal(t, int64(3000), meta.Periodic.TotalAmount)
		assert.True(t, meta.IsGroupRepresentative())
	})

	t.Run("periodic member is not a representative", func(t *testing.T) {
		meta, err := DecodeMetadata(StrategyPeriodic, []byte(`{}`))
		require.NoError(t, err)
		assert.False(t, meta.IsGroupRepresentative())
	})

	t.Run("bad order id", func(t *testing.T) {
		_, err := DecodeMetadata(StrategyPayg, []byte(`{"order_id": "abc"}`))
		assert.Error(t, err)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := DecodeMetadata(Strategy("weekly"), []byte(`{}`))
		assert.Error(t, err)
	})
}

func TestOperationMetadata_Encode(t *testing.T) {
	meta := OperationMetadata{
		Strategy: StrategyPeriodic,
		Periodic: &PeriodicMetadata{GroupedOperations: []string{"a", "b"}, TotalAmount: 250},
	}
	raw, err := meta.Encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, float64(250), decoded["total_amount"])
}

func TestPlanSettlement(t *testing.T) {
	account := "0xcustomer"
	payg := &Treasury{ID: 1, SyncStrategy: StrategyPayg, BusinessName: "Acme"}
	periodic := &Treasury{ID: 2, SyncStrategy: StrategyPeriodic, BusinessName: "Acme"}

	t.Run("payg default top up", func(t *testing.T) {
		op := &Operation{ID: "op1", Direction: DirectionIn, Amount: 1250, Account: &account}
		meta, _ := DecodeMetadata(StrategyPayg, nil)

		s := PlanSettlement(payg, op, meta, "")
		assert.Equal(t, []string{"op1"}, s.IDs)
		assert.Equal(t, "12.5", s.Amount)
		assert.Equal(t, "top up via: Acme", s.Description)
		assert.Equal(t, ActionMint, s.Action)
	})

	t.Run("payg refund burns", func(t *testing.T) {
		op := &Operation{ID: "op1", Direction: DirectionOut, Amount: 100}
		meta, _ := DecodeMetadata(StrategyPayg, nil)

		s := PlanSettlement(payg, op, meta, "")
		assert.Equal(t, "refund via: Acme", s.Description)
		assert.Equal(t, ActionBurn, s.Action)
		assert.Equal(t, "1", s.Amount)
	})

	t.Run("payg metadata description overrides", func(t *testing.T) {
		op := &Operation{ID: "op1", Direction: DirectionIn, Amount: 100}
		meta, _ := DecodeMetadata(StrategyPayg, []byte(`{"description":"custom"}`))

		s := PlanSettlement(payg, op, meta, "order text")
		assert.Equal(t, "custom", s.Description)
	})

	t.Run("payg linked order description used when metadata has none", func(t *testing.T) {
		op := &Operation{ID: "op1", Direction: DirectionIn, Amount: 100}
		meta, _ := DecodeMetadata(StrategyPayg, []byte(`{"order_id":5}`))

		s := PlanSettlement(payg, op, meta, "order text")
		assert.Equal(t, "order text", s.Description)
	})

	t.Run("periodic always default and settles whole group", func(t *testing.T) {
		op := &Operation{ID: "op1", Direction: DirectionIn, Amount: 1000}
		meta, _ := DecodeMetadata(StrategyPeriodic, []byte(`{"grouped_operations":["op1","op2","op2"],"total_amount":3000,"description":"ignored"}`))

		s := PlanSettlement(periodic, op, meta, "order text")
		assert.Equal(t, []string{"op1", "op2"}, s.IDs)
		assert.Equal(t, "30", s.Amount)
		assert.Equal(t, "top up via: Acme", s.Description)
	})
}

func TestDecodeCredentials(t *testing.T) {
	creds, err := DecodeCredentials(ProviderPonto, []byte(`{"iban":"BE00","sync_message_type":"structured"}`))
	require.NoError(t, err)
	ponto, ok := creds.(PontoCredentials)
	require.True(t, ok)
	assert.Equal(t, "BE00", ponto.IBAN)
	assert.Equal(t, ProviderPonto, creds.Provider())

	creds, err = DecodeCredentials(ProviderStripe, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderStripe, creds.Provider())

	_, err = DecodeCredentials(SyncProvider("paypal"), nil)
	assert.Error(t, err)
}

func TestDecodeStrategyConfig(t *testing.T) {
	cfg, err := DecodeStrategyConfig(StrategyPayg, []byte(`{"interval":3}`))
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = DecodeStrategyConfig(StrategyPeriodic, []byte(`{"interval_unit":"week","day_of_week":1}`))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Interval)
	assert.Equal(t, UnitWeek, cfg.IntervalUnit)
	assert.Equal(t, 1, *cfg.DayOfWeek)
}
