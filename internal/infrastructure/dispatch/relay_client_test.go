package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *RelayClient {
	return NewRelayClient(config.DispatchConfig{
		RelayURL:             url + "/",
		PointOfSaleKey:       "pos-key",
		TreasuryCustodianKey: "treasury-key",
	}, zap.NewNop())
}

func TestRelayClient_HasSigner(t *testing.T) {
	client := NewRelayClient(config.DispatchConfig{PointOfSaleKey: "pos-key"}, zap.NewNop())
	assert.True(t, client.HasSigner(ledger.SignerPointOfSale))
	assert.False(t, client.HasSigner(ledger.SignerTreasury))
}

func TestRelayClient_Mint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathMint, r.URL.Path)
		assert.Equal(t, "treasury", r.Header.Get(HeaderSigner))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, Sign("treasury-key", body), r.Header.Get(HeaderSignature))

		var got relayRequest
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "0xA", got.To)
		assert.Equal(t, "12.5", got.Amount)
		assert.Equal(t, "top-up", got.Description)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_hash": "0xTX1"})
	}))
	defer server.Close()

	hash, err := newTestClient(server.URL).Mint(context.Background(), ledger.TransferRequest{
		Signer:      ledger.SignerTreasury,
		To:          "0xA",
		Amount:      "12.50",
		Description: "top-up",
	})
	require.NoError(t, err)
	assert.Equal(t, "0xTX1", hash)
}

func TestRelayClient_Transfer_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rejected with code", status: http.StatusUnprocessableEntity, body: `{"code":"INSUFFICIENT_FUNDS","message":"balance too low"}`, wantErr: ErrRelayRejected},
		{name: "rejected without body", status: http.StatusBadGateway, body: ``, wantErr: ErrRelayRejected},
		{name: "empty hash", status: http.StatusOK, body: `{"tx_hash":""}`, wantErr: ErrEmptyTxHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, PathTransfer, r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			hash, err := newTestClient(server.URL).Transfer(context.Background(), ledger.TransferRequest{
				Signer: ledger.SignerPointOfSale, From: "0xplace", To: "0xcustomer", Amount: "9.50",
			})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, hash)
		})
	}
}

func TestRelayClient_Burn_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Burn(context.Background(), ledger.TransferRequest{
		Signer: ledger.SignerTreasury, From: "0xA", Amount: "1",
	})
	assert.ErrorIs(t, err, ErrRelayUnavailable)
}

func TestRelayClient_RejectsBeforeSending(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewRelayClient(config.DispatchConfig{RelayURL: server.URL, TreasuryCustodianKey: "k"}, zap.NewNop())

	_, err := client.Transfer(context.Background(), ledger.TransferRequest{Signer: ledger.SignerPointOfSale, Amount: "1"})
	assert.ErrorIs(t, err, ErrUnknownSigner)

	_, err = client.Mint(context.Background(), ledger.TransferRequest{Signer: ledger.SignerTreasury, Amount: "abc"})
	assert.Error(t, err)

	_, err = client.Mint(context.Background(), ledger.TransferRequest{Signer: ledger.SignerTreasury, Amount: "0"})
	assert.Error(t, err)

	assert.False(t, called)
}
