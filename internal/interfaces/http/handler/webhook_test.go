package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/domain/shared"
	"github.com/reconciler/backend/internal/domain/treasury"
	"github.com/reconciler/backend/internal/infrastructure/cache"
	"github.com/reconciler/backend/internal/infrastructure/telemetry"
	"github.com/reconciler/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type mockTransfers struct{ mock.Mock }

func (m *mockTransfers) Process(ctx context.Context, ev ledger.TransferEvent) (shared.Outcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(shared.Outcome), args.Error(1)
}

type mockRefunds struct{ mock.Mock }

func (m *mockRefunds) ProcessRefund(ctx context.Context, o *order.Order) (shared.Outcome, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(shared.Outcome), args.Error(1)
}

type mockOperations struct{ mock.Mock }

func (m *mockOperations) ProcessOperation(ctx context.Context, op *treasury.Operation) (shared.Outcome, error) {
	args := m.Called(ctx, op)
	return args.Get(0).(shared.Outcome), args.Error(1)
}

type recordedDelivery struct {
	table   string
	outcome string
}

type stubRecorder struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
}

func (r *stubRecorder) RecordDelivery(_ context.Context, table, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, recordedDelivery{table, outcome})
}

func (r *stubRecorder) outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		out = append(out, d.outcome)
	}
	return out
}

type webhookFixture struct {
	transfers  *mockTransfers
	refunds    *mockRefunds
	operations *mockOperations
	recorder   *stubRecorder
	router     *gin.Engine
}

func newWebhookFixture(t *testing.T, strict bool, dedupe shared.IdempotencyStore) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		transfers:  &mockTransfers{},
		refunds:    &mockRefunds{},
		operations: &mockOperations{},
		recorder:   &stubRecorder{},
	}
	h := NewWebhookHandler(WebhookDependencies{
		Transfers:  f.transfers,
		Refunds:    f.refunds,
		Operations: f.operations,
		Dedupe:     dedupe,
		Recorder:   f.recorder,
	}, WebhookConfig{StrictConfiguration: strict}, zap.NewNop())

	f.router = gin.New()
	f.router.POST("/hooks/transactions", h.HandleTransaction)
	f.router.POST("/hooks/orders", h.HandleOrder)
	f.router.POST("/hooks/treasury-operations", h.HandleTreasuryOperation)
	t.Cleanup(func() {
		f.transfers.AssertExpectations(t)
		f.refunds.AssertExpectations(t)
		f.operations.AssertExpectations(t)
	})
	return f
}

func (f *webhookFixture) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const transferBody = `{"type":"INSERT","table":"t_logs_42220_0xtoken","record":{
	"hash":"0xevent","tx_hash":"0xTX","dest":"0xToken","status":"success",
	"data":{"topic":"` + ledger.TransferTopic + `","from":"0xA","to":"0xB","value":"1500000"}}}`

const refundBody = `{"type":"UPDATE","table":"orders","record":{"id":42,"place_id":7,"total":1000,
	"fees":50,"status":"refund_pending","account":"0xcustomer"}}`

const operationBody = `{"type":"UPDATE","table":"treasury_operations","record":{"id":"op1",
	"treasury_id":1,"direction":"in","amount":1250,"status":"pending","account":"0xA"}}`

func TestWebhookHandler_Transaction(t *testing.T) {
	f := newWebhookFixture(t, true, nil)
	f.transfers.On("Process", mock.Anything, mock.MatchedBy(func(ev ledger.TransferEvent) bool {
		return ev.Hash == "0xevent" && ev.TxHash == "0xTX" && ev.Contract == "0xToken" && ev.Data.To == "0xB"
	})).Return(shared.Processed("transaction processed"), nil).Once()

	w := f.post("/hooks/transactions", transferBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "transaction processed", w.Body.String())
	assert.Equal(t, []string{telemetry.OutcomeProcessed}, f.recorder.outcomes())
}

func TestWebhookHandler_TransactionContractFromLog(t *testing.T) {
	f := newWebhookFixture(t, true, nil)
	f.transfers.On("Process", mock.Anything, mock.MatchedBy(func(ev ledger.TransferEvent) bool {
		return ev.Contract == "0xRealContract"
	})).Return(shared.Processed("transaction processed"), nil).Once()

	w := f.post("/hooks/transactions", `{"type":"INSERT","record":{
		"hash":"0xe1","tx_hash":"0xTX","dest":"0xRealContract","status":"success",
		"data":{"topic":"`+ledger.TransferTopic+`","from":"0xA","to":"0xB","value":"1"}}}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookHandler_RejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"not json", "/hooks/transactions", `{`, "Invalid record data"},
		{"empty body", "/hooks/orders", ``, "Invalid record data"},
		{"no record", "/hooks/orders", `{"type":"UPDATE"}`, "Invalid record data"},
		{"unknown change type", "/hooks/orders", `{"type":"TRUNCATE","record":{}}`, "type: Must be one of: INSERT UPDATE DELETE"},
		{"malformed order items", "/hooks/orders", `{"record":{"id":42,"place_id":7,"status":"refund_pending","items":"two lattes"}}`, "Invalid record data"},
		{"missing dest", "/hooks/transactions", `{"record":{"hash":"0xe","tx_hash":"0xt","status":"success"}}`, "dest: This field is required"},
		{"bad treasury id", "/hooks/treasury-operations", `{"record":{"id":"op1","treasury_id":0,"status":"pending"}}`, "treasury_id: This field is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t, true, nil)
			w := f.post(tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, w.Body.String())
			assert.Equal(t, []string{telemetry.OutcomeRejected}, f.recorder.outcomes())
		})
	}
}

func TestWebhookHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		err     error
		status  int
		body    string
		outcome string
	}{
		{"not found is acknowledged", true, shared.NewNotFoundError("place 7 not found"),
			http.StatusOK, "place 7 not found, ignore", telemetry.OutcomeNotFound},
		{"missing key fails when strict", true, shared.NewConfigurationError("point of sale key is not configured"),
			http.StatusInternalServerError, "point of sale key is not configured", telemetry.OutcomeFailed},
		{"missing key acknowledged when lenient", false, shared.NewConfigurationError("point of sale key is not configured"),
			http.StatusOK, "point of sale key is not configured, ignore", telemetry.OutcomeNotFound},
		{"dispatch failure", false, shared.NewDispatchError(errors.New("relay down"), "refund order 42"),
			http.StatusInternalServerError, "refund order 42", telemetry.OutcomeFailed},
		{"persistence failure", false, shared.NewPersistenceError(errors.New("conn reset"), "find place 7"),
			http.StatusInternalServerError, "find place 7", telemetry.OutcomeFailed},
		{"invalid metadata", false, shared.NewValidationError("treasury operation op1 metadata: bad"),
			http.StatusBadRequest, "treasury operation op1 metadata: bad", telemetry.OutcomeRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t, tt.strict, nil)
			f.refunds.On("ProcessRefund", mock.Anything, mock.Anything).Return(shared.Outcome{}, tt.err).Once()

			w := f.post("/hooks/orders", refundBody)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
			assert.Equal(t, []string{tt.outcome}, f.recorder.outcomes())
		})
	}
}

func TestWebhookHandler_IgnoredOutcome(t *testing.T) {
	f := newWebhookFixture(t, true, nil)
	f.operations.On("ProcessOperation", mock.Anything, mock.MatchedBy(func(op *treasury.Operation) bool {
		return op.ID == "op1" && op.TreasuryID == 1 && op.Status == treasury.OpStatusPending && op.HasAccount()
	})).Return(shared.Ignored("treasury operation is settled by its group"), nil).Once()

	w := f.post("/hooks/treasury-operations", operationBody)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "treasury operation is settled by its group, ignore", w.Body.String())
	assert.Equal(t, []string{telemetry.OutcomeIgnored}, f.recorder.outcomes())
}

func TestWebhookHandler_Dedupe(t *testing.T) {
	store := cache.NewInMemoryIdempotencyStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	f := newWebhookFixture(t, true, store)

	f.refunds.On("ProcessRefund", mock.Anything, mock.MatchedBy(func(o *order.Order) bool {
		return o.ID == 42 && o.Status == order.StatusRefundPending
	})).Return(shared.Outcome{}, shared.NewDispatchError(errors.New("relay down"), "refund order 42")).Once()
	f.refunds.On("ProcessRefund", mock.Anything, mock.Anything).
		Return(shared.Processed("transaction processed"), nil).Once()

	// a failed delivery is not remembered, so the retry runs
	assert.Equal(t, http.StatusInternalServerError, f.post("/hooks/orders", refundBody).Code)
	assert.Equal(t, http.StatusOK, f.post("/hooks/orders", refundBody).Code)

	dup := f.post("/hooks/orders", refundBody)
	assert.Equal(t, http.StatusOK, dup.Code)
	assert.Equal(t, "already processed, ignore", dup.Body.String())

	done, err := store.IsProcessed(context.Background(), shared.DeliveryKey("orders", "42", "refund_pending"))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, []string{telemetry.OutcomeFailed, telemetry.OutcomeProcessed, telemetry.OutcomeDuplicate}, f.recorder.outcomes())

	// the same row in its next status is a new delivery
	f.refunds.On("ProcessRefund", mock.Anything, mock.Anything).
		Return(shared.Ignored("order is not refund pending"), nil).Once()
	next := f.post("/hooks/orders", strings.Replace(refundBody, `"refund_pending"`, `"refund"`, 1))
	assert.Equal(t, "order is not refund pending, ignore", next.Body.String())
}
