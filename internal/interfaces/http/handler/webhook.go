package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/domain/shared"
	"github.com/reconciler/backend/internal/domain/treasury"
	"github.com/reconciler/backend/internal/infrastructure/logger"
	"github.com/reconciler/backend/internal/infrastructure/telemetry"
	"github.com/reconciler/backend/internal/interfaces/http/dto"
	"github.com/reconciler/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// TransferProcessor correlates a transfer event with the records it settles
type TransferProcessor interface {
	Process(ctx context.Context, ev ledger.TransferEvent) (shared.Outcome, error)
}

// RefundProcessor dispatches the refund of an order
type RefundProcessor interface {
	ProcessRefund(ctx context.Context, o *order.Order) (shared.Outcome, error)
}

// OperationProcessor dispatches the settlement of a treasury operation
type OperationProcessor interface {
	ProcessOperation(ctx context.Context, op *treasury.Operation) (shared.Outcome, error)
}

// DeliveryRecorder observes handled deliveries
type DeliveryRecorder interface {
	RecordDelivery(ctx context.Context, table, outcome string, d time.Duration)
}

// WebhookConfig holds receiver behaviour switches
type WebhookConfig struct {
	// StrictConfiguration answers 500 instead of 200 when a custodian key is missing
	StrictConfiguration bool
	// DedupeTTL is how long a completed delivery is remembered
	DedupeTTL time.Duration
}

// WebhookDependencies are the collaborators of a WebhookHandler.
// Dedupe and Recorder may be nil.
type WebhookDependencies struct {
	Transfers  TransferProcessor
	Refunds    RefundProcessor
	Operations OperationProcessor
	Dedupe     shared.IdempotencyStore
	Recorder   DeliveryRecorder
}

// WebhookHandler receives row-change notifications and hands each row to the
// engine component that owns its table.
type WebhookHandler struct {
	BaseHandler
	deps   WebhookDependencies
	cfg    WebhookConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(deps WebhookDependencies, cfg WebhookConfig, logger *zap.Logger) *WebhookHandler {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookHandler{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// delivery identifies one row change
type delivery struct {
	table  string
	key    string
	status string
}

// HandleTransaction processes an inserted or updated transfer log
func (h *WebhookHandler) HandleTransaction(c *gin.Context) {
	var rec dto.TransferRecord
	if !h.bind(c, dto.TableTransactions, &rec) {
		return
	}
	ev := rec.ToEvent()
	h.deliver(c, delivery{dto.TableTransactions, rec.Hash, rec.Status}, func(ctx context.Context) (shared.Outcome, error) {
		return h.deps.Transfers.Process(ctx, ev)
	})
}

// HandleOrder processes a changed order row
func (h *WebhookHandler) HandleOrder(c *gin.Context) {
	var rec dto.OrderRecord
	if !h.bind(c, dto.TableOrders, &rec) {
		return
	}
	o := rec.ToDomain()
	h.deliver(c, delivery{dto.TableOrders, rec.Key(), rec.Status}, func(ctx context.Context) (shared.Outcome, error) {
		return h.deps.Refunds.ProcessRefund(ctx, o)
	})
}

// HandleTreasuryOperation processes a changed treasury operation row
func (h *WebhookHandler) HandleTreasuryOperation(c *gin.Context) {
	var rec dto.TreasuryOperationRecord
	if !h.bind(c, dto.TableTreasuryOperations, &rec) {
		return
	}
	op := rec.ToDomain()
	h.deliver(c, delivery{dto.TableTreasuryOperations, rec.ID, rec.Status}, func(ctx context.Context) (shared.Outcome, error) {
		return h.deps.Operations.ProcessOperation(ctx, op)
	})
}

// bind decodes the notification and its row image into rec, answering 400
// when either is malformed.
func (h *WebhookHandler) bind(c *gin.Context, table string, rec any) bool {
	var note dto.ChangeNotification
	err := c.ShouldBindJSON(&note)
	if err == nil {
		err = note.DecodeRecord(rec)
	}
	if err == nil {
		return true
	}

	msg := dto.Message(dto.ErrInvalidRecord)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg = middleware.ValidationMessage(err)
	}
	h.logger.Warn("Rejected notification",
		zap.String("table", table),
		zap.String("request_id", getRequestID(c)),
		zap.Error(err))
	h.record(c.Request.Context(), table, telemetry.OutcomeRejected, h.now())
	h.BadRequest(c, msg)
	return false
}

func (h *WebhookHandler) deliver(c *gin.Context, d delivery, run func(ctx context.Context) (shared.Outcome, error)) {
	start := h.now()
	ctx, span := telemetry.StartServiceSpan(c.Request.Context(), "webhook", d.table,
		telemetry.WithAttribute(telemetry.SpanAttrTable, d.table),
		telemetry.WithAttribute(telemetry.SpanAttrRecordKey, d.key))
	defer span.End()

	ctx = logger.WithDelivery(ctx, d.table, d.key)
	log := logger.WithLogger(ctx, h.logger).With(zap.String("status", d.status))
	dedupeKey := shared.DeliveryKey(d.table, d.key, d.status)

	if h.deps.Dedupe != nil {
		done, err := h.deps.Dedupe.IsProcessed(ctx, dedupeKey)
		if err != nil {
			log.Warn("Dedupe lookup failed, processing anyway", zap.Error(err))
		} else if done {
			telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, telemetry.OutcomeDuplicate)
			h.record(ctx, d.table, telemetry.OutcomeDuplicate, start)
			h.OK(c, "already processed, ignore")
			return
		}
	}

	outcome, err := run(ctx)
	if err != nil {
		status := dto.StatusFor(err, h.cfg.StrictConfiguration)
		msg := dto.Message(err)
		label := telemetry.OutcomeFailed
		switch {
		case status == http.StatusOK:
			label = telemetry.OutcomeNotFound
			log.Warn("Delivery acknowledged without change", zap.Error(err))
			msg += ", ignore"
		case status == http.StatusBadRequest:
			label = telemetry.OutcomeRejected
			log.Warn("Delivery rejected", zap.Error(err))
		default:
			telemetry.RecordError(span, err)
			log.Error("Delivery failed", zap.Error(err))
		}
		telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, label)
		h.record(ctx, d.table, label, start)
		h.Text(c, status, msg)
		return
	}

	label, msg := telemetry.OutcomeProcessed, outcome.Reason
	if !outcome.Processed {
		label, msg = telemetry.OutcomeIgnored, outcome.Reason+", ignore"
	}
	if h.deps.Dedupe != nil {
		if _, err := h.deps.Dedupe.MarkProcessed(ctx, dedupeKey, h.cfg.DedupeTTL); err != nil {
			log.Warn("Failed to remember delivery", zap.Error(err))
		}
	}
	log.Debug("Delivery handled", zap.String("outcome", label), zap.String("reason", outcome.Reason))
	telemetry.SetAttribute(span, telemetry.SpanAttrOutcome, label)
	h.record(ctx, d.table, label, start)
	h.OK(c, msg)
}

func (h *WebhookHandler) record(ctx context.Context, table, outcome string, start time.Time) {
	if h.deps.Recorder != nil {
		h.deps.Recorder.RecordDelivery(ctx, table, outcome, h.now().Sub(start))
	}
}
