package dispatch

import (
	"context"

	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/infrastructure/telemetry"
)

// Dispatch kinds reported to a Recorder
const (
	KindMint     = "mint"
	KindBurn     = "burn"
	KindTransfer = "transfer"
)

// Recorder observes settlement submissions
type Recorder interface {
	RecordDispatch(ctx context.Context, kind string, err error)
}

// Observed wraps a Dispatcher with a span and a Recorder call per submission
type Observed struct {
	next     ledger.Dispatcher
	recorder Recorder
}

var _ ledger.Dispatcher = (*Observed)(nil)

// NewObserved wraps next. recorder may be nil.
func NewObserved(next ledger.Dispatcher, recorder Recorder) *Observed {
	return &Observed{next: next, recorder: recorder}
}

// HasSigner delegates to the wrapped dispatcher
func (o *Observed) HasSigner(signer ledger.Signer) bool {
	return o.next.HasSigner(signer)
}

// Mint delegates to the wrapped dispatcher
func (o *Observed) Mint(ctx context.Context, req ledger.TransferRequest) (string, error) {
	return o.observe(ctx, KindMint, req, o.next.Mint)
}

// Burn delegates to the wrapped dispatcher
func (o *Observed) Burn(ctx context.Context, req ledger.TransferRequest) (string, error) {
	return o.observe(ctx, KindBurn, req, o.next.Burn)
}

// Transfer delegates to the wrapped dispatcher
func (o *Observed) Transfer(ctx context.Context, req ledger.TransferRequest) (string, error) {
	return o.observe(ctx, KindTransfer, req, o.next.Transfer)
}

func (o *Observed) observe(
	ctx context.Context,
	kind string,
	req ledger.TransferRequest,
	call func(context.Context, ledger.TransferRequest) (string, error),
) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "dispatch", kind)
	defer span.End()

	txHash, err := call(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetAttribute(span, telemetry.SpanAttrTxHash, txHash)
	}
	if o.recorder != nil {
		o.recorder.RecordDispatch(ctx, kind, err)
	}
	return txHash, err
}
