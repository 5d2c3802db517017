package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the lifecycle status of a point-of-sale order
type Status string

const (
	StatusPending       Status = "pending"
	StatusPaid          Status = "paid"
	StatusCancelled     Status = "cancelled"
	StatusNeedsMinting  Status = "needs_minting"
	StatusNeedsBurning  Status = "needs_burning"
	StatusRefunded      Status = "refunded"
	StatusRefundPending Status = "refund_pending"
	StatusRefund        Status = "refund"
	StatusCorrection    Status = "correction"
)

// IsValid checks if the status is a known order status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCancelled, StatusNeedsMinting, StatusNeedsBurning,
		StatusRefunded, StatusRefundPending, StatusRefund, StatusCorrection:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Type is the channel an order was placed through
type Type string

const (
	TypeWeb      Type = "web"
	TypeApp      Type = "app"
	TypeTerminal Type = "terminal"
)

// Item is one line of an order
type Item struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
}

// Order is a point-of-sale order. Amounts are in minor currency units.
type Order struct {
	ID          int64
	CreatedAt   time.Time
	CompletedAt *time.Time
	Total       int64
	Due         int64
	Fees        int64
	PlaceID     int64
	Items       []Item
	Status      Status
	Description string
	TxHash      *string
	Type        *Type
	Account     *string
	PayoutID    *int64
	Token       *string
}

// HasAccount reports whether the order is linked to a customer account
func (o *Order) HasAccount() bool {
	return o.Account != nil && *o.Account != ""
}

// ResolveFinalStatus applies the settlement tie-break: an order already marked
// as a refund stays a refund, anything else takes the target status.
func ResolveFinalStatus(current, target Status) Status {
	if current == StatusRefund {
		return StatusRefund
	}
	if target == "" {
		return StatusPaid
	}
	return target
}

// RefundAmount returns the amount owed back to the customer, total minus fees,
// floored at zero, as a major-unit decimal string with two places.
func (o *Order) RefundAmount() string {
	amount := o.Total - o.Fees
	if amount < 0 {
		amount = 0
	}
	return decimal.New(amount, -2).StringFixed(2)
}

// RefundDescription is the ledger description of a refund transfer
func RefundDescription(placeName string, orderID int64) string {
	return fmt.Sprintf("refund from: %s for order #%d", placeName, orderID)
}
