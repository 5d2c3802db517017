package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/reconciler/backend/internal/domain/ledger"
	"github.com/reconciler/backend/internal/domain/order"
	"github.com/reconciler/backend/internal/domain/treasury"
)

// Delivery table labels, used in dedupe keys, spans and metrics
const (
	TableTransactions       = "transactions"
	TableOrders             = "orders"
	TableTreasuryOperations = "treasury_operations"
)

// ErrInvalidRecord is returned when a notification carries no row image
var ErrInvalidRecord = errors.New("invalid record data")

// ChangeNotification is the row-change payload posted by the database trigger
type ChangeNotification struct {
	Type      string          `json:"type" binding:"omitempty,oneof=INSERT UPDATE DELETE"`
	Table     string          `json:"table"`
	Schema    string          `json:"schema"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record"`
}

// DecodeRecord unmarshals the row image into dst and validates it
func (n *ChangeNotification) DecodeRecord(dst any) error {
	raw := bytes.TrimSpace(n.Record)
	if len(raw) == 0 || raw[0] != '{' {
		return ErrInvalidRecord
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return binding.Validator.ValidateStruct(dst)
}

// TransferRecord is a row of t_logs_<chain>_<contract>
type TransferRecord struct {
	Hash      string              `json:"hash" binding:"required"`
	TxHash    string              `json:"tx_hash" binding:"required"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
	Nonce     int64               `json:"nonce"`
	Sender    string              `json:"sender"`
	Dest      string              `json:"dest" binding:"required"`
	Value     string              `json:"value"`
	Data      ledger.TransferData `json:"data"`
	Status    string              `json:"status"`
}

// ToEvent converts the row into a transfer event. The token contract is the
// log's destination.
func (r *TransferRecord) ToEvent() ledger.TransferEvent {
	return ledger.TransferEvent{
		Hash:      r.Hash,
		TxHash:    r.TxHash,
		Contract:  r.Dest,
		Status:    r.Status,
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// OrderRecord is a row of the orders table
type OrderRecord struct {
	ID          int64           `json:"id" binding:"required,gt=0"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	Total       int64           `json:"total" binding:"gte=0"`
	Due         int64           `json:"due"`
	Fees        int64           `json:"fees" binding:"gte=0"`
	PlaceID     int64           `json:"place_id" binding:"required,gt=0"`
	Items       []order.Item    `json:"items"`
	Status      string          `json:"status" binding:"required"`
	Description string          `json:"description"`
	TxHash      *string         `json:"tx_hash"`
	Type        *string         `json:"type"`
	Account     *string         `json:"account"`
	PayoutID    *int64          `json:"payout_id"`
	Token       *string         `json:"token"`
}

// Key returns the dedupe record key of the row
func (r *OrderRecord) Key() string {
	return strconv.FormatInt(r.ID, 10)
}

// ToDomain converts the row into a domain Order
func (r *OrderRecord) ToDomain() *order.Order {
	o := &order.Order{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		Total:       r.Total,
		Due:         r.Due,
		Fees:        r.Fees,
		PlaceID:     r.PlaceID,
		Items:       r.Items,
		Status:      order.Status(r.Status),
		Description: r.Description,
		TxHash:      r.TxHash,
		Account:     r.Account,
		PayoutID:    r.PayoutID,
		Token:       r.Token,
	}
	if r.Type != nil {
		t := order.Type(*r.Type)
		o.Type = &t
	}
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	return o
}

// TreasuryOperationRecord is a row of the treasury_operations table
type TreasuryOperationRecord struct {
	ID         string          `json:"id" binding:"required"`
	TreasuryID int64           `json:"treasury_id" binding:"required,gt=0"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Direction  string          `json:"direction" binding:"omitempty,oneof=in out"`
	Amount     int64           `json:"amount" binding:"gte=0"`
	Status     string          `json:"status" binding:"required"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata"`
	TxHash     *string         `json:"tx_hash"`
	Account    *string         `json:"account"`
}

// ToDomain converts the row into a domain Operation
func (r *TreasuryOperationRecord) ToDomain() *treasury.Operation {
	return &treasury.Operation{
		ID:         r.ID,
		TreasuryID: r.TreasuryID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Direction:  treasury.Direction(r.Direction),
		Amount:     r.Amount,
		Status:     treasury.OperationStatus(r.Status),
		Message:    r.Message,
		Metadata:   r.Metadata,
		TxHash:     r.TxHash,
		Account:    r.Account,
	}
}
