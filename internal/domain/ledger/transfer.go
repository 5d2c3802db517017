package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferTopic is the keccak256 signature of the ERC-20 Transfer event
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// StatusSuccess is the event-log status of a mined, successful transfer
const StatusSuccess = "success"

// TransferData is the decoded payload of a transfer log
type TransferData struct {
	Topic string `json:"topic"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// TransferEvent is one on-chain transfer log as delivered to the correlator.
type TransferEvent struct {
	Hash      string // event hash, ledger idempotency key
	TxHash    string // chain transaction hash
	Contract  string
	Status    string
	Data      TransferData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsSuccessfulTransfer reports whether the event is a successful ERC-20 transfer.
func (e *TransferEvent) IsSuccessfulTransfer() bool {
	return e.Status == StatusSuccess && strings.EqualFold(e.Data.Topic, TransferTopic)
}

// HasParties reports whether the payload names both sides of the transfer.
func (e *TransferEvent) HasParties() bool {
	return e.Data.From != "" && e.Data.To != ""
}

// FormatUnits renders a raw integer token amount with the token's decimals,
// always keeping one fractional digit: ("1500000", 6) -> "1.5", ("2000000", 6) -> "2.0".
// An unparsable amount renders as "0.0".
func FormatUnits(raw string, decimals int32) string {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return "0.0"
	}
	s := v.Shift(-decimals).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Transaction is the canonical ledger entry for a recognised transfer.
type Transaction struct {
	ID          string // event hash
	Hash        string // chain tx hash
	Contract    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	From        string
	To          string
	Value       string
	Description string
	Status      string
}

// NewTransaction builds the ledger entry for an event
func NewTransaction(ev *TransferEvent, decimals int32, description string) Transaction {
	return Transaction{
		ID:          ev.Hash,
		Hash:        ev.TxHash,
		Contract:    ev.Contract,
		CreatedAt:   ev.CreatedAt,
		UpdatedAt:   ev.UpdatedAt,
		From:        ev.Data.From,
		To:          ev.Data.To,
		Value:       FormatUnits(ev.Data.Value, decimals),
		Description: description,
		Status:      ev.Status,
	}
}
