package treasury

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OperationStatus is the lifecycle status of a treasury operation
type OperationStatus string

const (
	OpStatusRequesting              OperationStatus = "requesting"
	OpStatusPending                 OperationStatus = "pending"
	OpStatusPendingPeriodic         OperationStatus = "pending-periodic"
	OpStatusConfirming              OperationStatus = "confirming"
	OpStatusProcessed               OperationStatus = "processed"
	OpStatusProcessedAccountMissing OperationStatus = "processed-account-not-found"
)

// Direction of a treasury operation relative to the customer account
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Action is the on-chain settlement an operation maps to
type Action string

const (
	ActionMint Action = "mint"
	ActionBurn Action = "burn"
)

// Action maps in to mint and out to burn
func (d Direction) Action() Action {
	if d == DirectionOut {
		return ActionBurn
	}
	return ActionMint
}

// Operation is one top-up or refund request against a treasury.
// Amount is in minor currency units.
type Operation struct {
	ID         string
	TreasuryID int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Direction  Direction
	Amount     int64
	Status     OperationStatus
	Message    string
	Metadata   json.RawMessage
	TxHash     *string
	Account    *string
}

// HasAccount reports whether the operation targets an account
func (o *Operation) HasAccount() bool {
	return o.Account != nil && *o.Account != ""
}

// PaygMetadata is the metadata variant of a pay-as-you-go operation
type PaygMetadata struct {
	OrderID     *int64 `json:"order_id,omitempty"`
	Description string `json:"description,omitempty"`
}

// PeriodicMetadata is the metadata variant of a periodic operation. Only a
// group representative carries a non-empty member list.
type PeriodicMetadata struct {
	GroupedOperations []string `json:"grouped_operations,omitempty"`
	TotalAmount       int64    `json:"total_amount,omitempty"`
}

// OperationMetadata is the metadata tagged union, discriminated by the owning
// treasury's strategy.
type OperationMetadata struct {
	Strategy Strategy
	Payg     *PaygMetadata
	Periodic *PeriodicMetadata
}

// DecodeMetadata decodes raw operation metadata as the variant selected by strategy.
func DecodeMetadata(strategy Strategy, raw []byte) (OperationMetadata, error) {
	meta := OperationMetadata{Strategy: strategy}
	raw = bytes.TrimSpace(raw)
	empty := len(raw) == 0 || string(raw) == "null"

	switch strategy {
	case StrategyPayg:
		var wire struct {
			OrderID     json.RawMessage `json:"order_id"`
			Description string          `json:"description"`
		}
		if !empty {
			if err := json.Unmarshal(raw, &wire); err != nil {
				return meta, fmt.Errorf("decode payg metadata: %w", err)
			}
		}
		orderID, err := parseOptionalInt(wire.OrderID)
		if err != nil {
			return meta, fmt.Errorf("decode payg metadata order_id: %w", err)
		}
		meta.Payg = &PaygMetadata{OrderID: orderID, Description: wire.Description}
	case StrategyPeriodic:
		p := &PeriodicMetadata{}
		if !empty {
			if err := json.Unmarshal(raw, p); err != nil {
				return meta, fmt.Errorf("decode periodic metadata: %w", err)
			}
		}
		meta.Periodic = p
	default:
		return meta, fmt.Errorf("unknown sync strategy %q", strategy)
	}
	return meta, nil
}

// Encode renders the active variant as a JSON object
func (m OperationMetadata) Encode() (json.RawMessage, error) {
	switch {
	case m.Periodic != nil:
		return json.Marshal(m.Periodic)
	case m.Payg != nil:
		return json.Marshal(m.Payg)
	}
	return json.RawMessage("{}"), nil
}

// order_id arrives as a number or a numeric string depending on the writer.
func parseOptionalInt(raw json.RawMessage) (*int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n json.Number
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		n = json.Number(s)
	} else if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// IsGroupRepresentative reports whether a periodic operation carries its group
func (m OperationMetadata) IsGroupRepresentative() bool {
	return m.Periodic != nil && len(m.Periodic.GroupedOperations) > 0
}

// DefaultDescription is the ledger description for an operation of a business
func DefaultDescription(direction Direction, businessName string) string {
	if direction == DirectionOut {
		return "refund via: " + businessName
	}
	return "top up via: " + businessName
}

// Settlement is what gets dispatched for one operation event.
type Settlement struct {
	IDs         []string
	Amount      string
	Description string
	Action      Action
}

// PlanSettlement resolves the id set, amount and description for dispatching op.
// linkedOrderDescription is the description of the order referenced by payg
// metadata, or "" when there is none.
func PlanSettlement(t *Treasury, op *Operation, meta OperationMetadata, linkedOrderDescription string) Settlement {
	s := Settlement{
		IDs:         []string{op.ID},
		Amount:      MinorToMajor(op.Amount),
		Description: DefaultDescription(op.Direction, t.BusinessName),
		Action:      op.Direction.Action(),
	}

	if t.SyncStrategy == StrategyPayg && meta.Payg != nil {
		if meta.Payg.Description != "" {
			s.Description = meta.Payg.Description
		} else if linkedOrderDescription != "" {
			s.Description = linkedOrderDescription
		}
	}

	if t.SyncStrategy == StrategyPeriodic && meta.Periodic != nil {
		s.IDs = mergeIDs(s.IDs, meta.Periodic.GroupedOperations)
		s.Amount = MinorToMajor(meta.Periodic.TotalAmount)
	}
	return s
}

// MinorToMajor renders an integer minor-unit amount as a decimal string,
// e.g. 1250 -> "12.5".
func MinorToMajor(amount int64) string {
	return decimal.New(amount, -2).String()
}

func mergeIDs(head []string, rest []string) []string {
	seen := make(map[string]struct{}, len(head)+len(rest))
	out := make([]string, 0, len(head)+len(rest))
	for _, list := range [][]string{head, rest} {
		for _, id := range list {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
