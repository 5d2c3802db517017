package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Log is a row of the per-chain, per-contract event log table.
type Log struct {
	Hash      string
	TxHash    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Nonce     int64
	Sender    string
	To        string
	Value     string
	Data      TransferData
	Status    string
}

// Event converts a stored log into a transfer event for contract
func (l *Log) Event(contract string) TransferEvent {
	return TransferEvent{
		Hash:      l.Hash,
		TxHash:    l.TxHash,
		Contract:  contract,
		Status:    l.Status,
		Data:      l.Data,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.CreatedAt,
	}
}

// LogData is the enrichment record attached to an event hash
type LogData struct {
	Hash        string
	Description string
}

var identPart = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// LogsTable returns the event-log table name for a chain and contract.
// Both parts are validated because they are interpolated into SQL.
func LogsTable(chainID, contract string) (string, error) {
	if !identPart.MatchString(chainID) || !identPart.MatchString(contract) {
		return "", fmt.Errorf("invalid logs table parts %q/%q", chainID, contract)
	}
	return fmt.Sprintf("t_logs_%s_%s", chainID, strings.ToLower(contract)), nil
}

// LogsDataTable returns the enrichment table name for a chain
func LogsDataTable(chainID string) (string, error) {
	if !identPart.MatchString(chainID) {
		return "", fmt.Errorf("invalid chain id %q", chainID)
	}
	return "t_logs_data_" + chainID, nil
}
