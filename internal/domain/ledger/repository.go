package ledger

import "context"

// TransactionRepository persists ledger entries
type TransactionRepository interface {
	// Upsert inserts or overwrites the entry keyed by its event hash
	Upsert(ctx context.Context, tx Transaction) error
}

// LogRepository reads the per-chain event and enrichment tables
type LogRepository interface {
	// ReadLogs returns a page of logs ordered by created_at
	ReadLogs(ctx context.Context, chainID, contract string, limit, offset int) ([]Log, error)

	// CountLogs returns the number of logs for a chain and contract
	CountLogs(ctx context.Context, chainID, contract string) (int64, error)

	// FindLogData returns the enrichment record for an event hash, or nil, nil
	FindLogData(ctx context.Context, chainID, hash string) (*LogData, error)
}

// InteractionRepository persists feed entries
type InteractionRepository interface {
	// Upsert inserts each entry or refreshes the existing (account, with) row
	Upsert(ctx context.Context, interactions []Interaction) error
}

// Signer selects which custodian identity signs a dispatch
type Signer string

const (
	SignerTreasury    Signer = "treasury"
	SignerPointOfSale Signer = "point-of-sale"
)

// TransferRequest is a settlement submission
type TransferRequest struct {
	Signer      Signer
	Token       string
	From        string
	To          string
	Amount      string // major units, decimal string
	Description string
}

// Dispatcher submits settlements on chain and returns the transaction hash.
// A returned hash is never empty on success.
type Dispatcher interface {
	// HasSigner reports whether a key is configured for signer
	HasSigner(signer Signer) bool

	Mint(ctx context.Context, req TransferRequest) (string, error)
	Burn(ctx context.Context, req TransferRequest) (string, error)
	Transfer(ctx context.Context, req TransferRequest) (string, error)
}
