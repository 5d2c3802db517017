package treasury

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncProvider is the off-chain payment provider feeding a treasury
type SyncProvider string

const (
	ProviderStripe SyncProvider = "stripe"
	ProviderViva   SyncProvider = "viva"
	ProviderPonto  SyncProvider = "ponto"
)

// Strategy is how a treasury settles its operations on chain
type Strategy string

const (
	StrategyPayg     Strategy = "payg"
	StrategyPeriodic Strategy = "periodic"
)

// IsValid checks if the strategy is known
func (s Strategy) IsValid() bool {
	return s == StrategyPayg || s == StrategyPeriodic
}

// Credentials is the provider-specific credential variant of a treasury.
type Credentials interface {
	Provider() SyncProvider
}

// StripeCredentials holds Stripe account secrets
type StripeCredentials struct {
	SecretKey      string `json:"secret_key"`
	WebhookSecret  string `json:"webhook_secret"`
	PriceID        string `json:"price_id"`
	PublishableKey string `json:"publishable_key"`
}

func (StripeCredentials) Provider() SyncProvider { return ProviderStripe }

// VivaCredentials holds Viva Wallet secrets
type VivaCredentials struct {
	APIKey       string `json:"api_key"`
	MerchantID   string `json:"merchant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (VivaCredentials) Provider() SyncProvider { return ProviderViva }

// PontoCredentials holds Ponto bank-sync secrets
type PontoCredentials struct {
	ClientID        string `json:"client_id"`
	ClientSecret    string `json:"client_secret"`
	AccountID       string `json:"account_id"`
	IBAN            string `json:"iban"`
	SyncExpiry      string `json:"sync_expiry"`
	SyncMessageType string `json:"sync_message_type"` // structured | unstructured
}

func (PontoCredentials) Provider() SyncProvider { return ProviderPonto }

// DecodeCredentials decodes the raw credential document for the given provider.
// An empty document yields a zero-valued variant.
func DecodeCredentials(provider SyncProvider, raw []byte) (Credentials, error) {
	var creds Credentials
	switch provider {
	case ProviderStripe:
		c := StripeCredentials{}
		if err := unmarshalOptional(raw, &c); err != nil {
			return nil, err
		}
		creds = c
	case ProviderViva:
		c := VivaCredentials{}
		if err := unmarshalOptional(raw, &c); err != nil {
			return nil, err
		}
		creds = c
	case ProviderPonto:
		c := PontoCredentials{}
		if err := unmarshalOptional(raw, &c); err != nil {
			return nil, err
		}
		creds = c
	default:
		return nil, fmt.Errorf("unknown sync provider %q", provider)
	}
	return creds, nil
}

// IntervalUnit is the calendar unit of a periodic schedule
type IntervalUnit string

const (
	UnitDay   IntervalUnit = "day"
	UnitWeek  IntervalUnit = "week"
	UnitMonth IntervalUnit = "month"
	UnitYear  IntervalUnit = "year"
)

// PeriodicConfig is the strategy config of a periodic treasury.
type PeriodicConfig struct {
	Interval     int          `json:"interval"`
	IntervalUnit IntervalUnit `json:"interval_unit"`
	DayOfMonth   *int         `json:"day_of_month,omitempty"` // 1-31, month and year units
	DayOfWeek    *int         `json:"day_of_week,omitempty"`  // 0-6, Sunday first, week unit
	Hour         *int         `json:"hour,omitempty"`
	Minute       *int         `json:"minute,omitempty"`
}

// Treasury is a business's token treasury. Read-only for the engine.
type Treasury struct {
	ID                 int64
	BusinessID         int64
	CreatedAt          time.Time
	Token              string
	SyncProvider       SyncProvider
	Credentials        Credentials
	SyncStrategy       Strategy
	Periodic           *PeriodicConfig // nil unless SyncStrategy is periodic
	SyncCurrencySymbol string
	BusinessName       string
}

// DecodeStrategyConfig decodes the strategy config document. payg carries no
// config and always yields nil.
func DecodeStrategyConfig(strategy Strategy, raw []byte) (*PeriodicConfig, error) {
	if strategy != StrategyPeriodic {
		return nil, nil
	}
	cfg := &PeriodicConfig{}
	if err := unmarshalOptional(raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 1
	}
	if cfg.IntervalUnit == "" {
		cfg.IntervalUnit = UnitMonth
	}
	return cfg, nil
}

func unmarshalOptional(raw []byte, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}
