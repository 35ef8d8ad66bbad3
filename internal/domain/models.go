// Package domain holds the core entities of the money-movement system:
// accounts, cards, transactions and the provider vocabulary shared by
// the orchestrators, the store and the adapters.
package domain

import "time"

// Provider identifies the settlement network a transaction was routed
// through. The set is closed: dispatch happens via explicit switches so
// a misspelled provider can never fall through to a default rail.
type Provider string

const (
	ProviderInternal      Provider = "internal"
	ProviderCardProcessor Provider = "card_processor"
	ProviderBankRail      Provider = "bank_rail"
	ProviderCoreBanking   Provider = "core_banking"
	ProviderCardNetwork   Provider = "card_network"
)

// Valid reports whether p is a known provider tag.
func (p Provider) Valid() bool {
	switch p {
	case ProviderInternal, ProviderCardProcessor, ProviderBankRail, ProviderCoreBanking, ProviderCardNetwork:
		return true
	}
	return false
}

// Rail is a settlement method variant offered by the bank-rail provider.
type Rail string

const (
	RailStandard      Rail = "standard"
	RailSameDay       Rail = "same_day"
	RailInstant       Rail = "instant"
	RailWalletFunding Rail = "wallet_funding"
)

func (r Rail) Valid() bool {
	switch r {
	case RailStandard, RailSameDay, RailInstant, RailWalletFunding:
		return true
	}
	return false
}

// AccountType classifies a ledger account.
type AccountType string

const (
	AccountChecking AccountType = "checking"
	AccountSavings  AccountType = "savings"
	AccountBusiness AccountType = "business"
)

// Account is a ledger account. BalanceMinor is the authoritative stored
// balance in integer minor currency units; it is mutated only by the
// settlement steps of the orchestrators. LiveBalanceMinor is a
// read-time overlay filled in by the query layer for bound accounts and
// is never consulted by the write path.
type Account struct {
	ID       string      `json:"id"`
	OwnerID  string      `json:"owner_id"`
	Name     string      `json:"name"`
	Number   string      `json:"account_number"`
	Type     AccountType `json:"type"`
	Currency string      `json:"currency"`

	BalanceMinor     int64  `json:"balance_minor"`
	LiveBalanceMinor *int64 `json:"live_balance_minor,omitempty"`

	// External provider bindings. Empty string means unbound.
	CardNetworkUserToken    string `json:"card_network_user_token,omitempty"`
	CardNetworkAccountToken string `json:"card_network_account_token,omitempty"`
	BankRailPaymentMethodID string `json:"bank_rail_payment_method_id,omitempty"`
	CoreBankingAccountID    string `json:"core_banking_account_id,omitempty"`
	CoreBankingCustomerID   string `json:"core_banking_customer_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CardStatus is the lifecycle status of a card.
type CardStatus string

const (
	CardActive CardStatus = "active"
	CardFrozen CardStatus = "frozen"
)

// Card belongs to exactly one account and is owned transitively
// through it. A frozen card rejects all new transaction creation.
type Card struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	Last4            string     `json:"last4"`
	ExpMonth         int        `json:"exp_month"`
	ExpYear          int        `json:"exp_year"`
	Status           CardStatus `json:"status"`
	NetworkCardToken string     `json:"network_card_token,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// TransactionType describes direction relative to the ledger, not a
// double-entry pair.
type TransactionType string

const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// TransactionStatus is monotonic: once terminal it never changes.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Transaction records one money movement. At least one of
// SourceAccountID/DestAccountID is set; card transactions populate
// only the destination. Exactly one provider correlation field is
// populated, matching Provider.
type Transaction struct {
	ID              string            `json:"id"`
	SourceAccountID string            `json:"source_account_id,omitempty"`
	DestAccountID   string            `json:"dest_account_id,omitempty"`
	AmountMinor     int64             `json:"amount_minor"`
	FeeMinor        int64             `json:"fee_minor,omitempty"`
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	Memo            string            `json:"memo,omitempty"`
	Provider        Provider          `json:"provider"`

	// Provider correlation ids, one per provider.
	ChargeID                string `json:"charge_id,omitempty"`
	BankTransferID          string `json:"bank_transfer_id,omitempty"`
	CoreTransferID          string `json:"core_transfer_id,omitempty"`
	NetworkTransactionToken string `json:"network_transaction_token,omitempty"`

	// Card transactions only.
	CardID       string `json:"card_id,omitempty"`
	MerchantName string `json:"merchant_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CorrelationID returns the populated provider correlation field.
func (t *Transaction) CorrelationID() string {
	switch t.Provider {
	case ProviderCardProcessor:
		return t.ChargeID
	case ProviderBankRail:
		return t.BankTransferID
	case ProviderCoreBanking:
		return t.CoreTransferID
	case ProviderCardNetwork:
		return t.NetworkTransactionToken
	}
	return ""
}

// SetCorrelationID stores id in the field matching t.Provider.
func (t *Transaction) SetCorrelationID(id string) {
	switch t.Provider {
	case ProviderCardProcessor:
		t.ChargeID = id
	case ProviderBankRail:
		t.BankTransferID = id
	case ProviderCoreBanking:
		t.CoreTransferID = id
	case ProviderCardNetwork:
		t.NetworkTransactionToken = id
	}
}

// OwnerAccountID returns the account that determines ownership for
// authorization: source if populated, else destination.
func (t *Transaction) OwnerAccountID() string {
	if t.SourceAccountID != "" {
		return t.SourceAccountID
	}
	return t.DestAccountID
}

// BalanceDelta is one signed balance mutation applied atomically with
// a status flip inside the store.
type BalanceDelta struct {
	AccountID   string
	AmountMinor int64
}

// TransferRequest is the input to InitiateTransfer. SourceAccountID is
// empty for the single-sided card-funding path.
type TransferRequest struct {
	SourceAccountID string   `json:"source_account_id,omitempty"`
	DestAccountID   string   `json:"dest_account_id"`
	AmountMinor     int64    `json:"amount_minor"`
	Memo            string   `json:"memo,omitempty"`
	Provider        Provider `json:"provider"`
	Rail            Rail     `json:"rail,omitempty"`
}

// TransferResult is the created transaction plus provider metadata.
type TransferResult struct {
	Transaction   *Transaction `json:"transaction"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	ClientSecret  string       `json:"client_secret,omitempty"`
	FeeMinor      int64        `json:"fee_minor,omitempty"`
}

// CardTransactionKind selects the card simulation flow.
type CardTransactionKind string

const (
	CardAuth     CardTransactionKind = "auth"
	CardPurchase CardTransactionKind = "purchase"
	CardCredit   CardTransactionKind = "credit"
)

func (k CardTransactionKind) Valid() bool {
	return k == CardAuth || k == CardPurchase || k == CardCredit
}

// WebhookOutcome is the normalized result carried by a provider
// settlement notification.
type WebhookOutcome string

const (
	OutcomeSuccess WebhookOutcome = "success"
	OutcomeFailure WebhookOutcome = "failure"
)

// TransactionFilter narrows transaction listings. Zero values mean
// "no constraint".
type TransactionFilter struct {
	From      time.Time
	To        time.Time
	Type      TransactionType
	Status    TransactionStatus
	Search    string // free text over memo and merchant name
	AccountID string
	CardID    string
	Page      int
	PageSize  int
}

// Normalize applies pagination defaults: page 1, limit 20, max 100.
func (f *TransactionFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}
