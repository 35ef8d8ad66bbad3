// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/kordbank/ledger-go/internal/domain"
)

// ProviderStatus is the normalized state every adapter maps its
// network's status vocabulary into.
type ProviderStatus string

const (
	StatusCreated   ProviderStatus = "created"
	StatusPending   ProviderStatus = "pending"
	StatusCompleted ProviderStatus = "completed"
	StatusFailed    ProviderStatus = "failed"
)

// LedgerStore defines all durable state operations. Every sequence of
// "read state, decide, write status+balance" is one store call backed
// by a single atomic multi-row transaction; partial application is the
// store's job to make impossible.
type LedgerStore interface {
	// Accounts
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]domain.Account, error)

	// Cards
	GetCard(ctx context.Context, cardID string) (*domain.Card, error)
	UpdateCardStatus(ctx context.Context, cardID string, status domain.CardStatus) error

	// Transactions
	CreateTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error)
	// FindPendingByCorrelation returns (nil, nil) when no pending
	// transaction carries the correlation id for that provider.
	FindPendingByCorrelation(ctx context.Context, provider domain.Provider, correlationID string) (*domain.Transaction, error)

	// SettleTransaction marks the transaction completed and applies the
	// balance deltas, all in one transaction. It returns ErrInvalidState
	// if the row is no longer pending.
	SettleTransaction(ctx context.Context, txID string, deltas []domain.BalanceDelta) error
	// FinishTransaction moves a pending transaction to failed or
	// cancelled with no balance change; ErrInvalidState if not pending.
	FinishTransaction(ctx context.Context, txID string, status domain.TransactionStatus) error
	// CreateSettledTransaction inserts an already-completed transaction
	// and applies the deltas in the same store transaction
	// (instant-settlement card flows).
	CreateSettledTransaction(ctx context.Context, tx *domain.Transaction, deltas []domain.BalanceDelta) (*domain.Transaction, error)

	// Query layer
	ListTransactions(ctx context.Context, ownerID string, f domain.TransactionFilter) ([]domain.Transaction, error)
	ListPendingCardAuthorizations(ctx context.Context, ownerID string) ([]domain.Transaction, error)

	Ping(ctx context.Context) error
}

// Charge is a card-processor charge, unconfirmed until ConfirmCharge.
type Charge struct {
	ID           string
	ClientSecret string
	Status       ProviderStatus
}

// CardProcessor wraps the external card processing network.
type CardProcessor interface {
	CreateCharge(ctx context.Context, amountMinor int64, currency, memo string) (*Charge, error)
	ConfirmCharge(ctx context.Context, chargeID string) (ProviderStatus, error)
	GetCharge(ctx context.Context, chargeID string) (ProviderStatus, error)
	CancelCharge(ctx context.Context, chargeID string) error
	VerifySignature(body []byte, header string) bool
}

// RailTransfer is a submitted bank-rail transfer. FeeMinor is the
// platform fee reported by the rail, if any.
type RailTransfer struct {
	ID       string
	Status   ProviderStatus
	FeeMinor int64
}

// BankRail wraps the ACH/RTP-style transfer provider.
type BankRail interface {
	CreateTransfer(ctx context.Context, sourcePaymentMethodID, destPaymentMethodID string, amountMinor int64, rail domain.Rail, memo string) (*RailTransfer, error)
	GetTransfer(ctx context.Context, transferID string) (ProviderStatus, error)
	CancelTransfer(ctx context.Context, transferID string) error
	VerifySignature(body []byte, header string) bool
}

// CoreTransfer is a submitted core-banking transfer.
type CoreTransfer struct {
	ID     string
	Status ProviderStatus
}

// CoreBanking wraps the core-banking provider.
type CoreBanking interface {
	CreateTransfer(ctx context.Context, customerID, sourceAccountID, destAccountID string, amountMinor int64, memo string) (*CoreTransfer, error)
	GetTransfer(ctx context.Context, transferID string) (ProviderStatus, error)
	CancelTransfer(ctx context.Context, transferID string) error
	GetAccountBalance(ctx context.Context, externalAccountID string) (int64, error)
	VerifySignature(body []byte, header string) bool
}

// NetworkTransaction is a card-network simulator operation result.
type NetworkTransaction struct {
	Token  string
	Status ProviderStatus
}

// CardNetwork wraps the card-network simulator used by the
// card-transaction flows.
type CardNetwork interface {
	// EnsureUser is idempotent: an already-existing user resolves by
	// fetching and returning the existing token.
	EnsureUser(ctx context.Context, ownerID string) (string, error)
	// Authorize and Clear derive the simulator's merchant id from the
	// display name.
	Authorize(ctx context.Context, cardToken string, amountMinor int64, merchantName, memo string) (*NetworkTransaction, error)
	Clear(ctx context.Context, transactionToken string, amountMinor int64, merchantName string) (ProviderStatus, error)
	Fund(ctx context.Context, userToken string, amountMinor int64) (*NetworkTransaction, error)
	Reverse(ctx context.Context, transactionToken string) error
	GetAccountBalance(ctx context.Context, accountToken string) (int64, error)
	VerifySignature(body []byte, header string) bool
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
