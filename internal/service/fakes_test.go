package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/infra/cache"
	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/port"
)

// fakeStore is an in-memory LedgerStore that mimics the database's
// conditional status flip: a transaction leaves pending exactly once,
// and the loser of a settle race observes the terminal status.
type fakeStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	cards    map[string]*domain.Card
	txs      map[string]*domain.Transaction
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[string]*domain.Account),
		cards:    make(map[string]*domain.Card),
		txs:      make(map[string]*domain.Transaction),
	}
}

func (f *fakeStore) addAccount(a *domain.Account) { f.accounts[a.ID] = a }
func (f *fakeStore) addCard(c *domain.Card)       { f.cards[c.ID] = c }

func (f *fakeStore) balance(accountID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[accountID].BalanceMinor
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListAccounts(_ context.Context, ownerID string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCard(_ context.Context, id string) (*domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "card", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) UpdateCardStatus(_ context.Context, id string, status domain.CardStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "card", ID: id}
	}
	c.Status = status
	return nil
}

func (f *fakeStore) CreateTransaction(_ context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *tx
	cp.ID = fmt.Sprintf("tx-%d", f.nextID)
	cp.CreatedAt = time.Now()
	f.txs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeStore) FindPendingByCorrelation(_ context.Context, provider domain.Provider, correlationID string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.txs {
		if tx.Provider == provider && tx.Status == domain.StatusPending && tx.CorrelationID() == correlationID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SettleTransaction(_ context.Context, id string, deltas []domain.BalanceDelta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if tx.Status != domain.StatusPending {
		return &domain.ErrInvalidState{Resource: "transaction", ID: id, Status: string(tx.Status)}
	}
	for _, d := range deltas {
		a, ok := f.accounts[d.AccountID]
		if !ok {
			return &domain.ErrNotFound{Resource: "account", ID: d.AccountID}
		}
		a.BalanceMinor += d.AmountMinor
	}
	tx.Status = domain.StatusCompleted
	return nil
}

func (f *fakeStore) FinishTransaction(_ context.Context, id string, status domain.TransactionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if tx.Status != domain.StatusPending {
		return &domain.ErrInvalidState{Resource: "transaction", ID: id, Status: string(tx.Status)}
	}
	tx.Status = status
	return nil
}

func (f *fakeStore) CreateSettledTransaction(_ context.Context, tx *domain.Transaction, deltas []domain.BalanceDelta) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *tx
	cp.ID = fmt.Sprintf("tx-%d", f.nextID)
	cp.Status = domain.StatusCompleted
	for _, d := range deltas {
		a, ok := f.accounts[d.AccountID]
		if !ok {
			return nil, &domain.ErrNotFound{Resource: "account", ID: d.AccountID}
		}
		a.BalanceMinor += d.AmountMinor
	}
	f.txs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) ListTransactions(_ context.Context, ownerID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range f.txs {
		owner := f.accounts[tx.OwnerAccountID()]
		if owner == nil || owner.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (f *fakeStore) ListPendingCardAuthorizations(_ context.Context, ownerID string) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, tx := range f.txs {
		if tx.Provider != domain.ProviderCardNetwork || tx.Status != domain.StatusPending {
			continue
		}
		owner := f.accounts[tx.DestAccountID]
		if owner != nil && owner.OwnerID == ownerID {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// ------------------------------------------------------------
// Fake adapters
// ------------------------------------------------------------

type fakeCardProc struct {
	createErr     error
	confirmStatus port.ProviderStatus
	confirmErr    error
	cancelErr     error
	cancelCalls   int
	createCalls   int
}

func (f *fakeCardProc) CreateCharge(_ context.Context, _ int64, _, _ string) (*port.Charge, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &port.Charge{ID: "ch_1", ClientSecret: "ch_1_secret", Status: port.StatusCreated}, nil
}

func (f *fakeCardProc) ConfirmCharge(context.Context, string) (port.ProviderStatus, error) {
	if f.confirmErr != nil {
		return "", f.confirmErr
	}
	if f.confirmStatus == "" {
		return port.StatusCompleted, nil
	}
	return f.confirmStatus, nil
}

func (f *fakeCardProc) GetCharge(context.Context, string) (port.ProviderStatus, error) {
	return port.StatusPending, nil
}

func (f *fakeCardProc) CancelCharge(context.Context, string) error {
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeCardProc) VerifySignature([]byte, string) bool { return true }

type fakeBankRail struct {
	status      port.ProviderStatus
	feeMinor    int64
	createErr   error
	cancelErr   error
	cancelCalls int
}

func (f *fakeBankRail) CreateTransfer(_ context.Context, _, _ string, _ int64, _ domain.Rail, _ string) (*port.RailTransfer, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &port.RailTransfer{ID: "rail_1", Status: port.StatusPending, FeeMinor: f.feeMinor}, nil
}

func (f *fakeBankRail) GetTransfer(context.Context, string) (port.ProviderStatus, error) {
	if f.status == "" {
		return port.StatusPending, nil
	}
	return f.status, nil
}

func (f *fakeBankRail) CancelTransfer(context.Context, string) error {
	f.cancelCalls++
	return f.cancelErr
}

func (f *fakeBankRail) VerifySignature([]byte, string) bool { return true }

type fakeCoreBank struct {
	balanceMinor int64
	balanceCalls int
	balanceErr   error
}

func (f *fakeCoreBank) CreateTransfer(_ context.Context, _, _, _ string, _ int64, _ string) (*port.CoreTransfer, error) {
	return &port.CoreTransfer{ID: "core_1", Status: port.StatusCreated}, nil
}

func (f *fakeCoreBank) GetTransfer(context.Context, string) (port.ProviderStatus, error) {
	return port.StatusCompleted, nil
}

func (f *fakeCoreBank) CancelTransfer(context.Context, string) error { return nil }

func (f *fakeCoreBank) GetAccountBalance(context.Context, string) (int64, error) {
	f.balanceCalls++
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balanceMinor, nil
}

func (f *fakeCoreBank) VerifySignature([]byte, string) bool { return true }

type fakeCardNet struct {
	ensureCalls  int
	authErr      error
	clearErr     error
	reverseErr   error
	reverseCalls int
	fundCalls    int
}

func (f *fakeCardNet) EnsureUser(context.Context, string) (string, error) {
	f.ensureCalls++
	return "usr_fake", nil
}

func (f *fakeCardNet) Authorize(_ context.Context, _ string, _ int64, _, _ string) (*port.NetworkTransaction, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &port.NetworkTransaction{Token: "ntx_fake", Status: port.StatusPending}, nil
}

func (f *fakeCardNet) Clear(context.Context, string, int64, string) (port.ProviderStatus, error) {
	if f.clearErr != nil {
		return "", f.clearErr
	}
	return port.StatusCompleted, nil
}

func (f *fakeCardNet) Fund(_ context.Context, _ string, _ int64) (*port.NetworkTransaction, error) {
	f.fundCalls++
	return &port.NetworkTransaction{Token: "ntx_fund", Status: port.StatusCompleted}, nil
}

func (f *fakeCardNet) Reverse(context.Context, string) error {
	f.reverseCalls++
	return f.reverseErr
}

func (f *fakeCardNet) GetAccountBalance(context.Context, string) (int64, error) {
	return 0, nil
}

func (f *fakeCardNet) VerifySignature([]byte, string) bool { return true }

// ------------------------------------------------------------
// Harness
// ------------------------------------------------------------

type fixture struct {
	svc      *LedgerService
	store    *fakeStore
	cardProc *fakeCardProc
	bankRail *fakeBankRail
	coreBank *fakeCoreBank
	cardNet  *fakeCardNet
}

func newFixture() *fixture {
	store := newFakeStore()
	cardProc := &fakeCardProc{}
	bankRail := &fakeBankRail{}
	coreBank := &fakeCoreBank{}
	cardNet := &fakeCardNet{}
	svc := NewLedgerService(
		store, cardProc, bankRail, coreBank, cardNet,
		cache.New[int64](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return &fixture{
		svc:      svc,
		store:    store,
		cardProc: cardProc,
		bankRail: bankRail,
		coreBank: coreBank,
		cardNet:  cardNet,
	}
}
