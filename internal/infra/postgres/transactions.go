package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/domain"
)

const transactionColumns = `id, source_account_id, dest_account_id, amount_minor, fee_minor,
	type, status, memo, provider, charge_id, bank_transfer_id, core_transfer_id,
	network_transaction_token, card_id, merchant_name, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var src, dst, memo, chargeID, bankID, coreID, netTok, cardID, merchant *string
	err := row.Scan(&t.ID, &src, &dst, &t.AmountMinor, &t.FeeMinor,
		&t.Type, &t.Status, &memo, &t.Provider, &chargeID, &bankID, &coreID,
		&netTok, &cardID, &merchant, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.SourceAccountID = deref(src)
	t.DestAccountID = deref(dst)
	t.Memo = deref(memo)
	t.ChargeID = deref(chargeID)
	t.BankTransferID = deref(bankID)
	t.CoreTransferID = deref(coreID)
	t.NetworkTransactionToken = deref(netTok)
	t.CardID = deref(cardID)
	t.MerchantName = deref(merchant)
	return &t, nil
}

// correlationColumn maps a provider tag to its correlation id column.
// The switch keeps column names out of caller-controlled input.
func correlationColumn(p domain.Provider) (string, error) {
	switch p {
	case domain.ProviderCardProcessor:
		return "charge_id", nil
	case domain.ProviderBankRail:
		return "bank_transfer_id", nil
	case domain.ProviderCoreBanking:
		return "core_transfer_id", nil
	case domain.ProviderCardNetwork:
		return "network_transaction_token", nil
	}
	return "", fmt.Errorf("provider %q has no correlation column", p)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, source_account_id, dest_account_id, amount_minor, fee_minor,
			type, status, memo, provider, charge_id, bank_transfer_id, core_transfer_id,
			network_transaction_token, card_id, merchant_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		t.ID, nullable(t.SourceAccountID), nullable(t.DestAccountID), t.AmountMinor, t.FeeMinor,
		t.Type, t.Status, nullable(t.Memo), t.Provider, nullable(t.ChargeID),
		nullable(t.BankTransferID), nullable(t.CoreTransferID), nullable(t.NetworkTransactionToken),
		nullable(t.CardID), nullable(t.MerchantName), t.CreatedAt, t.UpdatedAt)
	return err
}

// CreateTransaction inserts a new transaction row with no balance effect.
func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("provider", string(t.Provider)))

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		return insertTransaction(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTransaction fetches one transaction by id.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.GetTransaction")
	defer span.End()

	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, txID)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FindPendingByCorrelation looks up a pending transaction by the
// provider's correlation field. Returns (nil, nil) when no pending row
// matches; the webhook path treats that as an already-processed or
// foreign event.
func (s *Store) FindPendingByCorrelation(ctx context.Context, provider domain.Provider, correlationID string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.FindPendingByCorrelation")
	defer span.End()
	span.SetAttributes(attribute.String("provider", string(provider)))

	col, err := correlationColumn(provider)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE `+col+` = $1 AND provider = $2 AND status = 'pending'`,
		correlationID, provider)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// applyDeltas locks the affected account rows and mutates balances.
// Rows are locked in account-id order so two transfers touching the
// same pair of accounts in opposite directions cannot deadlock.
func applyDeltas(ctx context.Context, tx pgx.Tx, deltas []domain.BalanceDelta) error {
	sorted := make([]domain.BalanceDelta, len(deltas))
	copy(sorted, deltas)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AccountID < sorted[j].AccountID })

	for _, d := range sorted {
		var balance int64
		err := tx.QueryRow(ctx,
			`SELECT balance_minor FROM accounts WHERE id = $1 FOR UPDATE`, d.AccountID).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.ErrNotFound{Resource: "account", ID: d.AccountID}
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET balance_minor = balance_minor + $1 WHERE id = $2`,
			d.AmountMinor, d.AccountID); err != nil {
			return err
		}
	}
	return nil
}

// flipStatus moves a pending transaction to a terminal status. The
// conditional WHERE keeps status transitions monotonic: the second
// caller racing on the same row affects zero rows and gets
// ErrInvalidState instead of re-applying any effect.
func flipStatus(ctx context.Context, tx pgx.Tx, txID string, to domain.TransactionStatus) error {
	tag, err := tx.Exec(ctx,
		`UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`,
		txID, to, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, txID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ErrNotFound{Resource: "transaction", ID: txID}
	}
	if err != nil {
		return err
	}
	return &domain.ErrInvalidState{Resource: "transaction", ID: txID, Status: current}
}

// SettleTransaction marks a pending transaction completed and applies
// the balance deltas in one database transaction.
func (s *Store) SettleTransaction(ctx context.Context, txID string, deltas []domain.BalanceDelta) error {
	ctx, span := tracer.Start(ctx, "Store.SettleTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txID))

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := flipStatus(ctx, tx, txID, domain.StatusCompleted); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, deltas)
	})
	if err != nil {
		s.logger.Debug("settle rejected", zap.String("transaction_id", txID), zap.Error(err))
	}
	return err
}

// FinishTransaction moves a pending transaction to failed or cancelled
// with no balance change.
func (s *Store) FinishTransaction(ctx context.Context, txID string, status domain.TransactionStatus) error {
	ctx, span := tracer.Start(ctx, "Store.FinishTransaction")
	defer span.End()

	if !status.Terminal() || status == domain.StatusCompleted {
		return fmt.Errorf("finish requires failed or cancelled, got %q", status)
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return flipStatus(ctx, tx, txID, status)
	})
}

// CreateSettledTransaction inserts an already-completed transaction and
// applies the deltas atomically (instant-settlement card flows).
func (s *Store) CreateSettledTransaction(ctx context.Context, t *domain.Transaction, deltas []domain.BalanceDelta) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateSettledTransaction")
	defer span.End()

	t.Status = domain.StatusCompleted
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		return applyDeltas(ctx, tx, deltas)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns transactions touching any account owned by
// ownerID, newest first, narrowed by the filter.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, f domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTransactions")
	defer span.End()

	f.Normalize()

	query := `SELECT ` + transactionColumns + ` FROM transactions t
		WHERE (t.source_account_id IN (SELECT id FROM accounts WHERE owner_id = $1)
		   OR t.dest_account_id IN (SELECT id FROM accounts WHERE owner_id = $1))`
	args := []any{ownerID}

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	if !f.From.IsZero() {
		add("t.created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("t.created_at <= $%d", f.To)
	}
	if f.Type != "" {
		add("t.type = $%d", f.Type)
	}
	if f.Status != "" {
		add("t.status = $%d", f.Status)
	}
	if f.AccountID != "" {
		add("(t.source_account_id = $%d OR t.dest_account_id = $%[1]d)", f.AccountID)
	}
	if f.CardID != "" {
		add("t.card_id = $%d", f.CardID)
	}
	if f.Search != "" {
		add("(t.memo ILIKE '%%' || $%d || '%%' OR t.merchant_name ILIKE '%%' || $%[1]d || '%%')", f.Search)
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	query += fmt.Sprintf(" ORDER BY t.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListPendingCardAuthorizations returns pending card-network
// transactions whose destination account is owned by ownerID.
func (s *Store) ListPendingCardAuthorizations(ctx context.Context, ownerID string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.ListPendingCardAuthorizations")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions t
		 WHERE t.provider = $1 AND t.status = 'pending'
		   AND t.dest_account_id IN (SELECT id FROM accounts WHERE owner_id = $2)
		 ORDER BY t.created_at DESC`,
		domain.ProviderCardNetwork, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
