package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kordbank/ledger-go/internal/domain"
)

const accountColumns = `id, owner_id, name, account_number, type, currency, balance_minor,
	card_network_user_token, card_network_account_token, bank_rail_payment_method_id,
	core_banking_account_id, core_banking_customer_id, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var cnUser, cnAcct, brPM, cbAcct, cbCust *string
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Number, &a.Type, &a.Currency, &a.BalanceMinor,
		&cnUser, &cnAcct, &brPM, &cbAcct, &cbCust, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.CardNetworkUserToken = deref(cnUser)
	a.CardNetworkAccountToken = deref(cnAcct)
	a.BankRailPaymentMethodID = deref(brPM)
	a.CoreBankingAccountID = deref(cbAcct)
	a.CoreBankingCustomerID = deref(cbCust)
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetAccount fetches one account by id.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.GetAccount")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAccounts returns all accounts owned by ownerID.
func (s *Store) ListAccounts(ctx context.Context, ownerID string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.ListAccounts")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
