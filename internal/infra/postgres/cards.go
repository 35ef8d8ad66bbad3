package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kordbank/ledger-go/internal/domain"
)

// GetCard fetches one card by id.
func (s *Store) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	ctx, span := tracer.Start(ctx, "Store.GetCard")
	defer span.End()
	span.SetAttributes(attribute.String("card.id", cardID))

	var c domain.Card
	var token *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, account_id, last4, exp_month, exp_year, status, network_card_token, created_at
		 FROM cards WHERE id = $1`, cardID).
		Scan(&c.ID, &c.AccountID, &c.Last4, &c.ExpMonth, &c.ExpYear, &c.Status, &token, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "card", ID: cardID}
	}
	if err != nil {
		return nil, err
	}
	c.NetworkCardToken = deref(token)
	return &c, nil
}

// UpdateCardStatus flips a card between active and frozen.
func (s *Store) UpdateCardStatus(ctx context.Context, cardID string, status domain.CardStatus) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateCardStatus")
	defer span.End()

	tag, err := s.pool.Exec(ctx, `UPDATE cards SET status = $2 WHERE id = $1`, cardID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "card", ID: cardID}
	}
	return nil
}
