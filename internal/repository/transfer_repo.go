package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fundlink/internal/domain"
)

type TransferRepository interface {
	Create(ctx context.Context, transfer domain.TransferRecord) error
	ListByBankLink(ctx context.Context, bankLinkID string) ([]domain.TransferRecord, error)
}

type PgTransferRepository struct {
	pool *pgxpool.Pool
}

func NewPgTransferRepository(pool *pgxpool.Pool) *PgTransferRepository {
	return &PgTransferRepository{pool: pool}
}

func (r *PgTransferRepository) Create(ctx context.Context, transfer domain.TransferRecord) error {
	const query = `
		INSERT INTO transfers (
			id, name, sender_identity_id, receiver_identity_id, sender_bank_link_id,
			receiver_bank_link_id, amount, channel, category, transfer_ref, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		transfer.ID,
		transfer.Name,
		transfer.SenderIdentityID,
		transfer.ReceiverIdentityID,
		transfer.SenderBankLinkID,
		transfer.ReceiverBankLinkID,
		transfer.Amount.StringFixed(2),
		transfer.Channel,
		transfer.Category,
		transfer.TransferRef,
		transfer.CreatedAt,
	)
	return err
}

// ListByBankLink devuelve las transferencias donde el vínculo es origen o destino.
func (r *PgTransferRepository) ListByBankLink(ctx context.Context, bankLinkID string) ([]domain.TransferRecord, error) {
	const query = `
		SELECT id, name, sender_identity_id, receiver_identity_id, sender_bank_link_id,
			receiver_bank_link_id, amount::text, channel, category, transfer_ref, created_at
		FROM transfers
		WHERE sender_bank_link_id = $1 OR receiver_bank_link_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, bankLinkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.TransferRecord
	for rows.Next() {
		var (
			t      domain.TransferRecord
			amount string
		)
		err = rows.Scan(
			&t.ID,
			&t.Name,
			&t.SenderIdentityID,
			&t.ReceiverIdentityID,
			&t.SenderBankLinkID,
			&t.ReceiverBankLinkID,
			&amount,
			&t.Channel,
			&t.Category,
			&t.TransferRef,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}
