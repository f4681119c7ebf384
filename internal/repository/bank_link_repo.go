package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundlink/internal/domain"
)

type BankLinkRepository interface {
	Create(ctx context.Context, link domain.BankLink) error
	GetByID(ctx context.Context, id string) (domain.BankLink, error)
	GetByShareableID(ctx context.Context, shareableID string) (domain.BankLink, error)
	GetByExternalAccount(ctx context.Context, identityID, externalAccountID string) (domain.BankLink, error)
	UpdateCredential(ctx context.Context, id, itemID, accessCredential string) error
	ListByIdentity(ctx context.Context, identityID string) ([]domain.BankLink, error)
}

type PgBankLinkRepository struct {
	pool *pgxpool.Pool
}

func NewPgBankLinkRepository(pool *pgxpool.Pool) *PgBankLinkRepository {
	return &PgBankLinkRepository{pool: pool}
}

const bankLinkColumns = `id, identity_id, item_id, access_credential, funding_source_ref,
		external_account_id, shareable_id, created_at`

func (r *PgBankLinkRepository) Create(ctx context.Context, link domain.BankLink) error {
	const query = `
		INSERT INTO bank_links (` + bankLinkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.IdentityID,
		link.ItemID,
		link.AccessCredential,
		link.FundingSourceRef,
		link.ExternalAccountID,
		link.ShareableID,
		link.CreatedAt,
	)
	return err
}

func (r *PgBankLinkRepository) GetByID(ctx context.Context, id string) (domain.BankLink, error) {
	const query = `SELECT ` + bankLinkColumns + ` FROM bank_links WHERE id = $1`
	return scanBankLink(r.pool.QueryRow(ctx, query, id))
}

// GetByShareableID resuelve al vínculo más reciente con ese id compartible.
func (r *PgBankLinkRepository) GetByShareableID(ctx context.Context, shareableID string) (domain.BankLink, error) {
	const query = `
		SELECT ` + bankLinkColumns + `
		FROM bank_links
		WHERE shareable_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanBankLink(r.pool.QueryRow(ctx, query, shareableID))
}

func (r *PgBankLinkRepository) GetByExternalAccount(ctx context.Context, identityID, externalAccountID string) (domain.BankLink, error) {
	const query = `SELECT ` + bankLinkColumns + ` FROM bank_links WHERE identity_id = $1 AND external_account_id = $2`
	return scanBankLink(r.pool.QueryRow(ctx, query, identityID, externalAccountID))
}

// UpdateCredential reemplaza el ítem y la credencial tras volver a vincular la misma cuenta.
func (r *PgBankLinkRepository) UpdateCredential(ctx context.Context, id, itemID, accessCredential string) error {
	const query = `UPDATE bank_links SET item_id = $2, access_credential = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, itemID, accessCredential)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListByIdentity devuelve los vínculos en orden de creación.
func (r *PgBankLinkRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.BankLink, error) {
	const query = `
		SELECT ` + bankLinkColumns + `
		FROM bank_links
		WHERE identity_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.BankLink
	for rows.Next() {
		link, err := scanBankLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func scanBankLink(row pgx.Row) (domain.BankLink, error) {
	var link domain.BankLink
	err := row.Scan(
		&link.ID,
		&link.IdentityID,
		&link.ItemID,
		&link.AccessCredential,
		&link.FundingSourceRef,
		&link.ExternalAccountID,
		&link.ShareableID,
		&link.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BankLink{}, err
	}
	return link, err
}
