package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundlink/internal/domain"
)

// ProfileRepository persiste el documento de identidad ligado a un principal.
type ProfileRepository interface {
	Create(ctx context.Context, identity domain.Identity) error
	GetByIdentityID(ctx context.Context, identityID string) (domain.Identity, error)
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

func (r *PgProfileRepository) Create(ctx context.Context, identity domain.Identity) error {
	const query = `
		INSERT INTO profiles (
			identity_id, email, first_name, last_name, address1, city, state,
			postal_code, date_of_birth, tax_id, customer_ref, customer_kind, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	p := identity.Profile
	_, err := r.pool.Exec(ctx, query,
		identity.ID,
		identity.Email,
		p.FirstName,
		p.LastName,
		p.Address1,
		p.City,
		p.State,
		p.PostalCode,
		p.DateOfBirth,
		p.TaxID,
		identity.Customer.CustomerRef,
		string(identity.Customer.Kind),
		identity.CreatedAt,
	)
	return err
}

func (r *PgProfileRepository) GetByIdentityID(ctx context.Context, identityID string) (domain.Identity, error) {
	const query = `
		SELECT p.identity_id, p.email, pr.display_name, p.first_name, p.last_name,
			p.address1, p.city, p.state, p.postal_code, p.date_of_birth, p.tax_id,
			p.customer_ref, p.customer_kind, p.created_at
		FROM profiles p
		JOIN principals pr ON pr.id = p.identity_id
		WHERE p.identity_id = $1
	`
	var (
		identity domain.Identity
		kind     string
	)
	err := r.pool.QueryRow(ctx, query, identityID).Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.Profile.FirstName,
		&identity.Profile.LastName,
		&identity.Profile.Address1,
		&identity.Profile.City,
		&identity.Profile.State,
		&identity.Profile.PostalCode,
		&identity.Profile.DateOfBirth,
		&identity.Profile.TaxID,
		&identity.Customer.CustomerRef,
		&kind,
		&identity.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, err
	}
	identity.Customer.IdentityID = identity.ID
	identity.Customer.Kind = domain.CustomerKind(kind)
	return identity, err
}
