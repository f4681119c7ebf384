package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundlink/internal/domain"
)

// PrincipalRepository define el contrato de persistencia para credenciales.
type PrincipalRepository interface {
	Create(ctx context.Context, principal domain.Principal) error
	GetByID(ctx context.Context, id string) (domain.Principal, error)
	GetByEmail(ctx context.Context, email string) (domain.Principal, error)
	Delete(ctx context.Context, id string) error
}

// PgPrincipalRepository implementa PrincipalRepository usando pgxpool.
type PgPrincipalRepository struct {
	pool *pgxpool.Pool
}

func NewPgPrincipalRepository(pool *pgxpool.Pool) *PgPrincipalRepository {
	return &PgPrincipalRepository{pool: pool}
}

func (r *PgPrincipalRepository) Create(ctx context.Context, principal domain.Principal) error {
	const query = `
		INSERT INTO principals (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		principal.ID,
		principal.Email,
		principal.DisplayName,
		principal.PasswordHash,
		principal.CreatedAt,
	)
	return err
}

func (r *PgPrincipalRepository) GetByID(ctx context.Context, id string) (domain.Principal, error) {
	const query = `
		SELECT id, email, display_name, password_hash, created_at
		FROM principals
		WHERE id = $1
	`
	return r.scanOne(ctx, query, id)
}

func (r *PgPrincipalRepository) GetByEmail(ctx context.Context, email string) (domain.Principal, error) {
	const query = `
		SELECT id, email, display_name, password_hash, created_at
		FROM principals
		WHERE lower(email) = lower($1)
	`
	return r.scanOne(ctx, query, email)
}

// Delete es idempotente: borrar un principal inexistente no es un error.
func (r *PgPrincipalRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM principals WHERE id = $1`, id)
	return err
}

func (r *PgPrincipalRepository) scanOne(ctx context.Context, query string, arg any) (domain.Principal, error) {
	var p domain.Principal
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.PasswordHash,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Principal{}, err
	}
	return p, err
}
