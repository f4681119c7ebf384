package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fundlink/internal/config"
)

// NewPool construye y devuelve un pool de conexiones configurado.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.ConnConfig.ConnectTimeout = 5 * time.Second

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Ping verifica conectividad con la base de datos.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	return pool.Ping(ctx)
}

// Migrate aplica el esquema de forma idempotente.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS principals (
		id UUID PRIMARY KEY,
		email VARCHAR(255) UNIQUE NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS profiles (
		identity_id UUID PRIMARY KEY REFERENCES principals(id) ON DELETE CASCADE,
		email VARCHAR(255) NOT NULL,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		address1 VARCHAR(255) NOT NULL,
		city VARCHAR(255) NOT NULL,
		state VARCHAR(8) NOT NULL,
		postal_code VARCHAR(16) NOT NULL,
		date_of_birth VARCHAR(16) NOT NULL,
		tax_id VARCHAR(32) NOT NULL,
		customer_ref TEXT NOT NULL,
		customer_kind VARCHAR(16) NOT NULL DEFAULT 'personal',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS bank_links (
		id UUID PRIMARY KEY,
		identity_id UUID NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
		item_id VARCHAR(255) NOT NULL,
		access_credential TEXT NOT NULL,
		funding_source_ref TEXT NOT NULL,
		external_account_id VARCHAR(255) NOT NULL,
		shareable_id VARCHAR(512) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS transfers (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		sender_identity_id UUID NOT NULL,
		receiver_identity_id UUID NOT NULL,
		sender_bank_link_id UUID NOT NULL REFERENCES bank_links(id),
		receiver_bank_link_id UUID NOT NULL REFERENCES bank_links(id),
		amount NUMERIC(14, 2) NOT NULL,
		channel VARCHAR(32) NOT NULL,
		category VARCHAR(64) NOT NULL,
		transfer_ref TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_bank_links_identity_id ON bank_links(identity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bank_links_shareable_id ON bank_links(shareable_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_bank_links_identity_account ON bank_links(identity_id, external_account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_sender_bank_link ON transfers(sender_bank_link_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transfers_receiver_bank_link ON transfers(receiver_bank_link_id)`,
}
