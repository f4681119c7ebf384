package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fundlink/internal/config"
	"fundlink/internal/db"
	"fundlink/internal/plaidclient"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Operator tooling for fundlink",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(accountsCmd())
	root.AddCommand(syncCmd())
	return root
}

// env agrupa lo que comparten los subcomandos.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, _ := zap.NewProduction()
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return &env{cfg: cfg, logger: logger, pool: pool}, nil
}

func (e *env) Close() {
	e.pool.Close()
	_ = e.logger.Sync()
}

func (e *env) plaid() *plaidclient.Client {
	return plaidclient.New(plaidclient.Options{
		ClientID:     e.cfg.PlaidClientID,
		Secret:       e.cfg.PlaidSecret,
		Env:          e.cfg.PlaidEnv,
		ClientName:   e.cfg.PlaidClientName,
		CountryCodes: e.cfg.PlaidCountryCodes,
		RedirectURI:  e.cfg.PlaidRedirectURI,
		Timeout:      e.cfg.ProviderTimeout,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
