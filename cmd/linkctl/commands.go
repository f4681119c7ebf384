package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fundlink/internal/db"
	"fundlink/internal/domain"
	"fundlink/internal/repository"
	"fundlink/internal/service"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := db.Migrate(cmd.Context(), e.pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func accountsCmd() *cobra.Command {
	var identityID string
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Print the aggregated accounts summary of an identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			plaid := e.plaid()
			aggregator := service.NewAccountAggregator(e.logger,
				repository.NewPgBankLinkRepository(e.pool),
				repository.NewPgTransferRepository(e.pool),
				plaid,
				service.NewSyncEngine(e.logger, plaid, e.cfg.ProviderTimeout),
				e.cfg.ProviderTimeout,
			)
			summary, err := aggregator.GetAccounts(cmd.Context(), identityID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&identityID, "identity", "", "identity id")
	_ = cmd.MarkFlagRequired("identity")
	return cmd
}

func syncCmd() *cobra.Command {
	var bankLinkID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a transaction sync for one bank link and print the merged feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			links := repository.NewPgBankLinkRepository(e.pool)
			link, err := links.GetByID(cmd.Context(), bankLinkID)
			if err != nil {
				return fmt.Errorf("load bank link %s: %w", bankLinkID, err)
			}
			records, err := repository.NewPgTransferRepository(e.pool).ListByBankLink(cmd.Context(), link.ID)
			if err != nil {
				return fmt.Errorf("load transfers: %w", err)
			}

			engine := service.NewSyncEngine(e.logger, e.plaid(), e.cfg.ProviderTimeout)
			txs, status := engine.Sync(cmd.Context(), link.AccessCredential, link.ID)
			feed := service.MergeTransactions(txs, service.TransfersToTransactions(records, link.ID))

			return printJSON(cmd.OutOrStdout(), struct {
				BankLinkID   string                         `json:"bank_link_id"`
				SyncStatus   domain.SyncStatus              `json:"sync_status"`
				Transactions []domain.NormalizedTransaction `json:"transactions"`
			}{link.ID, status, feed})
		},
	}
	cmd.Flags().StringVar(&bankLinkID, "bank-link", "", "bank link id")
	_ = cmd.MarkFlagRequired("bank-link")
	return cmd
}
