package service

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/plaidclient"
)

const providerDateLayout = "2006-01-02"

// TransactionSyncer pagina /transactions/sync.
type TransactionSyncer interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string) (plaidclient.SyncPage, error)
}

// SyncEngine recorre las páginas de transacciones de forma estrictamente secuencial.
// El cursor vive solo durante el bucle.
type SyncEngine struct {
	logger   *zap.Logger
	provider TransactionSyncer
	timeout  time.Duration
}

func NewSyncEngine(logger *zap.Logger, provider TransactionSyncer, timeout time.Duration) *SyncEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncEngine{logger: logger, provider: provider, timeout: timeout}
}

// Sync devuelve las transacciones añadidas y el estado de la sincronización.
// Ante un fallo devuelve una lista vacía y un estado distinto de SyncOK.
func (e *SyncEngine) Sync(ctx context.Context, accessCredential, bankLinkID string) ([]domain.NormalizedTransaction, domain.SyncStatus) {
	transactions := []domain.NormalizedTransaction{}
	cursor := ""

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("transaction sync aborted", zap.String("bank_link_id", bankLinkID), zap.Error(err))
			return []domain.NormalizedTransaction{}, domain.SyncFailed
		}

		callCtx, cancel := withTimeout(ctx, e.timeout)
		resp, err := e.provider.SyncTransactions(callCtx, accessCredential, cursor)
		cancel()
		if err != nil {
			status := SyncStatusFor(err)
			e.logger.Warn("transaction sync failed",
				zap.String("bank_link_id", bankLinkID),
				zap.Int("page", page),
				zap.String("status", string(status)),
				zap.Error(err),
			)
			return []domain.NormalizedTransaction{}, status
		}

		if resp.AddedMissing {
			e.logger.Warn("transaction sync page without added list",
				zap.String("bank_link_id", bankLinkID),
				zap.Int("page", page),
			)
		}
		for _, tx := range resp.Added {
			transactions = append(transactions, e.normalize(tx, bankLinkID))
		}

		cursor = resp.NextCursor
		if !resp.HasMore {
			break
		}
	}
	return transactions, domain.SyncOK
}

func (e *SyncEngine) normalize(tx plaidclient.Transaction, bankLinkID string) domain.NormalizedTransaction {
	date, err := time.Parse(providerDateLayout, tx.Date)
	if err != nil {
		e.logger.Warn("unparseable transaction date", zap.String("transaction_id", tx.ID), zap.String("date", tx.Date))
	}

	// El agregador informa salidas con importe positivo.
	amount := decimal.NewFromFloat(tx.Amount)
	direction := domain.DirectionDebit
	if amount.IsNegative() {
		direction = domain.DirectionCredit
	}

	return domain.NormalizedTransaction{
		ID:               tx.ID,
		Name:             tx.Name,
		Amount:           amount.Abs(),
		Date:             date,
		Channel:          tx.Channel,
		Category:         tx.Category,
		Pending:          tx.Pending,
		OriginBankLinkID: bankLinkID,
		Direction:        direction,
		Source:           domain.SourceProvider,
	}
}

// SyncStatusFor traduce un error del agregador al estado de sincronización.
func SyncStatusFor(err error) domain.SyncStatus {
	switch apperr.FromError(err).Code {
	case "ITEM_LOGIN_REQUIRED", "INVALID_ACCESS_TOKEN", "ITEM_NOT_FOUND":
		return domain.SyncNeedsRelink
	case "ADDITIONAL_CONSENT_REQUIRED", "ACCESS_NOT_GRANTED", "NO_AUTH_ACCOUNTS":
		return domain.SyncConsentRequired
	}
	if apperr.ClassifyError(err).Kind == apperr.KindInvalidCredentials {
		return domain.SyncNeedsRelink
	}
	return domain.SyncFailed
}

// TransfersToTransactions proyecta transferencias al feed desde el punto de vista de viewerBankLinkID.
func TransfersToTransactions(records []domain.TransferRecord, viewerBankLinkID string) []domain.NormalizedTransaction {
	out := make([]domain.NormalizedTransaction, 0, len(records))
	for _, r := range records {
		direction := domain.DirectionCredit
		if r.SenderBankLinkID == viewerBankLinkID {
			direction = domain.DirectionDebit
		}
		out = append(out, domain.NormalizedTransaction{
			ID:               r.ID,
			Name:             r.Name,
			Amount:           r.Amount,
			Date:             r.CreatedAt,
			Channel:          r.Channel,
			Category:         r.Category,
			OriginBankLinkID: r.SenderBankLinkID,
			Direction:        direction,
			Source:           domain.SourceTransfer,
		})
	}
	return out
}

// MergeTransactions ordena por día calendario (UTC) descendente. El agregador
// solo informa el día y las transferencias traen hora, así que se compara por
// día: en empate van primero las del agregador y luego las transferencias,
// cada grupo en su orden de entrada.
func MergeTransactions(provider, transfers []domain.NormalizedTransaction) []domain.NormalizedTransaction {
	merged := make([]domain.NormalizedTransaction, 0, len(provider)+len(transfers))
	merged = append(merged, provider...)
	merged = append(merged, transfers...)
	slices.SortStableFunc(merged, func(a, b domain.NormalizedTransaction) int {
		return calendarDay(b.Date).Compare(calendarDay(a.Date))
	})
	return merged
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
