package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fundlink/internal/apperr"
	"fundlink/internal/cache"
	"fundlink/internal/domain"
	"fundlink/internal/plaidclient"
	"fundlink/internal/repository"
)

const defaultAggregationConcurrency = 4

// AccountAggregator consulta en paralelo cada vínculo bancario de una identidad.
type AccountAggregator struct {
	logger       *zap.Logger
	links        repository.BankLinkRepository
	transfers    repository.TransferRepository
	provider     AggregationProvider
	sync         *SyncEngine
	institutions *cache.ViewCache[domain.Institution]
	concurrency  int
	timeout      time.Duration
}

type AggregatorOption func(*AccountAggregator)

func WithInstitutionCache(c *cache.ViewCache[domain.Institution]) AggregatorOption {
	return func(a *AccountAggregator) { a.institutions = c }
}

func WithConcurrency(n int) AggregatorOption {
	return func(a *AccountAggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func NewAccountAggregator(logger *zap.Logger, links repository.BankLinkRepository, transfers repository.TransferRepository, provider AggregationProvider, sync *SyncEngine, timeout time.Duration, opts ...AggregatorOption) *AccountAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AccountAggregator{
		logger:      logger,
		links:       links,
		transfers:   transfers,
		provider:    provider,
		sync:        sync,
		concurrency: defaultAggregationConcurrency,
		timeout:     timeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetAccounts respeta el orden de los vínculos. Un vínculo que falla se omite y
// no aborta al resto; TotalBanks cuenta todos los vínculos.
func (a *AccountAggregator) GetAccounts(ctx context.Context, identityID string) (domain.AccountsSummary, error) {
	links, err := a.links.ListByIdentity(ctx, identityID)
	if err != nil {
		return domain.AccountsSummary{}, apperr.ClassifyError(err)
	}

	results := make([]*domain.Account, len(links))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, link := range links {
		g.Go(func() error {
			account, err := a.fetchAccount(ctx, link)
			if err != nil {
				a.logger.Warn("bank account fetch failed",
					zap.String("bank_link_id", link.ID),
					zap.String("kind", apperr.ClassifyError(err).Kind.String()),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &account
			return nil
		})
	}
	_ = g.Wait()

	summary := domain.AccountsSummary{
		Accounts:            make([]domain.Account, 0, len(links)),
		TotalBanks:          len(links),
		TotalCurrentBalance: decimal.Zero,
	}
	for _, account := range results {
		if account == nil {
			continue
		}
		summary.Accounts = append(summary.Accounts, *account)
		summary.TotalCurrentBalance = summary.TotalCurrentBalance.Add(account.CurrentBalance)
	}
	return summary, nil
}

// GetAccount devuelve la cuenta de un vínculo propio junto con su feed combinado.
func (a *AccountAggregator) GetAccount(ctx context.Context, identityID, bankLinkID string) (domain.AccountDetail, error) {
	link, err := a.links.GetByID(ctx, bankLinkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccountDetail{}, ErrBankLinkNotFound
		}
		return domain.AccountDetail{}, apperr.ClassifyError(err)
	}
	if link.IdentityID != identityID {
		return domain.AccountDetail{}, ErrBankLinkNotFound
	}

	records, err := a.transfers.ListByBankLink(ctx, link.ID)
	if err != nil {
		return domain.AccountDetail{}, apperr.ClassifyError(err)
	}

	// Un ítem roto falla ya en la consulta de cuentas: se degrada al feed de
	// transferencias con el estado que corresponda, sin sincronizar.
	account, err := a.fetchAccount(ctx, link)
	if err != nil {
		status := SyncStatusFor(err)
		a.logger.Warn("bank account fetch failed",
			zap.String("bank_link_id", link.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return domain.AccountDetail{
			Account:      domain.Account{BankLinkID: link.ID, FundingSourceRef: link.FundingSourceRef, ShareableID: link.ShareableID},
			Transactions: MergeTransactions(nil, TransfersToTransactions(records, link.ID)),
			SyncStatus:   status,
		}, nil
	}

	providerTxs, status := a.sync.Sync(ctx, link.AccessCredential, link.ID)

	return domain.AccountDetail{
		Account:      account,
		Transactions: MergeTransactions(providerTxs, TransfersToTransactions(records, link.ID)),
		SyncStatus:   status,
	}, nil
}

func (a *AccountAggregator) fetchAccount(ctx context.Context, link domain.BankLink) (domain.Account, error) {
	ctx, cancel := withTimeout(ctx, a.timeout)
	defer cancel()

	result, err := a.provider.GetAccounts(ctx, link.AccessCredential)
	if err != nil {
		return domain.Account{}, err
	}
	if len(result.Accounts) == 0 {
		return domain.Account{}, errors.New("no accounts returned for bank link")
	}

	primary := result.Accounts[0]
	for _, acc := range result.Accounts {
		if acc.ID == link.ExternalAccountID {
			primary = acc
			break
		}
	}

	account := toAccount(primary, link)
	account.InstitutionID = result.InstitutionID
	if inst, ok := a.institution(ctx, result.InstitutionID); ok {
		account.InstitutionName = inst.Name
	}
	return account, nil
}

// institution consulta el caché antes que al agregador; un fallo solo deja el nombre vacío.
func (a *AccountAggregator) institution(ctx context.Context, institutionID string) (domain.Institution, bool) {
	if institutionID == "" {
		return domain.Institution{}, false
	}
	key := "institution:" + institutionID
	if cached, ok := a.institutions.Get(ctx, key); ok {
		return *cached, true
	}

	inst, err := a.provider.GetInstitution(ctx, institutionID)
	if err != nil {
		a.logger.Warn("institution lookup failed", zap.String("institution_id", institutionID), zap.Error(err))
		return domain.Institution{}, false
	}
	a.institutions.Set(ctx, key, &inst)
	return inst, true
}

func toAccount(acc plaidclient.Account, link domain.BankLink) domain.Account {
	return domain.Account{
		ID:               acc.ID,
		BankLinkID:       link.ID,
		Name:             acc.Name,
		OfficialName:     acc.OfficialName,
		Mask:             acc.Mask,
		Type:             acc.Type,
		Subtype:          acc.Subtype,
		AvailableBalance: decimal.NewFromFloat(acc.AvailableBalance),
		CurrentBalance:   decimal.NewFromFloat(acc.CurrentBalance),
		FundingSourceRef: link.FundingSourceRef,
		ShareableID:      link.ShareableID,
	}
}
