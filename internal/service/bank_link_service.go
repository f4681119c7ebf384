package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/dwolla"
	"fundlink/internal/events"
	"fundlink/internal/plaidclient"
	"fundlink/internal/repository"
)

// processorName identifica al proveedor de pagos ante el agregador.
const processorName = "dwolla"

// AggregationProvider es el contrato del proveedor de agregación bancaria.
type AggregationProvider interface {
	CreateLinkToken(ctx context.Context, clientUserID, displayName string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error)
	GetAccounts(ctx context.Context, accessToken string) (plaidclient.AccountsResult, error)
	GetInstitution(ctx context.Context, institutionID string) (domain.Institution, error)
	CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string) (plaidclient.SyncPage, error)
}

var ErrBankLinkNotFound = errors.New("bank link not found")

// BankLinkService orquesta el vínculo de una cuenta bancaria: intercambio de
// token, cuenta principal, token de procesador, fuente de fondos y persistencia.
type BankLinkService struct {
	logger    *zap.Logger
	provider  AggregationProvider
	rail      PaymentRail
	links     repository.BankLinkRepository
	publisher events.Publisher
	timeout   time.Duration
}

func NewBankLinkService(logger *zap.Logger, provider AggregationProvider, rail PaymentRail, links repository.BankLinkRepository, publisher events.Publisher, timeout time.Duration) *BankLinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &BankLinkService{
		logger:    logger,
		provider:  provider,
		rail:      rail,
		links:     links,
		publisher: publisher,
		timeout:   timeout,
	}
}

func (s *BankLinkService) CreateLinkToken(ctx context.Context, identity domain.Identity) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	displayName := strings.TrimSpace(identity.Profile.FirstName + " " + identity.Profile.LastName)
	if displayName == "" {
		displayName = identity.DisplayName
	}
	token, err := s.provider.CreateLinkToken(ctx, identity.ID, displayName)
	if err != nil {
		return "", apperr.ClassifyError(err)
	}
	return token, nil
}

// LinkBank no persiste nada si cualquier paso falla.
func (s *BankLinkService) LinkBank(ctx context.Context, identity domain.Identity, publicToken string) (domain.BankLink, error) {
	if strings.TrimSpace(publicToken) == "" {
		return domain.BankLink{}, apperr.Validation("public_token", "is required")
	}
	if identity.Customer.CustomerRef == "" {
		return domain.BankLink{}, apperr.ErrProfileDataMissing
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	accessToken, itemID, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return domain.BankLink{}, s.fail("exchange public token", identity.ID, err)
	}

	accounts, err := s.provider.GetAccounts(ctx, accessToken)
	if err != nil {
		return domain.BankLink{}, s.fail("get accounts", identity.ID, err)
	}
	if len(accounts.Accounts) == 0 {
		return domain.BankLink{}, apperr.Validation("account", "no accounts were returned for this bank")
	}
	primary := accounts.Accounts[0]

	existing, err := s.links.GetByExternalAccount(ctx, identity.ID, primary.ID)
	switch {
	case err == nil:
		return s.relink(ctx, existing, itemID, accessToken, accounts.InstitutionID)
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.BankLink{}, s.fail("lookup bank link", identity.ID, err)
	}

	processorToken, err := s.provider.CreateProcessorToken(ctx, accessToken, primary.ID, processorName)
	if err != nil {
		return domain.BankLink{}, s.fail("create processor token", identity.ID, err)
	}

	fundingRef, err := s.rail.CreateFundingSource(ctx, dwolla.FundingSource{
		CustomerRef:    identity.Customer.CustomerRef,
		ProcessorToken: processorToken,
		Name:           primary.Name,
	})
	if err != nil {
		return domain.BankLink{}, s.fail("create funding source", identity.ID, err)
	}

	link := domain.BankLink{
		ID:                uuid.NewString(),
		IdentityID:        identity.ID,
		ItemID:            itemID,
		AccessCredential:  accessToken,
		FundingSourceRef:  fundingRef,
		ExternalAccountID: primary.ID,
		ShareableID:       EncodeShareableID(primary.ID),
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return domain.BankLink{}, s.fail("persist bank link", identity.ID, err)
	}

	s.publishLinked(ctx, link, accounts.InstitutionID, false)
	s.logger.Info("bank linked",
		zap.String("identity_id", identity.ID),
		zap.String("bank_link_id", link.ID),
	)
	return link, nil
}

// relink conserva el vínculo y su fuente de fondos; solo cambia la credencial del ítem.
func (s *BankLinkService) relink(ctx context.Context, link domain.BankLink, itemID, accessToken, institutionID string) (domain.BankLink, error) {
	if err := s.links.UpdateCredential(ctx, link.ID, itemID, accessToken); err != nil {
		return domain.BankLink{}, s.fail("update bank link", link.IdentityID, err)
	}
	link.ItemID = itemID
	link.AccessCredential = accessToken

	s.publishLinked(ctx, link, institutionID, true)
	s.logger.Info("bank relinked",
		zap.String("identity_id", link.IdentityID),
		zap.String("bank_link_id", link.ID),
	)
	return link, nil
}

func (s *BankLinkService) publishLinked(ctx context.Context, link domain.BankLink, institutionID string, relinked bool) {
	err := s.publisher.Publish(ctx, events.BankEventsStream, events.BankLinked, events.BankLinkedEvent{
		IdentityID:    link.IdentityID,
		BankLinkID:    link.ID,
		InstitutionID: institutionID,
		Relinked:      relinked,
	})
	if err != nil {
		s.logger.Warn("publish bank.linked failed", zap.String("bank_link_id", link.ID), zap.Error(err))
	}
}

func (s *BankLinkService) fail(step, identityID string, err error) error {
	classified := apperr.ClassifyError(err)
	s.logger.Warn("bank link failed",
		zap.String("step", step),
		zap.String("identity_id", identityID),
		zap.String("kind", classified.Kind.String()),
		zap.Error(err),
	)
	return classified
}

// EncodeShareableID codifica el id de cuenta externa para compartirlo sin exponerlo en crudo.
func EncodeShareableID(externalAccountID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(externalAccountID))
}

func DecodeShareableID(shareableID string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(shareableID))
	if err != nil {
		return "", fmt.Errorf("decode shareable id: %w", err)
	}
	if len(raw) == 0 {
		return "", errors.New("decode shareable id: empty")
	}
	return string(raw), nil
}
