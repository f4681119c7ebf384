package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/email"
	"fundlink/internal/events"
	"fundlink/internal/repository"
)

type SendTransferInput struct {
	SenderIdentityID    string
	SenderBankLinkID    string
	ReceiverShareableID string
	Amount              string
	Note                string
}

// TransferService mueve dinero entre vínculos bancarios de distintas identidades.
type TransferService struct {
	logger    *zap.Logger
	rail      PaymentRail
	links     repository.BankLinkRepository
	transfers repository.TransferRepository
	profiles  repository.ProfileRepository
	publisher events.Publisher
	mailer    email.Sender
	timeout   time.Duration
}

func NewTransferService(logger *zap.Logger, rail PaymentRail, links repository.BankLinkRepository, transfers repository.TransferRepository, profiles repository.ProfileRepository, publisher events.Publisher, mailer email.Sender, timeout time.Duration) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &TransferService{
		logger:    logger,
		rail:      rail,
		links:     links,
		transfers: transfers,
		profiles:  profiles,
		publisher: publisher,
		mailer:    mailer,
		timeout:   timeout,
	}
}

func (s *TransferService) Send(ctx context.Context, in SendTransferInput) (domain.TransferRecord, error) {
	amount, err := ParseTransferAmount(in.Amount)
	if err != nil {
		return domain.TransferRecord{}, err
	}

	sender, err := s.links.GetByID(ctx, in.SenderBankLinkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransferRecord{}, ErrBankLinkNotFound
		}
		return domain.TransferRecord{}, apperr.ClassifyError(err)
	}
	if sender.IdentityID != in.SenderIdentityID {
		return domain.TransferRecord{}, ErrBankLinkNotFound
	}

	if _, err := DecodeShareableID(in.ReceiverShareableID); err != nil {
		return domain.TransferRecord{}, apperr.Validation("shareable_id", "is not a valid shareable id")
	}
	receiver, err := s.links.GetByShareableID(ctx, strings.TrimSpace(in.ReceiverShareableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransferRecord{}, apperr.Validation("shareable_id", "no bank account matches this shareable id")
		}
		return domain.TransferRecord{}, apperr.ClassifyError(err)
	}
	if receiver.ID == sender.ID {
		return domain.TransferRecord{}, apperr.Validation("shareable_id", "cannot transfer to the same bank account")
	}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	ref, err := s.rail.CreateTransfer(callCtx, sender.FundingSourceRef, receiver.FundingSourceRef, amount)
	cancel()
	if err != nil {
		classified := apperr.ClassifyError(err)
		s.logger.Warn("transfer rejected by payment rail",
			zap.String("sender_bank_link_id", sender.ID),
			zap.String("kind", classified.Kind.String()),
			zap.Error(err),
		)
		return domain.TransferRecord{}, classified
	}

	record := domain.TransferRecord{
		ID:                 uuid.NewString(),
		Name:               transferName(in.Note),
		SenderIdentityID:   sender.IdentityID,
		ReceiverIdentityID: receiver.IdentityID,
		SenderBankLinkID:   sender.ID,
		ReceiverBankLinkID: receiver.ID,
		Amount:             amount,
		Channel:            domain.TransferChannel,
		Category:           domain.TransferCategory,
		TransferRef:        ref,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.transfers.Create(ctx, record); err != nil {
		// El dinero ya se movió: el ref permite conciliar a mano.
		s.logger.Error("transfer record persistence failed",
			zap.String("transfer_ref", ref),
			zap.String("sender_bank_link_id", sender.ID),
			zap.Error(err),
		)
		return domain.TransferRecord{}, apperr.ClassifyError(err)
	}

	err = s.publisher.Publish(ctx, events.TransferEventsStream, events.TransferCreated, events.TransferCreatedEvent{
		TransferID:         record.ID,
		SenderBankLinkID:   record.SenderBankLinkID,
		ReceiverBankLinkID: record.ReceiverBankLinkID,
		Amount:             record.Amount.StringFixed(2),
	})
	if err != nil {
		s.logger.Warn("publish transfer.created failed", zap.String("transfer_id", record.ID), zap.Error(err))
	}

	s.notifyReceiver(ctx, record)
	return record, nil
}

func (s *TransferService) notifyReceiver(ctx context.Context, record domain.TransferRecord) {
	if s.mailer == nil || s.profiles == nil {
		return
	}
	receiver, err := s.profiles.GetByIdentityID(ctx, record.ReceiverIdentityID)
	if err != nil {
		s.logger.Warn("transfer notice skipped", zap.String("transfer_id", record.ID), zap.Error(err))
		return
	}
	fromName := "Someone"
	if sender, err := s.profiles.GetByIdentityID(ctx, record.SenderIdentityID); err == nil {
		fromName = strings.TrimSpace(sender.Profile.FirstName + " " + sender.Profile.LastName)
	}

	notice := email.TransferNotice{
		ToEmail:     receiver.Email,
		ToName:      receiver.Profile.FirstName,
		FromName:    fromName,
		Amount:      record.Amount,
		Role:        "receiver",
		TransferRef: record.TransferRef,
		CreatedAt:   record.CreatedAt,
	}
	if err := s.mailer.SendTransferNotice(ctx, notice); err != nil {
		s.logger.Warn("transfer notice failed", zap.String("transfer_id", record.ID), zap.Error(err))
	}
}

// ParseTransferAmount exige un importe positivo con a lo sumo dos decimales.
func ParseTransferAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, apperr.Validation("amount", "must be a number")
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, apperr.Validation("amount", "must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Decimal{}, apperr.Validation("amount", "must have at most two decimal places")
	}
	return amount, nil
}

func transferName(note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return "Transfer"
	}
	if r := []rune(note); len(r) > 255 {
		note = string(r[:255])
	}
	return note
}
