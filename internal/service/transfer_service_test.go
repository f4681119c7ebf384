package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/email"
	"fundlink/internal/events"
)

type mockMailer struct {
	notices []email.TransferNotice
	err     error
}

func (m *mockMailer) SendTransferNotice(_ context.Context, n email.TransferNotice) error {
	m.notices = append(m.notices, n)
	return m.err
}

type transferFixture struct {
	rail      *mockRail
	links     *mockBankLinkRepo
	transfers *mockTransferRepo
	profiles  *mockProfileRepo
	pub       *mockPublisher
	mailer    *mockMailer
	svc       *TransferService
}

func newTransferFixture() transferFixture {
	f := transferFixture{
		rail: &mockRail{},
		links: &mockBankLinkRepo{links: []domain.BankLink{
			{ID: "bl-a", IdentityID: "id-a", FundingSourceRef: "https://rail/funding-sources/a", ShareableID: EncodeShareableID("acct-a")},
			{ID: "bl-b", IdentityID: "id-b", FundingSourceRef: "https://rail/funding-sources/b", ShareableID: EncodeShareableID("acct-b")},
		}},
		transfers: &mockTransferRepo{},
		profiles: &mockProfileRepo{identities: map[string]domain.Identity{
			"id-a": {ID: "id-a", Email: "ada@example.com", Profile: domain.ProfileAttributes{FirstName: "Ada", LastName: "Lovelace"}},
			"id-b": {ID: "id-b", Email: "grace@example.com", Profile: domain.ProfileAttributes{FirstName: "Grace"}},
		}},
		pub:    &mockPublisher{},
		mailer: &mockMailer{},
	}
	f.svc = NewTransferService(zap.NewNop(), f.rail, f.links, f.transfers, f.profiles, f.pub, f.mailer, 0)
	return f
}

func TestSendTransfer_HappyPath(t *testing.T) {
	f := newTransferFixture()

	record, err := f.svc.Send(context.Background(), SendTransferInput{
		SenderIdentityID:    "id-a",
		SenderBankLinkID:    "bl-a",
		ReceiverShareableID: EncodeShareableID("acct-b"),
		Amount:              "25.5",
		Note:                "Dinner",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ReceiverBankLinkID != "bl-b" || record.ReceiverIdentityID != "id-b" {
		t.Fatalf("unexpected receiver %+v", record)
	}
	if record.Channel != "online" || record.Category != "Transfer" || record.Name != "Dinner" {
		t.Fatalf("unexpected record metadata %+v", record)
	}
	if !f.rail.lastAmount.Equal(decimal.RequireFromString("25.50")) {
		t.Fatalf("unexpected amount %s", f.rail.lastAmount)
	}
	if len(f.rail.transfers) != 1 || f.rail.transfers[0] != "https://rail/funding-sources/a->https://rail/funding-sources/b" {
		t.Fatalf("unexpected rail call %v", f.rail.transfers)
	}
	if len(f.transfers.records) != 1 {
		t.Fatalf("expected record persisted")
	}
	if len(f.pub.events) != 1 || f.pub.events[0].stream != events.TransferEventsStream {
		t.Fatalf("expected transfer.created event")
	}
	if len(f.mailer.notices) != 1 || f.mailer.notices[0].ToEmail != "grace@example.com" || f.mailer.notices[0].FromName != "Ada Lovelace" {
		t.Fatalf("unexpected notices %+v", f.mailer.notices)
	}
}

func TestSendTransfer_DuplicateShareableIDUsesMostRecentLink(t *testing.T) {
	f := newTransferFixture()
	f.links.links = append(f.links.links, domain.BankLink{
		ID: "bl-b2", IdentityID: "id-b", FundingSourceRef: "https://rail/funding-sources/b2", ShareableID: EncodeShareableID("acct-b"),
	})

	record, err := f.svc.Send(context.Background(), SendTransferInput{
		SenderIdentityID:    "id-a",
		SenderBankLinkID:    "bl-a",
		ReceiverShareableID: EncodeShareableID("acct-b"),
		Amount:              "1.00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.ReceiverBankLinkID != "bl-b2" {
		t.Fatalf("expected most recent link, got %s", record.ReceiverBankLinkID)
	}
	if len(f.rail.transfers) != 1 || f.rail.transfers[0] != "https://rail/funding-sources/a->https://rail/funding-sources/b2" {
		t.Fatalf("unexpected rail transfers %+v", f.rail.transfers)
	}
}

func TestSendTransfer_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    SendTransferInput
		field string
	}{
		{"zero amount", SendTransferInput{SenderIdentityID: "id-a", SenderBankLinkID: "bl-a", ReceiverShareableID: EncodeShareableID("acct-b"), Amount: "0"}, "amount"},
		{"three decimals", SendTransferInput{SenderIdentityID: "id-a", SenderBankLinkID: "bl-a", ReceiverShareableID: EncodeShareableID("acct-b"), Amount: "1.005"}, "amount"},
		{"not a number", SendTransferInput{SenderIdentityID: "id-a", SenderBankLinkID: "bl-a", ReceiverShareableID: EncodeShareableID("acct-b"), Amount: "ten"}, "amount"},
		{"bad shareable id", SendTransferInput{SenderIdentityID: "id-a", SenderBankLinkID: "bl-a", ReceiverShareableID: "!!", Amount: "1"}, "shareable_id"},
		{"unknown receiver", SendTransferInput{SenderIdentityID: "id-a", SenderBankLinkID: "bl-a", ReceiverShareableID: EncodeShareableID("acct-z"), Amount: "1"}, "shareable_id"},
		{"same account", SendTransferInput{SenderIdentityID: "id-a", SenderBankLinkID: "bl-a", ReceiverShareableID: EncodeShareableID("acct-a"), Amount: "1"}, "shareable_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture()
			_, err := f.svc.Send(context.Background(), tt.in)
			var classified *apperr.Error
			if !errors.As(err, &classified) || classified.Kind != apperr.KindValidation || classified.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
			if len(f.rail.transfers) != 0 || len(f.transfers.records) != 0 {
				t.Fatalf("expected no side effects")
			}
		})
	}
}

func TestSendTransfer_ForeignSenderLink(t *testing.T) {
	f := newTransferFixture()
	_, err := f.svc.Send(context.Background(), SendTransferInput{
		SenderIdentityID:    "id-b",
		SenderBankLinkID:    "bl-a",
		ReceiverShareableID: EncodeShareableID("acct-b"),
		Amount:              "1",
	})
	if !errors.Is(err, ErrBankLinkNotFound) {
		t.Fatalf("expected ErrBankLinkNotFound, got %v", err)
	}
}

func TestSendTransfer_RailFailureIsNotPersisted(t *testing.T) {
	f := newTransferFixture()
	f.rail.transferErr = &apperr.ProviderError{Provider: "dwolla", Bundle: apperr.Bundle{Message: "Insufficient funds. Validation error.", HTTPStatus: 400}}

	_, err := f.svc.Send(context.Background(), SendTransferInput{
		SenderIdentityID:    "id-a",
		SenderBankLinkID:    "bl-a",
		ReceiverShareableID: EncodeShareableID("acct-b"),
		Amount:              "1",
	})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.transfers.records) != 0 || len(f.pub.events) != 0 || len(f.mailer.notices) != 0 {
		t.Fatalf("expected no record, event or notice")
	}
}

func TestSendTransfer_NotificationFailureIsIgnored(t *testing.T) {
	f := newTransferFixture()
	f.mailer.err = errors.New("smtp down")
	f.pub.err = errors.New("redis down")

	if _, err := f.svc.Send(context.Background(), SendTransferInput{
		SenderIdentityID:    "id-a",
		SenderBankLinkID:    "bl-a",
		ReceiverShareableID: EncodeShareableID("acct-b"),
		Amount:              "3.10",
	}); err != nil {
		t.Fatalf("expected best-effort side effects, got %v", err)
	}
}

func TestParseTransferAmount(t *testing.T) {
	if _, err := ParseTransferAmount("-1"); err == nil {
		t.Fatalf("expected negative amount to fail")
	}
	got, err := ParseTransferAmount(" 10.10 ")
	if err != nil || got.StringFixed(2) != "10.10" {
		t.Fatalf("unexpected result %s, %v", got, err)
	}
}
