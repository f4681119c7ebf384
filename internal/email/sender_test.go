package email

import (
	"bytes"
	"context"
	"io"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRenderTransferNotice_Receiver(t *testing.T) {
	subject, body := renderTransferNotice(TransferNotice{
		ToName:      "Grace",
		FromName:    "Ada",
		Amount:      decimal.RequireFromString("10.5"),
		Role:        "receiver",
		TransferRef: "https://x/transfers/t1",
		CreatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if subject != "You received $10.50" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Ada sent you $10.50") || !strings.Contains(body, "https://x/transfers/t1") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestComposeNotice_Headers(t *testing.T) {
	from := mail.Address{Name: "Fundlink", Address: "no-reply@fundlink.test"}
	to := mail.Address{Name: "Grace", Address: "a@b.c"}
	raw := composeNotice(from, to, "Hi", "line one\nline two\n", "https://x/transfers/t1")

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	gotFrom, err := mail.ParseAddress(msg.Header.Get("From"))
	if err != nil || gotFrom.Name != "Fundlink" || gotFrom.Address != "no-reply@fundlink.test" {
		t.Fatalf("unexpected from header %q (%v)", msg.Header.Get("From"), err)
	}
	if got := msg.Header.Get("X-Transfer-Ref"); got != "https://x/transfers/t1" {
		t.Fatalf("unexpected transfer ref %q", got)
	}
	body, _ := io.ReadAll(msg.Body)
	if string(body) != "line one\r\nline two\r\n" {
		t.Fatalf("expected CRLF body, got %q", body)
	}
}

func TestNewSMTPSender_Defaults(t *testing.T) {
	if _, err := NewSMTPSender(SMTPConfig{From: "no-reply@fundlink.test"}); err == nil {
		t.Fatalf("expected missing host to fail")
	}
	if _, err := NewSMTPSender(SMTPConfig{Host: "smtp.test", From: "not an address"}); err == nil {
		t.Fatalf("expected invalid from to fail")
	}

	s, err := NewSMTPSender(SMTPConfig{Host: " smtp.test ", From: "no-reply@fundlink.test", ImplicitTLS: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.cfg.Host != "smtp.test" || s.cfg.Port != 465 || s.cfg.Timeout != 10*time.Second {
		t.Fatalf("unexpected defaults %+v", s.cfg)
	}
	if err := s.SendTransferNotice(context.Background(), TransferNotice{}); err == nil {
		t.Fatalf("expected missing recipient to fail before dialing")
	}
}

func TestDisabledSender_ReturnsReason(t *testing.T) {
	s := NewDisabledSender("smtp not configured")
	err := s.SendTransferNotice(context.Background(), TransferNotice{})
	if err == nil || err.Error() != "smtp not configured" {
		t.Fatalf("unexpected error %v", err)
	}
}
