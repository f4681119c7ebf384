package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransferNotice describe una transferencia entre pares para notificar por correo.
type TransferNotice struct {
	ToEmail     string
	ToName      string
	FromName    string
	Amount      decimal.Decimal
	Role        string // "sender" o "receiver"
	TransferRef string
	CreatedAt   time.Time
}

// Sender define la interfaz para el envío de avisos de transferencia.
type Sender interface {
	SendTransferNotice(ctx context.Context, notice TransferNotice) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendTransferNotice(_ context.Context, _ TransferNotice) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

func renderTransferNotice(n TransferNotice) (subject, body string) {
	amount := "$" + n.Amount.StringFixed(2)
	greeting := "Hello"
	if strings.TrimSpace(n.ToName) != "" {
		greeting = "Hello " + n.ToName
	}

	if n.Role == "receiver" {
		subject = fmt.Sprintf("You received %s", amount)
		body = fmt.Sprintf("%s,\n\n%s sent you %s.\n", greeting, n.FromName, amount)
	} else {
		subject = fmt.Sprintf("Transfer of %s sent", amount)
		body = fmt.Sprintf("%s,\n\nYour transfer of %s is on its way.\n", greeting, amount)
	}
	body += fmt.Sprintf("Reference: %s\nDate: %s UTC\n", n.TransferRef, n.CreatedAt.UTC().Format(time.RFC3339))
	return subject, body
}
