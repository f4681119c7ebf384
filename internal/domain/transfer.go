package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransferChannel  = "online"
	TransferCategory = "Transfer"
)

// TransferRecord es inmutable una vez creado.
type TransferRecord struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	SenderIdentityID   string          `json:"sender_identity_id"`
	ReceiverIdentityID string          `json:"receiver_identity_id"`
	SenderBankLinkID   string          `json:"sender_bank_link_id"`
	ReceiverBankLinkID string          `json:"receiver_bank_link_id"`
	Amount             decimal.Decimal `json:"amount"`
	Channel            string          `json:"channel"`
	Category           string          `json:"category"`
	TransferRef        string          `json:"transfer_ref"`
	CreatedAt          time.Time       `json:"created_at"`
}
