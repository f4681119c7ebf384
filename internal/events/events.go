package events

import "time"

// Tipos de evento
const (
	IdentityCreated = "identity.created"
	BankLinked      = "bank.linked"
	TransferCreated = "transfer.created"
)

// Streams
const (
	IdentityEventsStream = "identity.events"
	BankEventsStream     = "bank.events"
	TransferEventsStream = "transfer.events"
)

type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type IdentityCreatedEvent struct {
	IdentityID string `json:"identityId"`
	Email      string `json:"email"`
	Recovered  bool   `json:"recovered"`
}

type BankLinkedEvent struct {
	IdentityID    string `json:"identityId"`
	BankLinkID    string `json:"bankLinkId"`
	InstitutionID string `json:"institutionId,omitempty"`
	Relinked      bool   `json:"relinked,omitempty"`
}

type TransferCreatedEvent struct {
	TransferID         string `json:"transferId"`
	SenderBankLinkID   string `json:"senderBankLinkId"`
	ReceiverBankLinkID string `json:"receiverBankLinkId"`
	Amount             string `json:"amount"`
}
