package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

type TransactionSource string

const (
	SourceProvider TransactionSource = "provider"
	SourceTransfer TransactionSource = "transfer"
)

type NormalizedTransaction struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Amount           decimal.Decimal   `json:"amount"`
	Date             time.Time         `json:"date"`
	Channel          string            `json:"channel"`
	Category         string            `json:"category"`
	Pending          bool              `json:"pending"`
	OriginBankLinkID string            `json:"origin_bank_link_id"`
	Direction        Direction         `json:"direction"`
	Source           TransactionSource `json:"source"`
}

// SyncStatus distingue "sin transacciones" de una sincronización fallida.
type SyncStatus string

const (
	SyncOK              SyncStatus = "ok"
	SyncNeedsRelink     SyncStatus = "needs_relink"
	SyncConsentRequired SyncStatus = "consent_required"
	SyncFailed          SyncStatus = "failed"
)
