package domain

import "time"

type BankLink struct {
	ID                string    `json:"id"`
	IdentityID        string    `json:"identity_id"`
	ItemID            string    `json:"item_id"`
	AccessCredential  string    `json:"-"`
	FundingSourceRef  string    `json:"funding_source_ref"`
	ExternalAccountID string    `json:"-"`
	ShareableID       string    `json:"shareable_id"`
	CreatedAt         time.Time `json:"created_at"`
}
