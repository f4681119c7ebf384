package domain

import "github.com/shopspring/decimal"

type Account struct {
	ID               string          `json:"id"`
	BankLinkID       string          `json:"bank_link_id"`
	Name             string          `json:"name"`
	OfficialName     string          `json:"official_name,omitempty"`
	Mask             string          `json:"mask"`
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	InstitutionID    string          `json:"institution_id"`
	InstitutionName  string          `json:"institution_name"`
	FundingSourceRef string          `json:"funding_source_ref"`
	ShareableID      string          `json:"shareable_id"`
}

type AccountsSummary struct {
	Accounts            []Account       `json:"accounts"`
	TotalBanks          int             `json:"total_banks"`
	TotalCurrentBalance decimal.Decimal `json:"total_current_balance"`
}

type AccountDetail struct {
	Account      Account                 `json:"account"`
	Transactions []NormalizedTransaction `json:"transactions"`
	SyncStatus   SyncStatus              `json:"sync_status"`
}

type Institution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
