package plaidclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/plaid/plaid-go/v20/plaid"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
)

const providerName = "plaid"

// Client adapta plaid-go al contrato del proveedor de agregación bancaria.
type Client struct {
	api          *plaid.APIClient
	clientName   string
	countryCodes []plaid.CountryCode
	redirectURI  string
}

type Options struct {
	ClientID     string
	Secret       string
	Env          string
	ClientName   string
	CountryCodes []string
	RedirectURI  string
	Timeout      time.Duration
}

type Account struct {
	ID               string
	Name             string
	OfficialName     string
	Mask             string
	Type             string
	Subtype          string
	AvailableBalance float64
	CurrentBalance   float64
}

type AccountsResult struct {
	ItemID        string
	InstitutionID string
	Accounts      []Account
}

type Transaction struct {
	ID        string
	AccountID string
	Name      string
	Amount    float64
	Date      string
	Channel   string
	Category  string
	Pending   bool
}

// SyncPage es una página de /transactions/sync. AddedMissing indica que la
// respuesta no traía la lista "added".
type SyncPage struct {
	Added        []Transaction
	AddedMissing bool
	NextCursor   string
	HasMore      bool
}

func New(opts Options) *Client {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", opts.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", opts.Secret)
	configuration.UseEnvironment(environment(opts.Env))
	if opts.Timeout > 0 {
		configuration.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	clientName := strings.TrimSpace(opts.ClientName)
	if clientName == "" {
		clientName = "Fundlink"
	}

	return &Client{
		api:          plaid.NewAPIClient(configuration),
		clientName:   clientName,
		countryCodes: countryCodes(opts.CountryCodes),
		redirectURI:  strings.TrimSpace(opts.RedirectURI),
	}
}

func (c *Client) CreateLinkToken(ctx context.Context, clientUserID, displayName string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: clientUserID,
	}
	if displayName != "" {
		user.SetLegalName(displayName)
	}

	request := plaid.NewLinkTokenCreateRequest(c.clientName, "en", c.countryCodes, user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_AUTH, plaid.PRODUCTS_TRANSACTIONS})
	if c.redirectURI != "" {
		request.SetRedirectUri(c.redirectURI)
	}

	resp, httpResp, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", wrapError(err, httpResp)
	}
	return resp.GetLinkToken(), nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)

	resp, httpResp, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", wrapError(err, httpResp)
	}
	return resp.GetAccessToken(), resp.GetItemId(), nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) (AccountsResult, error) {
	request := plaid.NewAccountsGetRequest(accessToken)

	resp, httpResp, err := c.api.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return AccountsResult{}, wrapError(err, httpResp)
	}

	item := resp.GetItem()
	result := AccountsResult{
		ItemID:        item.GetItemId(),
		InstitutionID: item.GetInstitutionId(),
	}
	for _, acc := range resp.GetAccounts() {
		balances := acc.GetBalances()
		result.Accounts = append(result.Accounts, Account{
			ID:               acc.GetAccountId(),
			Name:             acc.GetName(),
			OfficialName:     acc.GetOfficialName(),
			Mask:             acc.GetMask(),
			Type:             string(acc.GetType()),
			Subtype:          string(acc.GetSubtype()),
			AvailableBalance: balances.GetAvailable(),
			CurrentBalance:   balances.GetCurrent(),
		})
	}
	return result, nil
}

func (c *Client) GetInstitution(ctx context.Context, institutionID string) (domain.Institution, error) {
	request := plaid.NewInstitutionsGetByIdRequest(institutionID, c.countryCodes)

	resp, httpResp, err := c.api.PlaidApi.InstitutionsGetById(ctx).InstitutionsGetByIdRequest(*request).Execute()
	if err != nil {
		return domain.Institution{}, wrapError(err, httpResp)
	}
	inst := resp.GetInstitution()
	return domain.Institution{ID: inst.GetInstitutionId(), Name: inst.GetName()}, nil
}

func (c *Client) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (string, error) {
	request := plaid.NewProcessorTokenCreateRequest(accessToken, accountID, processor)

	resp, httpResp, err := c.api.PlaidApi.ProcessorTokenCreate(ctx).ProcessorTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", wrapError(err, httpResp)
	}
	return resp.GetProcessorToken(), nil
}

func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}

	resp, httpResp, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return SyncPage{}, wrapError(err, httpResp)
	}

	page := SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	added := resp.GetAdded()
	if added == nil {
		page.AddedMissing = true
		return page, nil
	}
	page.Added = make([]Transaction, 0, len(added))
	for _, tx := range added {
		page.Added = append(page.Added, toTransaction(tx))
	}
	return page, nil
}

func toTransaction(tx plaid.Transaction) Transaction {
	category := ""
	if cats := tx.GetCategory(); len(cats) > 0 {
		category = cats[0]
	}
	return Transaction{
		ID:        tx.GetTransactionId(),
		AccountID: tx.GetAccountId(),
		Name:      tx.GetName(),
		Amount:    tx.GetAmount(),
		Date:      tx.GetDate(),
		Channel:   tx.GetPaymentChannel(),
		Category:  category,
		Pending:   tx.GetPending(),
	}
}

func environment(env string) plaid.Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production":
		return plaid.Production
	case "development":
		return plaid.Development
	default:
		return plaid.Sandbox
	}
}

func countryCodes(codes []string) []plaid.CountryCode {
	out := make([]plaid.CountryCode, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		out = append(out, plaid.CountryCode(code))
	}
	if len(out) == 0 {
		out = append(out, plaid.COUNTRYCODE_US)
	}
	return out
}

// wrapError convierte el error de plaid-go en un ProviderError con el cuerpo decodificado.
func wrapError(err error, httpResp *http.Response) error {
	bundle := apperr.Bundle{Message: err.Error()}
	if httpResp != nil {
		bundle.HTTPStatus = httpResp.StatusCode
	}
	var apiErr plaid.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		bundle = bundleFromBody(apiErr.Body(), bundle)
	}
	return &apperr.ProviderError{Provider: providerName, Bundle: bundle, Err: err}
}

// bundleFromBody completa el Bundle con error_code/error_message del cuerpo de Plaid.
func bundleFromBody(raw []byte, bundle apperr.Bundle) apperr.Bundle {
	if len(raw) == 0 {
		return bundle
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return bundle
	}
	bundle.Body = body
	if code, ok := body["error_code"].(string); ok {
		bundle.Code = code
	}
	if msg, ok := body["error_message"].(string); ok && msg != "" {
		bundle.Message = msg
	}
	return bundle
}
