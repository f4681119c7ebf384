package dwolla

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"fundlink/internal/apperr"
)

const (
	providerName = "dwolla"
	halJSON      = "application/vnd.dwolla.v1.hal+json"

	sandboxURL    = "https://api-sandbox.dwolla.com"
	productionURL = "https://api.dwolla.com"
)

// Mensajes propios: el texto crudo de oauth2 ("unauthorized") se confundiría
// con credenciales de usuario inválidas.
const (
	msgMisconfigured = "payment rail credentials misconfigured"
	msgUnreachable   = "payment rail unreachable"
)

// Customer es la solicitud de alta de un cliente verificado.
type Customer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	Address1    string `json:"address1"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	DateOfBirth string `json:"dateOfBirth"`
	SSN         string `json:"ssn"`
}

// FundingSource vincula una cuenta bancaria a un cliente mediante el token de procesador.
type FundingSource struct {
	CustomerRef    string
	ProcessorToken string
	Name           string
}

// Client habla con la API REST de Dwolla autenticándose con client credentials.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient construye un cliente para el entorno dado ("sandbox" o "production").
func NewClient(key, secret, env string, timeout time.Duration) *Client {
	baseURL := sandboxURL
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		baseURL = productionURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     key,
		ClientSecret: secret,
		TokenURL:     baseURL + "/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = timeout

	return NewClientWithHTTP(baseURL, httpClient)
}

// NewClientWithHTTP permite inyectar un *http.Client ya autenticado.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

// CreateCustomer devuelve la URL del recurso creado (cabecera Location).
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (string, error) {
	if customer.Type == "" {
		customer.Type = "personal"
	}
	resp, err := c.post(ctx, c.baseURL+"/customers", customer)
	if err != nil {
		return "", err
	}
	return locationOf(resp)
}

// CreateFundingSource autoriza el débito bajo demanda y registra la fuente de fondos.
func (c *Client) CreateFundingSource(ctx context.Context, fs FundingSource) (string, error) {
	links, err := c.onDemandAuthorization(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"plaidToken": fs.ProcessorToken,
		"name":       fs.Name,
		"_links":     links,
	}
	resp, err := c.post(ctx, resourceURL(c.baseURL, fs.CustomerRef)+"/funding-sources", body)
	if err != nil {
		return "", err
	}
	return locationOf(resp)
}

// CreateTransfer mueve amount (USD) entre dos fuentes de fondos.
func (c *Client) CreateTransfer(ctx context.Context, sourceRef, destinationRef string, amount decimal.Decimal) (string, error) {
	body := map[string]any{
		"_links": map[string]any{
			"source":      map[string]string{"href": resourceURL(c.baseURL, sourceRef)},
			"destination": map[string]string{"href": resourceURL(c.baseURL, destinationRef)},
		},
		"amount": map[string]string{
			"currency": "USD",
			"value":    amount.StringFixed(2),
		},
	}
	resp, err := c.post(ctx, c.baseURL+"/transfers", body)
	if err != nil {
		return "", err
	}
	return locationOf(resp)
}

func (c *Client) onDemandAuthorization(ctx context.Context) (map[string]any, error) {
	resp, err := c.post(ctx, c.baseURL+"/on-demand-authorizations", map[string]any{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Links map[string]any `json:"_links"`
	}
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("decode on-demand authorization: %w", err)
	}
	return out.Links, nil
}

type response struct {
	status   int
	location string
	body     []byte
}

func (c *Client) post(ctx context.Context, url string, payload any) (response, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return response{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", halJSON)
	req.Header.Set("Content-Type", halJSON)

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, transportError(err)
	}

	if resp.StatusCode >= 400 {
		return response{}, statusError(resp.StatusCode, respBody)
	}

	return response{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     respBody,
	}, nil
}

func locationOf(resp response) (string, error) {
	if resp.location == "" {
		return "", &apperr.ProviderError{
			Provider: providerName,
			Bundle:   apperr.Bundle{Message: "payment rail response missing location", HTTPStatus: http.StatusBadGateway},
		}
	}
	return resp.location, nil
}

// resourceURL acepta tanto una URL completa como un id suelto.
func resourceURL(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return strings.TrimRight(ref, "/")
	}
	return baseURL + "/" + strings.TrimLeft(ref, "/")
}

func transportError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &apperr.ProviderError{
			Provider: providerName,
			Bundle:   apperr.Bundle{Message: msgMisconfigured, HTTPStatus: http.StatusServiceUnavailable},
			Err:      err,
		}
	}
	return &apperr.ProviderError{
		Provider: providerName,
		Bundle:   apperr.Bundle{Message: msgUnreachable, HTTPStatus: http.StatusServiceUnavailable},
		Err:      err,
	}
}

func statusError(status int, raw []byte) error {
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &apperr.ProviderError{
			Provider: providerName,
			Bundle:   apperr.Bundle{Message: msgMisconfigured, HTTPStatus: http.StatusServiceUnavailable},
			Err:      fmt.Errorf("dwolla http error: status=%d", status),
		}
	}

	bundle := apperr.Bundle{HTTPStatus: status}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		bundle.Body = body
		if code, ok := body["code"].(string); ok {
			bundle.Code = code
		}
		if msg, ok := body["message"].(string); ok {
			bundle.Message = msg
		}
	}
	if bundle.Message == "" {
		bundle.Message = http.StatusText(status)
	}
	return &apperr.ProviderError{
		Provider: providerName,
		Bundle:   bundle,
		Err:      fmt.Errorf("dwolla http error: status=%d", status),
	}
}
