package service

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/dwolla"
	"fundlink/internal/plaidclient"
)

// mockIdentityStore simula el almacén de identidades en memoria.
type mockIdentityStore struct {
	principals map[string]domain.Principal // por email
	passwords  map[string]string           // por email
	profiles   map[string]domain.Identity  // por identity id

	createErr      error
	createProfErr  error
	deleteErr      error
	sessionErr     error
	revokeErr      error
	deleted        []string
	sessions       int
	revoked        []string
	profileCreates int
	nextID         int
}

func newMockIdentityStore() *mockIdentityStore {
	return &mockIdentityStore{
		principals: make(map[string]domain.Principal),
		passwords:  make(map[string]string),
		profiles:   make(map[string]domain.Identity),
	}
}

func (m *mockIdentityStore) seedPrincipal(email, password string) domain.Principal {
	m.nextID++
	p := domain.Principal{ID: "id-seed-" + email, Email: email}
	m.principals[email] = p
	m.passwords[email] = password
	return p
}

func (m *mockIdentityStore) CreatePrincipal(_ context.Context, email, password, displayName string) (domain.Principal, error) {
	if m.createErr != nil {
		return domain.Principal{}, m.createErr
	}
	email = normalizeEmail(email)
	if _, ok := m.principals[email]; ok {
		return domain.Principal{}, apperr.ErrAccountExists
	}
	m.nextID++
	p := domain.Principal{ID: "id-" + email, Email: email, DisplayName: displayName}
	m.principals[email] = p
	m.passwords[email] = password
	return p, nil
}

func (m *mockIdentityStore) Authenticate(_ context.Context, email, password string) (domain.Principal, error) {
	email = normalizeEmail(email)
	p, ok := m.principals[email]
	if !ok {
		return domain.Principal{}, apperr.New(apperr.KindUserNotFound, pgx.ErrNoRows)
	}
	if m.passwords[email] != password {
		return domain.Principal{}, apperr.ErrInvalidCredentials
	}
	return p, nil
}

func (m *mockIdentityStore) DeletePrincipal(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for email, p := range m.principals {
		if p.ID == id {
			delete(m.principals, email)
			delete(m.passwords, email)
		}
	}
	delete(m.profiles, id)
	return nil
}

func (m *mockIdentityStore) GetProfile(_ context.Context, identityID string) (domain.Identity, error) {
	identity, ok := m.profiles[identityID]
	if !ok {
		return domain.Identity{}, apperr.New(apperr.KindProfileDataMissing, pgx.ErrNoRows)
	}
	return identity, nil
}

func (m *mockIdentityStore) CreateProfile(_ context.Context, identity domain.Identity) error {
	if m.createProfErr != nil {
		return m.createProfErr
	}
	if _, ok := m.profiles[identity.ID]; ok {
		return errors.New("duplicate key value violates unique constraint \"profiles_pkey\"")
	}
	m.profileCreates++
	m.profiles[identity.ID] = identity
	return nil
}

func (m *mockIdentityStore) EstablishSession(_ context.Context, principal domain.Principal) (TokenPair, error) {
	if m.sessionErr != nil {
		return TokenPair{}, m.sessionErr
	}
	m.sessions++
	return TokenPair{AccessToken: "access-" + principal.ID, RefreshToken: "refresh-" + principal.ID}, nil
}

func (m *mockIdentityStore) RevokeSession(_ context.Context, refreshToken string) error {
	m.revoked = append(m.revoked, refreshToken)
	return m.revokeErr
}

func (m *mockIdentityStore) principalCount() int {
	return len(m.principals)
}

// mockRail simula el proveedor de pagos.
type mockRail struct {
	customerErr   error
	fundingErr    error
	transferErr   error
	customers     []dwolla.Customer
	fundings      []dwolla.FundingSource
	transfers     []string
	lastAmount    decimal.Decimal
	customerCalls int
}

func (m *mockRail) CreateCustomer(_ context.Context, customer dwolla.Customer) (string, error) {
	m.customerCalls++
	if m.customerErr != nil {
		return "", m.customerErr
	}
	m.customers = append(m.customers, customer)
	return "https://rail/customers/" + customer.Email, nil
}

func (m *mockRail) CreateFundingSource(_ context.Context, fs dwolla.FundingSource) (string, error) {
	if m.fundingErr != nil {
		return "", m.fundingErr
	}
	m.fundings = append(m.fundings, fs)
	return "https://rail/funding-sources/" + fs.ProcessorToken, nil
}

func (m *mockRail) CreateTransfer(_ context.Context, sourceRef, destinationRef string, amount decimal.Decimal) (string, error) {
	if m.transferErr != nil {
		return "", m.transferErr
	}
	m.transfers = append(m.transfers, sourceRef+"->"+destinationRef)
	m.lastAmount = amount
	return "https://rail/transfers/1", nil
}

// mockProvider simula el agregador bancario.
type mockProvider struct {
	mu sync.Mutex

	exchangeErr  error
	processorErr error
	accounts     map[string]plaidclient.AccountsResult
	accountsErr  map[string]error
	institutions map[string]domain.Institution
	instCalls    int

	pages     []plaidclient.SyncPage
	syncErrAt int // 1-based; 0 deshabilitado
	syncErr   error
	cursors   []string
}

func (m *mockProvider) CreateLinkToken(_ context.Context, clientUserID, _ string) (string, error) {
	return "link-" + clientUserID, nil
}

func (m *mockProvider) ExchangePublicToken(_ context.Context, publicToken string) (string, string, error) {
	if m.exchangeErr != nil {
		return "", "", m.exchangeErr
	}
	return "access-" + publicToken, "item-" + publicToken, nil
}

func (m *mockProvider) GetAccounts(_ context.Context, accessToken string) (plaidclient.AccountsResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.accountsErr[accessToken]; err != nil {
		return plaidclient.AccountsResult{}, err
	}
	res, ok := m.accounts[accessToken]
	if !ok {
		return plaidclient.AccountsResult{}, errors.New("unknown access token")
	}
	return res, nil
}

func (m *mockProvider) GetInstitution(_ context.Context, institutionID string) (domain.Institution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instCalls++
	inst, ok := m.institutions[institutionID]
	if !ok {
		return domain.Institution{}, errors.New("institution not found")
	}
	return inst, nil
}

func (m *mockProvider) CreateProcessorToken(_ context.Context, _, accountID, _ string) (string, error) {
	if m.processorErr != nil {
		return "", m.processorErr
	}
	return "processor-" + accountID, nil
}

func (m *mockProvider) SyncTransactions(_ context.Context, _ string, cursor string) (plaidclient.SyncPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors = append(m.cursors, cursor)
	call := len(m.cursors)
	if m.syncErrAt == call {
		return plaidclient.SyncPage{}, m.syncErr
	}
	if call > len(m.pages) {
		return plaidclient.SyncPage{}, errors.New("unexpected extra sync call")
	}
	return m.pages[call-1], nil
}

// mockBankLinkRepo guarda vínculos en orden de inserción.
type mockBankLinkRepo struct {
	links     []domain.BankLink
	createErr error
}

func (m *mockBankLinkRepo) Create(_ context.Context, link domain.BankLink) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.links = append(m.links, link)
	return nil
}

func (m *mockBankLinkRepo) GetByID(_ context.Context, id string) (domain.BankLink, error) {
	for _, l := range m.links {
		if l.ID == id {
			return l, nil
		}
	}
	return domain.BankLink{}, pgx.ErrNoRows
}

// GetByShareableID devuelve el más reciente, como el repositorio real.
func (m *mockBankLinkRepo) GetByShareableID(_ context.Context, shareableID string) (domain.BankLink, error) {
	for i := len(m.links) - 1; i >= 0; i-- {
		if m.links[i].ShareableID == shareableID {
			return m.links[i], nil
		}
	}
	return domain.BankLink{}, pgx.ErrNoRows
}

func (m *mockBankLinkRepo) GetByExternalAccount(_ context.Context, identityID, externalAccountID string) (domain.BankLink, error) {
	for _, l := range m.links {
		if l.IdentityID == identityID && l.ExternalAccountID == externalAccountID {
			return l, nil
		}
	}
	return domain.BankLink{}, pgx.ErrNoRows
}

func (m *mockBankLinkRepo) UpdateCredential(_ context.Context, id, itemID, accessCredential string) error {
	for i := range m.links {
		if m.links[i].ID == id {
			m.links[i].ItemID = itemID
			m.links[i].AccessCredential = accessCredential
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockBankLinkRepo) ListByIdentity(_ context.Context, identityID string) ([]domain.BankLink, error) {
	var out []domain.BankLink
	for _, l := range m.links {
		if l.IdentityID == identityID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockTransferRepo struct {
	records   []domain.TransferRecord
	createErr error
}

func (m *mockTransferRepo) Create(_ context.Context, t domain.TransferRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, t)
	return nil
}

func (m *mockTransferRepo) ListByBankLink(_ context.Context, bankLinkID string) ([]domain.TransferRecord, error) {
	var out []domain.TransferRecord
	for _, r := range m.records {
		if r.SenderBankLinkID == bankLinkID || r.ReceiverBankLinkID == bankLinkID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockProfileRepo struct {
	identities map[string]domain.Identity
}

func (m *mockProfileRepo) Create(_ context.Context, identity domain.Identity) error {
	m.identities[identity.ID] = identity
	return nil
}

func (m *mockProfileRepo) GetByIdentityID(_ context.Context, identityID string) (domain.Identity, error) {
	identity, ok := m.identities[identityID]
	if !ok {
		return domain.Identity{}, pgx.ErrNoRows
	}
	return identity, nil
}

type recordedEvent struct {
	stream    string
	eventType string
	data      any
}

type mockPublisher struct {
	events []recordedEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, stream, eventType string, data any) error {
	m.events = append(m.events, recordedEvent{stream: stream, eventType: eventType, data: data})
	return m.err
}
