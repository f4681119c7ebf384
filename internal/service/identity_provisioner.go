package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/events"
)

// SignUpState es la última etapa alcanzada por un alta.
type SignUpState int

const (
	StateStart SignUpState = iota
	StateAccountCreated
	StateCustomerCreated
	StateProfilePersisted
	StateSessionEstablished
)

func (s SignUpState) String() string {
	switch s {
	case StateAccountCreated:
		return "account_created"
	case StateCustomerCreated:
		return "customer_created"
	case StateProfilePersisted:
		return "profile_persisted"
	case StateSessionEstablished:
		return "session_established"
	default:
		return "start"
	}
}

var ErrRateLimited = errors.New("too many sign-in attempts, please try again later")

// CustomerRegistration es lo que el aprovisionador necesita del registrador.
type CustomerRegistration interface {
	Register(ctx context.Context, identityID, email string, profile domain.ProfileAttributes) (domain.PaymentCustomer, error)
}

type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
	Profile     domain.ProfileAttributes
}

type SignUpResult struct {
	State     SignUpState
	Identity  domain.Identity
	Tokens    TokenPair
	Recovered bool
}

type SignInResult struct {
	Identity domain.Identity
	Tokens   TokenPair
}

// IdentityProvisioner coordina alta, inicio y cierre de sesión.
type IdentityProvisioner struct {
	logger    *zap.Logger
	store     IdentityStore
	customers CustomerRegistration
	limiter   SignInLimiter
	publisher events.Publisher
}

func NewIdentityProvisioner(logger *zap.Logger, store IdentityStore, customers CustomerRegistration, limiter SignInLimiter, publisher events.Publisher) *IdentityProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &IdentityProvisioner{
		logger:    logger,
		store:     store,
		customers: customers,
		limiter:   limiter,
		publisher: publisher,
	}
}

// SignUp recorre Start → AccountCreated → CustomerCreated → ProfilePersisted →
// SessionEstablished. Un fallo tras crear el principal lo elimina; si el email ya
// existe se intenta recuperar un alta previa que quedó sin perfil.
func (p *IdentityProvisioner) SignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	result := SignUpResult{State: StateStart}
	if err := validateSignUp(in); err != nil {
		return result, err
	}

	principal, err := p.store.CreatePrincipal(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		classified := apperr.ClassifyError(err)
		if classified.Kind == apperr.KindAccountAlreadyExists {
			return p.recoverSignUp(ctx, in)
		}
		return result, classified
	}
	result.State = StateAccountCreated

	identity, state, err := p.completeProfile(ctx, principal, in.Profile)
	if state > result.State {
		result.State = state
	}
	if err != nil {
		p.rollback(ctx, principal.ID, result.State)
		return result, err
	}
	result.Identity = identity

	tokens, err := p.store.EstablishSession(ctx, principal)
	if err != nil {
		// El principal y su perfil son consistentes; el usuario puede iniciar sesión.
		p.logger.Error("session establishment failed after sign-up",
			zap.String("identity_id", principal.ID),
			zap.Error(err),
		)
		return result, apperr.ClassifyError(err)
	}
	result.State = StateSessionEstablished
	result.Tokens = tokens

	p.publishCreated(ctx, identity, false)
	return result, nil
}

// recoverSignUp autentica con las credenciales del alta. Si el principal no tiene
// perfil lo completa; en cualquier otro caso la cuenta ya existe.
func (p *IdentityProvisioner) recoverSignUp(ctx context.Context, in SignUpInput) (SignUpResult, error) {
	result := SignUpResult{State: StateStart}

	principal, err := p.store.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return result, apperr.New(apperr.KindAccountAlreadyExists, err)
	}
	result.State = StateAccountCreated

	_, err = p.store.GetProfile(ctx, principal.ID)
	if err == nil {
		return result, apperr.New(apperr.KindAccountAlreadyExists, nil)
	}
	if apperr.KindOf(err) != apperr.KindProfileDataMissing {
		return result, apperr.ClassifyError(err)
	}

	p.logger.Info("healing sign-up without profile", zap.String("identity_id", principal.ID))

	identity, state, err := p.completeProfile(ctx, principal, in.Profile)
	if state > result.State {
		result.State = state
	}
	if err != nil {
		// El principal es previo a esta petición: no se borra.
		return result, err
	}
	result.Identity = identity

	tokens, err := p.store.EstablishSession(ctx, principal)
	if err != nil {
		return result, apperr.ClassifyError(err)
	}
	result.State = StateSessionEstablished
	result.Tokens = tokens
	result.Recovered = true

	p.publishCreated(ctx, identity, true)
	return result, nil
}

func (p *IdentityProvisioner) completeProfile(ctx context.Context, principal domain.Principal, profile domain.ProfileAttributes) (domain.Identity, SignUpState, error) {
	customer, err := p.customers.Register(ctx, principal.ID, principal.Email, profile)
	if err != nil {
		return domain.Identity{}, StateAccountCreated, apperr.ClassifyError(err)
	}

	identity := domain.Identity{
		ID:          principal.ID,
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		Profile:     profile,
		Customer:    customer,
		CreatedAt:   time.Now().UTC(),
	}
	if err := p.store.CreateProfile(ctx, identity); err != nil {
		return domain.Identity{}, StateCustomerCreated, apperr.ClassifyError(err)
	}
	return identity, StateProfilePersisted, nil
}

func (p *IdentityProvisioner) rollback(ctx context.Context, principalID string, state SignUpState) {
	// La petición pudo cancelarse; la compensación debe ejecutarse igual.
	ctx = context.WithoutCancel(ctx)
	if err := p.store.DeletePrincipal(ctx, principalID); err != nil {
		p.logger.Error("sign-up rollback failed",
			zap.String("identity_id", principalID),
			zap.String("state", state.String()),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("sign-up rolled back",
		zap.String("identity_id", principalID),
		zap.String("state", state.String()),
	)
}

// SignIn autentica, exige perfil y solo entonces establece la sesión.
func (p *IdentityProvisioner) SignIn(ctx context.Context, email, password string) (SignInResult, error) {
	if p.limiter != nil && !p.limiter.Allow(ctx, email) {
		return SignInResult{}, ErrRateLimited
	}

	principal, err := p.store.Authenticate(ctx, email, password)
	if err != nil {
		return SignInResult{}, apperr.ClassifyError(err)
	}

	identity, err := p.store.GetProfile(ctx, principal.ID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindProfileDataMissing {
			p.logger.Warn("sign-in without profile", zap.String("identity_id", principal.ID))
		}
		return SignInResult{}, apperr.ClassifyError(err)
	}

	tokens, err := p.store.EstablishSession(ctx, principal)
	if err != nil {
		return SignInResult{}, apperr.ClassifyError(err)
	}
	return SignInResult{Identity: identity, Tokens: tokens}, nil
}

// SignOut revoca la sesión sin propagar errores.
func (p *IdentityProvisioner) SignOut(ctx context.Context, refreshToken string) {
	if strings.TrimSpace(refreshToken) == "" {
		return
	}
	if err := p.store.RevokeSession(ctx, refreshToken); err != nil {
		p.logger.Warn("sign-out revoke failed", zap.Error(err))
	}
}

func (p *IdentityProvisioner) Me(ctx context.Context, identityID string) (domain.Identity, error) {
	identity, err := p.store.GetProfile(ctx, identityID)
	if err != nil {
		return domain.Identity{}, apperr.ClassifyError(err)
	}
	return identity, nil
}

func (p *IdentityProvisioner) publishCreated(ctx context.Context, identity domain.Identity, recovered bool) {
	err := p.publisher.Publish(ctx, events.IdentityEventsStream, events.IdentityCreated, events.IdentityCreatedEvent{
		IdentityID: identity.ID,
		Email:      identity.Email,
		Recovered:  recovered,
	})
	if err != nil {
		p.logger.Warn("publish identity.created failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}
}

func validateSignUp(in SignUpInput) error {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return apperr.Validation("email", "must be a valid email address")
	}
	if strings.TrimSpace(in.Password) == "" {
		return apperr.Validation("password", "is required")
	}
	return validateProfile(in.Profile)
}
