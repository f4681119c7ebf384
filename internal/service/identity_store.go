package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/repository"
)

// IdentityStore agrupa las operaciones del almacén de identidades que usa el aprovisionador.
type IdentityStore interface {
	CreatePrincipal(ctx context.Context, email, password, displayName string) (domain.Principal, error)
	Authenticate(ctx context.Context, email, password string) (domain.Principal, error)
	DeletePrincipal(ctx context.Context, id string) error
	GetProfile(ctx context.Context, identityID string) (domain.Identity, error)
	CreateProfile(ctx context.Context, identity domain.Identity) error
	EstablishSession(ctx context.Context, principal domain.Principal) (TokenPair, error)
	RevokeSession(ctx context.Context, refreshToken string) error
}

// PgIdentityStore implementa IdentityStore sobre Postgres y sesiones JWT.
type PgIdentityStore struct {
	principals repository.PrincipalRepository
	profiles   repository.ProfileRepository
	sessions   *JWTService
}

func NewPgIdentityStore(principals repository.PrincipalRepository, profiles repository.ProfileRepository, sessions *JWTService) *PgIdentityStore {
	return &PgIdentityStore{
		principals: principals,
		profiles:   profiles,
		sessions:   sessions,
	}
}

func (s *PgIdentityStore) CreatePrincipal(ctx context.Context, email, password, displayName string) (domain.Principal, error) {
	email = normalizeEmail(email)
	if email == "" {
		return domain.Principal{}, apperr.Validation("email", "email is required")
	}
	if strings.TrimSpace(password) == "" {
		return domain.Principal{}, apperr.Validation("password", "password is required")
	}

	if _, err := s.principals.GetByEmail(ctx, email); err == nil {
		return domain.Principal{}, apperr.New(apperr.KindAccountAlreadyExists, nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Principal{}, apperr.ClassifyError(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	principal := domain.Principal{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.principals.Create(ctx, principal); err != nil {
		// Una carrera contra el mismo email termina en 23505 y se clasifica como existente.
		return domain.Principal{}, apperr.ClassifyError(err)
	}
	return principal, nil
}

func (s *PgIdentityStore) Authenticate(ctx context.Context, email, password string) (domain.Principal, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.Principal{}, apperr.ErrInvalidCredentials
	}
	principal, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Principal{}, apperr.New(apperr.KindUserNotFound, err)
		}
		return domain.Principal{}, apperr.ClassifyError(err)
	}
	if principal.PasswordHash == "" {
		return domain.Principal{}, apperr.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		return domain.Principal{}, apperr.New(apperr.KindInvalidCredentials, err)
	}
	return principal, nil
}

func (s *PgIdentityStore) DeletePrincipal(ctx context.Context, id string) error {
	return s.principals.Delete(ctx, id)
}

func (s *PgIdentityStore) GetProfile(ctx context.Context, identityID string) (domain.Identity, error) {
	identity, err := s.profiles.GetByIdentityID(ctx, identityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, apperr.New(apperr.KindProfileDataMissing, err)
		}
		return domain.Identity{}, apperr.ClassifyError(err)
	}
	return identity, nil
}

func (s *PgIdentityStore) CreateProfile(ctx context.Context, identity domain.Identity) error {
	if err := s.profiles.Create(ctx, identity); err != nil {
		return apperr.ClassifyError(err)
	}
	return nil
}

func (s *PgIdentityStore) EstablishSession(ctx context.Context, principal domain.Principal) (TokenPair, error) {
	return s.sessions.Establish(ctx, principal)
}

func (s *PgIdentityStore) RevokeSession(ctx context.Context, refreshToken string) error {
	return s.sessions.Revoke(ctx, refreshToken)
}
