package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/domain"
	"fundlink/internal/dwolla"
)

// PaymentRail es el contrato del proveedor de pagos.
type PaymentRail interface {
	CreateCustomer(ctx context.Context, customer dwolla.Customer) (string, error)
	CreateFundingSource(ctx context.Context, fs dwolla.FundingSource) (string, error)
	CreateTransfer(ctx context.Context, sourceRef, destinationRef string, amount decimal.Decimal) (string, error)
}

// CustomerRegistrar crea el cliente del proveedor de pagos para una identidad.
// No tiene efectos locales: quien llama decide qué persistir.
type CustomerRegistrar struct {
	logger  *zap.Logger
	rail    PaymentRail
	timeout time.Duration
}

func NewCustomerRegistrar(logger *zap.Logger, rail PaymentRail, timeout time.Duration) *CustomerRegistrar {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerRegistrar{logger: logger, rail: rail, timeout: timeout}
}

func (r *CustomerRegistrar) Register(ctx context.Context, identityID, email string, profile domain.ProfileAttributes) (domain.PaymentCustomer, error) {
	if err := validateProfile(profile); err != nil {
		return domain.PaymentCustomer{}, err
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	ref, err := r.rail.CreateCustomer(ctx, dwolla.Customer{
		FirstName:   strings.TrimSpace(profile.FirstName),
		LastName:    strings.TrimSpace(profile.LastName),
		Email:       normalizeEmail(email),
		Type:        string(domain.CustomerPersonal),
		Address1:    strings.TrimSpace(profile.Address1),
		City:        strings.TrimSpace(profile.City),
		State:       strings.ToUpper(strings.TrimSpace(profile.State)),
		PostalCode:  strings.TrimSpace(profile.PostalCode),
		DateOfBirth: strings.TrimSpace(profile.DateOfBirth),
		SSN:         strings.TrimSpace(profile.TaxID),
	})
	if err != nil {
		classified := apperr.ClassifyError(err)
		r.logger.Warn("payment customer registration failed",
			zap.String("identity_id", identityID),
			zap.String("kind", classified.Kind.String()),
			zap.Error(err),
		)
		return domain.PaymentCustomer{}, classified
	}

	return domain.PaymentCustomer{
		IdentityID:  identityID,
		CustomerRef: ref,
		Kind:        domain.CustomerPersonal,
	}, nil
}

// validateProfile rechaza perfiles incompletos antes de llamar al proveedor.
func validateProfile(p domain.ProfileAttributes) error {
	required := []struct {
		field string
		value string
	}{
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"address1", p.Address1},
		{"city", p.City},
		{"state", p.State},
		{"postalCode", p.PostalCode},
		{"dateOfBirth", p.DateOfBirth},
		{"ssn", p.TaxID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperr.Validation(r.field, "is required")
		}
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
