// Package apperr define la taxonomía interna de errores y el clasificador
// que traduce errores de proveedores externos a esa taxonomía.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind es el conjunto cerrado de categorías de error internas.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindAccountAlreadyExists
	KindProfileDataMissing
	KindUserNotFound
	KindValidation
	KindUpstreamUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountAlreadyExists:
		return "account_already_exists"
	case KindProfileDataMissing:
		return "profile_data_missing"
	case KindUserNotFound:
		return "user_not_found"
	case KindValidation:
		return "validation_error"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "unknown"
	}
}

// FieldError es un error de validación sobre un campo concreto.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error es un error clasificado. Field y Detail solo aplican a KindValidation;
// Detail guarda el mensaje original para KindUnknown.
type Error struct {
	Kind   Kind
	Field  string
	Detail string
	Fields []FieldError
	Err    error
}

var (
	ErrInvalidCredentials  = &Error{Kind: KindInvalidCredentials}
	ErrAccountExists       = &Error{Kind: KindAccountAlreadyExists}
	ErrProfileDataMissing  = &Error{Kind: KindProfileDataMissing}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrUpstreamUnavailable = &Error{Kind: KindUpstreamUnavailable}
	ErrUnknown             = &Error{Kind: KindUnknown}
)

// Error devuelve un mensaje apto para mostrar al usuario final.
func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidCredentials:
		return "invalid email or password"
	case KindAccountAlreadyExists:
		return "an account with this email already exists, please sign in"
	case KindProfileDataMissing:
		return "account profile data is missing, please complete sign up again"
	case KindUserNotFound:
		return "no account found, please sign up first"
	case KindValidation:
		switch {
		case e.Field != "" && len(e.Fields) <= 1:
			return fmt.Sprintf("validation error: %s: %s", e.Field, e.Detail)
		case e.Detail != "":
			return "validation error: " + e.Detail
		default:
			return "validation error"
		}
	case KindUpstreamUnavailable:
		return "service temporarily unavailable, please try again later"
	default:
		if e.Detail != "" {
			return "unexpected error: " + e.Detail
		}
		return "unexpected error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compara por Kind para que errors.Is funcione contra los sentinelas.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf devuelve el Kind de err, o KindUnknown si no está clasificado.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// New crea un error clasificado envolviendo la causa.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// Validation crea un error de validación para un único campo.
func Validation(field, detail string) *Error {
	field = strings.TrimSpace(field)
	return &Error{
		Kind:   KindValidation,
		Field:  field,
		Detail: detail,
		Fields: []FieldError{{Field: field, Message: detail}},
	}
}
