package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

// Bundle es la forma normalizada de un error crudo de un proveedor.
// HTTPStatus 0 significa ausente; Body es el cuerpo JSON decodificado, si existe.
type Bundle struct {
	Message    string
	HTTPStatus int
	Code       string
	Body       map[string]any
}

// ProviderError transporta el Bundle de una llamada fallida a un proveedor externo.
type ProviderError struct {
	Provider string
	Bundle   Bundle
	Err      error
}

func (e *ProviderError) Error() string {
	msg := e.Bundle.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Bundle.HTTPStatus != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Bundle.HTTPStatus, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

const pgUniqueViolation = "23505"

// FromError construye un Bundle a partir de cualquier error.
func FromError(err error) Bundle {
	if err == nil {
		return Bundle{}
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		b := pe.Bundle
		if b.Message == "" {
			b.Message = err.Error()
		}
		return b
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		b := Bundle{Message: pgErr.Message, Code: pgErr.Code}
		if pgErr.Code == pgUniqueViolation {
			b.HTTPStatus = http.StatusConflict
		}
		return b
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Bundle{Message: err.Error(), HTTPStatus: http.StatusGatewayTimeout}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Bundle{Message: err.Error(), HTTPStatus: http.StatusGatewayTimeout}
	}

	return Bundle{Message: err.Error()}
}

// ClassifyError clasifica err; si ya está clasificado lo devuelve sin cambios.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	e := Classify(FromError(err))
	e.Err = err
	return e
}
