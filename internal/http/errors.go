package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"fundlink/internal/apperr"
	"fundlink/internal/service"
)

type errorResponse struct {
	Error  string              `json:"error"`
	Kind   string              `json:"kind,omitempty"`
	Field  string              `json:"field,omitempty"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

// writeError traduce un error de servicio a status + cuerpo JSON.
func writeError(c *gin.Context, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, errorResponse{Error: err.Error(), Kind: "rate_limited"})
		return
	case errors.Is(err, service.ErrBankLinkNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "bank link not found", Kind: "not_found"})
		return
	case errors.Is(err, service.ErrJWTInvalid), errors.Is(err, service.ErrJWTExpired):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid token", Kind: "invalid_token"})
		return
	}

	classified := apperr.ClassifyError(err)
	status := statusForKind(classified.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.String("kind", classified.Kind.String()), zap.Error(err))
	} else {
		logger.Warn(op+" rejected", zap.String("kind", classified.Kind.String()), zap.Error(err))
	}

	resp := errorResponse{Error: classified.Error(), Kind: classified.Kind.String()}
	if classified.Kind == apperr.KindValidation {
		resp.Field = classified.Field
		resp.Fields = classified.Fields
	}
	c.JSON(status, resp)
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperr.KindAccountAlreadyExists, apperr.KindProfileDataMissing:
		return http.StatusConflict
	case apperr.KindUserNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeBindError responde 400 con el detalle por campo que deja validator.
func writeBindError(c *gin.Context, logger *zap.Logger, op string, err error) {
	logger.Warn("invalid "+op+" request", zap.Error(err))

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request", Kind: apperr.KindValidation.String()})
		return
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: bindMessage(fe)})
	}
	c.JSON(http.StatusBadRequest, errorResponse{
		Error:  "invalid request",
		Kind:   apperr.KindValidation.String(),
		Field:  fields[0].Field,
		Fields: fields,
	})
}

func bindMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "len":
		return "must be " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
