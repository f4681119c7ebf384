package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fundlink/internal/domain"
	"fundlink/internal/service"
)

type identityProvisioner interface {
	SignUp(ctx context.Context, in service.SignUpInput) (service.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (service.SignInResult, error)
	SignOut(ctx context.Context, refreshToken string)
	Me(ctx context.Context, identityID string) (domain.Identity, error)
}

type sessionRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (service.TokenPair, error)
}

// AuthHandler expone alta, inicio y cierre de sesión.
type AuthHandler struct {
	logger      *zap.Logger
	provisioner identityProvisioner
	sessions    sessionRefresher
}

func NewAuthHandler(logger *zap.Logger, provisioner identityProvisioner, sessions sessionRefresher) *AuthHandler {
	return &AuthHandler{logger: logger, provisioner: provisioner, sessions: sessions}
}

type signUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Address1    string `json:"address1" binding:"required"`
	City        string `json:"city" binding:"required"`
	State       string `json:"state" binding:"required"`
	PostalCode  string `json:"postal_code" binding:"required"`
	DateOfBirth string `json:"date_of_birth" binding:"required"`
	SSN         string `json:"ssn" binding:"required"`
}

// SignUp maneja POST /auth/sign-up.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "sign up", err)
		return
	}

	result, err := h.provisioner.SignUp(c.Request.Context(), service.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Profile: domain.ProfileAttributes{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Address1:    req.Address1,
			City:        req.City,
			State:       req.State,
			PostalCode:  req.PostalCode,
			DateOfBirth: req.DateOfBirth,
			TaxID:       req.SSN,
		},
	})
	if err != nil {
		writeError(c, h.logger, "sign up", err)
		return
	}

	status := http.StatusCreated
	if result.Recovered {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"identity": result.Identity, "tokens": result.Tokens, "recovered": result.Recovered})
}

// SignIn maneja POST /auth/sign-in.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "sign in", err)
		return
	}

	result, err := h.provisioner.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, h.logger, "sign in", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": result.Identity, "tokens": result.Tokens})
}

// SignOut maneja POST /auth/sign-out. Siempre responde 204.
func (h *AuthHandler) SignOut(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// Un cuerpo vacío o ilegible no impide cerrar la sesión local.
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("sign out without refresh token", zap.Error(err))
	}
	h.provisioner.SignOut(c.Request.Context(), req.RefreshToken)
	c.Status(http.StatusNoContent)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "refresh", err)
		return
	}
	tokens, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, h.logger, "refresh", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Me maneja GET /me.
func (h *AuthHandler) Me(c *gin.Context) {
	identity, err := h.provisioner.Me(c.Request.Context(), identityID(c))
	if err != nil {
		writeError(c, h.logger, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}
