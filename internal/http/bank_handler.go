package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fundlink/internal/domain"
	"fundlink/internal/service"
)

type identityLookup interface {
	Me(ctx context.Context, identityID string) (domain.Identity, error)
}

type bankLinker interface {
	CreateLinkToken(ctx context.Context, identity domain.Identity) (string, error)
	LinkBank(ctx context.Context, identity domain.Identity, publicToken string) (domain.BankLink, error)
}

type accountReader interface {
	GetAccounts(ctx context.Context, identityID string) (domain.AccountsSummary, error)
	GetAccount(ctx context.Context, identityID, bankLinkID string) (domain.AccountDetail, error)
}

type transferSender interface {
	Send(ctx context.Context, in service.SendTransferInput) (domain.TransferRecord, error)
}

// BankHandler agrupa los endpoints de vinculación, cuentas y transferencias.
type BankHandler struct {
	logger     *zap.Logger
	identities identityLookup
	links      bankLinker
	accounts   accountReader
	transfers  transferSender
}

func NewBankHandler(logger *zap.Logger, identities identityLookup, links bankLinker, accounts accountReader, transfers transferSender) *BankHandler {
	return &BankHandler{
		logger:     logger,
		identities: identities,
		links:      links,
		accounts:   accounts,
		transfers:  transfers,
	}
}

// CreateLinkToken maneja POST /banks/link-token.
func (h *BankHandler) CreateLinkToken(c *gin.Context) {
	identity, err := h.identities.Me(c.Request.Context(), identityID(c))
	if err != nil {
		writeError(c, h.logger, "create link token", err)
		return
	}
	token, err := h.links.CreateLinkToken(c.Request.Context(), identity)
	if err != nil {
		writeError(c, h.logger, "create link token", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_token": token})
}

// LinkBank maneja POST /banks.
func (h *BankHandler) LinkBank(c *gin.Context) {
	var req struct {
		PublicToken string `json:"public_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "link bank", err)
		return
	}

	identity, err := h.identities.Me(c.Request.Context(), identityID(c))
	if err != nil {
		writeError(c, h.logger, "link bank", err)
		return
	}
	link, err := h.links.LinkBank(c.Request.Context(), identity, req.PublicToken)
	if err != nil {
		writeError(c, h.logger, "link bank", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bank_link": link})
}

// GetAccounts maneja GET /accounts.
func (h *BankHandler) GetAccounts(c *gin.Context) {
	summary, err := h.accounts.GetAccounts(c.Request.Context(), identityID(c))
	if err != nil {
		writeError(c, h.logger, "get accounts", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetAccount maneja GET /accounts/:bankLinkId.
func (h *BankHandler) GetAccount(c *gin.Context) {
	detail, err := h.accounts.GetAccount(c.Request.Context(), identityID(c), c.Param("bankLinkId"))
	if err != nil {
		writeError(c, h.logger, "get account", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SendTransfer maneja POST /transfers.
func (h *BankHandler) SendTransfer(c *gin.Context) {
	var req struct {
		SenderBankLinkID    string `json:"sender_bank_link_id" binding:"required"`
		ReceiverShareableID string `json:"receiver_shareable_id" binding:"required"`
		Amount              string `json:"amount" binding:"required"`
		Note                string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, h.logger, "send transfer", err)
		return
	}

	record, err := h.transfers.Send(c.Request.Context(), service.SendTransferInput{
		SenderIdentityID:    identityID(c),
		SenderBankLinkID:    req.SenderBankLinkID,
		ReceiverShareableID: req.ReceiverShareableID,
		Amount:              req.Amount,
		Note:                req.Note,
	})
	if err != nil {
		writeError(c, h.logger, "send transfer", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transfer": record})
}
