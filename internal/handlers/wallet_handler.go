package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"invest-service/internal/middleware"
	"invest-service/internal/models"
	"invest-service/internal/services"
)

func (h *Handler) GetWallets(c *gin.Context) {
	wallets, err := h.Wallets.Balances(c.Request.Context(), middleware.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"wallets": wallets}, "Wallets fetched")
}

func (h *Handler) ListPaymentAccounts(c *gin.Context) {
	accounts, err := h.Accounts.List(c.Request.Context(), middleware.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"accounts": accounts}, "Payment accounts fetched")
}

type PaymentAccountRequest struct {
	Type              models.PaymentAccountType `json:"type" binding:"required"`
	Provider          string                    `json:"provider" binding:"required"`
	AccountIdentifier string                    `json:"accountIdentifier" binding:"required"`
	AccountName       string                    `json:"accountName"`
	IsDefault         bool                      `json:"isDefault"`
}

func (h *Handler) CreatePaymentAccount(c *gin.Context) {
	var req PaymentAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	account, err := h.Accounts.Create(c.Request.Context(), services.CreatePaymentAccountDTO{
		UserId:            middleware.UserId(c),
		Type:              req.Type,
		Provider:          req.Provider,
		AccountIdentifier: req.AccountIdentifier,
		AccountName:       req.AccountName,
		IsDefault:         req.IsDefault,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, account, "Payment account added")
}

func (h *Handler) SetDefaultPaymentAccount(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	account, err := h.Accounts.SetDefault(c.Request.Context(), middleware.UserId(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, account, "Default payment account updated")
}

func (h *Handler) DeletePaymentAccount(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.Accounts.Delete(c.Request.Context(), middleware.UserId(c), id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, nil, "Payment account removed")
}

func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.Investments.ListPlans(c.Request.Context(), c.GetString(middleware.ContextRole) != models.RoleAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"plans": plans}, "Plans fetched")
}

type InvestRequest struct {
	PlanId ID              `json:"planId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) Invest(c *gin.Context) {
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	investment, err := h.Investments.Invest(c.Request.Context(), services.InvestDTO{
		UserId: middleware.UserId(c),
		PlanId: int64(req.PlanId),
		Amount: req.Amount,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, investment, "Investment opened")
}

func (h *Handler) ListInvestments(c *gin.Context) {
	investments, err := h.Investments.ListInvestments(c.Request.Context(), middleware.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"investments": investments}, "Investments fetched")
}
