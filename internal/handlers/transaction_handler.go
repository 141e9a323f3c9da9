package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"invest-service/internal/middleware"
	"invest-service/internal/models"
	"invest-service/internal/services"
)

// GetTransactions handles GET /transactions for the caller.
func (h *Handler) GetTransactions(c *gin.Context) {
	page, limit := pageParams(c)
	items, pagination, err := h.Ledger.List(c.Request.Context(), services.ListTransactionsDTO{
		UserId: middleware.UserId(c),
		Type:   models.TransactionType(c.Query("type")),
		Status: models.TransactionStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"transactions": items, "pagination": pagination}, "Transactions fetched")
}

type MoneyRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	PaymentAccountId ID              `json:"paymentAccountId" binding:"required"`
}

func (h *Handler) RequestDeposit(c *gin.Context) {
	var req MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	trx, err := h.Deposits.RequestDeposit(c.Request.Context(), services.RequestDepositDTO{
		UserId:           middleware.UserId(c),
		Amount:           req.Amount,
		PaymentAccountId: int64(req.PaymentAccountId),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, trx, "Deposit request received")
}

func (h *Handler) EstimateDeposit(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		badRequest(c, "invalid amount")
		return
	}
	estimate, err := h.Deposits.Estimate(c.Request.Context(), amount, c.Query("currency"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, estimate, "Estimate fetched")
}

func (h *Handler) RequestWithdrawal(c *gin.Context) {
	var req MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	trx, err := h.Withdrawals.RequestWithdrawal(c.Request.Context(), services.RequestWithdrawalDTO{
		UserId:           middleware.UserId(c),
		Amount:           req.Amount,
		PaymentAccountId: int64(req.PaymentAccountId),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, trx, "Withdrawal request received")
}
