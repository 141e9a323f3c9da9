package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"invest-service/internal/models"
	"invest-service/internal/services"
)

type DepositDecisionRequest struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason"`
}

type WithdrawalDecisionRequest struct {
	WithdrawalId ID     `json:"withdrawalId" binding:"required"`
	Action       string `json:"action" binding:"required"`
	Reason       string `json:"reason"`
	Status       string `json:"status"`
}

type transactionSummary struct {
	Id        int64                    `json:"id,string"`
	Reference string                   `json:"reference"`
	Status    models.TransactionStatus `json:"status"`
}

type bonusSummary struct {
	Type          models.BonusType `json:"type"`
	BeneficiaryId int64            `json:"beneficiaryId,string"`
	Amount        decimal.Decimal  `json:"amount"`
	TransactionId int64            `json:"transactionId,string"`
}

func decisionData(result *services.DecisionResult) gin.H {
	bonuses := make([]bonusSummary, 0, len(result.Bonuses))
	for _, b := range result.Bonuses {
		bonuses = append(bonuses, bonusSummary{Type: b.Type, BeneficiaryId: b.BeneficiaryId, Amount: b.Amount, TransactionId: b.TransactionId})
	}
	return gin.H{
		"transaction": transactionSummary{
			Id:        result.Transaction.ID,
			Reference: result.Transaction.Reference,
			Status:    result.Transaction.Status,
		},
		"bonuses": bonuses,
	}
}

// DecideDeposit handles POST /admin/deposits/:id.
func (h *Handler) DecideDeposit(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req DepositDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := h.Deposits.Decide(c.Request.Context(), decision(c, id, req.Action, req.Reason))
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Deposit approved"
	if result.Transaction.Status != models.StatusCompleted {
		message = "Deposit rejected"
	}
	ok(c, decisionData(result), message)
}

// DecideWithdrawal handles POST /admin/withdrawals/update.
func (h *Handler) DecideWithdrawal(c *gin.Context) {
	var req WithdrawalDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	dto := decision(c, int64(req.WithdrawalId), req.Action, req.Reason)
	dto.RejectStatus = models.TransactionStatus(req.Status)
	result, err := h.Withdrawals.Decide(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Withdrawal approved"
	if result.Transaction.Status != models.StatusCompleted {
		message = "Withdrawal rejected"
	}
	ok(c, decisionData(result), message)
}

func (h *Handler) AdminListDeposits(c *gin.Context) {
	page, limit := pageParams(c)
	items, pagination, err := h.Deposits.ListDeposits(c.Request.Context(), models.TransactionStatus(c.Query("status")), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"deposits": items, "pagination": pagination}, "Deposits fetched")
}

func (h *Handler) AdminListWithdrawals(c *gin.Context) {
	page, limit := pageParams(c)
	items, pagination, err := h.Withdrawals.ListWithdrawals(c.Request.Context(), models.TransactionStatus(c.Query("status")), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"withdrawals": items, "pagination": pagination}, "Withdrawals fetched")
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.Settings.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, settings, "Settings fetched")
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req map[string]decimal.Decimal
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "settings must be an object of numeric values")
		return
	}
	if err := h.Settings.Update(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	h.GetSettings(c)
}

type PlanRequest struct {
	Name          string          `json:"name" binding:"required"`
	Description   string          `json:"description"`
	MinAmount     decimal.Decimal `json:"minAmount"`
	MaxAmount     decimal.Decimal `json:"maxAmount"`
	RoiPercentage decimal.Decimal `json:"roiPercentage"`
	DurationDays  int             `json:"durationDays"`
	IsActive      *bool           `json:"isActive"`
}

func (h *Handler) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	active := req.IsActive == nil || *req.IsActive
	plan, err := h.Investments.CreatePlan(c.Request.Context(), services.PlanDTO{
		Name:          req.Name,
		Description:   req.Description,
		MinAmount:     req.MinAmount,
		MaxAmount:     req.MaxAmount,
		RoiPercentage: req.RoiPercentage,
		DurationDays:  req.DurationDays,
		IsActive:      active,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, plan, "Plan created")
}

type UpdatePlanRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	MinAmount     *decimal.Decimal `json:"minAmount"`
	MaxAmount     *decimal.Decimal `json:"maxAmount"`
	RoiPercentage *decimal.Decimal `json:"roiPercentage"`
	DurationDays  *int             `json:"durationDays"`
	IsActive      *bool            `json:"isActive"`
}

func (h *Handler) UpdatePlan(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	plan, err := h.Investments.UpdatePlan(c.Request.Context(), id, services.UpdatePlanDTO(req))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, plan, "Plan updated")
}
