package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invest-service/internal/middleware"
	"invest-service/internal/models"
)

// NewRouter wires every route. metrics may be nil.
func NewRouter(h *Handler, jwtSecret string, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger())

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome To Invest service"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/", middleware.Auth(jwtSecret))
	{
		api.GET("/me", h.Me)
		api.GET("/wallets", h.GetWallets)
		api.GET("/transactions", h.GetTransactions)

		api.POST("/deposits", h.RequestDeposit)
		api.GET("/deposits/estimate", h.EstimateDeposit)
		api.POST("/withdrawals", h.RequestWithdrawal)

		api.GET("/payment-accounts", h.ListPaymentAccounts)
		api.POST("/payment-accounts", h.CreatePaymentAccount)
		api.POST("/payment-accounts/:id/default", h.SetDefaultPaymentAccount)
		api.DELETE("/payment-accounts/:id", h.DeletePaymentAccount)

		api.GET("/plans", h.ListPlans)
		api.POST("/investments", h.Invest)
		api.GET("/investments", h.ListInvestments)

		api.GET("/notifications", h.ListNotifications)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)
		api.GET("/referrals", h.ListReferrals)

		api.POST("/users", middleware.RequireRoles(models.RoleService, models.RoleAdmin), h.Register)
	}

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/deposits", h.AdminListDeposits)
		admin.POST("/deposits/:id", h.DecideDeposit)
		admin.GET("/withdrawals", h.AdminListWithdrawals)
		admin.POST("/withdrawals/update", h.DecideWithdrawal)

		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.UpdateSettings)

		admin.GET("/plans", h.ListPlans)
		admin.POST("/plans", h.CreatePlan)
		admin.PATCH("/plans/:id", h.UpdatePlan)
	}

	return r
}
