package handlers

import (
	"github.com/gin-gonic/gin"

	"invest-service/internal/middleware"
	"invest-service/internal/services"
)

type RegisterRequest struct {
	Email        string `json:"email" binding:"required"`
	FullName     string `json:"fullName"`
	CountryCode  string `json:"countryCode"`
	ReferralCode string `json:"referralCode"`
}

// Register is called by the auth service once an account exists there.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.Users.Register(c.Request.Context(), services.RegisterUserDTO{
		Email:        req.Email,
		FullName:     req.FullName,
		CountryCode:  req.CountryCode,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	created(c, user, "User registered")
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), middleware.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, user, "Profile fetched")
}

func (h *Handler) ListNotifications(c *gin.Context) {
	page, limit := pageParams(c)
	items, pagination, err := h.Notifications.List(c.Request.Context(), middleware.UserId(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"notifications": items, "pagination": pagination}, "Notifications fetched")
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.Notifications.MarkRead(c.Request.Context(), middleware.UserId(c), id); err != nil {
		respondError(c, err)
		return
	}
	ok(c, nil, "Notification marked as read")
}

func (h *Handler) ListReferrals(c *gin.Context) {
	summary, err := h.Bonus.ListReferrals(c.Request.Context(), middleware.UserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, summary, "Referrals fetched")
}
