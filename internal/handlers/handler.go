package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invest-service/internal/middleware"
	"invest-service/internal/services"
	"invest-service/pkg/common"
)

// Handler exposes the services over HTTP.
type Handler struct {
	Users         *services.UserService
	Wallets       *services.WalletService
	Ledger        *services.LedgerService
	Deposits      *services.DepositService
	Withdrawals   *services.WithdrawalService
	Accounts      *services.PaymentAccountService
	Investments   *services.InvestmentService
	Settings      *services.SettingsService
	Notifications *services.NotificationService
	Bonus         *services.BonusService
}

// ID accepts ids sent either as JSON strings or numbers.
type ID int64

func (id *ID) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if raw == "" || raw == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return errors.New("id must be an integer")
	}
	*id = ID(n)
	return nil
}

func ok(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, common.NewSuccessResponse(data, message))
}

func created(c *gin.Context, data interface{}, message string) {
	res := common.NewSuccessResponse(data, message)
	res.Status = http.StatusCreated
	c.JSON(http.StatusCreated, res)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, common.NewErrorResponse(message, nil, http.StatusBadRequest))
}

// respondError maps service errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrAlreadyProcessed),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInsufficientBalance):
		status, message = http.StatusBadRequest, err.Error()
	default:
		logrus.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.ContextRequestId),
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, common.NewErrorResponse(message, nil, status))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(common.DefaultPageLimit)))
	return common.NormalizePage(page, limit)
}

func decision(c *gin.Context, id int64, action, reason string) services.DecisionDTO {
	return services.DecisionDTO{
		TransactionId: id,
		Action:        strings.ToLower(strings.TrimSpace(action)),
		Reason:        reason,
		ActorId:       middleware.UserId(c),
		IpAddress:     c.ClientIP(),
		UserAgent:     c.Request.UserAgent(),
	}
}
