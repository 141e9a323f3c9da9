package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"invest-service/pkg/common"
)

// PaymentGateway is the crypto payment provider. Payment status is polled.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*GatewayPayment, error)
	GetEstimate(ctx context.Context, amount decimal.Decimal, payCurrency string) (*GatewayEstimate, error)
	GetPaymentStatus(ctx context.Context, paymentId string) (*GatewayPayment, error)
}

type CreatePaymentRequest struct {
	PriceAmount      decimal.Decimal `json:"price_amount"`
	PriceCurrency    string          `json:"price_currency"`
	PayCurrency      string          `json:"pay_currency"`
	OrderId          string          `json:"order_id"`
	OrderDescription string          `json:"order_description,omitempty"`
}

// GatewayID accepts payment ids sent either as JSON strings or numbers.
type GatewayID string

func (id *GatewayID) UnmarshalJSON(b []byte) error {
	*id = GatewayID(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	return nil
}

type GatewayPayment struct {
	PaymentId     GatewayID       `json:"payment_id"`
	PaymentStatus string          `json:"payment_status"`
	PayAddress    string          `json:"pay_address"`
	PayAmount     decimal.Decimal `json:"pay_amount"`
	PayCurrency   string          `json:"pay_currency"`
	PriceAmount   decimal.Decimal `json:"price_amount"`
	OrderId       string          `json:"order_id"`
}

type GatewayEstimate struct {
	CurrencyFrom    string          `json:"currency_from"`
	AmountFrom      decimal.Decimal `json:"amount_from"`
	CurrencyTo      string          `json:"currency_to"`
	EstimatedAmount decimal.Decimal `json:"estimated_amount"`
}

// GatewayOutcome is what a polled payment status means for the deposit.
type GatewayOutcome int

const (
	GatewayWaiting GatewayOutcome = iota
	GatewayPaid
	GatewayFailed
)

func ClassifyPaymentStatus(status string) GatewayOutcome {
	switch strings.ToLower(status) {
	case "finished", "confirmed":
		return GatewayPaid
	case "failed", "expired", "refunded":
		return GatewayFailed
	}
	return GatewayWaiting
}

// HTTPPaymentGateway talks to a NOWPayments-compatible REST API.
type HTTPPaymentGateway struct {
	BaseURL string
	APIKey  string
}

func NewHTTPPaymentGateway(baseURL, apiKey string) *HTTPPaymentGateway {
	return &HTTPPaymentGateway{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey}
}

func (g *HTTPPaymentGateway) headers() map[string]string {
	return map[string]string{"x-api-key": g.APIKey}
}

func (g *HTTPPaymentGateway) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*GatewayPayment, error) {
	if req.PriceCurrency == "" {
		req.PriceCurrency = "usd"
	}
	var out GatewayPayment
	if err := common.PostJSON(ctx, g.BaseURL+"/payment", req, g.headers(), &out); err != nil {
		return nil, fmt.Errorf("gateway create payment: %w", err)
	}
	return &out, nil
}

func (g *HTTPPaymentGateway) GetEstimate(ctx context.Context, amount decimal.Decimal, payCurrency string) (*GatewayEstimate, error) {
	q := url.Values{}
	q.Set("amount", amount.String())
	q.Set("currency_from", "usd")
	q.Set("currency_to", payCurrency)

	var out GatewayEstimate
	if err := common.GetJSON(ctx, g.BaseURL+"/estimate?"+q.Encode(), g.headers(), &out); err != nil {
		return nil, fmt.Errorf("gateway estimate: %w", err)
	}
	return &out, nil
}

func (g *HTTPPaymentGateway) GetPaymentStatus(ctx context.Context, paymentId string) (*GatewayPayment, error) {
	var out GatewayPayment
	if err := common.GetJSON(ctx, g.BaseURL+"/payment/"+url.PathEscape(paymentId), g.headers(), &out); err != nil {
		return nil, fmt.Errorf("gateway payment status: %w", err)
	}
	return &out, nil
}
