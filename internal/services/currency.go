package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"invest-service/pkg/common"
)

// RateProvider returns how many units of currency one USD buys.
type RateProvider interface {
	Rate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// HTTPRateProvider reads USD rates from an open.er-api compatible endpoint.
type HTTPRateProvider struct {
	BaseURL string
}

type latestRatesResponse struct {
	Result string                     `json:"result"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

func (p *HTTPRateProvider) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	var out latestRatesResponse
	if err := common.GetJSON(ctx, strings.TrimRight(p.BaseURL, "/")+"/latest/USD", nil, &out); err != nil {
		return decimal.Zero, fmt.Errorf("fetch rates: %w", err)
	}
	if out.Result != "" && out.Result != "success" {
		return decimal.Zero, fmt.Errorf("fetch rates: result %q", out.Result)
	}
	rate, ok := out.Rates[strings.ToUpper(currency)]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no USD rate for %s", currency)
	}
	return rate, nil
}

// CachedRateProvider keeps rates in redis for TTL in front of another provider.
type CachedRateProvider struct {
	Next  RateProvider
	Redis *redis.Client
	TTL   time.Duration
}

func (p *CachedRateProvider) key(currency string) string {
	return "fx:usd:" + strings.ToUpper(currency)
}

func (p *CachedRateProvider) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	cached, err := p.Redis.Get(ctx, p.key(currency)).Result()
	switch {
	case err == nil:
		if rate, perr := decimal.NewFromString(cached); perr == nil {
			return rate, nil
		}
	case !errors.Is(err, redis.Nil):
		logrus.WithError(err).Warn("rate cache read failed")
	}

	rate, err := p.Next.Rate(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	if err := p.Redis.Set(ctx, p.key(currency), rate.String(), p.TTL).Err(); err != nil {
		logrus.WithError(err).Warn("rate cache write failed")
	}
	return rate, nil
}

var countryCurrencies = map[string]string{
	"CM": "XAF", "GA": "XAF", "CG": "XAF", "TD": "XAF", "CF": "XAF", "GQ": "XAF",
	"CI": "XOF", "SN": "XOF", "BJ": "XOF", "BF": "XOF", "ML": "XOF", "NE": "XOF", "TG": "XOF", "GW": "XOF",
	"NG": "NGN", "GH": "GHS", "KE": "KES", "UG": "UGX", "TZ": "TZS", "RW": "RWF",
	"CD": "CDF", "GN": "GNF", "ZA": "ZAR", "ZM": "ZMW", "MA": "MAD",
}

// CurrencyForCountry maps an ISO 3166 alpha-2 code to its local currency.
func CurrencyForCountry(countryCode string) (string, bool) {
	c, ok := countryCurrencies[strings.ToUpper(strings.TrimSpace(countryCode))]
	return c, ok
}

type CurrencyConverter struct {
	Rates RateProvider
}

func NewCurrencyConverter(rates RateProvider) *CurrencyConverter {
	return &CurrencyConverter{Rates: rates}
}

// Convert expresses a USD amount in the local currency of countryCode.
func (c *CurrencyConverter) Convert(ctx context.Context, countryCode string, usdAmount decimal.Decimal) (*Conversion, error) {
	currency, ok := CurrencyForCountry(countryCode)
	if !ok {
		return nil, fmt.Errorf("no currency known for country %q", countryCode)
	}
	rate, err := c.Rates.Rate(ctx, currency)
	if err != nil {
		return nil, err
	}
	return &Conversion{
		Currency:       currency,
		OriginalAmount: usdAmount.Mul(rate).Round(2),
		Rate:           rate,
	}, nil
}
