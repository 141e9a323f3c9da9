package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its registry so tests can build independent instances.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry            *prometheus.Registry
	approvals           *prometheus.CounterVec
	approvalDuration    *prometheus.HistogramVec
	bonusPayouts        *prometheus.CounterVec
	bonusFailures       prometheus.Counter
	sideEffectFailures  *prometheus.CounterVec
	investmentsMatured  prometheus.Counter
	gatewayPollFailures prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		approvals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "approvals_total",
			Help: "Admin decisions on deposits and withdrawals by outcome",
		}, []string{"kind", "action", "outcome"}),
		approvalDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "approval_duration_seconds",
			Help:    "Time spent inside an approval unit of work",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		bonusPayouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bonus_payouts_total",
			Help: "Bonuses paid by bonus type",
		}, []string{"type"}),
		bonusFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bonus_distribution_failures_total",
			Help: "Bonus distributions rolled back without affecting the deposit",
		}),
		sideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "side_effect_failures_total",
			Help: "Post-commit effects that failed",
		}, []string{"effect"}),
		investmentsMatured: factory.NewCounter(prometheus.CounterOpts{
			Name: "investments_matured_total",
			Help: "Investments settled into the profit wallet",
		}),
		gatewayPollFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_poll_failures_total",
			Help: "Payment gateway status lookups that failed",
		}),
	}
}

func (c *Collector) RecordApproval(kind, action, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.approvals.WithLabelValues(kind, action, outcome).Inc()
	c.approvalDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (c *Collector) BonusPaid(bonusType string) {
	if c == nil {
		return
	}
	c.bonusPayouts.WithLabelValues(bonusType).Inc()
}

func (c *Collector) BonusFailed() {
	if c == nil {
		return
	}
	c.bonusFailures.Inc()
}

func (c *Collector) SideEffectFailed(effect string) {
	if c == nil {
		return
	}
	c.sideEffectFailures.WithLabelValues(effect).Inc()
}

func (c *Collector) InvestmentMatured() {
	if c == nil {
		return
	}
	c.investmentsMatured.Inc()
}

func (c *Collector) GatewayPollFailed() {
	if c == nil {
		return
	}
	c.gatewayPollFailures.Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
