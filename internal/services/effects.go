package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"invest-service/internal/metrics"
)

// Effect is a post-commit action whose failure must not change the outcome of
// the decision that produced it.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

type EffectRunner struct {
	Metrics *metrics.Collector
}

func NewEffectRunner(m *metrics.Collector) *EffectRunner {
	return &EffectRunner{Metrics: m}
}

// Run executes every effect in order. Errors and panics are logged and counted.
func (r *EffectRunner) Run(ctx context.Context, effects ...Effect) {
	for _, effect := range effects {
		if err := runEffect(ctx, effect); err != nil {
			logrus.WithError(err).WithField("effect", effect.Name).Warn("post-commit effect failed")
			if r != nil {
				r.Metrics.SideEffectFailed(effect.Name)
			}
		}
	}
}

func runEffect(ctx context.Context, effect Effect) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return effect.Run(ctx)
}
