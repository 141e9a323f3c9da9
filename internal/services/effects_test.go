package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectRunnerIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	runner := NewEffectRunner(env.metrics)
	ran := 0

	runner.Run(context.Background(),
		Effect{Name: "boom", Run: func(context.Context) error { panic("exploded") }},
		Effect{Name: "fail", Run: func(context.Context) error { return errors.New("nope") }},
		Effect{Name: "ok", Run: func(context.Context) error { ran++; return nil }},
	)
	assert.Equal(t, 1, ran)
	assert.Equal(t, 2.0, counterValue(t, env.metrics, "side_effect_failures_total"))

	var nilRunner *EffectRunner
	nilRunner.Run(context.Background(), Effect{Name: "ok", Run: func(context.Context) error { ran++; return nil }})
	assert.Equal(t, 2, ran)
}
