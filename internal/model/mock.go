package model

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Rand is the subset of *rand.Rand the mock predictor draws from.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// MockPredictor returns randomized probabilities after a fixed delay. It
// never looks at the input tensor.
type MockPredictor struct {
	rng    Rand
	delays map[Task]time.Duration
}

// NewMockPredictor builds a mock with per-task delays. A nil rng uses the
// process-wide source, which is safe for concurrent use.
func NewMockPredictor(rng Rand, genderDelay, ageDelay time.Duration) *MockPredictor {
	if rng == nil {
		rng = globalRand{}
	}
	return &MockPredictor{
		rng: rng,
		delays: map[Task]time.Duration{
			TaskGender: genderDelay,
			TaskAge:    ageDelay,
		},
	}
}

func (m *MockPredictor) Predict(ctx context.Context, task Task, _ *Tensor) ([]float64, error) {
	if err := sleep(ctx, m.delays[task]); err != nil {
		return nil, err
	}

	switch task {
	case TaskGender:
		return m.gender(), nil
	case TaskAge:
		return m.age(), nil
	default:
		return nil, fmt.Errorf("unknown task %q", task)
	}
}

// gender weights the winner uniformly in [60,95] percent and gives the
// rest to the other label. The fractions sum to exactly 1 since 1-p is exact
// for p in [0.5,1]. The percentages Format derives may differ from 100 by an
// ulp.
func (m *MockPredictor) gender() []float64 {
	winner := m.rng.IntN(len(GenderLabels))
	p := m.uniform(60, 95) / 100

	out := make([]float64, len(GenderLabels))
	out[winner] = p
	out[1-winner] = 1 - p
	return out
}

// age draws every label in [5,20], the winner in [40,85], and normalizes.
func (m *MockPredictor) age() []float64 {
	winner := m.rng.IntN(len(AgeLabels))

	weights := make([]float64, len(AgeLabels))
	for i := range weights {
		weights[i] = m.uniform(5, 20)
	}
	weights[winner] = m.uniform(40, 85)

	var total float64
	for _, w := range weights {
		total += w
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

func (m *MockPredictor) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*m.rng.Float64()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
