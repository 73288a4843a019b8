package model

import "context"

// Predictor maps a normalized input tensor to a probability vector in
// [0,1] aligned with task.Labels().
type Predictor interface {
	Predict(ctx context.Context, task Task, input *Tensor) ([]float64, error)
}
