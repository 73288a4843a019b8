package model

import (
	"encoding/json"
	"fmt"
)

// Input geometry shared by both models.
const (
	InputHeight   = 512
	InputWidth    = 1024
	InputChannels = 3
)

// InputShape is the NHWC shape every model input must have.
var InputShape = []int64{1, InputHeight, InputWidth, InputChannels}

// Task selects which model and label set a prediction uses.
type Task string

const (
	TaskGender Task = "gender"
	TaskAge    Task = "age"
)

var (
	GenderLabels = []string{"Female", "Male"}
	AgeLabels    = []string{"14-16 Years", "8-10 Years", "11-13 Years", "4-7 Years", "17-21 Years"}
)

// Tasks lists every served task.
var Tasks = []Task{TaskGender, TaskAge}

// Labels returns the class names aligned with the model output positions.
func (t Task) Labels() []string {
	switch t {
	case TaskGender:
		return GenderLabels
	case TaskAge:
		return AgeLabels
	default:
		return nil
	}
}

// ResultKey is the JSON field holding the winning label.
func (t Task) ResultKey() string {
	if t == TaskAge {
		return "age_class_result"
	}
	return string(t) + "_result"
}

// ProbabilitiesKey is the JSON field holding the label to percent map.
func (t Task) ProbabilitiesKey() string {
	if t == TaskAge {
		return "age_class_probabilities"
	}
	return string(t) + "_probabilities"
}

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Validate checks the tensor against InputShape.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("nil tensor")
	}
	if len(t.Shape) != len(InputShape) {
		return fmt.Errorf("tensor rank %d, expected %d", len(t.Shape), len(InputShape))
	}
	size := int64(1)
	for i, dim := range t.Shape {
		if dim != InputShape[i] {
			return fmt.Errorf("tensor shape %v, expected %v", t.Shape, InputShape)
		}
		size *= dim
	}
	if int64(len(t.Data)) != size {
		return fmt.Errorf("tensor holds %d values, expected %d", len(t.Data), size)
	}
	return nil
}

// Result is one formatted prediction.
type Result struct {
	Task          Task
	Label         string
	Probabilities map[string]float64
	Filename      string
}

// MarshalJSON writes the task specific field names, e.g.
// {"gender_result", "gender_probabilities", "filename"}.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		r.Task.ResultKey():        r.Label,
		r.Task.ProbabilitiesKey(): r.Probabilities,
		"filename":                r.Filename,
	})
}
