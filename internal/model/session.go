package model

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Spec locates one serialized model and names its graph endpoints.
type Spec struct {
	Path   string
	Input  string
	Output string
}

// Session wraps an ONNX session with its bound input and output tensors.
// Run writes into the shared tensors, so calls are serialized.
type Session struct {
	mu           sync.Mutex
	task         Task
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewSession loads the model at spec.Path. The onnxruntime environment
// must already be initialized.
func NewSession(task Task, spec Spec) (*Session, error) {
	labels := task.Labels()
	if len(labels) == 0 {
		return nil, fmt.Errorf("unknown task %q", task)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(labels))))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(spec.Path,
		[]string{spec.Input}, []string{spec.Output},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", spec.Path, err)
	}

	return &Session{
		task:         task,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Run executes the model on input and returns a copy of the output row.
func (s *Session) Run(input *Tensor) ([]float64, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input.Data)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("%s inference failed: %w", s.task, err)
	}

	outputData := s.outputTensor.GetData()
	out := make([]float64, len(outputData))
	for i, v := range outputData {
		out[i] = float64(v)
	}
	return out, nil
}

func (s *Session) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
}
