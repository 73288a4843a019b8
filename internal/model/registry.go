package model

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Registry owns one loaded Session per task for the process lifetime.
// It is built once at startup and only read afterwards.
type Registry struct {
	sessions map[Task]*Session
}

// LoadRegistry initializes onnxruntime and loads every model in specs.
// Either all models load or none stay loaded.
func LoadRegistry(libraryPath string, specs map[Task]Spec, logger *zap.Logger) (*Registry, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	r := &Registry{sessions: make(map[Task]*Session, len(Tasks))}
	for _, task := range Tasks {
		spec, ok := specs[task]
		if !ok {
			r.Close()
			return nil, fmt.Errorf("no model configured for task %q", task)
		}

		logger.Info("loading model", zap.String("task", string(task)), zap.String("path", spec.Path))

		session, err := NewSession(task, spec)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("loading %s model: %w", task, err)
		}
		r.sessions[task] = session
	}

	return r, nil
}

// Predict runs the task's model.
func (r *Registry) Predict(ctx context.Context, task Task, input *Tensor) ([]float64, error) {
	session, ok := r.sessions[task]
	if !ok {
		return nil, fmt.Errorf("no model loaded for task %q", task)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return session.Run(input)
}

// Close releases every session and the onnxruntime environment.
func (r *Registry) Close() {
	for task, session := range r.sessions {
		session.Close()
		delete(r.sessions, task)
	}
	ort.DestroyEnvironment()
}
