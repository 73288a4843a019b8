package model

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Argmax returns the index of the largest value. Ties go to the lowest
// index. It returns -1 for an empty slice.
func Argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// Format labels a probability vector for task. Values are multiplied by
// 100 and not rounded.
func Format(task Task, probs []float64, filename string) (*Result, error) {
	labels := task.Labels()
	if len(labels) == 0 {
		return nil, fmt.Errorf("unknown task %q", task)
	}
	if len(probs) != len(labels) {
		return nil, fmt.Errorf("model returned %d values for %d labels", len(probs), len(labels))
	}

	percentages := make(map[string]float64, len(labels))
	for i, label := range labels {
		percentages[label] = probs[i] * 100
	}

	return &Result{
		Task:          task,
		Label:         labels[Argmax(probs)],
		Probabilities: percentages,
		Filename:      filename,
	}, nil
}

// PublicPath rebases a stored upload path onto the public static prefix,
// with forward slashes: "static/uploads/<name>".
func PublicPath(stored, staticDir, prefix string) string {
	if rel, err := filepath.Rel(staticDir, stored); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path.Join(prefix, filepath.ToSlash(rel))
	}

	slashed := strings.ReplaceAll(stored, `\`, "/")
	marker := prefix + "/"
	if i := strings.LastIndex(slashed, marker); i >= 0 {
		return marker + slashed[i+len(marker):]
	}
	return slashed
}
