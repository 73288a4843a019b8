package upload

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Janitor deletes uploads older than a retention period.
type Janitor struct {
	dir       string
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewJanitor returns a janitor for dir. A zero retention keeps everything.
func NewJanitor(dir string, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		dir:       dir,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Enabled reports whether the janitor would delete anything.
func (j *Janitor) Enabled() bool {
	return j.retention > 0 && j.interval > 0
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	if !j.Enabled() {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Sweep(); err != nil {
				j.logger.Warn("upload sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep removes regular files whose modification time is older than the
// retention and returns how many were removed.
func (j *Janitor) Sweep() (int, error) {
	if !j.Enabled() {
		return 0, nil
	}

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return 0, err
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, entry := range entries {
		// Dotfiles such as .gitkeep are never uploads.
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("removing expired upload", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("swept expired uploads", zap.Int("removed", removed))
	}
	return removed, nil
}
