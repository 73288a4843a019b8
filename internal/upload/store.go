package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/apperr"
)

// Store writes accepted uploads into a single directory. Names carry a
// random UUID so concurrent requests never collide and no locking is
// needed.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates dir if needed.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// UniqueName returns "<uuid>_<sanitized filename>".
func UniqueName(filename string) string {
	return fmt.Sprintf("%s_%s", uuid.New().String(), SecureFilename(filename))
}

// Save validates the declared filename and writes the part to disk,
// returning the stored path.
func (s *Store) Save(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNoFile
	}
	if err := Validate(fh.Filename); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, "Error saving file", err)
	}
	defer src.Close()

	return s.write(fh.Filename, src)
}

func (s *Store) write(filename string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, UniqueName(filename))

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, "Error saving file", err)
	}

	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", apperr.Wrap(apperr.InternalError, "Error saving file", err)
	}

	s.logger.Debug("stored upload",
		zap.String("filename", filename),
		zap.String("path", path),
		zap.Int64("bytes", n))

	return path, nil
}
