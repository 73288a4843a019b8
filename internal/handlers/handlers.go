package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/apperr"
	"github.com/Brownie44l1/aksharnet-api/internal/metrics"
	"github.com/Brownie44l1/aksharnet-api/internal/model"
	"github.com/Brownie44l1/aksharnet-api/internal/upload"
)

// Uploader persists an accepted upload and returns where it was stored.
type Uploader interface {
	Save(fh *multipart.FileHeader) (string, error)
}

// Loader turns a stored image into a model input.
type Loader interface {
	Load(path string) (*model.Tensor, error)
}

// Options describes the static layout and serving mode.
type Options struct {
	StaticDir    string
	StaticPrefix string
	UploadDir    string
	Demo         bool
}

type Handler struct {
	uploader  Uploader
	loader    Loader
	predictor model.Predictor
	metrics   *metrics.Metrics
	logger    *zap.Logger
	opts      Options

	uploadPrefix string
}

func NewHandler(uploader Uploader, loader Loader, predictor model.Predictor, m *metrics.Metrics, logger *zap.Logger, opts Options) *Handler {
	return &Handler{
		uploader:     uploader,
		loader:       loader,
		predictor:    predictor,
		metrics:      m,
		logger:       logger,
		opts:         opts,
		uploadPrefix: uploadPrefix(opts.StaticDir, opts.UploadDir),
	}
}

// uploadPrefix is the upload dir relative to the static root, with a
// trailing slash, or "" when uploads live elsewhere.
func uploadPrefix(staticDir, uploadDir string) string {
	rel, err := filepath.Rel(staticDir, uploadDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel) + "/"
}

func (h *Handler) mode() string {
	if h.opts.Demo {
		return "demo"
	}
	return "inference"
}

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{"demo": h.opts.Demo})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "mode": h.mode()})
}

func (h *Handler) PredictGender(c *gin.Context) {
	h.predict(c, model.TaskGender)
}

func (h *Handler) PredictAge(c *gin.Context) {
	h.predict(c, model.TaskAge)
}

func (h *Handler) predict(c *gin.Context, task model.Task) {
	result, err := h.run(c, task)
	if err != nil {
		h.respondError(c, task, err)
		return
	}

	h.metrics.ObservePrediction(task, "ok")
	c.JSON(http.StatusOK, result)
}

func hasValue(form *multipart.Form, field string) bool {
	return form != nil && len(form.Value[field]) > 0
}

func (h *Handler) run(c *gin.Context, task model.Task) (*model.Result, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if isTooLarge(err) {
			return nil, apperr.New(apperr.TooLarge, "File too large")
		}
		// A file part sent with an empty filename is parsed as a plain value.
		if errors.Is(err, http.ErrMissingFile) && hasValue(c.Request.MultipartForm, "image") {
			return nil, upload.ErrNoFilename
		}
		return nil, upload.ErrNoFile
	}

	h.logger.Debug("received file",
		zap.String("task", string(task)),
		zap.String("filename", fh.Filename),
		zap.Int64("size", fh.Size))

	stored, err := h.uploader.Save(fh)
	if err != nil {
		return nil, err
	}

	tensor, err := h.loader.Load(stored)
	if err != nil {
		return nil, err
	}

	probs, err := h.predictor.Predict(c.Request.Context(), task, tensor)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProcessingFailure, "inference failed", err)
	}

	result, err := model.Format(task, probs, model.PublicPath(stored, h.opts.StaticDir, h.opts.StaticPrefix))
	if err != nil {
		return nil, apperr.Wrap(apperr.ProcessingFailure, "formatting prediction", err)
	}
	return result, nil
}

func (h *Handler) respondError(c *gin.Context, task model.Task, err error) {
	e := apperr.From(err)
	h.metrics.ObservePrediction(task, e.Kind.String())

	message := e.Error()
	if e.Kind == apperr.ProcessingFailure {
		message = "Error processing image for " + string(task) + " prediction: " + message
	}

	status := e.Kind.Status()
	if status >= http.StatusInternalServerError {
		h.logger.Error("prediction failed", zap.String("task", string(task)), zap.Error(err))
	} else {
		h.logger.Warn("prediction rejected", zap.String("task", string(task)), zap.Error(err))
	}

	c.JSON(status, gin.H{"error": message})
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// Static serves files under the static dir with a cache policy picked by
// path.
func (h *Handler) Static(c *gin.Context) {
	name := strings.TrimPrefix(path.Clean("/"+c.Param("filepath")), "/")
	full, ok := h.regularFile(name)
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.Header("Cache-Control", CacheControl(name, h.uploadPrefix))
	c.File(full)
}

func (h *Handler) Robots(c *gin.Context) {
	full, ok := h.regularFile("robots.txt")
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.File(full)
}

func (h *Handler) regularFile(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	full := filepath.Join(h.opts.StaticDir, filepath.FromSlash(name))
	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return full, true
}
