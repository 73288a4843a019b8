package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/handlers"
	"github.com/Brownie44l1/aksharnet-api/internal/metrics"
	"github.com/Brownie44l1/aksharnet-api/web"
)

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *handlers.Handler, m *metrics.Metrics, logger *zap.Logger, maxBodyBytes int64, debug bool) (*gin.Engine, error) {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), AccessLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	router.GET("/", h.Index)
	router.GET("/health", h.Health)
	router.GET("/robots.txt", h.Robots)
	router.GET("/static/*filepath", h.Static)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	predict := router.Group("/", BodyLimit(maxBodyBytes))
	predict.POST("/predict_gender", h.PredictGender)
	predict.POST("/predict_age", h.PredictAge)

	return router, nil
}

// Run serves handler on port until ctx is done, then shuts down within
// shutdownTimeout.
func Run(ctx context.Context, handler http.Handler, port int, shutdownTimeout time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
