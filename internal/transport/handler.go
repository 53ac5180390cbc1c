package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/daisler/print-analyzer/internal/bleed"
	"github.com/daisler/print-analyzer/internal/config"
	apperrors "github.com/daisler/print-analyzer/internal/errors"
	"github.com/daisler/print-analyzer/internal/logger"
	"github.com/daisler/print-analyzer/internal/observer"
	"github.com/daisler/print-analyzer/internal/service"
	"github.com/daisler/print-analyzer/pkg/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	version     = "1.0.0"
	rootMessage = "Hello from the Daisler print analyzer!"
)

// Form fields accepted by the upload endpoints
const (
	fieldFile    = "file"
	fieldURL     = "url"
	fieldUseCase = "use_case"
	fieldBleedPx = "bleed_px"
)

// Response headers describing a rendered bleed canvas
const (
	headerOutputWidth  = "X-Output-Width"
	headerOutputHeight = "X-Output-Height"
	headerBleedPx      = "X-Bleed-Px"
	headerTrimBox      = "X-Trim-Box"
)

func NewHandler(svc service.PrintService, stats *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		corsMiddleware(cfg.CORSAllowedOrigins),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Bare paths serve deployments that strip the /api prefix.
	r.GET("/", root)
	r.GET("/health", healthCheck)
	r.GET("/api", root)
	r.GET("/api/health", healthCheck)
	r.GET("/api/stats", statsHandler(stats))
	r.POST("/api/analyze", analyzeImage(svc, cfg))
	r.POST("/api/process", processImage(svc, cfg))

	return r
}

func analyzeImage(svc service.PrintService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		src, closeSrc, err := imageSource(c)
		if err != nil {
			respondError(c, "invalid upload", err)
			return
		}
		defer closeSrc()

		useCase := c.PostForm(fieldUseCase)
		if useCase == "" {
			respondError(c, "invalid request", apperrors.NewValidationError("use_case is required", nil))
			return
		}

		img, err := svc.LoadImage(ctx, src)
		if err != nil {
			respondError(c, "failed to load image", err)
			return
		}

		resp := svc.Analyze(ctx, img, useCase)

		logger.WithFields(logrus.Fields{
			"source":             src.Name(),
			"use_case":           useCase,
			"resolution":         resp.Report.Resolution,
			"bleed":              resp.Report.Bleed,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Print analysis completed successfully")

		c.JSON(http.StatusOK, resp)
	}
}

func processImage(svc service.PrintService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		src, closeSrc, err := imageSource(c)
		if err != nil {
			respondError(c, "invalid upload", err)
			return
		}
		defer closeSrc()

		pad := bleed.ParsePad(c.PostForm(fieldBleedPx))
		if cfg.MaxBleedPx > 0 && pad > cfg.MaxBleedPx {
			err := apperrors.NewValidationError("bleed_px too large", nil).
				WithDetails(fmt.Sprintf("bleed_px must be at most %d", cfg.MaxBleedPx))
			respondError(c, "invalid request", err)
			return
		}

		img, err := svc.LoadImage(ctx, src)
		if err != nil {
			respondError(c, "failed to load image", err)
			return
		}

		result, err := svc.Process(ctx, img, pad)
		if err != nil {
			respondError(c, "failed to process image", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"source":             src.Name(),
			"bleed_px":           result.Pad,
			"width":              result.Width,
			"height":             result.Height,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Bleed processing completed successfully")

		t := result.TrimBox
		c.Header(headerOutputWidth, strconv.Itoa(result.Width))
		c.Header(headerOutputHeight, strconv.Itoa(result.Height))
		c.Header(headerBleedPx, strconv.Itoa(result.Pad))
		c.Header(headerTrimBox, fmt.Sprintf("%d,%d,%d,%d", t.Min.X, t.Min.Y, t.Max.X, t.Max.Y))
		c.Header("Content-Disposition", `inline; filename="bleed.png"`)
		c.Data(http.StatusOK, "image/png", result.PNG)
	}
}

// imageSource reads the file field, falling back to the url field. The
// returned close func is always safe to call.
func imageSource(c *gin.Context) (models.ImageSource, func(), error) {
	noop := func() {}

	header, err := c.FormFile(fieldFile)
	switch {
	case err == nil:
		f, err := header.Open()
		if err != nil {
			return models.ImageSource{}, noop, apperrors.NewValidationError("could not read uploaded file", err)
		}
		return models.ImageSource{Upload: f, Filename: header.Filename}, func() { f.Close() }, nil
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return models.ImageSource{URL: c.PostForm(fieldURL)}, noop, nil
	default:
		return models.ImageSource{}, noop, err
	}
}

func root(c *gin.Context) {
	c.JSON(http.StatusOK, models.MessageResponse{Message: rootMessage})
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Version: version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

func statsHandler(stats *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Snapshot())
	}
}

// Middleware and helper functions

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{headerOutputWidth, headerOutputHeight, headerBleedPx, headerTrimBox},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			respondError(c, "request processing failed", c.Errors.Last().Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &appErr):
		return appErr.StatusCode
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, message string, err error) {
	code := determineStatusCode(err)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		resp.Details = appErr.Details
	}
	c.AbortWithStatusJSON(code, resp)
}
