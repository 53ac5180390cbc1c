package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"time"

	"github.com/daisler/print-analyzer/internal/analyzer"
	"github.com/daisler/print-analyzer/internal/bleed"
	apperrors "github.com/daisler/print-analyzer/internal/errors"
	"github.com/daisler/print-analyzer/internal/imageio"
	"github.com/daisler/print-analyzer/internal/observer"
	"github.com/daisler/print-analyzer/internal/storage"
	"github.com/daisler/print-analyzer/pkg/models"
	"github.com/daisler/print-analyzer/pkg/validation"
)

// PrintService connects image sources to the analyzer and the bleed compositor
type PrintService interface {
	// LoadImage decodes an upload or fetches a remote image
	LoadImage(ctx context.Context, src models.ImageSource) (image.Image, error)

	// Analyze builds the print-readiness report for img
	Analyze(ctx context.Context, img image.Image, useCase string) *models.AnalysisResponse

	// Process renders the bleed canvas for img and encodes it as PNG
	Process(ctx context.Context, img image.Image, pad int) (*models.ProcessResult, error)
}

type printService struct {
	fetcher      storage.ImageFetcher
	validator    *validation.URLValidator
	events       observer.Subject
	fetchTimeout time.Duration
	maxPixels    int64
}

// NewPrintService creates the service. maxPixels bounds both decoded uploads
// and rendered canvases; values <= 0 fall back to imageio.DefaultMaxPixels.
func NewPrintService(
	fetcher storage.ImageFetcher,
	validator *validation.URLValidator,
	events observer.Subject,
	fetchTimeout time.Duration,
	maxPixels int64,
) PrintService {
	if maxPixels <= 0 {
		maxPixels = imageio.DefaultMaxPixels
	}
	return &printService{
		fetcher:      fetcher,
		validator:    validator,
		events:       events,
		fetchTimeout: fetchTimeout,
		maxPixels:    maxPixels,
	}
}

func (s *printService) LoadImage(ctx context.Context, src models.ImageSource) (image.Image, error) {
	start := time.Now()
	img, err := s.loadImage(ctx, src)

	event := observer.JobEvent{
		EventType:      observer.ImageLoaded,
		Source:         src.Name(),
		ProcessingTime: time.Since(start),
	}
	if err != nil {
		event.EventType = observer.ImageLoadFailed
		event.ErrorMessage = err.Error()
	} else {
		b := img.Bounds()
		event.Metadata = map[string]interface{}{"width": b.Dx(), "height": b.Dy()}
	}
	s.events.NotifyObservers(ctx, event)

	return img, err
}

func (s *printService) loadImage(ctx context.Context, src models.ImageSource) (image.Image, error) {
	if src.Upload != nil {
		img, err := imageio.DecodeLimited(src.Upload, s.maxPixels)
		switch {
		case errors.Is(err, imageio.ErrImageTooLarge):
			return nil, apperrors.NewTooLargeError("uploaded image dimensions exceed the limit", err)
		case err != nil:
			return nil, apperrors.NewUnsupportedMediaError("uploaded file is not a supported image", err)
		}
		return img, nil
	}

	if src.URL == "" {
		return nil, apperrors.NewValidationError("an image file or url is required", nil)
	}
	if err := s.validator.ValidateImageURL(src.URL); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	img, err := s.fetcher.FetchImage(fetchCtx, src.URL)
	switch {
	case err == nil:
		return img, nil
	case errors.Is(err, context.DeadlineExceeded):
		return nil, apperrors.NewTimeoutError("image fetch timeout", err)
	case errors.Is(err, imageio.ErrImageTooLarge), errors.Is(err, storage.ErrSourceTooLarge):
		return nil, apperrors.NewTooLargeError("remote image exceeds the size limit", err)
	case errors.Is(err, storage.ErrPrivateAddress):
		return nil, apperrors.NewValidationError("URL host resolves to a private network", err)
	case errors.Is(err, imageio.ErrUndecodable):
		return nil, apperrors.NewUnsupportedMediaError("remote file is not a supported image", err)
	default:
		return nil, apperrors.NewNetworkError("failed to fetch image", err)
	}
}

func (s *printService) Analyze(ctx context.Context, img image.Image, useCase string) *models.AnalysisResponse {
	start := time.Now()
	report := analyzer.Analyze(img, useCase)
	elapsed := time.Since(start)

	s.events.NotifyObservers(ctx, observer.JobEvent{
		EventType:      observer.AnalysisCompleted,
		ProcessingTime: elapsed,
		Metadata: map[string]interface{}{
			"use_case":    useCase,
			"resolution":  report.Resolution,
			"orientation": report.Orientation,
			"bleed":       report.Bleed,
		},
	})

	return &models.AnalysisResponse{
		Analysis:          report.String(),
		Report:            report,
		ProcessingTimeSec: elapsed.Seconds(),
	}
}

func (s *printService) Process(ctx context.Context, img image.Image, pad int) (*models.ProcessResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.processFailed(ctx, contextError(err))
	}
	if pad < 0 {
		pad = 0
	}

	b := img.Bounds()
	if err := imageio.CheckBounds(b.Dx()+2*pad, b.Dy()+2*pad, s.maxPixels); err != nil {
		return nil, s.processFailed(ctx, apperrors.NewTooLargeError("bleed canvas exceeds the size limit", err))
	}

	start := time.Now()
	canvas := bleed.Process(img, pad)

	var buf bytes.Buffer
	if err := imageio.EncodePNG(&buf, canvas); err != nil {
		return nil, s.processFailed(ctx, apperrors.NewInternalError("failed to encode result", err))
	}
	elapsed := time.Since(start)

	if err := ctx.Err(); err != nil {
		return nil, s.processFailed(ctx, contextError(err))
	}

	result := &models.ProcessResult{
		PNG:     buf.Bytes(),
		Width:   canvas.Bounds().Dx(),
		Height:  canvas.Bounds().Dy(),
		Pad:     pad,
		TrimBox: bleed.TrimBox(b.Dx(), b.Dy(), pad),
	}

	s.events.NotifyObservers(ctx, observer.JobEvent{
		EventType:      observer.BleedCompleted,
		ProcessingTime: elapsed,
		Metadata: map[string]interface{}{
			"pad":       pad,
			"width":     result.Width,
			"height":    result.Height,
			"png_bytes": len(result.PNG),
		},
	})
	return result, nil
}

func (s *printService) processFailed(ctx context.Context, err *apperrors.AppError) error {
	s.events.NotifyObservers(ctx, observer.JobEvent{
		EventType:    observer.BleedFailed,
		ErrorMessage: err.Error(),
	})
	return err
}

func contextError(err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("request deadline exceeded", err)
	}
	return apperrors.NewProcessingError("request canceled", err)
}
