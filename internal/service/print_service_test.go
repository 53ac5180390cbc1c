package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/daisler/print-analyzer/internal/analyzer"
	apperrors "github.com/daisler/print-analyzer/internal/errors"
	"github.com/daisler/print-analyzer/internal/imageio"
	"github.com/daisler/print-analyzer/internal/observer"
	"github.com/daisler/print-analyzer/internal/storage"
	"github.com/daisler/print-analyzer/pkg/models"
	"github.com/daisler/print-analyzer/pkg/validation"
)

type stubFetcher struct {
	img   image.Image
	err   error
	calls int
	// wait blocks until the context is done when set
	wait bool
}

func (f *stubFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	f.calls++
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.img, f.err
}

func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

func newTestService(f *stubFetcher) (PrintService, *observer.MetricsObserver) {
	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)
	return NewPrintService(f, validation.NewURLValidator(), events, time.Second, 0), metrics
}

func TestLoadImage_Upload(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(12, 8, color.RGBA{1, 2, 3, 255})); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f := &stubFetcher{}
	svc, metrics := newTestService(f)

	img, err := svc.LoadImage(context.Background(), models.ImageSource{Upload: &buf, Filename: "card.png", URL: "https://ignored.example.com/x.png"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 8 {
		t.Errorf("Unexpected bounds %v", img.Bounds())
	}
	if f.calls != 0 {
		t.Error("Expected upload to take precedence over url")
	}
	if metrics.Snapshot().ImagesLoaded != 1 {
		t.Error("Expected image_loaded event")
	}
}

func TestLoadImage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      models.ImageSource
		fetcher  *stubFetcher
		wantType apperrors.ErrorType
	}{
		{
			name:     "nothing supplied",
			src:      models.ImageSource{},
			fetcher:  &stubFetcher{},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "garbage upload",
			src:      models.ImageSource{Upload: strings.NewReader("not an image")},
			fetcher:  &stubFetcher{},
			wantType: apperrors.ErrorTypeUnsupportedMedia,
		},
		{
			name:     "invalid url",
			src:      models.ImageSource{URL: "ftp://example.com/a.png"},
			fetcher:  &stubFetcher{},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "network failure",
			src:      models.ImageSource{URL: "https://example.com/a.png"},
			fetcher:  &stubFetcher{err: errors.New("connection refused")},
			wantType: apperrors.ErrorTypeNetwork,
		},
		{
			name:     "remote not an image",
			src:      models.ImageSource{URL: "https://example.com/a.png"},
			fetcher:  &stubFetcher{err: fmt.Errorf("%w: bad header", imageio.ErrUndecodable)},
			wantType: apperrors.ErrorTypeUnsupportedMedia,
		},
		{
			name:     "remote body too large",
			src:      models.ImageSource{URL: "https://example.com/a.png"},
			fetcher:  &stubFetcher{err: fmt.Errorf("read: %w", storage.ErrSourceTooLarge)},
			wantType: apperrors.ErrorTypeTooLarge,
		},
		{
			name:     "remote image dimensions too large",
			src:      models.ImageSource{URL: "https://example.com/a.png"},
			fetcher:  &stubFetcher{err: fmt.Errorf("%w: 40000x1", imageio.ErrImageTooLarge)},
			wantType: apperrors.ErrorTypeTooLarge,
		},
		{
			name:     "private address",
			src:      models.ImageSource{URL: "https://example.com/a.png"},
			fetcher:  &stubFetcher{err: fmt.Errorf("dial: %w", storage.ErrPrivateAddress)},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "loopback literal",
			src:      models.ImageSource{URL: "http://127.0.0.1/a.png"},
			fetcher:  &stubFetcher{},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "fetch timeout",
			src:      models.ImageSource{URL: "https://example.com/a.png"},
			fetcher:  &stubFetcher{wait: true},
			wantType: apperrors.ErrorTypeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := observer.NewEventPublisher()
			metrics := observer.NewMetricsObserver()
			events.Subscribe(metrics)
			svc := NewPrintService(tt.fetcher, validation.NewURLValidator(), events, 20*time.Millisecond, 0)

			_, err := svc.LoadImage(context.Background(), tt.src)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected %s error, got %v", tt.wantType, err)
			}
			if metrics.Snapshot().ImageLoadFailures != 1 {
				t.Error("Expected image_load_failed event")
			}
		})
	}
}

func TestLoadImage_URL(t *testing.T) {
	f := &stubFetcher{img: createTestImage(5, 5, color.RGBA{0, 0, 0, 255})}
	svc, _ := newTestService(f)

	img, err := svc.LoadImage(context.Background(), models.ImageSource{URL: "https://example.com/a.png"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if img.Bounds().Dx() != 5 || f.calls != 1 {
		t.Errorf("Expected fetched image, got %v after %d calls", img.Bounds(), f.calls)
	}
}

func TestAnalyze(t *testing.T) {
	svc, metrics := newTestService(&stubFetcher{})

	resp := svc.Analyze(context.Background(), createTestImage(640, 480, color.RGBA{9, 9, 9, 255}), "Business Card")

	if resp.Report.Bleed != analyzer.BleedRequired {
		t.Errorf("Expected bleed required, got %s", resp.Report.Bleed)
	}
	if resp.Report.Resolution != analyzer.ResolutionModerate {
		t.Errorf("Expected moderate resolution, got %s", resp.Report.Resolution)
	}
	if resp.Analysis != resp.Report.String() {
		t.Error("Expected analysis text to be the rendered report")
	}
	if metrics.Snapshot().Analyses != 1 {
		t.Error("Expected analysis_completed event")
	}
}

func TestProcess(t *testing.T) {
	svc, metrics := newTestService(&stubFetcher{})
	src := createTestImage(100, 100, color.RGBA{200, 100, 50, 255})

	result, err := svc.Process(context.Background(), src, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Width != 120 || result.Height != 120 || result.Pad != 10 {
		t.Errorf("Unexpected result geometry: %+v", result)
	}
	if result.TrimBox != image.Rect(10, 10, 110, 110) {
		t.Errorf("Unexpected trim box %v", result.TrimBox)
	}

	decoded, err := png.Decode(bytes.NewReader(result.PNG))
	if err != nil {
		t.Fatalf("Expected valid PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 120 {
		t.Errorf("Unexpected decoded width %d", decoded.Bounds().Dx())
	}
	if metrics.Snapshot().BleedRenders != 1 {
		t.Error("Expected bleed_completed event")
	}
}

func TestProcess_NegativePadClamped(t *testing.T) {
	svc, _ := newTestService(&stubFetcher{})

	result, err := svc.Process(context.Background(), createTestImage(20, 10, color.RGBA{A: 255}), -4)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Pad != 0 || result.Width != 20 || result.Height != 10 {
		t.Errorf("Expected pad clamped to 0, got %+v", result)
	}
}

func TestProcess_CanceledContext(t *testing.T) {
	svc, metrics := newTestService(&stubFetcher{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Process(ctx, createTestImage(10, 10, color.RGBA{A: 255}), 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected canceled error, got %v", err)
	}
	if metrics.Snapshot().BleedFailures != 1 {
		t.Error("Expected bleed_failed event")
	}
}

func TestLoadImage_UploadOverPixelLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(40, 40, color.RGBA{A: 255})); err != nil {
		t.Fatalf("encode: %v", err)
	}

	events := observer.NewEventPublisher()
	svc := NewPrintService(&stubFetcher{}, validation.NewURLValidator(), events, time.Second, 1000)

	_, err := svc.LoadImage(context.Background(), models.ImageSource{Upload: &buf, Filename: "big.png"})
	if !apperrors.IsType(err, apperrors.ErrorTypeTooLarge) {
		t.Fatalf("Expected too_large error, got %v", err)
	}
	if !errors.Is(err, imageio.ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge in the chain, got %v", err)
	}
}

func TestProcess_CanvasOverPixelLimit(t *testing.T) {
	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(metrics)
	svc := NewPrintService(&stubFetcher{}, validation.NewURLValidator(), events, time.Second, 1000)

	// 20x20 fits, but the 60x60 canvas does not.
	_, err := svc.Process(context.Background(), createTestImage(20, 20, color.RGBA{A: 255}), 20)
	if !apperrors.IsType(err, apperrors.ErrorTypeTooLarge) {
		t.Fatalf("Expected too_large error, got %v", err)
	}
	if metrics.Snapshot().BleedFailures != 1 {
		t.Error("Expected bleed_failed event")
	}

	if _, err := svc.Process(context.Background(), createTestImage(20, 20, color.RGBA{A: 255}), 5); err != nil {
		t.Errorf("Expected 30x30 canvas to fit, got %v", err)
	}
}

// cancelAfterFirstCheck reports cancellation from the second Err call on.
type cancelAfterFirstCheck struct {
	context.Context
	checks int
}

func (c *cancelAfterFirstCheck) Err() error {
	c.checks++
	if c.checks > 1 {
		return context.Canceled
	}
	return nil
}

func TestProcess_CanceledDuringRender(t *testing.T) {
	svc, metrics := newTestService(&stubFetcher{})
	ctx := &cancelAfterFirstCheck{Context: context.Background()}

	result, err := svc.Process(ctx, createTestImage(10, 10, color.RGBA{A: 255}), 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected canceled error, got result=%v err=%v", result != nil, err)
	}
	if ctx.checks != 2 {
		t.Errorf("Expected context checked before and after rendering, got %d checks", ctx.checks)
	}
	if s := metrics.Snapshot(); s.BleedFailures != 1 || s.BleedRenders != 0 {
		t.Errorf("Expected one failure and no completed render, got %+v", s)
	}
}
