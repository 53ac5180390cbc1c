package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daisler/print-analyzer/internal/imageio"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 0x80
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestFetcher() *HTTPImageFetcher {
	f := NewHTTPImageFetcher(5*time.Second, 1<<20, 1<<20).AllowPrivateNetworks()
	f.backoff = time.Millisecond
	return f
}

func TestHTTPImageFetcher_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int // Status codes to return in sequence
		expectRetries int   // Expected number of requests
		expectError   bool
		errorContains string
	}{
		{
			name:          "Success on first attempt",
			responses:     []int{200},
			expectRetries: 1,
		},
		{
			name:          "Success on second attempt after 5xx",
			responses:     []int{500, 200},
			expectRetries: 2,
		},
		{
			name:          "4xx client error - no retry",
			responses:     []int{404},
			expectRetries: 1,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "4xx after 5xx - should retry until 4xx then stop",
			responses:     []int{500, 404},
			expectRetries: 2,
			expectError:   true,
			errorContains: "client error: status code 404",
		},
		{
			name:          "All 5xx errors - retry all attempts",
			responses:     []int{500, 502, 503},
			expectRetries: 3,
			expectError:   true,
			errorContains: "server error: status code 503",
		},
	}

	body := pngBytes(t, 3, 2)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestCount := 0

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if requestCount >= len(tt.responses) {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				statusCode := tt.responses[requestCount]
				requestCount++

				if statusCode == http.StatusOK {
					w.Header().Set("Content-Type", "image/png")
					w.Write(body)
					return
				}
				w.WriteHeader(statusCode)
				w.Write([]byte(fmt.Sprintf("Error %d", statusCode)))
			}))
			defer server.Close()

			img, err := newTestFetcher().FetchImage(context.Background(), server.URL)

			if requestCount != tt.expectRetries {
				t.Errorf("Expected %d requests, got %d", tt.expectRetries, requestCount)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %s", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err.Error())
			}
			if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
				t.Errorf("Unexpected bounds %v", img.Bounds())
			}
		})
	}
}

func TestHTTPImageFetcher_NetworkError_Retry(t *testing.T) {
	requestCount := 0
	body := pngBytes(t, 1, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount < 3 {
			// Simulate network error by closing connection
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer server.Close()

	if _, err := newTestFetcher().FetchImage(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected success after retries, got error: %s", err.Error())
	}
	if requestCount != 3 {
		t.Errorf("Expected 3 requests, got %d", requestCount)
	}
}

func TestHTTPImageFetcher_NotAnImage(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Write([]byte("<html>nope</html>"))
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchImage(context.Background(), server.URL)
	if !errors.Is(err, imageio.ErrUndecodable) {
		t.Fatalf("Expected ErrUndecodable, got %v", err)
	}
	if requestCount != 1 {
		t.Errorf("Expected decode failures not to be retried, got %d requests", requestCount)
	}
}

func TestHTTPImageFetcher_BodyLimit(t *testing.T) {
	body := pngBytes(t, 64, 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	f := newTestFetcher()
	f.maxBytes = int64(len(body) / 2)

	_, err := f.FetchImage(context.Background(), server.URL)
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("Expected ErrSourceTooLarge, got %v", err)
	}
	if errors.Is(err, imageio.ErrUndecodable) {
		t.Error("Expected an oversized body not to be reported as undecodable")
	}

	f.maxBytes = int64(len(body))
	if _, err := f.FetchImage(context.Background(), server.URL); err != nil {
		t.Fatalf("Expected a body of exactly maxBytes to pass, got %v", err)
	}
}

func TestHTTPImageFetcher_PixelLimit(t *testing.T) {
	body := pngBytes(t, 64, 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	f := newTestFetcher()
	f.maxPixels = 1000

	if _, err := f.FetchImage(context.Background(), server.URL); !errors.Is(err, imageio.ErrImageTooLarge) {
		t.Fatalf("Expected ErrImageTooLarge, got %v", err)
	}
}

func TestHTTPImageFetcher_RefusesPrivateAddresses(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		w.Write(pngBytes(t, 1, 1))
	}))
	defer server.Close()

	f := NewHTTPImageFetcher(5*time.Second, 1<<20, 1<<20)
	f.backoff = time.Millisecond

	_, err := f.FetchImage(context.Background(), server.URL)
	if !errors.Is(err, ErrPrivateAddress) {
		t.Fatalf("Expected ErrPrivateAddress for a loopback server, got %v", err)
	}
	if requestCount != 0 {
		t.Errorf("Expected no request to reach the server, got %d", requestCount)
	}
}

func TestHTTPImageFetcher_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := newTestFetcher()
	f.backoff = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.FetchImage(ctx, server.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected backoff to stop when the context expires")
	}
}
