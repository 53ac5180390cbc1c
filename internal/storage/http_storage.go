package storage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/daisler/print-analyzer/internal/imageio"
	"github.com/daisler/print-analyzer/pkg/validation"
)

const maxAttempts = 3

// ErrPrivateAddress is returned when a source URL resolves to a loopback,
// private or link-local address and private networks are not allowed.
var ErrPrivateAddress = errors.New("source resolves to a private network address")

// ImageFetcher loads a source image from a remote location and returns it
// as an opaque RGB bitmap.
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)
}

// HTTPImageFetcher downloads images over plain HTTP(S) with retries.
type HTTPImageFetcher struct {
	client    *http.Client
	maxBytes  int64
	maxPixels int64
	// backoff is multiplied by the attempt number between retries.
	backoff      time.Duration
	allowPrivate bool
}

// NewHTTPImageFetcher creates an HTTP image fetcher. Bodies over maxBytes
// fail with ErrSourceTooLarge, images over maxPixels with
// imageio.ErrImageTooLarge. Connections to private addresses are refused
// until AllowPrivateNetworks is called.
func NewHTTPImageFetcher(timeout time.Duration, maxBytes, maxPixels int64) *HTTPImageFetcher {
	h := &HTTPImageFetcher{
		maxBytes:  maxBytes,
		maxPixels: maxPixels,
		backoff:   time.Second,
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   h.checkDialAddress,
	}
	transport := &http.Transport{
		DialContext:            dialer.DialContext,
		MaxIdleConns:           10,
		MaxIdleConnsPerHost:    2,
		IdleConnTimeout:        30 * time.Second,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  10 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		MaxResponseHeaderBytes: 4096,
	}

	h.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects (limit: 3)")
			}
			return nil
		},
	}
	return h
}

// AllowPrivateNetworks lets the fetcher connect to loopback, private and
// link-local addresses. Used when the operator configures a host allow-list.
func (h *HTTPImageFetcher) AllowPrivateNetworks() *HTTPImageFetcher {
	h.allowPrivate = true
	return h
}

// checkDialAddress runs after DNS resolution, so it also covers names that
// point at internal addresses.
func (h *HTTPImageFetcher) checkDialAddress(network, address string, _ syscall.RawConn) error {
	if h.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip != nil && validation.IsPrivateIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

func (h *HTTPImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("Accept", "image/png, image/jpeg, image/webp, image/gif, image/bmp, image/tiff, */*")
	req.Header.Set("User-Agent", "Daisler-Print-Analyzer/1.0")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		img, retry, err := h.fetchOnce(req)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !retry || attempt == maxAttempts {
			break
		}

		// Linear backoff, abandoned if the caller gives up first
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * h.backoff):
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", maxAttempts, lastErr)
}

// fetchOnce performs a single GET. retry reports whether a failure is
// transient (transport errors and 5xx).
func (h *HTTPImageFetcher) fetchOnce(req *http.Request) (img image.Image, retry bool, err error) {
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, ErrPrivateAddress) {
			return nil, false, err
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	body, err := readLimited(resp.Body, h.maxBytes)
	if err != nil {
		return nil, false, err
	}
	decoded, err := imageio.DecodeLimited(body, h.maxPixels)
	if err != nil {
		return nil, false, err
	}
	return decoded, false, nil
}
