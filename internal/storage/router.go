package storage

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strings"
)

const azureBlobHostSuffix = ".blob.core.windows.net"

// SourceRouter sends blob-storage URLs to the Azure fetcher when one is
// configured and everything else to the HTTP fetcher.
type SourceRouter struct {
	http ImageFetcher
	blob ImageFetcher
}

// NewSourceRouter builds a router. blob may be nil, in which case public
// blob URLs are fetched over plain HTTP.
func NewSourceRouter(http ImageFetcher, blob ImageFetcher) *SourceRouter {
	return &SourceRouter{http: http, blob: blob}
}

func (r *SourceRouter) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	u, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if r.blob != nil && IsBlobHost(u.Hostname()) {
		return r.blob.FetchImage(ctx, imageURL)
	}
	return r.http.FetchImage(ctx, imageURL)
}

func IsBlobHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), azureBlobHostSuffix)
}
