package storage

import (
	"context"
	"fmt"
	"image"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/daisler/print-analyzer/internal/imageio"
)

// AzureBlobFetcher reads source images from a private Azure storage account.
type AzureBlobFetcher struct {
	client    *azblob.Client
	maxBytes  int64
	maxPixels int64
}

func NewAzureBlobFetcher(accountName, accountKey string, maxBytes, maxPixels int64) (*AzureBlobFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &AzureBlobFetcher{client: client, maxBytes: maxBytes, maxPixels: maxPixels}, nil
}

// FetchImage expects https://<account>.blob.core.windows.net/<container>/<blob>.
func (s *AzureBlobFetcher) FetchImage(ctx context.Context, blobURL string) (image.Image, error) {
	container, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, s.maxBytes)
	if err != nil {
		return nil, err
	}
	img, err := imageio.DecodeLimited(body, s.maxPixels)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ParseBlobURL splits a blob URL into its container and blob name.
func ParseBlobURL(blobURL string) (container, blobName string, err error) {
	parts, err := azblob.ParseURL(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if parts.ContainerName == "" || parts.BlobName == "" {
		return "", "", fmt.Errorf("invalid blob URL %q: container and blob name are required", blobURL)
	}
	return parts.ContainerName, parts.BlobName, nil
}
