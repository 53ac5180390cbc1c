package container

import (
	"fmt"
	"net/http"

	"github.com/daisler/print-analyzer/internal/config"
	"github.com/daisler/print-analyzer/internal/logger"
	"github.com/daisler/print-analyzer/internal/observer"
	"github.com/daisler/print-analyzer/internal/service"
	"github.com/daisler/print-analyzer/internal/storage"
	"github.com/daisler/print-analyzer/internal/transport"
	"github.com/daisler/print-analyzer/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config       *config.Config
	imageFetcher storage.ImageFetcher
	events       *observer.EventPublisher
	metrics      *observer.MetricsObserver
	printService service.PrintService
	handler      http.Handler
}

// NewContainer wires the dependency graph for cfg
func NewContainer(cfg *config.Config) (*Container, error) {
	httpFetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize, cfg.MaxImagePixels)

	var fetcher storage.ImageFetcher = storage.NewSourceRouter(httpFetcher, nil)
	if cfg.AzureEnabled() {
		blobFetcher, err := storage.NewAzureBlobFetcher(cfg.AzureStorageAccount, cfg.AzureStorageKey,
			cfg.MaxRequestBodySize, cfg.MaxImagePixels)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize azure storage: %w", err)
		}
		fetcher = storage.NewSourceRouter(httpFetcher, blobFetcher)
	}

	// An explicit allow-list may name internal hosts, so private networks are
	// only reachable when one is configured.
	validator := validation.NewURLValidator()
	if len(cfg.ImageSourceHosts) > 0 {
		validator = validation.NewURLValidatorWithOptions([]string{"http", "https"}, cfg.ImageSourceHosts)
		httpFetcher.AllowPrivateNetworks()
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	printService := service.NewPrintService(fetcher, validator, events, cfg.ImageFetchTimeout, cfg.MaxImagePixels)
	handler := transport.NewHandler(printService, metrics, cfg)

	return &Container{
		config:       cfg,
		imageFetcher: fetcher,
		events:       events,
		metrics:      metrics,
		printService: printService,
		handler:      handler,
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// PrintService returns the service used by the HTTP layer
func (c *Container) PrintService() service.PrintService {
	return c.printService
}
