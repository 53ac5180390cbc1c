package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the type of print job event
type EventType string

const (
	// ImageLoaded when an upload or remote source decoded successfully
	ImageLoaded EventType = "image_loaded"
	// ImageLoadFailed when the source could not be read or decoded
	ImageLoadFailed EventType = "image_load_failed"
	// AnalysisCompleted when a print-readiness report was produced
	AnalysisCompleted EventType = "analysis_completed"
	// BleedCompleted when a bleed canvas was rendered and encoded
	BleedCompleted EventType = "bleed_completed"
	// BleedFailed when rendering or encoding the canvas failed
	BleedFailed EventType = "bleed_failed"
)

// JobEvent describes one step of handling a request
type JobEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event JobEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event JobEvent)
}

// LoggingObserver logs job events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event JobEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ImageLoaded:
		entry.Debug("Source image loaded")
	case ImageLoadFailed:
		entry.Warn("Source image could not be loaded")
	case AnalysisCompleted:
		entry.Info("Print analysis completed")
	case BleedCompleted:
		entry.Info("Bleed canvas rendered")
	case BleedFailed:
		entry.Error("Bleed rendering failed")
	default:
		entry.Info("Job event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Stats is a snapshot of MetricsObserver counters
type Stats struct {
	ImagesLoaded        int64   `json:"images_loaded"`
	ImageLoadFailures   int64   `json:"image_load_failures"`
	Analyses            int64   `json:"analyses"`
	BleedRenders        int64   `json:"bleed_renders"`
	BleedFailures       int64   `json:"bleed_failures"`
	AvgBleedRenderMilli float64 `json:"avg_bleed_render_ms"`
}

// MetricsObserver counts job events
type MetricsObserver struct {
	mu    sync.RWMutex
	stats Stats
	// total render time backing AvgBleedRenderMilli
	bleedTime time.Duration
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event JobEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ImageLoaded:
		o.stats.ImagesLoaded++
	case ImageLoadFailed:
		o.stats.ImageLoadFailures++
	case AnalysisCompleted:
		o.stats.Analyses++
	case BleedCompleted:
		o.stats.BleedRenders++
		o.bleedTime += event.ProcessingTime
	case BleedFailed:
		o.stats.BleedFailures++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Snapshot returns the current counters
func (o *MetricsObserver) Snapshot() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := o.stats
	if s.BleedRenders > 0 {
		s.AvgBleedRenderMilli = float64(o.bleedTime.Microseconds()) / 1000 / float64(s.BleedRenders)
	}
	return s
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order.
// A panicking observer is logged and skipped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event JobEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event JobEvent) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
