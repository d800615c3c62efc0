package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/breathway/breathway/internal/geo"
)

// Job types carried in refresh messages.
const (
	JobExposureRefresh = "exposure_refresh"
	JobHealthCheck     = "health_check"
)

// ErrUnknownJob is returned for messages with an unrecognised job type.
var ErrUnknownJob = errors.New("unknown job type")

// healthCheckPoint is probed by health check messages.
var healthCheckPoint = geo.Point{Lat: 28.6139, Lon: 77.2090}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// RefreshMessage represents a refresh job message.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Kind limits an exposure refresh to one region table.
	Kind Kind `json:"kind,omitempty"`
}

// Processor executes refresh messages independently of the transport.
type Processor struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewProcessor creates a processor for job.
func NewProcessor(job *RefreshJob, logger zerolog.Logger) *Processor {
	return &Processor{job: job, logger: logger}
}

// Process runs the job described by data. A nil error means the message can
// be acknowledged; ErrUnknownJob should also be acknowledged.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parsing message: %w", err)
	}

	switch msg.JobType {
	case JobExposureRefresh:
		return p.exposureRefresh(ctx, msg)
	case JobHealthCheck:
		return p.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (p *Processor) exposureRefresh(ctx context.Context, msg RefreshMessage) error {
	if msg.Kind != "" {
		snap, err := p.job.RefreshKind(ctx, msg.Kind)
		if err != nil {
			return err
		}
		if snap.Failed > len(snap.Regions) {
			return fmt.Errorf("too many refresh failures: %d/%d", snap.Failed, snap.Failed+len(snap.Regions))
		}
		return nil
	}

	result := p.job.Run(ctx)

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (p *Processor) healthCheck(ctx context.Context) error {
	p.logger.Debug().Msg("running health check")

	if _, err := p.job.source.GetReading(ctx, healthCheckPoint.Lat, healthCheckPoint.Lon); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	p.logger.Debug().Msg("health check passed")
	return nil
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        NewProcessor(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().
			Dur("duration", time.Since(startTime)).
			Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrUnknownJob):
		// Ack unknown messages to prevent redelivery
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}
