package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/routecast/routecast/pkg/geo"
)

// Job types carried in Pub/Sub messages.
const (
	JobForecastPrewarm = "forecast_prewarm"
	JobHealthCheck     = "health_check"
)

// ErrUnknownJobType is returned by Dispatch for messages it cannot route.
var ErrUnknownJobType = errors.New("unknown job type")

// healthCheckPoint is the single point the health check fetches.
var healthCheckPoint = geo.NewCoordinate(13.4050, 52.5200)

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *PrewarmJob
	Logger           zerolog.Logger
}

// JobMessage is the payload of a worker Pub/Sub message.
type JobMessage struct {
	JobType string `json:"job_type"`
	// Points optionally narrows a forecast_prewarm to specific coordinates.
	Points []MessagePoint `json:"points,omitempty"`
}

// MessagePoint is a coordinate in a JobMessage.
type MessagePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
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
		dispatcher:       NewDispatcher(cfg.Job, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start processes Pub/Sub messages until ctx is cancelled.
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
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack() // Ack unknown messages to prevent redelivery
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}

// Dispatcher routes decoded job messages to the prewarm job. It is
// separate from PubSubHandler so job handling does not need a Pub/Sub
// connection.
type Dispatcher struct {
	job    *PrewarmJob
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(job *PrewarmJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch decodes data as a JobMessage and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	startTime := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parsing message: %w", err)
	}

	var err error
	switch msg.JobType {
	case JobForecastPrewarm:
		err = d.prewarm(ctx, msg)
	case JobHealthCheck:
		err = d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
	if err != nil {
		return err
	}

	d.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return nil
}

func (d *Dispatcher) prewarm(ctx context.Context, msg JobMessage) error {
	points := d.job.config.Points
	if len(msg.Points) > 0 {
		points = make([]geo.Coordinate, 0, len(msg.Points))
		for _, p := range msg.Points {
			c := geo.NewCoordinate(p.Lon, p.Lat)
			if !c.Valid() {
				return fmt.Errorf("prewarm point %v,%v out of range", p.Lat, p.Lon)
			}
			points = append(points, c)
		}
	}

	result := d.job.RunPoints(ctx, points)

	// Consider it successful if at most half failed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many prewarm failures: %d/%d", result.Failed, result.TotalPoints)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	result := d.job.RunPoints(ctx, []geo.Coordinate{healthCheckPoint})
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", len(result.Errors))
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}
