package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/telemetry"
)

// Dispatch errors.
var (
	ErrUnknownJobType   = errors.New("unknown job type")
	ErrMalformedMessage = errors.New("malformed job message")
)

// JobMessage is the payload published to the worker topic.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// DispatcherConfig holds the dependencies of the job dispatcher.
type DispatcherConfig struct {
	RefreshJob *RefreshJob
	Providers  *resilience.Registry
	Observer   ProviderObserver
	Logger     zerolog.Logger
}

// Dispatcher runs one job per message.
type Dispatcher struct {
	refreshJob *RefreshJob
	providers  *resilience.Registry
	observer   ProviderObserver
	logger     zerolog.Logger
}

// NewDispatcher creates a job dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		refreshJob: cfg.RefreshJob,
		providers:  cfg.Providers,
		observer:   cfg.Observer,
		logger:     cfg.Logger,
	}
}

// Handle decodes data and runs the job it names.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	switch msg.JobType {
	case JobScheduleRefresh:
		return d.handleScheduleRefresh(ctx)
	case JobHealthCheck:
		return d.handleHealthCheck()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (d *Dispatcher) handleScheduleRefresh(ctx context.Context) error {
	if d.refreshJob == nil {
		return nil
	}

	result := d.refreshJob.Run(ctx)

	// Consider it successful unless most months failed.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many schedule refresh failures: %d/%d", result.Failed, result.TotalMonths)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck() error {
	if d.providers == nil {
		return nil
	}
	if d.observer != nil {
		d.observer.ObserveProviders(d.providers)
	}

	for _, h := range d.providers.GetAllHealth() {
		if !h.IsHealthy() {
			d.logger.Warn().
				Str("provider", h.Name).
				Str("circuit_state", h.CircuitState.String()).
				Uint32("consecutive_failures", h.Counts.ConsecutiveFailures).
				Msg("provider not healthy")
		}
	}
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Dispatcher.
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
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
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
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.process(ctx, msg.ID, msg.PublishTime, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// process runs the message and reports whether it should be acked. Unknown
// job types are acked so they are not redelivered.
func (h *PubSubHandler) process(ctx context.Context, id string, published time.Time, data []byte) bool {
	return Process(ctx, h.dispatcher, h.logger.With().
		Str("message_id", id).
		Str("publish_time", published.Format(time.RFC3339)).
		Logger(), data)
}

// Process runs data through d and reports whether the message should be acked.
func Process(ctx context.Context, d *Dispatcher, logger zerolog.Logger, data []byte) bool {
	startTime := time.Now()
	logger.Debug().Msg("received job message")

	err := d.Handle(ctx, data)
	switch {
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Err(err).Msg("ignoring job")
		return true
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		telemetry.CaptureError(ctx, err, map[string]string{"component": "worker"})
		return false
	}

	logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
	return true
}
