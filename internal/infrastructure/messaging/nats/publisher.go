package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/cleanroom-telemetry/pkg/logger"
)

// DefaultStreamName is the JetStream stream receiving alert events.
const DefaultStreamName = "TELEMETRY_ALERTS"

// identifiable events carry an ID used for JetStream deduplication.
type identifiable interface {
	EventID() string
}

// asyncPublisher is the subset of nats.JetStreamContext used by the publisher.
type asyncPublisher interface {
	PublishMsgAsync(m *nats.Msg, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// Options configures the NATS publisher.
type Options struct {
	URL           string
	StreamName    string
	Subjects      []string
	MaxAge        time.Duration
	MaxReconnects int
}

// NATSPublisher implements EventPublisher for NATS JetStream
type NATSPublisher struct {
	nc     *nats.Conn
	js     asyncPublisher
	logger *logger.Logger
}

// NewNATSPublisher connects to NATS and makes sure the alert stream exists
func NewNATSPublisher(opts Options, log *logger.Logger) (*NATSPublisher, error) {
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = 10
	}
	if opts.StreamName == "" {
		opts.StreamName = DefaultStreamName
	}

	// Connect to NATS with retry
	nc, err := nats.Connect(opts.URL,
		nats.Name("cleanroom-telemetry"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Get JetStream context
	js, err := nc.JetStream(nats.PublishAsyncMaxPending(256))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if err := ensureStream(js, opts); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info("Connected to NATS", "url", opts.URL, "stream", opts.StreamName)

	return &NATSPublisher{
		nc:     nc,
		js:     js,
		logger: log,
	}, nil
}

func ensureStream(js nats.JetStreamContext, opts Options) error {
	subjects := opts.Subjects
	if len(subjects) == 0 {
		subjects = []string{"telemetry.alerts.>"}
	}

	_, err := js.StreamInfo(opts.StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %s: %w", opts.StreamName, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:       opts.StreamName,
		Subjects:   subjects,
		Storage:    nats.FileStorage,
		MaxAge:     opts.MaxAge,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", opts.StreamName, err)
	}
	return nil
}

// PublishEvent publishes an event to NATS (async)
func (p *NATSPublisher) PublishEvent(ctx context.Context, subject string, event interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Marshal event to JSON
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")

	var opts []nats.PubOpt
	if e, ok := event.(identifiable); ok && e.EventID() != "" {
		opts = append(opts, nats.MsgId(e.EventID()))
	}

	// Async publish (fire-and-forget for better performance)
	if _, err := p.js.PublishMsgAsync(msg, opts...); err != nil {
		p.logger.Error("Failed to publish event", err,
			"subject", subject,
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		"subject", subject,
		"size", len(data),
	)

	return nil
}

// Flush waits until all pending async publishes are acknowledged or ctx is done
func (p *NATSPublisher) Flush(ctx context.Context) error {
	select {
	case <-p.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending NATS publishes not acknowledged: %w", ctx.Err())
	}
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.logger.Info("Closing NATS connection")
		if err := p.nc.Drain(); err != nil {
			p.nc.Close()
		}
	}
	return nil
}
