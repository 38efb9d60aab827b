package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/navindex/internal/config"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
)

// Publisher delivers index events.
type Publisher interface {
	PublishIndex(ctx context.Context, ev IndexPublished) error
	Close() error
}

// NoopPublisher drops every event (default when no NATS url is configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishIndex(context.Context, IndexPublished) error { return nil }
func (NoopPublisher) Close() error                                       { return nil }

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes events as JSON on a core NATS subject.
type NATSPublisher struct {
	conn     conn
	subject  string
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

const publishTimeout = 5 * time.Second

// Connect dials the server of cfg. Reconnects are handled by the client
// library and logged.
func Connect(cfg config.EventsConfig, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("navindex"),
		nats.Timeout(publishTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logfields.URL(cfg.NATSURL), logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", logfields.URL(c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, ferrors.EventsError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.NATSURL).
			Build()
	}
	logger.Info("NATS publisher connected", logfields.URL(cfg.NATSURL), logfields.Subject(cfg.Subject))
	return newNATSPublisher(nc, cfg.Subject, logger), nil
}

func newNATSPublisher(c conn, subject string, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:     c,
		subject:  subject,
		recorder: metrics.NoopRecorder{},
		logger:   logger,
		now:      time.Now,
	}
}

func (p *NATSPublisher) WithRecorder(r metrics.Recorder) *NATSPublisher {
	if r != nil {
		p.recorder = r
	}
	return p
}

// PublishIndex sends ev and waits for the server to acknowledge the flush.
func (p *NATSPublisher) PublishIndex(ctx context.Context, ev IndexPublished) error {
	err := p.publish(ctx, ev)
	p.recorder.IncEventPublish(err == nil)
	if err != nil {
		return ferrors.EventsError("failed to publish index event").
			WithCause(err).
			WithContext("subject", p.subject).
			WithContext("build_id", ev.BuildID).
			Build()
	}
	p.logger.Debug("Published index event", logfields.Subject(p.subject), logfields.BuildID(ev.BuildID), logfields.Count(ev.Documents))
	return nil
}

func (p *NATSPublisher) publish(ctx context.Context, ev IndexPublished) error {
	ev.Timestamp = p.now()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
