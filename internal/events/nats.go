package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Config configures the NATS connection and subjects.
type Config struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	// SubjectPrefix is the first token of every learning event subject.
	SubjectPrefix string `koanf:"subject_prefix"`
	// FinalizedSubject is where finalized quotes arrive.
	FinalizedSubject string `koanf:"finalized_subject"`
	// QueueGroup spreads finalized quotes across daemon replicas.
	QueueGroup     string        `koanf:"queue_group"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	MaxReconnects  int           `koanf:"max_reconnects"`
}

// DefaultConfig returns the default NATS settings. Publishing is disabled.
func DefaultConfig() Config {
	return Config{
		URL:              nats.DefaultURL,
		SubjectPrefix:    "quotelearn",
		FinalizedSubject: "quotes.finalized",
		QueueGroup:       "quotelearn",
		ConnectTimeout:   10 * time.Second,
		MaxReconnects:    5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = d.SubjectPrefix
	}
	if c.FinalizedSubject == "" {
		c.FinalizedSubject = d.FinalizedSubject
	}
	if c.QueueGroup == "" {
		c.QueueGroup = d.QueueGroup
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = d.MaxReconnects
	}
	return c
}

// Connect dials NATS with reconnect handling logged through logger.
func Connect(cfg Config, logger *zap.Logger) (*nats.Conn, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("quotelearn"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(1*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// NATSPublisher publishes learning events as JSON on core NATS.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
}

// NewNATSPublisher publishes on an existing connection. Close does not
// close nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// NewPublisher returns a NopPublisher when publishing is disabled, and a
// NATSPublisher that owns its connection otherwise.
func NewPublisher(cfg Config, logger *zap.Logger) (Publisher, error) {
	if !cfg.Enabled {
		return NopPublisher{}, nil
	}
	cfg = cfg.withDefaults()
	nc, err := Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := Subject(p.prefix, e)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	p.logger.Debug("published learning event",
		zap.String("subject", subject),
		zap.String("event_id", e.ID))
	return nil
}

// Close drains the connection when the publisher owns it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.nc.Drain()
}

// Subscribe decodes JSON messages on subject into T and passes them to
// handle. Messages that fail to decode are logged and dropped. With a
// non-empty queue, replicas in the same group share the messages.
func Subscribe[T any](
	ctx context.Context,
	nc *nats.Conn,
	subject, queue string,
	logger *zap.Logger,
	handle func(context.Context, T),
) (*nats.Subscription, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			logger.Warn("dropping undecodable message",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}
		handle(ctx, v)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = nc.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = nc.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}

var _ Publisher = (*NATSPublisher)(nil)
