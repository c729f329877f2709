// Package fanout is an optional cross-process broadcast bus: it
// republishes locally-produced DObject deltas onto a NATS subject and
// relays deltas received from NATS back to local sessions, so
// Queue.Broadcast / field mutation fan-out can scale past one server
// process (SPEC_FULL.md §3 "internal/fanout").
package fanout

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"odin-dobj/internal/dobject"
	"odin-dobj/internal/wire"
)

// Config configures the NATS connection backing the bus.
type Config struct {
	URL             string
	Subject         string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
}

// DefaultConfig returns sane NATS reconnect settings.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		Subject:         "odin.deltas",
		MaxReconnects:   -1, // retry forever; this is a best-effort side channel
		ReconnectWait:   2 * time.Second,
		ReconnectJitter: 500 * time.Millisecond,
	}
}

// Bus republishes and relays deltas across server processes.
type Bus struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// Connect dials NATS with the given Config.
func Connect(cfg Config, logger *zap.Logger) (*Bus, error) {
	b := &Bus{subject: cfg.Subject, logger: logger}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.ConnectHandler(func(c *nats.Conn) {
			logger.Info("fanout connected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("fanout disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("fanout reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn("fanout error", zap.Error(err))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("fanout: connect: %w", err)
	}
	b.conn = conn
	return b, nil
}

// Close closes the NATS connection without draining pending messages.
func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// PublishDelta republishes a locally-produced delta for path so other
// server processes subscribed to this subject can fan it out to their
// own sessions.
func (b *Bus) PublishDelta(path dobject.Path, payload []byte) error {
	key := path.Key()
	w := wire.NewWriter(len(key) + len(payload) + 8)
	w.WriteString(key)
	w.WriteRaw(payload)
	if err := b.conn.Publish(b.subject, w.Bytes()); err != nil {
		return fmt.Errorf("fanout: publish: %w", err)
	}
	return nil
}

// Subscribe registers handler to be invoked for every delta relayed from
// other processes; pathKey matches dobject.Path.Key(), which callers
// resolve back to a local object via their own path→object table.
func (b *Bus) Subscribe(handler func(pathKey string, payload []byte)) error {
	_, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		r := wire.NewReader(msg.Data)
		key, err := r.ReadString()
		if err != nil {
			b.logger.Warn("fanout: malformed relay message", zap.Error(err))
			return
		}
		handler(key, msg.Data[r.Pos():])
	})
	if err != nil {
		return fmt.Errorf("fanout: subscribe: %w", err)
	}
	return nil
}
