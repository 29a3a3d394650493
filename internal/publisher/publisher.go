// Package publisher periodically publishes sensor readings to an MQTT broker,
// building a new session over a new connection whenever the previous one fails.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mqtt "github.com/soypat/sensor-mqtt"
	"github.com/soypat/sensor-mqtt/internal/sensor"
)

// Dialer opens transports to the broker. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Publisher samples a sensor.Reader and publishes every reading to a single topic.
type Publisher struct {
	cfg    Config
	reader sensor.Reader
	dialer Dialer
	logger *zap.Logger

	// Session buffers, reused by every session. Only one session exists at a time.
	wbuf []byte
	rbuf []byte
	// latest holds the most recent reading not yet published.
	latest chan sensor.Reading
}

// New creates a Publisher but does not connect. Call [Publisher.Run] to start.
func New(cfg Config, reader sensor.Reader, opts ...Option) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if reader == nil {
		return nil, errors.New("nil sensor reader")
	}
	p := &Publisher{
		cfg:    cfg,
		reader: reader,
		dialer: &net.Dialer{},
		wbuf:   make([]byte, cfg.BufferSize),
		rbuf:   make([]byte, cfg.BufferSize),
		latest: make(chan sensor.Reading, 1),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.logger == nil {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		p.logger = l
	}
	return p, nil
}

// Run samples and publishes until ctx is cancelled, in which case it returns nil.
// Session failures are logged and followed by a reconnect. Run only returns an
// error for failures a reconnect cannot fix, such as buffers too small for the
// configured client id.
func (p *Publisher) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return p.sample(gctx) })
	group.Go(func() error { return p.publish(gctx) })
	err := group.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// sample reads the sensor once per interval and keeps only the latest reading.
func (p *Publisher) sample(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		r, err := p.reader.Read(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			p.logger.Warn("Sensor read failed", zap.Error(err))
		default:
			for sent := false; !sent; {
				select {
				case p.latest <- r:
					sent = true
				case <-p.latest: // Drop the stale reading.
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// publish runs sessions one after the other, backing off between failures.
func (p *Publisher) publish(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryDelay
	bo.MaxInterval = p.cfg.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()
	for {
		err := p.runSession(ctx, bo.Reset)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			p.logger.Error("Publisher stopped", zap.Error(permanent.Err))
			return permanent.Err
		}
		d := bo.NextBackOff()
		p.logFailure(err, d)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runSession dials the broker, connects a new session and publishes readings
// until the session fails. onConnect is called after a successful CONNECT.
func (p *Publisher) runSession(ctx context.Context, onConnect func()) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	conn, err := p.dialer.DialContext(dialCtx, "tcp", p.cfg.Broker)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.cfg.Broker, err)
	}
	defer conn.Close()

	session, err := mqtt.NewSession(p.cfg.ClientID, conn, p.wbuf, len(p.wbuf), p.rbuf, len(p.rbuf))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("new session: %w", err))
	}
	connCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	err = session.Connect(connCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	p.logger.Info("Connected to broker", zap.String("broker", p.cfg.Broker),
		zap.String("client_id", session.ClientID()), zap.Bool("session_present", session.SessionPresent()))
	onConnect()

	for {
		var r sensor.Reading
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r = <-p.latest:
		}
		content, err := sensor.Format(r)
		if err != nil {
			p.logger.Warn("Dropping reading", zap.Error(err), zap.Uint16("raw", r.Raw))
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		err = session.Send(sendCtx, p.cfg.Topic, content)
		cancel()
		if err != nil {
			// Publish r on the next session unless a newer reading arrived.
			select {
			case p.latest <- r:
			default:
			}
			return fmt.Errorf("publish: %w", err)
		}
		p.logger.Debug("Published reading", zap.String("topic", p.cfg.Topic),
			zap.Uint16("raw", r.Raw), zap.Time("sampled_at", r.At))
	}
}

func (p *Publisher) logFailure(err error, retryIn time.Duration) {
	fields := []zap.Field{zap.Error(err), zap.Duration("retry_in", retryIn)}
	var e *mqtt.Error
	if errors.As(err, &e) {
		fields = append(fields, zap.Stringer("kind", e.Kind))
		if e.Kind == mqtt.KindOther {
			fields = append(fields, zap.String("description", e.Description()))
		}
	}
	p.logger.Warn("Session failed, reconnecting", fields...)
}
