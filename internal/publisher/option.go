package publisher

import (
	"errors"

	"go.uber.org/zap"
)

type Option func(p *Publisher) error

// WithLogger returns an Option which sets the publisher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		p.logger = logger
		return nil
	}
}

// WithDialer returns an Option which sets the dialer used to reach the broker.
func WithDialer(d Dialer) Option {
	return func(p *Publisher) error {
		if d == nil {
			return errors.New("nil dialer")
		}
		p.dialer = d
		return nil
	}
}
