package natsx

import (
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectMessageCreated carries every persisted message as JSON for
// out-of-process consumers (audit, offline notification pipelines).
const SubjectMessageCreated = "chat.message.created"

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

type Publisher struct {
	nc *nats.Conn
}

// NewPublisher connects to NATS in core mode.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

// Publish sends data on subject. Nil-safe: a disabled publisher drops the
// event silently so the send path never depends on the broker.
func (p *Publisher) Publish(subject string, data []byte) error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Publish(subject, data)
}

func (p *Publisher) Close() error {
	if p == nil || p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
