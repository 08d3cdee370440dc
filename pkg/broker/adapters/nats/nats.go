// Package nats provides a NATS core pub/sub adapter satisfying
// broker.Broker.
//
// Only core NATS is used — no JetStream. The Join/Subscription Engine
// has no persistence requirement (spec Non-goals: no persistence of
// in-flight fragments across restarts), so the durable-consumer half of
// a JetStream integration has nothing in this module to serve; core
// pub/sub's at-most-once semantics pass through unchanged, as intended.
package nats

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nova-pipeline/joinbus/pkg/broker"
	"github.com/nova-pipeline/joinbus/pkg/concurrency"
)

// Config holds configuration for the NATS adapter.
type Config struct {
	// Name is the client connection name.
	Name string `env:"NATS_CLIENT_NAME" env-default:"joinbus"`

	// CredsFile, Token, User/Password select an authentication method;
	// at most one should be set.
	CredsFile string `env:"NATS_CREDS_FILE"`
	Token     string `env:"NATS_TOKEN"`
	User      string `env:"NATS_USER"`
	Password  string `env:"NATS_PASSWORD"`
}

// Broker is a core-NATS implementation of broker.Broker.
type Broker struct {
	cfg  Config
	conn *nats.Conn
	mu   *concurrency.SmartMutex
	subs []*nats.Subscription
}

// New creates an unconnected NATS broker adapter.
func New(cfg Config) *Broker {
	return &Broker{
		cfg: cfg,
		mu:  concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "NATSBroker"}),
	}
}

func (b *Broker) Connect(ctx context.Context, url string) error {
	opts := []nats.Option{
		nats.Name(b.cfg.Name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
	}

	switch {
	case b.cfg.CredsFile != "":
		opts = append(opts, nats.UserCredentials(b.cfg.CredsFile))
	case b.cfg.Token != "":
		opts = append(opts, nats.Token(b.cfg.Token))
	case b.cfg.User != "":
		opts = append(opts, nats.UserInfo(b.cfg.User, b.cfg.Password))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return broker.ErrConnectFailure(err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, subject string, handler broker.FrameHandler) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, broker.Frame{Subject: msg.Subject, Data: msg.Data})
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return nil
}

func (b *Broker) Flush(ctx context.Context) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	return conn.FlushWithContext(ctx)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}

	var wg sync.WaitGroup
	for _, sub := range b.subs {
		wg.Add(1)
		go func(s *nats.Subscription) {
			defer wg.Done()
			_ = s.Unsubscribe()
		}(sub)
	}
	wg.Wait()

	b.conn.Close()
	b.conn = nil
	return nil
}
