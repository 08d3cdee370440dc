// Package kafka provides a Kafka adapter satisfying broker.Broker,
// backed by sarama consumer groups. It demonstrates that the
// capability surface in pkg/broker is transport-agnostic: the same
// Connect/Subscribe/Flush/Close verbs that front NATS core pub/sub here
// front a Kafka consumer group.
package kafka

import (
	"context"
	"sync"

	"github.com/IBM/sarama"
	"github.com/nova-pipeline/joinbus/pkg/broker"
	"github.com/nova-pipeline/joinbus/pkg/concurrency"
)

// Config holds configuration for the Kafka adapter.
type Config struct {
	// GroupID is the consumer group ID used for every Subscribe call.
	GroupID string `env:"KAFKA_GROUP_ID" env-default:"joinbus"`

	// Brokers is the comma-separated list of seed broker addresses. If
	// empty, the url passed to Connect is used as the sole seed.
	Brokers []string `env:"KAFKA_BROKERS"`
}

// Broker is a sarama-consumer-group-backed implementation of broker.Broker.
type Broker struct {
	cfg    Config
	client sarama.ConsumerGroup
	mu     *concurrency.SmartMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an unconnected Kafka broker adapter.
func New(cfg Config) *Broker {
	return &Broker{
		cfg: cfg,
		mu:  concurrency.NewSmartMutex(concurrency.MutexConfig{Name: "KafkaBroker"}),
	}
}

func (b *Broker) Connect(ctx context.Context, url string) error {
	brokers := b.cfg.Brokers
	if len(brokers) == 0 {
		brokers = []string{url}
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_8_0_0
	saramaCfg.Consumer.Return.Errors = true

	client, err := sarama.NewConsumerGroup(brokers, b.cfg.GroupID, saramaCfg)
	if err != nil {
		return broker.ErrConnectFailure(err)
	}

	b.mu.Lock()
	b.client = client
	b.mu.Unlock()
	return nil
}

// Subscribe joins the consumer group for subject (treated as a Kafka
// topic) and dispatches each claimed message's value to handler on a
// dedicated goroutine that re-joins the group for the lifetime of ctx.
func (b *Broker) Subscribe(ctx context.Context, subject string, handler broker.FrameHandler) error {
	b.mu.Lock()
	client := b.client
	b.mu.Unlock()

	groupCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	consumerHandler := &consumerGroupHandler{handler: handler}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			if err := client.Consume(groupCtx, []string{subject}, consumerHandler); err != nil {
				if groupCtx.Err() != nil {
					return
				}
				continue
			}
			if groupCtx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

func (b *Broker) Flush(ctx context.Context) error {
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	client := b.client
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	b.wg.Wait()

	if client != nil {
		return client.Close()
	}
	return nil
}

type consumerGroupHandler struct {
	handler broker.FrameHandler
}

func (consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.handler(session.Context(), broker.Frame{Subject: msg.Topic, Data: msg.Value})
		session.MarkMessage(msg, "")
	}
	return nil
}
