package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

// Producer is a synchronous Kafka publisher for chat events. Acks wait for
// the full ISR and the producer is idempotent, so a broker-side retry cannot
// duplicate an event.
type Producer struct {
	sync sarama.SyncProducer
}

// NewProducer connects a sync producer to the given brokers. cfg may be nil;
// the event-publishing settings are enforced either way.
func NewProducer(brokers []string, cfg *sarama.Config) (*Producer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Producer.Return.Successes = true
	// sarama requires a single in-flight request per broker for the
	// idempotent producer.
	cfg.Net.MaxOpenRequests = 1
	sync, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{sync: sync}, nil
}

// Publish sends one keyed record to the topic. The key is the conversation
// id, which keeps a conversation's events in partition order.
func (p *Producer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	hs := make([]sarama.RecordHeader, 0, len(headers))
	for k, v := range headers {
		hs = append(hs, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(payload),
		Headers: hs,
	}
	_, _, err := p.sync.SendMessage(msg)
	return err
}

func (p *Producer) Close() error {
	if p.sync == nil {
		return nil
	}
	return p.sync.Close()
}
