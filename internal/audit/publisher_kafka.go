package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	dErrors "github.com/sabbirahammad/currency/pkg/domain-errors"
)

const kafkaClientID = "currencyd"

// KafkaPublisher delivers audit events to a Kafka topic as JSON records.
// Records key on the identity so one identity's events stay ordered within
// a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects a producer for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, dErrors.New(dErrors.CodeConfiguration, "audit publisher requires at least one broker")
	}
	if topic == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "audit publisher requires a topic")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(kafkaClientID),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect audit producer: %w", err)
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic when the broker does not have it yet.
// Single partition, single replica: event volume is low and ordering simple.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(p.client)

	details, err := adm.ListTopics(ctx, p.topic)
	if err != nil {
		return fmt.Errorf("list audit topics: %w", err)
	}
	if details.Has(p.topic) {
		return nil
	}

	resp, err := adm.CreateTopics(ctx, 1, 1, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{Value: payload}
	if !event.IdentityID.IsNil() {
		record.Key = []byte(event.IdentityID.String())
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the producer.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	defer p.client.Close()
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush audit producer: %w", err)
	}
	return nil
}
