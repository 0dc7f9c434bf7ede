package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher emits audit events to a Kafka topic keyed by the surviving
// primary's id, so all events for one identity land in one partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adm := kadm.NewClient(client)
	_, err = adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic %s: %w", topic, err)
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(stamp(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(event.PrimaryContactID, 10)),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}
