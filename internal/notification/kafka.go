package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSender publishes messages as JSON records keyed by recipient, so all
// messages for one address land on the same partition in order.
type KafkaSender struct {
	client *kgo.Client
	topic  string
}

// KafkaConfig holds what the sender needs from the platform config.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

func NewKafkaSender(cfg KafkaConfig) (*KafkaSender, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka sender requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka sender requires a topic")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSender{client: client, topic: cfg.Topic}, nil
}

// EnsureTopic creates the notification topic if it does not exist yet.
func (s *KafkaSender) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)
	resps, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Ping checks that at least one broker is reachable.
func (s *KafkaSender) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *KafkaSender) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(msg.To),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "template", Value: []byte(msg.Template)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (s *KafkaSender) Close() {
	s.client.Close()
}
