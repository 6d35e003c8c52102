//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"safepilgrim/internal/platform/config"
	"safepilgrim/internal/platform/kafka"
	audit "safepilgrim/pkg/platform/audit"
	kafkastore "safepilgrim/pkg/platform/audit/store/kafka"
	"safepilgrim/pkg/testutil/containers"
)

type KafkaSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	client   *kafka.Client
}

func TestKafkaSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSuite))
}

func (s *KafkaSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
	client, err := kafka.New(config.KafkaConfig{
		Brokers:    []string{s.redpanda.Broker},
		AuditTopic: "digitalid.audit.test",
	})
	s.Require().NoError(err)
	s.client = client
}

func (s *KafkaSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *KafkaSuite) TestEnsureTopicIsIdempotent() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Require().NoError(s.client.EnsureTopic(ctx, "digitalid.audit.test", 1, 1))
	s.Require().NoError(s.client.EnsureTopic(ctx, "digitalid.audit.test", 1, 1))
	s.Require().NoError(s.client.Health(ctx))
}

func (s *KafkaSuite) TestAuditEventRoundTrip() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "digitalid.audit.roundtrip"
	s.Require().NoError(s.client.EnsureTopic(ctx, topic, 1, 1))

	store := kafkastore.New(s.client, topic)
	s.Require().NoError(store.Append(ctx, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: time.Now(),
		Subject:   "SP-KAFKA001",
		Action:    string(audit.EventDigitalIDIssued),
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().Empty(fetches.Errors())
	records := fetches.Records()
	s.Require().NotEmpty(records)
	s.Equal("SP-KAFKA001", string(records[0].Key))
	s.Contains(string(records[0].Value), `"action":"digital_id_issued"`)
}
