// Package kafka carries events over Kafka: a consumer-group Source that
// feeds the pipeline and a synchronous producer Sink for emitted frames.
package kafka

import (
	"context"
	stderrors "errors"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ajitpratap0/xdrflow/pkg/config"
	"github.com/ajitpratap0/xdrflow/pkg/errors"
	"github.com/ajitpratap0/xdrflow/pkg/event"
	"github.com/ajitpratap0/xdrflow/pkg/observability"
)

// SaramaConfig builds the client configuration shared by Source and Sink.
func SaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "invalid kafka version %q", cfg.Version)
		}
		sc.Version = v
	}
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	switch cfg.RequiredAcks {
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	case "all":
		sc.Producer.RequiredAcks = sarama.WaitForAll
	default:
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	switch cfg.InitialOffset {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return sc, nil
}

// Source consumes a topic through a consumer group. Offsets are marked
// once the event has been handed to the pipeline.
type Source struct {
	group  sarama.ConsumerGroup
	topics []string
	buffer int
	logger *zap.Logger
}

// NewSource connects a consumer group for cfg.Topic.
func NewSource(cfg config.KafkaConfig, buffer int, logger *zap.Logger) (*Source, error) {
	sc, err := SaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create consumer group").
			WithDetail("group", cfg.GroupID)
	}
	return NewSourceFromGroup(group, []string{cfg.Topic}, buffer, logger), nil
}

// NewSourceFromGroup wraps an existing consumer group.
func NewSourceFromGroup(group sarama.ConsumerGroup, topics []string, buffer int, logger *zap.Logger) *Source {
	return &Source{
		group:  group,
		topics: topics,
		buffer: buffer,
		logger: logger.With(zap.String("component", "kafka_source")),
	}
}

// Open starts consuming. The event channel closes when ctx is done or the
// group fails; a failure is reported on the error channel first.
func (s *Source) Open(ctx context.Context) (<-chan *event.Event, <-chan error) {
	events := make(chan *event.Event, s.buffer)
	errs := make(chan error, 1)
	handler := &consumerHandler{out: events, logger: s.logger}

	go func() {
		defer close(errs)
		defer close(events)
		for {
			if err := s.group.Consume(ctx, s.topics, handler); err != nil {
				if stderrors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				errs <- errors.Wrap(err, errors.ErrorTypeConnection, "kafka consume failed")
				return
			}
			// Consume returns on rebalance; rejoin until cancelled.
			if ctx.Err() != nil {
				return
			}
		}
	}()

	s.logger.Info("subscribed to kafka topics", zap.Strings("topics", s.topics))
	return events, errs
}

// Close leaves the consumer group.
func (s *Source) Close() error {
	if err := s.group.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close consumer group")
	}
	return nil
}

type consumerHandler struct {
	out    chan<- *event.Event
	logger *zap.Logger
}

// Setup implements sarama.ConsumerGroupHandler
func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case h.out <- toEvent(msg):
			case <-session.Context().Done():
				return nil
			}
			session.MarkMessage(msg, "")
			h.logger.Debug("consumed kafka message",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
		case <-session.Context().Done():
			return nil
		}
	}
}

func toEvent(msg *sarama.ConsumerMessage) *event.Event {
	ev := &event.Event{Body: msg.Value}
	for _, h := range msg.Headers {
		if h == nil {
			continue
		}
		ev.SetHeader(string(h.Key), string(h.Value))
	}
	return ev
}

// Sink publishes frames to a topic with a synchronous producer. Event
// headers become record headers, together with the trace context of the
// write.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewSink connects a producer for cfg.OutputTopic.
func NewSink(cfg config.KafkaConfig, logger *zap.Logger) (*Sink, error) {
	sc, err := SaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create producer")
	}
	return NewSinkFromProducer(producer, cfg.OutputTopic, logger), nil
}

// NewSinkFromProducer wraps an existing producer.
func NewSinkFromProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Sink {
	return &Sink{
		producer: producer,
		topic:    topic,
		logger:   logger.With(zap.String("component", "kafka_sink"), zap.String("topic", topic)),
	}
}

// Write sends one frame.
func (s *Sink) Write(ctx context.Context, ev *event.Event) error {
	headers := make(map[string]string, len(ev.Headers)+2)
	for k, v := range ev.Headers {
		headers[k] = v
	}
	observability.InjectHeaders(ctx, headers)

	msg := &sarama.ProducerMessage{
		Topic:   s.topic,
		Value:   sarama.ByteEncoder(ev.Body),
		Headers: make([]sarama.RecordHeader, 0, len(headers)),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := s.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to send frame").
			WithDetail("topic", s.topic)
	}
	s.logger.Debug("sent frame",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Int("bytes", len(ev.Body)))
	return nil
}

// Close closes the producer.
func (s *Sink) Close() error {
	if err := s.producer.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to close producer")
	}
	return nil
}
