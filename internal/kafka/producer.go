package kafka

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
)

// Producer publishes game events to Kafka. Delivery is fire-and-forget:
// events are keyed by game id so one session's stream stays ordered, and a
// full buffer drops the event with a warning rather than blocking a turn.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProducer creates an async Kafka producer for game events.
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = cfg.FlushInterval
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &Producer{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			p.logger.Warn("failed to publish game event", "error", err.Err)
		}
	}()

	return p, nil
}

// Publish implements game.EventSink.
func (p *Producer) Publish(event domain.GameEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal game event", "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
	default:
		p.logger.Warn("event buffer full, dropping event", "type", event.Type, "game_id", event.GameID)
	}
}

// Close flushes pending messages and shuts the producer down.
func (p *Producer) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}
