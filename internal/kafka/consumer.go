package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
)

// EventHandler processes consumed game events
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.GameEvent) error
}

// Consumer consumes game events from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       EventHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler EventHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins consuming events
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, c); err != nil {
				c.logger.Error("consumer group error", "error", err)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumerGroup.Errors() {
			c.logger.Error("kafka consumer error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the consumer down and waits for in-flight work
func (c *Consumer) Stop() error {
	c.cancel()
	err := c.consumerGroup.Close()
	c.wg.Wait()
	return err
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.logger.Info("kafka consumer session started")
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from one partition claim
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event domain.GameEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			c.logger.Warn("skipping malformed event",
				"partition", message.Partition,
				"offset", message.Offset,
				"error", err,
			)
			session.MarkMessage(message, "")
			continue
		}

		if err := c.handler.HandleEvent(session.Context(), event); err != nil {
			c.logger.Error("failed to handle event",
				"type", event.Type,
				"game_id", event.GameID,
				"error", err,
			)
		}
		session.MarkMessage(message, "")
	}
	return nil
}
