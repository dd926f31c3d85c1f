// Command event-logger tails the game event stream from Kafka and prints
// each event, one JSON line per event. Useful for watching live games and
// for feeding the stream into log tooling.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kokodi-server/internal/config"
	"github.com/kokodi-server/internal/domain"
	"github.com/kokodi-server/internal/kafka"
)

type printHandler struct {
	logger *slog.Logger
}

func (h *printHandler) HandleEvent(ctx context.Context, event domain.GameEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	os.Stdout.Write(append(data, '\n'))
	return nil
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "game-events", "Kafka topic")
	groupID := flag.String("group", "game-events-logger", "Consumer group ID")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := &config.KafkaConfig{
		Enabled: true,
		Brokers: strings.Split(*brokers, ","),
		Topic:   *topic,
		GroupID: *groupID,
	}

	consumer, err := kafka.NewConsumer(cfg, &printHandler{logger: logger}, logger)
	if err != nil {
		logger.Error("failed to create consumer", "error", err)
		os.Exit(1)
	}

	if err := consumer.Start(); err != nil {
		logger.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}
	logger.Info("tailing game events", "topic", *topic, "brokers", cfg.Brokers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := consumer.Stop(); err != nil {
		logger.Error("failed to stop consumer", "error", err)
	}
}
