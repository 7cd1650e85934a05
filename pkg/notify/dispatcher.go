package notify

import (
	"fmt"

	"tutorhub/pkg/config"
	"tutorhub/pkg/kafka"
	kafka_middleware "tutorhub/pkg/kafka/middleware"
	"tutorhub/pkg/metrics"
)

// NewDispatcher opens the transport selected by cfg.NotifyBackend. source
// names the emitting service in every event.
func NewDispatcher(cfg *config.Config, m *metrics.Metrics, source string) (Dispatcher, error) {
	switch cfg.NotifyBackend {
	case config.NotifyKafka:
		producer, err := kafka.NewProducer(&kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.NotifyTopic,
			DLQTopic:     cfg.KafkaDLQTopic,
			MaxAttempts:  cfg.KafkaMaxAttempts,
			WriteTimeout: cfg.KafkaWriteTimeout,
			RequireAcks:  cfg.KafkaRequireAcks,
			Compression:  cfg.KafkaCompression,
		}, cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka producer: %w", err)
		}
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(m))
		return NewKafkaDispatcher(producer, source), nil

	case config.NotifyAMQP:
		return NewAMQPDispatcher(cfg.AMQPURL, cfg.AMQPExchange, source)

	case config.NotifyLog:
		return NewLogDispatcher(cfg.Log), nil

	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
	}
}
