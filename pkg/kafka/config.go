package kafka

import (
	"errors"
	"time"
)

// ProducerConfig describes the writer behind a Producer. Zero values fall
// back to the writer defaults listed below.
type ProducerConfig struct {
	Brokers  []string
	Topic    string
	DLQTopic string

	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequireAcks  int    // -1 all, 0 none, 1 leader
	Compression  string // none, gzip, snappy, lz4, zstd
}

const (
	defaultMaxAttempts  = 3
	defaultBatchTimeout = 10 * time.Millisecond
	defaultWriteTimeout = 5 * time.Second
)

func (c *ProducerConfig) validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if len(c.Brokers) == 0 {
		return errors.New("at least one broker is required")
	}
	if c.Topic == "" {
		return errors.New("topic cannot be empty")
	}
	if c.DLQTopic != "" && c.DLQTopic == c.Topic {
		return errors.New("dead letter topic must differ from topic")
	}
	return nil
}

func (c *ProducerConfig) withDefaults() ProducerConfig {
	out := *c
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = defaultMaxAttempts
	}
	if out.BatchTimeout <= 0 {
		out.BatchTimeout = defaultBatchTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = defaultWriteTimeout
	}
	return out
}
