package pipeline

import (
	"fmt"
	"time"
)

// Config holds the batching and retry settings shared by the stages.
type Config struct {
	// BatchSize is the number of records sent in one service call
	BatchSize int

	// MaxRetries is the number of retries after the first failed attempt
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// BatchDelay is the pause after every successful batch
	BatchDelay time.Duration

	// CheckpointInterval saves a checkpoint every N documents (0 disables)
	CheckpointInterval int

	// ReportInterval is how often to report progress (number of items)
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:          100,
		MaxRetries:         3,
		RetryDelay:         1 * time.Second,
		BatchDelay:         100 * time.Millisecond,
		CheckpointInterval: 100,
		ReportInterval:     100,
	}
}

// Validate checks that every field is in range.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.RetryDelay < 0 || c.BatchDelay < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalidConfig)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("%w: checkpoint interval must not be negative", ErrInvalidConfig)
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("%w: report interval must be positive, got %d", ErrInvalidConfig, c.ReportInterval)
	}
	return nil
}

// RetryPolicy returns the retry settings of c with default error classification.
func (c *Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.RetryDelay,
	}
}

func resolveConfig(config *Config) (*Config, error) {
	if config == nil {
		return DefaultConfig(), nil
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
