package provision

import (
	"errors"
	"fmt"
	"math"
	"regexp"

	"github.com/mitchellh/mapstructure"
)

// ErrInvalidTopicConfig is returned when the requested topic cannot be created as described
var ErrInvalidTopicConfig = errors.New("invalid topic configuration")

var legalTopicName = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,249}$`)

// TopicConfig describes the topic the resource ensures.
// It is read from ResourceProperties.topicConfig; absent fields keep the configured defaults.
type TopicConfig struct {
	Name              string `mapstructure:"topicName"`
	NumPartitions     int    `mapstructure:"numPartitions"`
	ReplicationFactor int    `mapstructure:"replicationFactor"`
}

// Validate checks the topic against Kafka's naming and sizing rules
func (c TopicConfig) Validate() error {
	if !legalTopicName.MatchString(c.Name) || c.Name == "." || c.Name == ".." {
		return fmt.Errorf("%w: illegal topic name %q", ErrInvalidTopicConfig, c.Name)
	}
	if c.NumPartitions < 1 || c.NumPartitions > math.MaxInt32 {
		return fmt.Errorf("%w: numPartitions must be positive, got %d", ErrInvalidTopicConfig, c.NumPartitions)
	}
	if c.ReplicationFactor < 1 || c.ReplicationFactor > math.MaxInt16 {
		return fmt.Errorf("%w: replicationFactor out of range, got %d", ErrInvalidTopicConfig, c.ReplicationFactor)
	}
	return nil
}

// DecodeTopicConfig reads the topicConfig property over the given defaults.
// CloudFormation delivers every scalar as a string, so numbers are decoded weakly.
func DecodeTopicConfig(raw map[string]interface{}, defaults TopicConfig) (TopicConfig, error) {
	cfg := defaults

	section, ok := raw["topicConfig"]
	if !ok || section == nil {
		return cfg, cfg.Validate()
	}
	if _, isMap := section.(map[string]interface{}); !isMap {
		return cfg, fmt.Errorf("%w: topicConfig must be an object, got %T", ErrInvalidTopicConfig, section)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to create properties decoder: %w", err)
	}
	if err := decoder.Decode(section); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidTopicConfig, err)
	}

	return cfg, cfg.Validate()
}
