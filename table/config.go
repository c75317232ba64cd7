//go:build !solution

package table

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

var ErrInvalidConfig = errors.New("invalid table config")

// Config describes a dining session.
type Config struct {
	Philosophers int           `yaml:"philosophers"`
	Rounds       int           `yaml:"rounds"`
	ThinkTime    time.Duration `yaml:"think_time"`
	EatTime      time.Duration `yaml:"eat_time"`
	TalkTime     time.Duration `yaml:"talk_time"`
	TalkChance   float64       `yaml:"talk_chance"`
	Seed         int64         `yaml:"seed"`
	// Verify makes every philosopher audit its neighbours while eating.
	Verify bool `yaml:"verify"`
}

func DefaultConfig() Config {
	return Config{
		Philosophers: 4,
		Rounds:       10,
		TalkChance:   0.5,
		Seed:         1,
	}
}

// LoadConfig reads a YAML config. Missing keys keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	// Пустой файл - конфигурация по умолчанию
	if len(data) == 0 {
		return cfg, nil
	}

	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Philosophers <= 0:
		return fmt.Errorf("%w: philosophers must be positive, got %d", ErrInvalidConfig, c.Philosophers)
	case c.Rounds < 0:
		return fmt.Errorf("%w: rounds must be non-negative, got %d", ErrInvalidConfig, c.Rounds)
	case c.ThinkTime < 0 || c.EatTime < 0 || c.TalkTime < 0:
		return fmt.Errorf("%w: durations must be non-negative", ErrInvalidConfig)
	case c.TalkChance < 0 || c.TalkChance > 1:
		return fmt.Errorf("%w: talk_chance must be in [0, 1], got %v", ErrInvalidConfig, c.TalkChance)
	}
	return nil
}
