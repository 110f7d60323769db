package jobs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlDuration accepts Go duration strings ("5s", "2m") in the YAML file.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = yamlDuration(parsed)
	return nil
}

// queueFileEntry is one override row in the optional queue YAML file.
// Zero fields keep the default for that queue.
type queueFileEntry struct {
	Name        string       `yaml:"name"`
	Concurrency int          `yaml:"concurrency"`
	MaxAttempts int          `yaml:"max_attempts"`
	BackoffBase yamlDuration `yaml:"backoff_base"`
	Timeout     yamlDuration `yaml:"timeout"`
	RateCount   int          `yaml:"rate_count"`
	RateWindow  yamlDuration `yaml:"rate_window"`
}

type queueFile struct {
	Queues []queueFileEntry `yaml:"queues"`
}

// LoadQueueFile reads a YAML override file and merges it over
// DefaultQueues. Unknown queue names are rejected rather than silently
// created: the queue set is fixed, only its envelopes are tunable.
func LoadQueueFile(path string) (map[QueueName]QueueConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queue config %s: %w", path, err)
	}

	var file queueFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse queue config %s: %w", path, err)
	}

	queues := DefaultQueues()
	for _, entry := range file.Queues {
		name := QueueName(entry.Name)
		cfg, ok := queues[name]
		if !ok {
			return nil, fmt.Errorf("queue config %s names unknown queue %q", path, entry.Name)
		}
		if entry.Concurrency > 0 {
			cfg.Concurrency = entry.Concurrency
		}
		if entry.MaxAttempts > 0 {
			cfg.MaxAttempts = entry.MaxAttempts
		}
		if entry.BackoffBase > 0 {
			cfg.BackoffBase = time.Duration(entry.BackoffBase)
		}
		if entry.Timeout > 0 {
			cfg.Timeout = time.Duration(entry.Timeout)
		}
		if entry.RateCount > 0 && entry.RateWindow > 0 {
			cfg.RateLimit = &RateLimit{Count: entry.RateCount, Window: time.Duration(entry.RateWindow)}
		}
		queues[name] = cfg
	}
	return queues, nil
}
