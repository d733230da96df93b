package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config is the top-level service configuration loaded from file/env.
type Config struct {
	// FeatureID tags this instance; produced messages carry it as
	// container_feature_id and the health endpoint reports it.
	FeatureID string        `json:"feature_id"`
	Namespace string        `json:"namespace"`
	Produce   ProduceConfig `json:"produce"`
	Relay     RelayConfig   `json:"relay"`
	Queue     QueueConfig   `json:"queue"`
}

// ProduceConfig shapes the generation run executed per session job.
type ProduceConfig struct {
	// MessageCount is the number of application messages per session.
	MessageCount int `json:"message_count"`
	// PaceMs is the fixed delay after each message.
	PaceMs int64 `json:"pace_ms"`
	// WorkIterations sizes the simulated computation before each pace delay.
	WorkIterations int `json:"work_iterations"`
	// LogTTLMs is the session log time-to-live set once the terminal entry
	// is appended.
	LogTTLMs int64 `json:"log_ttl_ms"`
	// RetentionMaxBytes bounds a session log's size, applied best-effort
	// after appends. Zero disables the size trim.
	RetentionMaxBytes int64 `json:"retention_max_bytes"`
}

// RelayConfig shapes the per-connection tail loop.
type RelayConfig struct {
	// PollBlockMs bounds each blocking wait for new entries.
	PollBlockMs int64 `json:"poll_block_ms"`
	// MaxEmptyPolls is the inactivity ceiling: consecutive empty polls
	// before the relay emits a timeout error and stops.
	MaxEmptyPolls int `json:"max_empty_polls"`
	// BatchLimit caps entries fetched per read.
	BatchLimit int `json:"batch_limit"`
}

// QueueConfig shapes the job queue and its worker pool.
type QueueConfig struct {
	Name string `json:"name"`
	// MaxConcurrent caps jobs running at once in this process.
	MaxConcurrent int `json:"max_concurrent"`
	// LeaseMs is the initial lease horizon for a dequeued job.
	LeaseMs int64 `json:"lease_ms"`
	// ExtendEveryMs is how often a running job extends its lease.
	ExtendEveryMs int64 `json:"extend_every_ms"`
	// ResultTTLMs is how long completed job records are retained.
	ResultTTLMs int64 `json:"result_ttl_ms"`
	// SweepIntervalMs paces the expired-lease reclaim sweeper.
	SweepIntervalMs int64 `json:"sweep_interval_ms"`
}

// Default returns built-in defaults matching the reference deployment:
// 20 messages at 1s pace, 60s log TTL, 1s relay polls with a ceiling of 30,
// 10 concurrent jobs, 30s result retention.
func Default() Config {
	return Config{
		FeatureID: "default",
		Namespace: "default",
		Produce: ProduceConfig{
			MessageCount:   20,
			PaceMs:         1000,
			WorkIterations: 100_000,
			LogTTLMs:       60_000,
		},
		Relay: RelayConfig{
			PollBlockMs:   1000,
			MaxEmptyPolls: 30,
			BatchLimit:    64,
		},
		Queue: QueueConfig{
			Name:            "produce",
			MaxConcurrent:   10,
			LeaseMs:         30_000,
			ExtendEveryMs:   10_000,
			ResultTTLMs:     30_000,
			SweepIntervalMs: 1000,
		},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults. Values absent from the file keep their defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported yet; use JSON for now")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
