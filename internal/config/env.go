package config

import (
	"os"
	"strconv"
)

// FromEnv overlays STREAMD_* environment variables onto cfg. The feature
// identity also honors the plain FEATURE_ID variable, which deployments use
// to tag instances.
func FromEnv(cfg *Config) {
	if v := os.Getenv("STREAMD_FEATURE_ID"); v != "" {
		cfg.FeatureID = v
	} else if v := os.Getenv("FEATURE_ID"); v != "" {
		cfg.FeatureID = v
	}
	if v := os.Getenv("STREAMD_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}

	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setInt64 := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	setInt("STREAMD_MESSAGE_COUNT", &cfg.Produce.MessageCount)
	setInt64("STREAMD_PACE_MS", &cfg.Produce.PaceMs)
	setInt("STREAMD_WORK_ITERATIONS", &cfg.Produce.WorkIterations)
	setInt64("STREAMD_LOG_TTL_MS", &cfg.Produce.LogTTLMs)
	setInt64("STREAMD_RETENTION_MAX_BYTES", &cfg.Produce.RetentionMaxBytes)

	setInt64("STREAMD_POLL_BLOCK_MS", &cfg.Relay.PollBlockMs)
	setInt("STREAMD_MAX_EMPTY_POLLS", &cfg.Relay.MaxEmptyPolls)
	setInt("STREAMD_BATCH_LIMIT", &cfg.Relay.BatchLimit)

	if v := os.Getenv("STREAMD_QUEUE_NAME"); v != "" {
		cfg.Queue.Name = v
	}
	setInt("STREAMD_QUEUE_MAX_CONCURRENT", &cfg.Queue.MaxConcurrent)
	setInt64("STREAMD_QUEUE_LEASE_MS", &cfg.Queue.LeaseMs)
	setInt64("STREAMD_QUEUE_EXTEND_EVERY_MS", &cfg.Queue.ExtendEveryMs)
	setInt64("STREAMD_RESULT_TTL_MS", &cfg.Queue.ResultTTLMs)
	setInt64("STREAMD_QUEUE_SWEEP_INTERVAL_MS", &cfg.Queue.SweepIntervalMs)
}
