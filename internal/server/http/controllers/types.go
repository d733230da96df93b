package controllers

// Common response types for HTTP controllers

// queueStatsJSON represents the generation queue backlog summary.
type queueStatsJSON struct {
	LastSeq      uint64 `json:"last_seq"`
	Available    int    `json:"available"`
	Leased       int    `json:"leased"`
	DeadLettered int    `json:"dead_lettered"`
}

// jobJSON represents one finished generation job.
type jobJSON struct {
	Seq           uint64            `json:"seq"`
	ConsumerID    string            `json:"consumer_id"`
	EnqueuedAtMs  int64             `json:"enqueued_at_ms"`
	DequeuedAtMs  int64             `json:"dequeued_at_ms"`
	CompletedAtMs int64             `json:"completed_at_ms"`
	DurationMs    int64             `json:"duration_ms"`
	Attempts      int32             `json:"attempts"`
	Result        string            `json:"result,omitempty"`
	Error         string            `json:"error,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
}
