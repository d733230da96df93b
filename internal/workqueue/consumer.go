package workqueue

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
	"github.com/cockroachdb/pebble"
)

// Consumer is one live worker process registered against a group. Records
// are JSON so a registration can be read straight out of a store dump.
type Consumer struct {
	ID              string            `json:"id"`
	Group           string            `json:"group"`
	RegisteredMs    int64             `json:"registered_ms"`
	LastHeartbeatMs int64             `json:"last_heartbeat_ms"`
	ExpiresAtMs     int64             `json:"expires_at_ms"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ConsumerRegistry tracks which workers are alive for one queue and group.
// A registration expires unless renewed by heartbeat, and an index keyed by
// deadline keeps cleanup a bounded prefix scan.
type ConsumerRegistry struct {
	db        *pebblestore.DB
	namespace string
	queue     string
	group     string
	ttl       time.Duration
}

// NewConsumerRegistry binds a registry to one queue's consumer keyspace.
// A ttl <= 0 defaults to 15s.
func NewConsumerRegistry(db *pebblestore.DB, namespace, queue, group string, ttl time.Duration) *ConsumerRegistry {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &ConsumerRegistry{db: db, namespace: namespace, queue: queue, group: group, ttl: ttl}
}

func (cr *ConsumerRegistry) key(consumerID string) []byte {
	return consumerKey(cr.namespace, cr.queue, cr.group, consumerID)
}

func (cr *ConsumerRegistry) idxKey(expiresMs int64, consumerID string) []byte {
	return consumerIndexKey(cr.namespace, cr.queue, cr.group, expiresMs, consumerID)
}

// write commits a consumer record plus its deadline index entry, dropping
// the entry at staleExpiry when the deadline moved.
func (cr *ConsumerRegistry) write(ctx context.Context, c Consumer, staleExpiry int64) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal consumer %s: %w", c.ID, err)
	}

	b := cr.db.NewBatch()
	defer b.Close()
	if err := b.Set(cr.key(c.ID), raw, nil); err != nil {
		return err
	}
	if err := b.Set(cr.idxKey(c.ExpiresAtMs, c.ID), []byte(c.ID), nil); err != nil {
		return err
	}
	if staleExpiry != 0 && staleExpiry != c.ExpiresAtMs {
		if err := b.Delete(cr.idxKey(staleExpiry, c.ID), nil); err != nil {
			return err
		}
	}
	return cr.db.CommitBatch(ctx, b)
}

// Register records the caller as a live worker. Re-registering keeps the
// original RegisteredMs so a heartbeat lapse does not look like a first
// boot.
func (cr *ConsumerRegistry) Register(ctx context.Context, consumerID string, metadata map[string]string) (Consumer, error) {
	now := time.Now().UnixMilli()
	c := Consumer{
		ID:              consumerID,
		Group:           cr.group,
		RegisteredMs:    now,
		LastHeartbeatMs: now,
		ExpiresAtMs:     now + cr.ttl.Milliseconds(),
		Metadata:        metadata,
	}

	var staleExpiry int64
	if raw, err := cr.db.Get(cr.key(consumerID)); err == nil {
		var prev Consumer
		if json.Unmarshal(raw, &prev) == nil {
			c.RegisteredMs = prev.RegisteredMs
			staleExpiry = prev.ExpiresAtMs
		}
	}

	if err := cr.write(ctx, c, staleExpiry); err != nil {
		return Consumer{}, err
	}
	return c, nil
}

// Heartbeat renews the caller's registration and returns the new deadline.
// An unknown consumer is an error; the caller should re-register.
func (cr *ConsumerRegistry) Heartbeat(ctx context.Context, consumerID string) (int64, error) {
	raw, err := cr.db.Get(cr.key(consumerID))
	if err != nil {
		return 0, fmt.Errorf("consumer %s not registered: %w", consumerID, err)
	}
	var c Consumer
	if err := json.Unmarshal(raw, &c); err != nil {
		return 0, fmt.Errorf("unmarshal consumer %s: %w", consumerID, err)
	}

	now := time.Now().UnixMilli()
	stale := c.ExpiresAtMs
	c.LastHeartbeatMs = now
	c.ExpiresAtMs = now + cr.ttl.Milliseconds()
	if err := cr.write(ctx, c, stale); err != nil {
		return 0, err
	}
	return c.ExpiresAtMs, nil
}

// Unregister removes a consumer and its index entry. Unknown consumers are
// a no-op so shutdown paths can call it unconditionally.
func (cr *ConsumerRegistry) Unregister(ctx context.Context, consumerID string) error {
	raw, err := cr.db.Get(cr.key(consumerID))
	if err != nil {
		return nil
	}
	var expiry int64
	var c Consumer
	if json.Unmarshal(raw, &c) == nil {
		expiry = c.ExpiresAtMs
	}

	b := cr.db.NewBatch()
	defer b.Close()
	if err := b.Delete(cr.key(consumerID), nil); err != nil {
		return err
	}
	if expiry != 0 {
		if err := b.Delete(cr.idxKey(expiry, consumerID), nil); err != nil {
			return err
		}
	}
	return cr.db.CommitBatch(ctx, b)
}

// expired scans the deadline index for consumers due before nowMs. Index
// keys whose record no longer exists come back as dangling so the caller
// can drop them.
func (cr *ConsumerRegistry) expired(nowMs int64, limit int) (ids []string, dangling [][]byte, err error) {
	prefix := consumerIndexPrefix(cr.namespace, cr.queue, cr.group)
	iter, err := cr.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: scanUpperBound(prefix)})
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()

	for ok := iter.First(); ok && len(ids) < limit; ok = iter.Next() {
		k := iter.Key()
		if len(k) < len(prefix)+8 {
			continue
		}
		deadline := int64(binary.BigEndian.Uint64(k[len(prefix) : len(prefix)+8]))
		if deadline > nowMs {
			// Deadline-ordered index: the rest is still alive.
			break
		}
		id := string(k[len(prefix)+8:])
		if _, err := cr.db.Get(cr.key(id)); err != nil {
			dangling = append(dangling, append([]byte(nil), k...))
			continue
		}
		ids = append(ids, id)
	}
	return ids, dangling, nil
}

// CleanupExpired unregisters up to limit consumers whose deadline has
// passed. The worker pool calls this alongside its own heartbeat so dead
// peers do not linger in the registry.
func (cr *ConsumerRegistry) CleanupExpired(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 16
	}
	ids, dangling, err := cr.expired(time.Now().UnixMilli(), limit)
	if err != nil {
		return 0, fmt.Errorf("scan expired consumers: %w", err)
	}
	for _, k := range dangling {
		_ = cr.db.Delete(k)
	}

	removed := 0
	for _, id := range ids {
		if err := cr.Unregister(ctx, id); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}
