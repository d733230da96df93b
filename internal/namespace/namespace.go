// Package namespace stores per-namespace metadata: creation time and the
// payload cap producers enforce when appending session entries.
package namespace

import (
	"encoding/json"
	"time"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

// Meta is the stored namespace record.
type Meta struct {
	Name            string `json:"name"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	PayloadMaxBytes int    `json:"payloadMaxBytes"`
}

// Defaults returns the limits a namespace starts with. Session payloads are
// small JSON records, so the cap sits well below generic event-bus sizes.
func Defaults() Meta {
	return Meta{PayloadMaxBytes: 256 << 10}
}

var nsMetaPrefix = []byte("nsmeta/")

func nsMetaKey(ns string) []byte {
	k := make([]byte, 0, len(nsMetaPrefix)+len(ns))
	k = append(k, nsMetaPrefix...)
	k = append(k, ns...)
	return k
}

// EnsureNamespace returns the namespace's stored metadata, creating it with
// Defaults on first use. A record that no longer decodes is rewritten.
func EnsureNamespace(db *pebblestore.DB, name string) (Meta, error) {
	key := nsMetaKey(name)
	if raw, err := db.Get(key); err == nil && len(raw) > 0 {
		var m Meta
		if err := json.Unmarshal(raw, &m); err == nil {
			return m, nil
		}
	}

	m := Defaults()
	m.Name = name
	m.CreatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, raw); err != nil {
		return Meta{}, err
	}
	return m, nil
}
