package namespace

import (
	"testing"

	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

func newStore(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureNamespaceAppliesDefaults(t *testing.T) {
	db := newStore(t)

	m, err := EnsureNamespace(db, "default")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m.Name != "default" {
		t.Fatalf("name = %q", m.Name)
	}
	if m.CreatedAtMs <= 0 {
		t.Fatalf("creation time not stamped: %d", m.CreatedAtMs)
	}
	if m.PayloadMaxBytes != Defaults().PayloadMaxBytes {
		t.Fatalf("payload cap = %d, want default %d", m.PayloadMaxBytes, Defaults().PayloadMaxBytes)
	}
}

func TestEnsureNamespaceIdempotent(t *testing.T) {
	db := newStore(t)

	m1, err := EnsureNamespace(db, "default")
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	m2, err := EnsureNamespace(db, "default")
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if m1 != m2 {
		t.Fatalf("not idempotent: %+v vs %+v", m1, m2)
	}
}

func TestEnsureNamespaceRewritesCorruptRecord(t *testing.T) {
	db := newStore(t)

	if err := db.Set(nsMetaKey("scrambled"), []byte("{not json")); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	m, err := EnsureNamespace(db, "scrambled")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m.Name != "scrambled" || m.PayloadMaxBytes != Defaults().PayloadMaxBytes {
		t.Fatalf("corrupt record not rebuilt: %+v", m)
	}

	again, err := EnsureNamespace(db, "scrambled")
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if again != m {
		t.Fatalf("rebuilt record unstable: %+v vs %+v", again, m)
	}
}
