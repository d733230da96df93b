package serverrun

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	cfgpkg "github.com/Talhamuhammadali/event-driven-mircorservice/internal/config"
	pebblestore "github.com/Talhamuhammadali/event-driven-mircorservice/internal/storage/pebble"
)

func TestGetenvDefault(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	env := map[string]string{"STREAMD_LOG_LEVEL": "debug"}
	getenv = func(key string) string { return env[key] }

	if got := getenvDefault("STREAMD_LOG_LEVEL", "info"); got != "debug" {
		t.Fatalf("want env value, got %q", got)
	}
	if got := getenvDefault("STREAMD_LOG_FORMAT", "text"); got != "text" {
		t.Fatalf("want default, got %q", got)
	}
}

// reservePort grabs an ephemeral port and releases it for Run to bind.
func reservePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestRunServesHealthAndShutsDown(t *testing.T) {
	if testing.Short() {
		t.Skip("boots the full server")
	}
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	getenv = func(key string) string {
		if key == "FEATURE_ID" {
			return "env-feature"
		}
		return ""
	}

	addr := reservePort(t)
	dataDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{
			DataDir:  dataDir,
			HTTPAddr: addr,
			Fsync:    pebblestore.FsyncModeNever,
			Config:   cfgpkg.Default(),
		})
	}()

	var health struct {
		Status    string `json:"status"`
		FeatureID string `json:"feature_id"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/health")
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&health)
			resp.Body.Close()
			if decodeErr == nil && resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("health endpoint never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if health.Status != "healthy" || health.FeatureID != "env-feature" {
		t.Fatalf("unexpected health payload: %+v", health)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error on shutdown: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not shut down")
	}

	if _, err := os.Stat(filepath.Join(dataDir, "store")); err != nil {
		t.Fatalf("store directory not created under DataDir: %v", err)
	}
}
