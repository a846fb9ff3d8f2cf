// ABOUTME: Tests for the charm KV client helpers that need no charm account
// ABOUTME: Covers prefix filtering, closed-client errors and config defaults
package charm

import (
	"errors"
	"testing"
)

func TestFilterPrefix(t *testing.T) {
	keys := [][]byte{
		[]byte("embedding:hashing-512:aa"),
		[]byte("other:x"),
		[]byte("embedding:openai:bb"),
	}

	got := filterPrefix(keys, "embedding:")
	if len(got) != 2 {
		t.Fatalf("filterPrefix() = %v, want 2 keys", got)
	}
	if got[0] != "embedding:hashing-512:aa" || got[1] != "embedding:openai:bb" {
		t.Errorf("filterPrefix() = %v", got)
	}

	if got := filterPrefix(keys, "missing:"); got != nil {
		t.Errorf("filterPrefix() with no match = %v, want nil", got)
	}
}

func TestClosedClient(t *testing.T) {
	c := &Client{config: DefaultConfig()}

	if err := c.Set("k", []byte("v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() error = %v, want ErrClosed", err)
	}
	if _, err := c.Get("k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() error = %v, want ErrClosed", err)
	}
	if _, err := c.ListKeys(""); !errors.Is(err, ErrClosed) {
		t.Errorf("ListKeys() error = %v, want ErrClosed", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on closed client error = %v", err)
	}
}

func TestNewClient_RequiresDBName(t *testing.T) {
	if _, err := NewClient(&Config{Host: "localhost"}); err == nil {
		t.Error("NewClient() without DBName should fail")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DBName != "actes-embeddings" || !cfg.AutoSync {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}
