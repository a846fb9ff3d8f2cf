// ABOUTME: Charm KV client wrapper used as the persistent embedding cache
// ABOUTME: Keys are synced to the Charm host with SSH key auth so several machines share vectors
package charm

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/charm/kv"
)

// ErrClosed is returned by operations on a closed client
var ErrClosed = errors.New("charm client is closed")

// Config holds charm client configuration
type Config struct {
	Host   string
	DBName string
	// AutoSync pulls on open and pushes on Close
	AutoSync bool
}

// DefaultConfig returns the configuration for the actes embedding cache
func DefaultConfig() *Config {
	return &Config{
		Host:     "cloud.charm.sh",
		DBName:   "actes-embeddings",
		AutoSync: true,
	}
}

// Client wraps charm KV for cache operations
type Client struct {
	kv     *kv.KV
	config *Config
	mu     sync.Mutex
}

// NewClient opens the charm KV database named by cfg
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.DBName == "" {
		return nil, errors.New("charm database name is required")
	}
	// charm reads its host from the environment
	if cfg.Host != "" {
		if err := os.Setenv("CHARM_HOST", cfg.Host); err != nil {
			return nil, fmt.Errorf("failed to set charm host: %w", err)
		}
	}

	db, err := kv.OpenWithDefaults(cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to open charm kv: %w", err)
	}

	if cfg.AutoSync {
		_ = db.Sync()
	}

	return &Client{kv: db, config: cfg}, nil
}

// Close pushes pending writes when AutoSync is on, then closes the database
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv == nil {
		return nil
	}
	if c.config.AutoSync {
		_ = c.kv.Sync()
	}
	err := c.kv.Close()
	c.kv = nil
	return err
}

// Set stores a value with the given key
func (c *Client) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv == nil {
		return ErrClosed
	}
	if err := c.kv.Set([]byte(key), value); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Get retrieves a value by key
func (c *Client) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv == nil {
		return nil, ErrClosed
	}
	return c.kv.Get([]byte(key))
}

// SetJSON marshals and stores a value as JSON
func (c *Client) SetJSON(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(key, data)
}

// GetJSON retrieves and unmarshals a JSON value
func (c *Client) GetJSON(key string, dest interface{}) error {
	data, err := c.Get(key)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("key not found: %s", key)
	}
	return json.Unmarshal(data, dest)
}

// ListKeys returns all keys with the given prefix
func (c *Client) ListKeys(prefix string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv == nil {
		return nil, ErrClosed
	}
	keys, err := c.kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return filterPrefix(keys, prefix), nil
}

// Sync manually triggers a sync with the charm host
func (c *Client) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv == nil {
		return ErrClosed
	}
	return c.kv.Sync()
}

func filterPrefix(keys [][]byte, prefix string) []string {
	var result []string
	for _, key := range keys {
		if s := string(key); strings.HasPrefix(s, prefix) {
			result = append(result, s)
		}
	}
	return result
}
