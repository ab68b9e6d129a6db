package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liwenzhu/kali-chat/internal/store"
)

// Manager owns session lifecycle: creation, validation and TTL expiry.
// Persistent sessions live in the store; ephemeral ones keep a JSON
// metadata file under dir.
type Manager struct {
	dir               string
	ttl               time.Duration
	store             *store.Store
	persistentDefault bool
}

type metadata struct {
	ID         string    `json:"id"`
	Persistent bool      `json:"persistent"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// NewManager prepares the session directory and returns a manager.
func NewManager(dir string, ttl time.Duration, st *store.Store, persistentDefault bool) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Manager{dir: dir, ttl: ttl, store: st, persistentDefault: persistentDefault}, nil
}

// Create mints a new session identifier with the configured default
// persistence.
func (m *Manager) Create(ctx context.Context) (string, error) {
	return m.CreateWith(ctx, m.persistentDefault)
}

// CreateWith mints a new session identifier with explicit persistence.
func (m *Manager) CreateWith(ctx context.Context, persistent bool) (string, error) {
	id := uuid.NewString()

	if persistent {
		if err := m.store.CreateSession(ctx, id, true); err != nil {
			return "", err
		}
		log.Printf("[session] created persistent session %s", id)
		return id, nil
	}

	meta := metadata{
		ID:         id,
		Persistent: false,
		CreatedAt:  time.Now().UTC(),
		LastActive: time.Now().UTC(),
	}
	if err := m.saveMetadata(meta); err != nil {
		return "", err
	}
	log.Printf("[session] created ephemeral session %s", id)
	return id, nil
}

// GetOrCreate returns a usable session id, minting a fresh one when the
// supplied id is empty, expired or unknown.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (string, error) {
	return m.GetOrCreateWith(ctx, id, nil)
}

// GetOrCreateWith applies an optional persistence override to any session
// minted along the way; nil keeps the configured default.
func (m *Manager) GetOrCreateWith(ctx context.Context, id string, persistent *bool) (string, error) {
	want := m.persistentDefault
	if persistent != nil {
		want = *persistent
	}

	if id == "" {
		return m.CreateWith(ctx, want)
	}
	if m.Validate(ctx, id) {
		return id, nil
	}
	log.Printf("[session] invalid session %s, creating replacement", id)
	return m.CreateWith(ctx, want)
}

// Validate reports whether the id maps to a live session. The store
// fallback checks the persistent flag, not mere row existence: on-demand
// rows for ephemeral sessions carry persistent=0, so an expired ephemeral
// with stored messages still reads as invalid here.
func (m *Manager) Validate(ctx context.Context, id string) bool {
	if _, ok := m.loadMetadata(id); ok {
		return true
	}

	persistent, err := m.store.IsPersistent(ctx, id)
	if err != nil {
		log.Printf("[session] validation failed for %s: %v", id, err)
		return false
	}
	return persistent
}

// IsPersistent reports whether the session survives TTL cleanup.
func (m *Manager) IsPersistent(ctx context.Context, id string) bool {
	persistent, err := m.store.IsPersistent(ctx, id)
	if err != nil {
		log.Printf("[session] persistence check failed for %s: %v", id, err)
		return false
	}
	return persistent
}

// CleanupExpired removes ephemeral sessions past their TTL.
func (m *Manager) CleanupExpired() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("read session directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var meta metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			log.Printf("[session] corrupted metadata file %s: %v", path, err)
			continue
		}
		if time.Since(meta.LastActive) > m.ttl {
			if err := os.Remove(path); err == nil {
				count++
			}
		}
	}

	log.Printf("[session] cleanup removed %d expired sessions", count)
	return count, nil
}

func (m *Manager) saveMetadata(meta metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode session metadata: %w", err)
	}
	path := filepath.Join(m.dir, meta.ID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("save session metadata: %w", err)
	}
	return nil
}

// loadMetadata returns valid on-disk metadata; expired or corrupted files
// read as absent.
func (m *Manager) loadMetadata(id string) (metadata, bool) {
	path := filepath.Join(m.dir, id+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return metadata{}, false
	}

	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		log.Printf("[session] corrupted metadata file %s: %v", path, err)
		return metadata{}, false
	}

	if time.Since(meta.LastActive) > m.ttl {
		return metadata{}, false
	}
	return meta, true
}
