// Package identity issues the durable per-device identifier that stands in
// for a player across sessions.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNoIdentity = errors.New("no identity stored")

// Store persists one identity. Load returns ErrNoIdentity when empty.
type Store interface {
	Load() (string, error)
	Save(id string) error
}

type Provider struct {
	store Store

	mu       sync.Mutex
	cached   string
	fallback string
}

func NewProvider(store Store) *Provider {
	return &Provider{store: store}
}

// GetOrCreateIdentity returns the stored identity, creating and persisting a
// new one on first use. When the store cannot be read or written it returns a
// process-lifetime identity and degraded=true.
func (p *Provider) GetOrCreateIdentity() (id string, degraded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != "" {
		return p.cached, false
	}

	stored, err := p.store.Load()
	if err == nil && Valid(stored) {
		p.cached = stored
		return stored, false
	}
	if err != nil && !errors.Is(err, ErrNoIdentity) {
		log.Warn().Err(err).Msg("[IDENTITY] Store unreadable, using process identity")
		return p.processIdentity(), true
	}

	id = uuid.NewString()
	if err := p.store.Save(id); err != nil {
		log.Warn().Err(err).Msg("[IDENTITY] Store unwritable, using process identity")
		return p.processIdentity(), true
	}
	p.cached = id
	return id, false
}

func (p *Provider) processIdentity() string {
	if p.fallback == "" {
		p.fallback = uuid.NewString()
	}
	return p.fallback
}

// Valid accepts any non-blank token of sane length. Identities are opaque:
// only the ones minted here are guaranteed to be UUIDs.
func Valid(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= 64
}

// FileStore keeps the identity in a small file, e.g. under the user config dir.
type FileStore struct {
	Path string
}

// DefaultFileStore resolves $MOBIUS_HOME/device-id, falling back to the user
// config dir.
func DefaultFileStore() (*FileStore, error) {
	dir := os.Getenv("MOBIUS_HOME")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("error locating config dir: %w", err)
		}
		dir = filepath.Join(base, "mobius")
	}
	return &FileStore{Path: filepath.Join(dir, "device-id")}, nil
}

func (s *FileStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoIdentity
	}
	if err != nil {
		return "", fmt.Errorf("error reading identity file: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

func (s *FileStore) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("error creating identity dir: %w", err)
	}
	if err := os.WriteFile(s.Path, []byte(id+"\n"), 0o600); err != nil {
		return fmt.Errorf("error writing identity file: %w", err)
	}
	return nil
}
