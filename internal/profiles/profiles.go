// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package profiles is the API-key/profile store (C13): named provider
// profiles `{id, name, provider, endpoint, model, settings, key, timestamp,
// version}`, one active pointer, persisted to a local BadgerDB. Key
// material is obfuscated (XOR over a process-local pad held in an mlocked
// memguard buffer) before it ever touches disk; the obfuscated key bytes
// themselves are ordinary memory.
//
// This is explicitly not encryption: the obfuscation is a deterrent
// against casual disclosure (a stray `cat` of the database file, a
// careless log dump), not a defense against a motivated attacker with
// disk access. Non-goals (spec.md §1) exclude cryptographic
// authentication from this bridge's scope entirely.
//
// Thread Safety:
//
//	Store is safe for concurrent use; all operations serialize behind a
//	mutex in addition to BadgerDB's own internal locking.
package profiles

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	activeKey    = "__active__"
	profileKeyFx = "profile:"
)

// DefaultEndpoints and DefaultModels are per-provider defaults consulted
// when a profile omits them.
var (
	DefaultEndpoints = map[string]string{
		"openai":    "https://api.openai.com/v1",
		"anthropic": "https://api.anthropic.com/v1",
		"azure":     "",
		"local":     "http://localhost:11434/v1",
	}
	DefaultModels = map[string]string{
		"openai":    "gpt-4o-mini",
		"anthropic": "claude-sonnet-4-20250514",
		"local":     "llama3",
	}
)

// Settings is the free-form model-tuning block `{temperature, max_tokens, …}`.
type Settings struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Profile is one named provider configuration. Key holds the obfuscated
// (not encrypted) credential bytes; callers retrieve the plaintext via
// Store.Reveal rather than reading this field directly.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	Endpoint  string    `json:"endpoint"`
	Model     string    `json:"model"`
	Settings  Settings  `json:"settings"`
	Key       []byte    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Version   int       `json:"version"`
}

// Store is the obfuscated, BadgerDB-backed profile table with one active
// pointer.
type Store struct {
	db    *badger.DB
	pad   *memguard.LockedBuffer
	mu    sync.Mutex
	newID func() string
}

// Option configures a Store at construction.
type Option func(*Store)

// WithIDGenerator overrides the profile-id minting function; tests use
// this for deterministic ids, matching the rest of the pipeline's
// constructors.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// Open opens (creating if absent) a BadgerDB store rooted at dir and
// mints a process-local obfuscation pad held in mlocked memory.
func Open(dir string, opts ...Option) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	pad := memguard.NewBuffer(64)
	if pad == nil {
		return nil, fmt.Errorf("allocating obfuscation pad: mlock limit insufficient")
	}
	pad.Melt()
	if _, err := rand.Read(pad.Bytes()); err != nil {
		pad.Destroy()
		return nil, fmt.Errorf("seeding obfuscation pad: %w", err)
	}
	pad.Freeze()
	s := &Store{db: db, pad: pad, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the BadgerDB handle and destroys the obfuscation pad.
func (s *Store) Close() error {
	s.pad.Destroy()
	return s.db.Close()
}

// obfuscate XORs plaintext against the process-local pad, repeating the
// pad as needed. Symmetric: calling it twice on the same key recovers the
// plaintext.
func (s *Store) obfuscate(plaintext []byte) []byte {
	pad := s.pad.Bytes()
	out := make([]byte, len(plaintext))
	for i := range plaintext {
		out[i] = plaintext[i] ^ pad[i%len(pad)]
	}
	return out
}

// Store saves a new profile under a freshly minted id with its key
// material obfuscated before it is marshalled to BadgerDB; it never
// updates an existing profile. Returns the stored id.
func (s *Store) Store(provider, name, endpoint, model string, settings Settings, plaintextKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if endpoint == "" {
		endpoint = DefaultEndpoints[provider]
	}
	if model == "" {
		model = DefaultModels[provider]
	}

	p := Profile{
		ID:        s.newID(),
		Name:      name,
		Provider:  provider,
		Endpoint:  endpoint,
		Model:     model,
		Settings:  settings,
		Key:       s.obfuscate([]byte(plaintextKey)),
		Timestamp: time.Now(),
		Version:   1,
	}

	if err := s.put(p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func (s *Store) put(p Profile) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile %q: %w", p.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(profileKeyFx+p.ID), blob)
	})
}

// ListProfiles returns every stored profile, key material still
// obfuscated.
func (s *Store) ListProfiles() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Profile
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(profileKeyFx)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p Profile
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

// Has reports whether id exists in the store.
func (s *Store) Has(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(profileKeyFx + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Delete removes a profile. If it was the active profile, the active
// pointer is cleared.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(profileKeyFx + id)); err != nil {
			return err
		}
		item, err := txn.Get([]byte(activeKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var activeID string
		if err := item.Value(func(val []byte) error {
			activeID = string(val)
			return nil
		}); err != nil {
			return err
		}
		if activeID == id {
			return txn.Delete([]byte(activeKey))
		}
		return nil
	})
}

// SetActive marks id as the active profile. Returns an error if id does
// not exist.
func (s *Store) SetActive(id string) error {
	ok, err := s.Has(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("profile %q not found", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(activeKey), []byte(id))
	})
}

// GetActive returns the active profile, if any.
func (s *Store) GetActive() (Profile, bool, error) {
	s.mu.Lock()
	var activeID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(activeKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			activeID = string(val)
			return nil
		})
	})
	s.mu.Unlock()
	if err != nil || activeID == "" {
		return Profile{}, false, err
	}

	all, err := s.ListProfiles()
	if err != nil {
		return Profile{}, false, err
	}
	for _, p := range all {
		if p.ID == activeID {
			return p, true, nil
		}
	}
	return Profile{}, false, nil
}

// Reveal returns the plaintext credential for a stored, obfuscated key.
// Called only at the point of use (building the LLM HTTP request),
// never logged or persisted in plaintext form.
func (s *Store) Reveal(p Profile) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.obfuscate(p.Key))
}
