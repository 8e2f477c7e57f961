// Package settings stores duoreadme user credentials outside the project,
// so keys never end up in a committed config file.
//
// Credentials live in the XDG data directory:
//
//	$XDG_DATA_HOME/duoreadme/auth.json  (default: ~/.local/share/duoreadme/)
//
// The file is a JSON object keyed by provider ID. Each value is
// discriminated on its "type" field:
//
//   - "bot": LKE bot credentials (botAppKey, visitorBizId)
//   - "api": API keys (openai, gemini, ollama), with an optional base URL
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for a credential:
//  1. command-line flag (highest priority)
//  2. DUOREADME_* environment variable
//  3. the config file
//  4. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	dataDirName = "duoreadme"
	fileName    = "auth.json"
)

const (
	TypeBot = "bot"
	TypeAPI = "api"
)

// ---------------------------------------------------------------------------
// Auth entry types (discriminated union on "type")
// ---------------------------------------------------------------------------

// Info is the entry stored per provider in auth.json.
type Info struct {
	// Type discriminator: "bot" or "api"
	Type string `json:"type"`

	// Bot fields (type == "bot")
	BotAppKey    string `json:"botAppKey,omitempty"`
	VisitorBizID string `json:"visitorBizId,omitempty"`

	// API key fields (type == "api")
	Key     string `json:"key,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// IsBot returns true if this is an LKE bot entry.
func (i *Info) IsBot() bool {
	return i.Type == TypeBot
}

// IsAPI returns true if this is an API key entry.
func (i *Info) IsAPI() bool {
	return i.Type == TypeAPI
}

// Secret returns the credential that authenticates requests.
func (i *Info) Secret() string {
	if i.IsBot() {
		return i.BotAppKey
	}
	return i.Key
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// IDs returns the provider IDs in the store, sorted.
func (s Store) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir respects $XDG_DATA_HOME and falls back to ~/.local/share.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil {
		return make(Store)
	}
	if store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("securing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the auth entry for a provider, or nil if not found.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// Set stores an auth entry for a provider (upsert).
func Set(providerID string, info *Info) error {
	store := Load()
	store[providerID] = info
	return Save(store)
}

// Remove deletes credentials for a provider. It reports whether an entry
// existed.
func Remove(providerID string) (bool, error) {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return false, nil
	}
	delete(store, providerID)
	return true, Save(store)
}

// SetBot stores LKE bot credentials.
func SetBot(providerID, botAppKey, visitorBizID string) error {
	return Set(providerID, &Info{
		Type:         TypeBot,
		BotAppKey:    botAppKey,
		VisitorBizID: visitorBizID,
	})
}

// SetAPIKey stores an API key and optional base URL for a provider.
func SetAPIKey(providerID, key, baseURL string) error {
	return Set(providerID, &Info{
		Type:    TypeAPI,
		Key:     key,
		BaseURL: baseURL,
	})
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
