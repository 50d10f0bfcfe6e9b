package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidAPIKey is returned when an API key is not found or the hash does not match.
var ErrInvalidAPIKey = errors.New("auth: invalid API key") //nolint:gochecknoglobals // sentinel error

const (
	apiKeyPrefix    = "cdk_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 8  // first 8 chars of the full key used for lookup
)

type keyRecord struct {
	hash     []byte
	senderID string
}

// Keyring validates the API keys crew member processes authenticate with.
// Keys are stored bcrypt-hashed and looked up by their short prefix.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]keyRecord
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]keyRecord)}
}

// Generate creates a new API key for a sender, stores its bcrypt hash, and
// returns the raw key. The raw key is shown once and never stored.
// Key format: "cdk_" + 32 random hex chars.
func (k *Keyring) Generate(senderID string) (string, error) {
	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("auth.Keyring.Generate: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	if err := k.Add(senderID, rawKey); err != nil {
		return "", err
	}

	return rawKey, nil
}

// Add registers an existing raw key for a sender. Used to load operator
// provisioned keys from configuration at startup.
func (k *Keyring) Add(senderID, rawKey string) error {
	if len(rawKey) < apiKeyPrefixLen {
		return fmt.Errorf("auth.Keyring.Add: key too short: %w", ErrInvalidAPIKey)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth.Keyring.Add: %w", err)
	}

	k.mu.Lock()
	k.keys[rawKey[:apiKeyPrefixLen]] = keyRecord{hash: hash, senderID: senderID}
	k.mu.Unlock()

	return nil
}

// Verify checks a raw API key by prefix lookup and bcrypt comparison.
// Returns the sender ID the key was issued to.
func (k *Keyring) Verify(rawKey string) (string, error) {
	if len(rawKey) < apiKeyPrefixLen {
		return "", fmt.Errorf("auth.Keyring.Verify: %w", ErrInvalidAPIKey)
	}

	k.mu.RLock()
	rec, ok := k.keys[rawKey[:apiKeyPrefixLen]]
	k.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("auth.Keyring.Verify: %w", ErrInvalidAPIKey)
	}

	if err := bcrypt.CompareHashAndPassword(rec.hash, []byte(rawKey)); err != nil {
		return "", fmt.Errorf("auth.Keyring.Verify: %w", ErrInvalidAPIKey)
	}

	return rec.senderID, nil
}
