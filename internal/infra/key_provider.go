package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

const (
	keyFileName = ".journal.key"
	keySize     = 32 // 256-bit SQLCipher key
)

// FileKeyProvider implements domain.KeyProvider using a hex-encoded key file
// next to the journal, readable only by the owner.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{
		keyPath: filepath.Join(dataDir, keyFileName),
	}
}

// GetKey reads the journal key from the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: read key file: %v", domain.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey writes the journal key with 0600 permissions.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey creates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey returns the stored key, generating one on first use.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// EnsureJournalKey returns the key for the journal in dataDir. When the key
// file is gone but a journal remains, nothing can decrypt that journal any
// more: it is moved aside so a fresh one can be created under a new key.
// Returns the quarantine path, or "" when nothing was moved.
func EnsureJournalKey(provider domain.KeyProvider, dataDir string, logger *zap.Logger) ([]byte, string, error) {
	if provider.KeyExists() {
		key, err := provider.GetKey()
		return key, "", err
	}

	var quarantined string
	dbPath := filepath.Join(dataDir, journalDBName)
	if _, err := os.Stat(dbPath); err == nil {
		quarantined = fmt.Sprintf("%s.orphaned-%d", dbPath, time.Now().Unix())
		if err := os.Rename(dbPath, quarantined); err != nil {
			return nil, "", fmt.Errorf("failed to move orphaned journal aside: %w", err)
		}
		logger.Warn("journal key missing, moved unreadable journal aside",
			zap.String("journal", dbPath),
			zap.String("moved_to", quarantined))
	}

	key, err := EnsureKey(provider)
	return key, quarantined, err
}

// Rekeyer re-encrypts a store under a new key.
type Rekeyer interface {
	Rekey(key []byte) error
}

// RotateJournalKey re-encrypts the journal under a fresh key and stores it.
// If the new key cannot be stored, the journal is switched back to the old
// key so the stored key keeps matching.
func RotateJournalKey(provider domain.KeyProvider, journal Rekeyer) error {
	oldKey, err := provider.GetKey()
	if err != nil {
		return err
	}
	newKey, err := GenerateKey()
	if err != nil {
		return err
	}

	if err := journal.Rekey(newKey); err != nil {
		return fmt.Errorf("failed to rekey journal: %w", err)
	}
	if err := provider.StoreKey(newKey); err != nil {
		if rerr := journal.Rekey(oldKey); rerr != nil {
			return fmt.Errorf("failed to store new key (%v) and to restore old key: %w", err, rerr)
		}
		return fmt.Errorf("failed to store new key, journal restored: %w", err)
	}
	return nil
}

// Ensure FileKeyProvider implements domain.KeyProvider.
var _ domain.KeyProvider = (*FileKeyProvider)(nil)
