package infra

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the "sqlite3" driver

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

const (
	vaultDBName = "vault.db"
	keyFileName = ".key"
	keySize     = 32 // 256-bit AES key
)

// EncryptedVault implements domain.SecretStore using a SQLCipher encrypted SQLite database.
type EncryptedVault struct {
	db     *sql.DB
	dbPath string
}

// OpenVault opens the vault in dataDir, generating its key on first use.
func OpenVault(dataDir string) (*EncryptedVault, error) {
	key, err := EnsureKey(NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, err
	}
	return NewEncryptedVault(dataDir, key)
}

// NewEncryptedVault opens (or creates) an encrypted vault database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedVault(dataDir string, key []byte) (*EncryptedVault, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, vaultDBName)
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	v := &EncryptedVault{db: db, dbPath: dbPath}
	if err := v.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return v, nil
}

func (v *EncryptedVault) createTables() error {
	_, err := v.db.Exec(`
	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`)
	return err
}

// GetSecret retrieves a secret by key.
func (v *EncryptedVault) GetSecret(key string) (string, error) {
	var value string
	err := v.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %q", domain.ErrSecretNotFound, key)
	}
	return value, err
}

// SetSecret stores a secret.
func (v *EncryptedVault) SetSecret(key, value string) error {
	_, err := v.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix())
	return err
}

// DeleteSecret removes a secret; deleting a missing key is not an error.
func (v *EncryptedVault) DeleteSecret(key string) error {
	_, err := v.db.Exec(`DELETE FROM secrets WHERE key = ?`, key)
	return err
}

// SecretSetAt returns when a secret was stored.
func (v *EncryptedVault) SecretSetAt(key string) (time.Time, error) {
	var ts int64
	err := v.db.QueryRow(`SELECT created_at FROM secrets WHERE key = ?`, key).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrSecretNotFound, key)
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0), nil
}

// Path returns the database file path.
func (v *EncryptedVault) Path() string {
	return v.dbPath
}

// Close releases the database connection.
func (v *EncryptedVault) Close() error {
	if v.db != nil {
		return v.db.Close()
	}
	return nil
}

// FileKeyProvider implements domain.KeyProvider using a local file with 0600 permissions.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider creates a FileKeyProvider for the given data directory.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, keyFileName)}
}

// GetKey reads the encryption key from the key file.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	encoded, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return key, nil
}

// StoreKey writes the encryption key to the key file with restricted permissions.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(p.keyPath, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// KeyExists checks if the key file exists.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// GenerateKey creates a new random 256-bit encryption key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}
	return key, nil
}

// EnsureKey generates and stores a key if one doesn't exist.
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

var (
	_ domain.SecretStore = (*EncryptedVault)(nil)
	_ domain.KeyProvider = (*FileKeyProvider)(nil)
)
