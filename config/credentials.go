package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SecurityMethod selects how API keys are stored on disk.
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// CredentialStore holds per-provider API keys, backed by either a 0600
// TOML file or an SSH-key-encrypted blob in the data directory.
type CredentialStore struct {
	method      SecurityMethod
	credentials map[string]string
	sshKeyPath  string
	passphrase  string
	encManager  *EncryptionManager
}

func NewCredentialStore(method SecurityMethod, sshKeyPath string) *CredentialStore {
	return &CredentialStore{
		method:      method,
		credentials: make(map[string]string),
		sshKeyPath:  sshKeyPath,
	}
}

// SetPassphrase supplies the passphrase for an encrypted SSH key. It may
// be called after construction, before the first Load.
func (c *CredentialStore) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
	if c.encManager != nil {
		c.encManager.SetPassphrase(passphrase)
	}
}

func (c *CredentialStore) Load(dataDir string) error {
	var (
		creds map[string]string
		err   error
	)
	switch c.method {
	case SecurityPlainText:
		creds, err = readPlainCredentials(plainCredentialsPath(dataDir))
	case SecuritySSHKey:
		creds, err = c.readEncryptedCredentials(encryptedCredentialsPath(dataDir))
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
	if err != nil {
		return err
	}
	c.credentials = creds
	return nil
}

func (c *CredentialStore) Save(dataDir string) error {
	switch c.method {
	case SecurityPlainText:
		return writePlainCredentials(plainCredentialsPath(dataDir), c.credentials)
	case SecuritySSHKey:
		return c.writeEncryptedCredentials(encryptedCredentialsPath(dataDir))
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

// Get returns the stored API key for a provider, or "" when none is set.
func (c *CredentialStore) Get(providerID string) string {
	return c.credentials[providerID]
}

func (c *CredentialStore) Set(providerID string, apiKey string) error {
	c.credentials[providerID] = apiKey
	return nil
}

func (c *CredentialStore) Delete(providerID string) error {
	delete(c.credentials, providerID)
	return nil
}

func (c *CredentialStore) GetMethod() SecurityMethod {
	return c.method
}

// ensureManager builds the encryption manager on first use, and rebuilds
// it when a passphrase arrived after construction.
func (c *CredentialStore) ensureManager() error {
	if c.encManager != nil && c.passphrase == "" {
		return nil
	}
	mgr := NewEncryptionManager(EncryptionSSHKey, c.sshKeyPath)
	mgr.SetPassphrase(c.passphrase)
	if err := mgr.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	c.encManager = mgr
	return nil
}

func plainCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

func encryptedCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.enc")
}

// credentialsFile is the on-disk TOML shape: a single [credentials]
// table keyed by provider ID.
type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

func readPlainCredentials(path string) (map[string]string, error) {
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	var cf credentialsFile
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if cf.Credentials == nil {
		cf.Credentials = make(map[string]string)
	}
	return cf.Credentials, nil
}

func writePlainCredentials(path string, creds map[string]string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(credentialsFile{Credentials: creds}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) readEncryptedCredentials(path string) (map[string]string, error) {
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	if err := c.ensureManager(); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted credentials: %w", err)
	}

	plain, err := c.encManager.Decrypt(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	creds := make(map[string]string)
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}
	return creds, nil
}

func (c *CredentialStore) writeEncryptedCredentials(path string) error {
	if err := c.ensureManager(); err != nil {
		return err
	}

	plain, err := json.Marshal(c.credentials)
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	blob, err := c.encManager.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted credentials: %w", err)
	}
	return nil
}
