package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// EncryptionMethod selects how blobs are encrypted at rest.
type EncryptionMethod string

const (
	EncryptionNone   EncryptionMethod = "none"
	EncryptionSSHKey EncryptionMethod = "ssh_key"
)

// EncryptionManager encrypts and decrypts byte blobs. With the SSH key
// method the AES key is derived from the user's SSH key, so no separate
// secret needs managing.
type EncryptionManager struct {
	method     EncryptionMethod
	sshKeyPath string
	passphrase string
	signer     ssh.Signer
	aesKey     []byte
}

func NewEncryptionManager(method EncryptionMethod, sshKeyPath string) *EncryptionManager {
	return &EncryptionManager{
		method:     method,
		sshKeyPath: sshKeyPath,
	}
}

func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// Initialize loads the SSH key and derives the AES key. A no-op for
// EncryptionNone.
func (e *EncryptionManager) Initialize() error {
	switch e.method {
	case EncryptionNone:
		return nil
	case EncryptionSSHKey:
		return e.initSSHKey()
	default:
		return fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

func (e *EncryptionManager) initSSHKey() error {
	encrypted, err := IsSSHKeyEncrypted(e.sshKeyPath)
	if err != nil {
		return fmt.Errorf("failed to check SSH key: %w", err)
	}
	if Debug && DebugLog != nil {
		DebugLog.Printf("[EncryptionManager] Initialize: Key encrypted=%v", encrypted)
	}

	var signer ssh.Signer
	switch {
	case encrypted && e.passphrase == "":
		return fmt.Errorf("SSH key is encrypted - passphrase required")
	case encrypted:
		signer, err = LoadSSHPrivateKeyWithPassphrase(e.sshKeyPath, e.passphrase)
	default:
		signer, err = LoadSSHPrivateKey(e.sshKeyPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load SSH key: %w", err)
	}

	aesKey, err := DeriveAESKeyFromSSH(signer)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}

	e.signer = signer
	e.aesKey = aesKey
	return nil
}

// Encrypt returns the sealed blob, or the plaintext unchanged under
// EncryptionNone.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	switch e.method {
	case EncryptionNone:
		return plaintext, nil
	case EncryptionSSHKey:
		if e.aesKey == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		return sealAESGCM(plaintext, e.aesKey)
	default:
		return nil, fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

// Decrypt is the inverse of Encrypt.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	switch e.method {
	case EncryptionNone:
		return ciphertext, nil
	case EncryptionSSHKey:
		if e.aesKey == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		return openAESGCM(ciphertext, e.aesKey)
	default:
		return nil, fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

func (e *EncryptionManager) GetMethod() EncryptionMethod {
	return e.method
}

// Blob layout: [nonce][ciphertext+tag], AES-256-GCM.
func sealAESGCM(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openAESGCM(blob, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := blob[:gcm.NonceSize()], blob[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveAESKeyFromSSH turns an SSH key into a 32-byte AES key by hashing
// the signature over a fixed message. Signing must be deterministic for
// the key type (ed25519, RSA) for the same key to always yield the same
// AES key.
func DeriveAESKeyFromSSH(signer ssh.Signer) ([]byte, error) {
	message := []byte("gridpilot-encryption-key-derivation-v1")

	signature, err := signer.Sign(rand.Reader, message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}

	hash := sha256.Sum256(signature.Blob)
	return hash[:], nil
}
