package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

func readKeyFile(keyPath string) ([]byte, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	return data, nil
}

// LoadSSHPrivateKey parses an unencrypted private key. Callers check
// for encryption first via IsSSHKeyEncrypted.
func LoadSSHPrivateKey(keyPath string) (ssh.Signer, error) {
	data, err := readKeyFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
	return signer, nil
}

// LoadSSHPrivateKeyWithPassphrase parses a passphrase-protected key.
func LoadSSHPrivateKeyWithPassphrase(keyPath string, passphrase string) (ssh.Signer, error) {
	data, err := readKeyFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key (wrong passphrase?): %w", err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether a private key needs a passphrase,
// without decrypting it. The ssh package gives no typed error for this,
// so the error text is inspected.
func IsSSHKeyEncrypted(keyPath string) (bool, error) {
	data, err := readKeyFile(keyPath)
	if err != nil {
		return false, err
	}

	if _, err := ssh.ParsePrivateKey(data); err != nil {
		var passErr *ssh.PassphraseMissingError
		if errors.As(err, &passErr) ||
			strings.Contains(err.Error(), "encrypted") ||
			strings.Contains(err.Error(), "passphrase") {
			return true, nil
		}
		return false, fmt.Errorf("invalid SSH key: %w", err)
	}
	return false, nil
}

// FindSSHKeys returns candidate private keys under ~/.ssh, the dedicated
// gridpilot key first so it wins over general-purpose keys.
func FindSSHKeys() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	sshDir := filepath.Join(homeDir, ".ssh")
	if _, err := os.Stat(sshDir); os.IsNotExist(err) {
		return []string{}, nil
	}

	var found []string
	for _, name := range []string{"gridpilot_ed25519", "id_ed25519", "id_rsa", "id_ecdsa", "id_dsa"} {
		keyPath := filepath.Join(sshDir, name)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if looksLikePrivateKey(keyPath) {
			found = append(found, keyPath)
		}
	}
	return found, nil
}

func looksLikePrivateKey(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	s := string(data)
	return strings.Contains(s, "BEGIN") && strings.Contains(s, "PRIVATE KEY")
}
