package secret

import (
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the keychain service entries are filed under.
const DefaultKeychainService = "tablestore"

// KeychainStore implements SecretStore using the macOS Keychain
// via the `security` CLI tool. On hosts without the tool every Get
// reports "not found" so a Chain falls through to the next store.
type KeychainStore struct {
	service string
}

// NewKeychainStore creates a KeychainStore filing entries under service.
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{service: service}
}

// Set stores a secret, replacing any existing entry.
func (k *KeychainStore) Set(key string, value []byte) error {
	if _, err := exec.LookPath("security"); err != nil {
		return fmt.Errorf("keychain unavailable: %w", err)
	}
	k.Delete(key)

	cmd := exec.Command("security", "add-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", string(value),
		"-U", // update if exists
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain set: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get retrieves a secret from the macOS Keychain.
// Returns empty slice and nil error if the key doesn't exist.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	cmd := exec.Command("security", "find-generic-password",
		"-a", key,
		"-s", k.service,
		"-w", // output only the password
	)
	out, err := cmd.Output()
	if err != nil {
		// exit code 44 is "item not found"; a missing binary is treated the same
		return nil, nil
	}
	return []byte(strings.TrimSpace(string(out))), nil
}

// Delete removes a secret from the macOS Keychain.
func (k *KeychainStore) Delete(key string) error {
	cmd := exec.Command("security", "delete-generic-password",
		"-a", key,
		"-s", k.service,
	)
	cmd.Run() // item may not exist
	return nil
}
