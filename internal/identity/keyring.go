package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
)

const (
	serviceName = "workboard"
	userKey     = "user-id"
)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  credentialsDir(),
		FilePasswordFunc:         keyring.FixedStringPrompt("workboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "credentials")
	}
	return filepath.Join(home, ".config", "workboard", "credentials")
}

// keyringStore reads and writes the user id in the system keyring.
type keyringStore struct{}

func (keyringStore) Get() (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(userKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting %q: %w", userKey, err)
	}
	return string(item.Data), nil
}

func (keyringStore) Set(id string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{
		Key:   userKey,
		Data:  []byte(id),
		Label: "workboard user",
	}); err != nil {
		return fmt.Errorf("setting %q: %w", userKey, err)
	}
	return nil
}

func (keyringStore) Delete() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}
	if err := ring.Remove(userKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting %q: %w", userKey, err)
	}
	return nil
}
