// Package credential resolves the mailbox credential from the environment,
// configuration and the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "rfpinbound"

// Keyring stores mailbox secrets.
type Keyring struct {
	ring keyring.Keyring
}

// OpenSystem opens the platform keyring.
func OpenSystem() (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/rfpinbound/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("rfpinbound-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// Wrap uses an existing keyring, such as keyring.NewArrayKeyring in tests.
func Wrap(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// Key returns the keyring entry name for a mailbox user.
func Key(username string) string {
	return "imap-" + username
}

// Get retrieves a secret. A missing entry returns "" and no error.
func (k *Keyring) Get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a secret.
func (k *Keyring) Set(key, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "RFP inbound mailbox password",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a secret.
func (k *Keyring) Delete(key string) error {
	if err := k.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
