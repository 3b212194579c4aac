// Package keyring keeps questbot secrets in the OS keyring so they never
// land in the config file.
package keyring

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/questbot/internal/constants"
)

var (
	// ErrNotFound is returned when the secret is not in the keyring
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
	// ErrUnknownSecret is returned for a secret name questbot does not manage
	ErrUnknownSecret = errors.New("unknown secret")
)

// Secret names a keyring entry
type Secret string

const (
	DBConnection  Secret = constants.DefaultKeyringUser
	BotToken      Secret = constants.BotTokenKeyringKey
	WebhookSecret Secret = "webhook-secret"
	TriggerToken  Secret = "trigger-token"
)

var known = map[Secret]bool{
	DBConnection:  true,
	BotToken:      true,
	WebhookSecret: true,
	TriggerToken:  true,
}

// ParseSecret validates a secret name given on the command line
func ParseSecret(name string) (Secret, error) {
	s := Secret(name)
	if !known[s] {
		return "", fmt.Errorf("%w %q (expected one of %v)", ErrUnknownSecret, name, Names())
	}
	return s, nil
}

// Names lists the managed secret names
func Names() []string {
	names := make([]string, 0, len(known))
	for s := range known {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Get retrieves a secret. Returns ErrNotFound if it is not stored.
func Get(secret Secret) (string, error) {
	value, err := keyring.Get(constants.AppName, string(secret))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return value, nil
}

// Set stores a secret, replacing any previous value
func Set(secret Secret, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", secret)
	}
	if err := keyring.Set(constants.AppName, string(secret), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", secret, err)
	}
	return nil
}

func Delete(secret Secret) error {
	err := keyring.Delete(constants.AppName, string(secret))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", secret, err)
	}
	return nil
}

// Lookup is Get for optional secrets: a missing entry or an unavailable
// keyring both yield "".
func Lookup(secret Secret) string {
	value, err := Get(secret)
	if err != nil {
		return ""
	}
	return value
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
