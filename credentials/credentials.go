// Package credentials stores portal passwords in the OS keyring for the CLI.
package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service name entries are stored under.
const Service = "quelio"

var (
	// ErrNotFound is returned when no password is stored for the user
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// GetPassword retrieves the portal password for username.
func GetPassword(username string) (string, error) {
	password, err := keyring.Get(Service, username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return password, nil
}

// SetPassword stores the portal password for username.
func SetPassword(username, password string) error {
	if username == "" {
		return errors.New("username cannot be empty")
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if err := keyring.Set(Service, username, password); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// DeletePassword removes the stored password for username.
func DeletePassword(username string) error {
	err := keyring.Delete(Service, username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}
