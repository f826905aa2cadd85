// Package auth implements the login gate: bcrypt-checked credentials and a
// signed session cookie.
package auth

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCredentials covers both an unknown user and a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialStore maps usernames to bcrypt password hashes.
type CredentialStore struct {
	users map[string][]byte
	// dummy is compared against for unknown users so both failure paths
	// cost one bcrypt comparison.
	dummy []byte
}

type credentialsFile struct {
	Users map[string]string `yaml:"users"`
}

// LoadCredentials reads a YAML file of the form
//
//	users:
//	  alice: $2a$10$...
func LoadCredentials(path string) (*CredentialStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var file credentialsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}

	return NewCredentialStore(file.Users)
}

// NewCredentialStore validates every hash up front so a malformed entry
// fails at startup rather than at login.
func NewCredentialStore(hashes map[string]string) (*CredentialStore, error) {
	if len(hashes) == 0 {
		return nil, errors.New("no users configured")
	}

	users := make(map[string][]byte, len(hashes))
	for name, hash := range hashes {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("user %q: invalid bcrypt hash: %w", name, err)
		}
		users[name] = []byte(hash)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("unused"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &CredentialStore{users: users, dummy: dummy}, nil
}

// Verify checks a username and password pair.
func (s *CredentialStore) Verify(username, password string) error {
	hash, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *CredentialStore) Len() int {
	return len(s.users)
}

// HashPassword returns the bcrypt hash to put in the credentials file.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
