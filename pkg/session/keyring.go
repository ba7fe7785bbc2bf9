package session

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/aiodash/aiodash/pkg/protocol"
)

// KeyringService is the service name tokens are stored under.
const KeyringService = "aiodash"

// KeyringStorage keeps the token in the OS credential store and the user
// profile in a FileStorage. Account separates sessions for different
// backends.
type KeyringStorage struct {
	account string
	profile *FileStorage
}

// NewKeyringStorage returns storage keyed by account.
func NewKeyringStorage(account string, profile *FileStorage) *KeyringStorage {
	return &KeyringStorage{account: account, profile: profile}
}

func (k *KeyringStorage) LoadToken() (string, error) {
	token, err := keyring.Get(KeyringService, k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return token, nil
}

func (k *KeyringStorage) SaveToken(token string) error {
	if token == "" {
		return k.deleteToken()
	}
	if err := keyring.Set(KeyringService, k.account, token); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

func (k *KeyringStorage) LoadUser() (*protocol.User, error) {
	return k.profile.LoadUser()
}

func (k *KeyringStorage) SaveUser(user *protocol.User) error {
	return k.profile.SaveUser(user)
}

// Clear removes the token before the profile.
func (k *KeyringStorage) Clear() error {
	if err := k.deleteToken(); err != nil {
		return err
	}
	return k.profile.Clear()
}

func (k *KeyringStorage) deleteToken() error {
	err := keyring.Delete(KeyringService, k.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete keyring entry: %w", err)
	}
	return nil
}
