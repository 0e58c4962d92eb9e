package session

import "github.com/google/uuid"

// NewKey issues a random session key.
func NewKey() string {
	return uuid.NewString()
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
