package completion

import (
	"errors"
	"strings"
)

const (
	keyPrefix    = "sk-"
	minKeyLength = 21
)

var (
	ErrMissingAPIKey   = errors.New("OpenAI API key is missing")
	ErrMalformedAPIKey = errors.New("OpenAI API key is invalid")
)

// ValidateAPIKey performs the local syntactic check done before any network call.
// Passing it says nothing about whether the remote service accepts the key.
func ValidateAPIKey(key string) error {
	if key == "" {
		return ErrMissingAPIKey
	}
	if len(key) < minKeyLength || !strings.HasPrefix(key, keyPrefix) {
		return ErrMalformedAPIKey
	}
	return nil
}
