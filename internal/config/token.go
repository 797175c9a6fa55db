package config

import (
	"fmt"

	"github.com/google/uuid"
)

const apiTokenKey = "server.api_token"

// EnsureAPIToken returns the local API bearer token, generating and
// persisting one on first use. The token never appears in config show
// output; clients read it through this same path.
func EnsureAPIToken(b Backend) (string, error) {
	token, ok, err := b.GetString(apiTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	if ok && token != "" {
		return token, nil
	}

	token = uuid.NewString()
	if err := b.SetString(apiTokenKey, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return token, nil
}

// GetAPIToken reads the persisted local API token without generating one.
func GetAPIToken(b Backend) (string, error) {
	token, ok, err := b.GetString(apiTokenKey)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	if !ok || token == "" {
		return "", fmt.Errorf("no API token found; is the server initialized? Run 'maiiam start' first")
	}
	return token, nil
}

// DefaultBackend opens the standard JSON file backend.
func DefaultBackend() Backend {
	return newFileBackend(configFilePath())
}
