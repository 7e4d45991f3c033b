// Package auth provides AniList access token lookup.
// Browsing the public catalog works without a token; only list mutations and
// the viewer query need one.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar is the environment variable holding an AniList access token.
const EnvVar = "ANILIST_TOKEN"

// ErrNoToken indicates no provider could supply a token.
var ErrNoToken = errors.New("no AniList token")

// TokenProvider defines the interface for obtaining an AniList access token.
type TokenProvider interface {
	GetToken() (string, error)
}

// EnvProvider obtains tokens from the ANILIST_TOKEN environment variable.
type EnvProvider struct{}

// GetToken reads the ANILIST_TOKEN environment variable.
func (e *EnvProvider) GetToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(EnvVar))
	if token == "" {
		return "", fmt.Errorf("%w: %s environment variable not set or empty", ErrNoToken, EnvVar)
	}
	return token, nil
}

// FileProvider reads a token from a file holding nothing but the token.
type FileProvider struct {
	Path string
}

// DefaultTokenPath returns $XDG_CONFIG_HOME/postergrid/token, or an empty
// string when no config directory can be determined.
func DefaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "postergrid", "token")
}

// GetToken reads and trims the token file.
func (f *FileProvider) GetToken() (string, error) {
	if f.Path == "" {
		return "", fmt.Errorf("%w: no token file configured", ErrNoToken)
	}

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist", ErrNoToken, f.Path)
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrNoToken, f.Path)
	}
	return token, nil
}

// DefaultProviders returns the environment provider followed by the default
// token file.
func DefaultProviders() []TokenProvider {
	return []TokenProvider{
		&EnvProvider{},
		&FileProvider{Path: DefaultTokenPath()},
	}
}

// GetToken returns the first token supplied by providers, trying
// DefaultProviders when none are given. Missing tokens are reported with
// ErrNoToken; other failures (an unreadable token file) are returned as is.
func GetToken(providers ...TokenProvider) (string, error) {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}

	for _, p := range providers {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrNoToken) {
			return "", err
		}
	}

	return "", fmt.Errorf(
		"%w: set %s or write a token to %s to manage your lists",
		ErrNoToken, EnvVar, DefaultTokenPath(),
	)
}
