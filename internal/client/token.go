package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenStore holds the auth token sent with every request
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
}

// MemoryTokens keeps the token in process memory
type MemoryTokens struct {
	mu    sync.RWMutex
	token string
}

func (m *MemoryTokens) Token() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryTokens) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// FileTokens persists the token in a file readable only by the owner
type FileTokens struct {
	Path string
}

// DefaultTokenPath is ~/.config/cmsctl/token on Linux
func DefaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "cmsctl", "token"), nil
}

// Token returns "" when no token was stored yet
func (f FileTokens) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (f FileTokens) SetToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
