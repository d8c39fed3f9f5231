package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Preferences stores the session settings changed with "set".
type Preferences struct {
	BaseURL   string    `json:"base_url,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timeout   string    `json:"timeout,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeoutValue parses the stored timeout, returning 0 when unset or invalid.
func (p Preferences) TimeoutValue() time.Duration {
	if p.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

func Load(path string) (Preferences, error) {
	var st Preferences
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read cli state failed: %w", err)
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse cli state failed: %w", err)
	}
	return st, nil
}

func Save(path string, st Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cli state dir failed: %w", err)
	}
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cli state failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write cli state failed: %w", err)
	}
	return nil
}

func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cli state failed: %w", err)
	}
	return nil
}
