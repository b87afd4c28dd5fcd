package moderation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Directory answers whether an e-mail address belongs to an administrator.
// Admins come from a JSON file and from a fixed list supplied at startup.
type Directory struct {
	mu         sync.RWMutex
	configPath string
	fixed      []string

	admins map[string]struct{}
}

// NewDirectory creates a directory from the file at configPath plus extra
// addresses. An empty path or a missing file yields only the extra addresses.
func NewDirectory(configPath string, extra ...string) (*Directory, error) {
	d := &Directory{
		configPath: configPath,
		admins:     make(map[string]struct{}),
	}
	for _, email := range extra {
		if email = normalizeEmail(email); email != "" {
			d.fixed = append(d.fixed, email)
		}
	}

	if err := d.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load moderation config: %w", err)
	}

	return d, nil
}

// loadConfig reads the config file and rebuilds the admin set.
func (d *Directory) loadConfig() error {
	var config Config

	if d.configPath != "" {
		data, err := os.ReadFile(d.configPath)
		switch {
		case os.IsNotExist(err):
			log.Warn().Str("path", d.configPath).Msg("moderation: config file not found, no file admins")
		case err != nil:
			return fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := json.Unmarshal(data, &config); err != nil {
				return fmt.Errorf("failed to parse config file: %w", err)
			}
			if err := config.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
		}
	}

	admins := make(map[string]struct{}, len(config.AdminEmails)+len(d.fixed))
	for _, email := range config.AdminEmails {
		admins[email] = struct{}{}
	}
	for _, email := range d.fixed {
		admins[email] = struct{}{}
	}

	d.mu.Lock()
	d.admins = admins
	d.mu.Unlock()

	log.Info().
		Int("admins", len(admins)).
		Str("path", d.configPath).
		Msg("moderation: admin directory loaded")

	return nil
}

// Reload re-reads the config file. On error the previous admin set is kept.
func (d *Directory) Reload() error {
	return d.loadConfig()
}

// IsEnabled returns true if at least one administrator is configured
func (d *Directory) IsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.admins) > 0
}

// IsAdmin compares email case-insensitively against the admin set.
func (d *Directory) IsAdmin(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.admins[email]
	return ok
}

// ListAdmins returns the configured admin addresses, sorted.
func (d *Directory) ListAdmins() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]string, 0, len(d.admins))
	for email := range d.admins {
		result = append(result, email)
	}
	sort.Strings(result)
	return result
}
