package integrity

import (
	"fmt"
	"strings"

	"github.com/louisbranch/assetflow/internal/platform/config"
)

const defaultKeyID = "v1"

// KeyConfig holds the audit HMAC key environment.
type KeyConfig struct {
	// Keys is a comma separated list of id=secret pairs.
	Keys  string `env:"ASSETFLOW_AUDIT_HMAC_KEYS"`
	Key   string `env:"ASSETFLOW_AUDIT_HMAC_KEY"`
	KeyID string `env:"ASSETFLOW_AUDIT_HMAC_KEY_ID"`
}

// KeyringFromEnv loads the audit keyring from environment variables.
func KeyringFromEnv() (*Keyring, error) {
	var cfg KeyConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return nil, fmt.Errorf("parse audit key env: %w", err)
	}
	return KeyringFromConfig(cfg)
}

// KeyringFromConfig builds a keyring from parsed key configuration.
func KeyringFromConfig(cfg KeyConfig) (*Keyring, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}

	entries := strings.TrimSpace(cfg.Keys)
	if entries == "" {
		raw := strings.TrimSpace(cfg.Key)
		if raw == "" {
			return nil, fmt.Errorf("ASSETFLOW_AUDIT_HMAC_KEY is required")
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys := make(map[string][]byte)
	for _, entry := range strings.Split(entries, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		value = strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid ASSETFLOW_AUDIT_HMAC_KEYS entry %q", entry)
		}
		keys[id] = []byte(value)
	}
	return NewKeyring(keys, keyID)
}
