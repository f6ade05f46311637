package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrSignatureMismatch reports a chain hash whose signature does not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrUnknownKey reports a signature made with a key id not in the ring.
	ErrUnknownKey = errors.New("unknown signature key")
	errNoKeyring  = errors.New("hmac keyring is not configured")
)

// Keyring signs audit chain heads. Every transaction gets its own HKDF
// subkey of the root key, so a leaked subkey cannot forge other journals.
// Retired keys stay in the ring to verify old entries.
type Keyring struct {
	roots  map[string][]byte
	active string
}

// NewKeyring builds a keyring from root keys by id. activeKeyID signs new
// entries and must be present in keys.
func NewKeyring(keys map[string][]byte, activeKeyID string) (*Keyring, error) {
	activeKeyID = strings.TrimSpace(activeKeyID)
	switch {
	case len(keys) == 0:
		return nil, fmt.Errorf("hmac keys are required")
	case activeKeyID == "":
		return nil, fmt.Errorf("active hmac key id is required")
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active hmac key id %q is not configured", activeKeyID)
	}
	roots := maps.Clone(keys)
	for id := range roots {
		roots[id] = slices.Clone(roots[id])
	}
	return &Keyring{roots: roots, active: activeKeyID}, nil
}

// ActiveKeyID returns the id of the signing key.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.active
}

// SignChainHash returns the hex HMAC of chainHash under the transaction's
// subkey of the active root, plus the active key id.
func (k *Keyring) SignChainHash(transactionID, chainHash string) (signature, keyID string, err error) {
	if k == nil {
		return "", "", errNoKeyring
	}
	mac, err := k.mac(k.active, transactionID, chainHash)
	if err != nil {
		return "", "", err
	}
	return mac, k.active, nil
}

// VerifyChainHash checks signature against chainHash under keyID.
func (k *Keyring) VerifyChainHash(transactionID, chainHash, signature, keyID string) error {
	if k == nil {
		return errNoKeyring
	}
	expected, err := k.mac(strings.TrimSpace(keyID), transactionID, chainHash)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}

func (k *Keyring) mac(keyID, transactionID, chainHash string) (string, error) {
	root, ok := k.roots[keyID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, keyID)
	}
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return "", fmt.Errorf("transaction id is required")
	}
	subkey, err := hkdf.Key(sha256.New, root, nil, "assetflow/audit/"+transactionID, sha256.Size)
	if err != nil {
		return "", fmt.Errorf("derive transaction key: %w", err)
	}
	h := hmac.New(sha256.New, subkey)
	h.Write([]byte(chainHash))
	return hex.EncodeToString(h.Sum(nil)), nil
}
