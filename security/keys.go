package security

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// keyDerivationSalt is fixed so derived keys are stable across restarts. A
// per-install salt would invalidate every stored envelope on rotation of the
// salt alone.
const keyDerivationSalt = "go-integrations.credential-key.v1"

const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

type DerivedKey struct {
	Key []byte
	// Stretched is true when the key came from a passphrase rather than
	// raw hex material. Callers should warn on startup: passphrase keys
	// are fine for development, not production.
	Stretched bool
}

// DeriveEnvelopeKey resolves the 32 byte envelope key. A 64 character hex
// string is used verbatim; anything else is stretched with scrypt.
func DeriveEnvelopeKey(encryptionKey string, fallbackSecret string) (DerivedKey, error) {
	material := strings.TrimSpace(encryptionKey)
	if material == "" {
		material = strings.TrimSpace(fallbackSecret)
	}
	if material == "" {
		return DerivedKey{}, fmt.Errorf("security: encryption key or fallback secret is required")
	}

	if len(material) == 64 {
		if raw, err := hex.DecodeString(material); err == nil {
			return DerivedKey{Key: raw}, nil
		}
	}

	stretched, err := scrypt.Key([]byte(material), []byte(keyDerivationSalt), scryptN, scryptR, scryptP, 32)
	if err != nil {
		return DerivedKey{}, fmt.Errorf("security: stretch key: %w", err)
	}
	return DerivedKey{Key: stretched, Stretched: true}, nil
}

// NewEnvelopeCodecFromConfig builds the codec straight from configuration
// values, deriving the key as needed.
func NewEnvelopeCodecFromConfig(encryptionKey string, fallbackSecret string) (*EnvelopeCodec, DerivedKey, error) {
	derived, err := DeriveEnvelopeKey(encryptionKey, fallbackSecret)
	if err != nil {
		return nil, DerivedKey{}, err
	}
	codec, err := NewEnvelopeCodec(derived.Key)
	if err != nil {
		return nil, DerivedKey{}, err
	}
	return codec, derived, nil
}
