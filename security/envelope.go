package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/goliatone/go-integrations/core"
)

const (
	envelopeIVSize  = 16
	envelopeTagSize = 16
)

// EnvelopeCodec seals credential payloads with AES-256-GCM. The stored form
// is base64(IV || Tag || Ciphertext) with a 16 byte IV and 16 byte tag, so an
// envelope is identifiable and versionable without decrypting it.
type EnvelopeCodec struct {
	key []byte
}

func NewEnvelopeCodec(key []byte) (*EnvelopeCodec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("security: envelope key must be 32 bytes, got %d", len(key))
	}
	owned := make([]byte, len(key))
	copy(owned, key)
	return &EnvelopeCodec{key: owned}, nil
}

func (c *EnvelopeCodec) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: envelope codec is nil")
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	iv := make([]byte, envelopeIVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("security: iv generation failed: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	if len(sealed) < envelopeTagSize {
		return nil, fmt.Errorf("security: sealed payload too short")
	}
	ciphertext := sealed[:len(sealed)-envelopeTagSize]
	tag := sealed[len(sealed)-envelopeTagSize:]

	raw := make([]byte, 0, envelopeIVSize+envelopeTagSize+len(ciphertext))
	raw = append(raw, iv...)
	raw = append(raw, tag...)
	raw = append(raw, ciphertext...)

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(encoded, raw)
	return encoded, nil
}

func (c *EnvelopeCodec) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("security: envelope codec is nil")
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(raw, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("security: decode envelope: %w", err)
	}
	raw = raw[:n]
	if len(raw) < envelopeIVSize+envelopeTagSize {
		return nil, fmt.Errorf("security: envelope too short: %d bytes", len(raw))
	}

	iv := raw[:envelopeIVSize]
	tag := raw[envelopeIVSize : envelopeIVSize+envelopeTagSize]
	body := raw[envelopeIVSize+envelopeTagSize:]

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(body)+len(tag))
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (c *EnvelopeCodec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, envelopeIVSize)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	return gcm, nil
}

var _ core.SecretProvider = (*EnvelopeCodec)(nil)
