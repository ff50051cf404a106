package security

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestEnvelopeCodec_EncryptDecryptRoundTrip(t *testing.T) {
	codec, err := NewEnvelopeCodec(testKey())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	cases := [][]byte{
		[]byte(`{"access_token":"token-value-123"}`),
		[]byte(""),
		[]byte("with\x00null\x00bytes"),
		bytes.Repeat([]byte("x"), 4096),
	}
	for _, plaintext := range cases {
		encrypted, err := codec.Encrypt(context.Background(), plaintext)
		if err != nil {
			t.Fatalf("encrypt %q: %v", string(plaintext), err)
		}
		if bytes.Equal(encrypted, plaintext) && len(plaintext) > 0 {
			t.Fatalf("expected encrypted payload to differ from plaintext")
		}
		decrypted, err := codec.Decrypt(context.Background(), encrypted)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(decrypted, plaintext) {
			t.Fatalf("expected roundtrip plaintext; got %q want %q", string(decrypted), string(plaintext))
		}
	}
}

func TestEnvelopeCodec_UniqueIVPerEncryption(t *testing.T) {
	codec, err := NewEnvelopeCodec(testKey())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	first, err := codec.Encrypt(context.Background(), []byte("same-plaintext"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	second, err := codec.Encrypt(context.Background(), []byte("same-plaintext"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct envelopes for identical plaintext")
	}
}

func TestEnvelopeCodec_TamperDetection(t *testing.T) {
	codec, err := NewEnvelopeCodec(testKey())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	encrypted, err := codec.Encrypt(context.Background(), []byte("tamper-me"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(string(encrypted))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := []byte(base64.StdEncoding.EncodeToString(raw))

	if _, err := codec.Decrypt(context.Background(), tampered); err == nil {
		t.Fatalf("expected tampered envelope to fail decryption")
	}
}

func TestEnvelopeCodec_RejectsWrongKey(t *testing.T) {
	codec, err := NewEnvelopeCodec(testKey())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	other, err := NewEnvelopeCodec(bytes.Repeat([]byte{0x24}, 32))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	encrypted, err := codec.Encrypt(context.Background(), []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := other.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected decryption with the wrong key to fail")
	}
}

func TestEnvelopeCodec_RejectsBadKeyLength(t *testing.T) {
	if _, err := NewEnvelopeCodec([]byte("short")); err == nil {
		t.Fatalf("expected short key to be rejected")
	}
}

func TestEnvelopeCodec_RejectsTruncatedEnvelope(t *testing.T) {
	codec, err := NewEnvelopeCodec(testKey())
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	truncated := []byte(base64.StdEncoding.EncodeToString([]byte("too-short")))
	if _, err := codec.Decrypt(context.Background(), truncated); err == nil {
		t.Fatalf("expected truncated envelope to be rejected")
	}
}
