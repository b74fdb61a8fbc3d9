package aead

import (
	"bytes"
	"testing"
)

func TestCipherEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey([]byte("a shared secret negotiated over key exchange"))
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	plain := []byte("This is a small message")
	enc, err := c.Encrypt(plain)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(enc.Tag) != TagSize {
		t.Errorf("tag len = %d, want %d", len(enc.Tag), TagSize)
	}
	if len(enc.IV) != NonceSize {
		t.Errorf("iv len = %d, want %d", len(enc.IV), NonceSize)
	}

	got, err := c.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("plain = %q, want %q", got, plain)
	}
}

func TestCipherDecryptRejectsTamperedTag(t *testing.T) {
	key := DeriveKey([]byte("shared secret"))
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	enc, err := c.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	enc.Tag[0] ^= 0xFF

	if _, err := c.Decrypt(enc); err == nil {
		t.Fatalf("expected DecryptFailed for tampered tag, got nil")
	}
}

func TestCipherDecryptWrongKeyFails(t *testing.T) {
	c1, err := New(DeriveKey([]byte("secret one")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c2, err := New(DeriveKey([]byte("secret two")))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	enc, err := c1.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c2.Decrypt(enc); err == nil {
		t.Fatalf("expected DecryptFailed for wrong key, got nil")
	}
}

// Mirrors spec §4.3's tag||iv||cipher_text wire layout.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := Encrypted{
		Tag:        bytes.Repeat([]byte{0xAA}, TagSize),
		IV:         bytes.Repeat([]byte{0xBB}, NonceSize),
		CipherText: []byte{1, 2, 3, 4, 5},
	}
	raw := Encode(enc)
	if len(raw) != TagSize+NonceSize+len(enc.CipherText) {
		t.Fatalf("encoded len = %d, want %d", len(raw), TagSize+NonceSize+len(enc.CipherText))
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Tag, enc.Tag) || !bytes.Equal(decoded.IV, enc.IV) || !bytes.Equal(decoded.CipherText, enc.CipherText) {
		t.Errorf("decoded = %+v, want %+v", decoded, enc)
	}
}

func TestDecodeRejectsTruncated(t *testing.T) {
	if _, err := Decode(make([]byte, TagSize+NonceSize-1)); err == nil {
		t.Fatalf("expected DecryptFailed for truncated payload, got nil")
	}
}
