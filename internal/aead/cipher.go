// Package aead implements the authenticated encryption data path (spec
// §4.3): a 256-bit key derived from a shared secret, a fresh random IV
// per call, and a tag||iv||cipher_text wire encoding with empty AAD.
//
// The spec fixes the IV and tag sizes at 128 bits as part of the wire
// contract (spec §4.3), which rules out golang.org/x/crypto's
// ChaCha20-Poly1305 (96-bit nonce) and XChaCha20-Poly1305 (192-bit
// nonce) — neither produces a 128-bit IV. AES-256-GCM with an explicit
// 16-byte nonce (crypto/cipher.NewGCMWithNonceSize) hits the contract
// exactly and is what the original implementation used
// (openssl::symm::Cipher::aes_256_gcm()); see DESIGN.md for why this
// stays on the standard library instead of a pack dependency.
package aead

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/aethernet/aether/internal/aetherr"
)

const (
	// KeySize is the symmetric key length in bytes (256 bits).
	KeySize = 32
	// NonceSize is the per-message IV length in bytes (128 bits).
	NonceSize = 16
	// TagSize is the authentication tag length in bytes (128 bits).
	TagSize = 16
)

// Encrypted is the decomposed ciphertext produced by Cipher.Encrypt,
// before it is flattened for transport.
type Encrypted struct {
	Tag        []byte
	IV         []byte
	CipherText []byte
}

// Cipher wraps one derived symmetric key and performs AEAD operations
// over it. AAD is always empty, per spec §4.3.
type Cipher struct {
	aead cipher.AEAD
}

// DeriveKey reduces an arbitrary-length shared secret to a 256-bit
// symmetric key via SHA-256, matching spec §4.3's key derivation.
func DeriveKey(sharedSecret []byte) [KeySize]byte {
	return sha256.Sum256(sharedSecret)
}

// New builds a Cipher from a derived 256-bit key.
func New(key [KeySize]byte) (*Cipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "init block cipher", err)
	}
	aeadCipher, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "init gcm", err)
	}
	return &Cipher{aead: aeadCipher}, nil
}

// Encrypt seals plain under a fresh random IV.
func (c *Cipher) Encrypt(plain []byte) (Encrypted, error) {
	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Encrypted{}, aetherr.Wrap(aetherr.Crypto, "generate iv", err)
	}

	sealed := c.aead.Seal(nil, iv, plain, nil)
	// Seal appends the tag to the ciphertext; split it back out so the
	// wire encoding can place the tag first (spec §4.3).
	cipherText := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return Encrypted{Tag: tag, IV: iv, CipherText: cipherText}, nil
}

// Decrypt opens an Encrypted value, returning DecryptFailed on any
// tampering, truncation, or IV mismatch.
func (c *Cipher) Decrypt(e Encrypted) ([]byte, error) {
	if len(e.IV) != NonceSize || len(e.Tag) != TagSize {
		return nil, aetherr.New(aetherr.DecryptFailed, "malformed encrypted payload")
	}
	sealed := append(append([]byte{}, e.CipherText...), e.Tag...)
	plain, err := c.aead.Open(nil, e.IV, sealed, nil)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.DecryptFailed, "", err)
	}
	return plain, nil
}

// Encode flattens an Encrypted value into the tag||iv||cipher_text
// transport encoding that becomes the Packet payload (spec §4.3).
func Encode(e Encrypted) []byte {
	out := make([]byte, 0, len(e.Tag)+len(e.IV)+len(e.CipherText))
	out = append(out, e.Tag...)
	out = append(out, e.IV...)
	out = append(out, e.CipherText...)
	return out
}

// Decode is the inverse of Encode.
func Decode(raw []byte) (Encrypted, error) {
	if len(raw) < TagSize+NonceSize {
		return Encrypted{}, aetherr.New(aetherr.DecryptFailed, "truncated encrypted payload")
	}
	tag := append([]byte{}, raw[:TagSize]...)
	iv := append([]byte{}, raw[TagSize:TagSize+NonceSize]...)
	cipherText := append([]byte{}, raw[TagSize+NonceSize:]...)
	return Encrypted{Tag: tag, IV: iv, CipherText: cipherText}, nil
}
