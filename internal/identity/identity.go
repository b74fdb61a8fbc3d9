// Package identity implements the asymmetric identity used for peer
// authentication and key exchange (spec §4.4). The uid is the base64
// encoding of the public key's DER encoding; public_encrypt/private_decrypt
// are the only primitives the core consumes.
//
// RSA stays on the standard library's crypto/rsa and crypto/x509 rather
// than a third-party package — see DESIGN.md for why no pack example
// offers a better fit for this primitive.
package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/aethernet/aether/internal/aetherr"
)

// KeyBits is the RSA modulus size used for every Aether identity,
// matching original_source's identity/mod.rs (RSA_SIZE = 1024).
const KeyBits = 1024

const (
	pemPrivateBlockType = "RSA PRIVATE KEY"
	pemPublicBlockType  = "RSA PUBLIC KEY"
)

// Identity is one peer's asymmetric key pair.
type Identity struct {
	key *rsa.PrivateKey
}

// New generates a fresh Identity.
func New() (*Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "generate key", err)
	}
	return &Identity{key: key}, nil
}

// Paths returns the conventional PEM file locations for private and
// public keys under $HOME/.config/aether (spec §6).
func Paths() (privatePath, publicPath string) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dir := filepath.Join(home, ".config", "aether")
	return filepath.Join(dir, "private_key.pem"), filepath.Join(dir, "public_key.pem")
}

// Save persists the identity's PEM-encoded key pair to the given paths,
// creating the containing directory if needed.
func (id *Identity) Save(privatePath, publicPath string) error {
	if err := os.MkdirAll(filepath.Dir(privatePath), 0o700); err != nil {
		return aetherr.Wrap(aetherr.Crypto, "create identity dir", err)
	}

	privBytes := x509.MarshalPKCS1PrivateKey(id.key)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: pemPrivateBlockType, Bytes: privBytes})
	if err := os.WriteFile(privatePath, privPEM, 0o600); err != nil {
		return aetherr.Wrap(aetherr.Crypto, "write private key", err)
	}

	pubBytes := x509.MarshalPKCS1PublicKey(&id.key.PublicKey)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: pemPublicBlockType, Bytes: pubBytes})
	if err := os.WriteFile(publicPath, pubPEM, 0o644); err != nil {
		return aetherr.Wrap(aetherr.Crypto, "write public key", err)
	}
	return nil
}

// Load reads a previously-saved identity from a private key PEM file.
func Load(privatePath string) (*Identity, error) {
	data, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, errors.Wrap(err, "read private key")
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, aetherr.New(aetherr.Crypto, "invalid PEM")
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "parse private key", err)
	}
	return &Identity{key: key}, nil
}

// LoadOrGenerate loads the identity from disk, or generates and
// persists a fresh one if none exists yet — the original
// implementation's Id::load_or_generate().
func LoadOrGenerate(privatePath, publicPath string) (*Identity, error) {
	id, err := Load(privatePath)
	if err == nil {
		return id, nil
	}
	if !os.IsNotExist(errors.Cause(err)) {
		return nil, err
	}
	id, err = New()
	if err != nil {
		return nil, err
	}
	if err := id.Save(privatePath, publicPath); err != nil {
		return nil, err
	}
	return id, nil
}

// Uid is the stable peer identifier: base64 of the DER-encoded public key.
func (id *Identity) Uid() string {
	der := x509.MarshalPKCS1PublicKey(&id.key.PublicKey)
	return base64.StdEncoding.EncodeToString(der)
}

// PublicFromUid parses a peer's uid back into an *rsa.PublicKey so it
// can be used to encrypt challenges/secrets addressed to that peer.
func PublicFromUid(uid string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(uid)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "decode uid", err)
	}
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "parse uid public key", err)
	}
	return pub, nil
}

// Encrypt encrypts plain under a peer's public key (PKCS1v15, matching
// original_source's Padding::PKCS1 choice).
func Encrypt(pub *rsa.PublicKey, plain []byte) ([]byte, error) {
	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, pub, plain)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "public encrypt", err)
	}
	return cipher, nil
}

// Decrypt decrypts cipher with this identity's private key.
func (id *Identity) Decrypt(cipher []byte) ([]byte, error) {
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, id.key, cipher)
	if err != nil {
		return nil, aetherr.Wrap(aetherr.Crypto, "private decrypt", err)
	}
	return plain, nil
}

// MaxSecretSize is the largest payload PKCS1v15 can encrypt under
// KeyBits, leaving room for the padding overhead — enough for the
// 256-bit (32-byte) secrets used in key exchange and authentication.
func MaxSecretSize() int {
	return KeyBits/8 - 11
}
