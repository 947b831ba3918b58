package journal

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Signer handles Ed25519 signing of entry hashes. The private key is
// stored hex-encoded in a file with 0600 permissions.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner loads the key at keyPath, generating and saving a fresh
// keypair if none exists.
func NewSigner(keyPath string) (*Signer, error) {
	privateKey, err := loadPrivateKey(keyPath)
	if err != nil {
		publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating keypair: %w", err)
		}
		if err := savePrivateKey(keyPath, privateKey); err != nil {
			return nil, fmt.Errorf("saving private key: %w", err)
		}
		return &Signer{privateKey: privateKey, publicKey: publicKey}, nil
	}

	return &Signer{
		privateKey: privateKey,
		publicKey:  privateKey.Public().(ed25519.PublicKey),
	}, nil
}

// SignHash signs a hash string and returns the hex-encoded signature.
func (s *Signer) SignHash(hash string) string {
	return hex.EncodeToString(ed25519.Sign(s.privateKey, []byte(hash)))
}

// PublicKey returns the public key as a hex-encoded string. Included in
// the journal meta so external parties can verify the chain.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.publicKey)
}

// VerifyWithKey checks a hex signature against a hash using a
// hex-encoded public key. Returns false on any decode failure.
func VerifyWithKey(publicKeyHex, hash, signatureHex string) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(hash), sig)
}

func loadPrivateKey(keyPath string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d", len(key))
	}
	return ed25519.PrivateKey(key), nil
}

func savePrivateKey(keyPath string, key ed25519.PrivateKey) error {
	return os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0600)
}
