// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package keyex

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/cloudflare/circl/dh/x448"
	"github.com/zeebo/blake3"

	"github.com/concordnet/concord/lib/secret"
)

// PublicKeySize is the size in bytes of an X448 public key.
const PublicKeySize = x448.Size

// Keypair is a long-term X448 keypair. The private half lives in a
// secret.Buffer (mlock'd, excluded from core dumps, zeroed on close);
// the public half is safe to publish.
//
// The caller must call Close when the keypair is no longer needed.
type Keypair struct {
	private *secret.Buffer
	public  x448.Key
}

// Generate creates a new random X448 keypair.
func Generate() (*Keypair, error) {
	var privateKey x448.Key
	if _, err := io.ReadFull(rand.Reader, privateKey[:]); err != nil {
		return nil, fmt.Errorf("generating X448 private key: %w", err)
	}

	var publicKey x448.Key
	x448.KeyGen(&publicKey, &privateKey)

	// NewFromBytes zeros the stack copy of the private key.
	private, err := secret.NewFromBytes(privateKey[:])
	if err != nil {
		return nil, fmt.Errorf("protecting X448 private key: %w", err)
	}

	return &Keypair{private: private, public: publicKey}, nil
}

// FromPrivateBase64 reconstructs a keypair from a base64-encoded
// private key, re-deriving the public half. This is how a community's
// persisted keypair is loaded; the blob is treated as secret and the
// heap copies are zeroed before returning.
func FromPrivateBase64(blob string) (*Keypair, error) {
	decoded, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	if len(decoded) != x448.Size {
		secret.Zero(decoded)
		return nil, fmt.Errorf("private key must be %d bytes, got %d", x448.Size, len(decoded))
	}

	var privateKey x448.Key
	copy(privateKey[:], decoded)
	secret.Zero(decoded)

	var publicKey x448.Key
	x448.KeyGen(&publicKey, &privateKey)

	private, err := secret.NewFromBytes(privateKey[:])
	if err != nil {
		return nil, fmt.Errorf("protecting X448 private key: %w", err)
	}

	return &Keypair{private: private, public: publicKey}, nil
}

// PublicBase64 returns the public key in base64, the form it travels
// in challenge envelopes and directory profiles.
func (k *Keypair) PublicBase64() string {
	return base64.StdEncoding.EncodeToString(k.public[:])
}

// PrivateBase64 returns the private key in base64 for persistence.
// The caller is responsible for storing the blob as a secret (sealed
// or in a file with restrictive permissions) and must never log it.
func (k *Keypair) PrivateBase64() string {
	return base64.StdEncoding.EncodeToString(k.private.Bytes())
}

// Fingerprint returns a short BLAKE3 fingerprint of the public key,
// safe for logs and operator display.
func (k *Keypair) Fingerprint() string {
	return fingerprintBytes(k.public[:])
}

// Shared computes the X448 shared secret between this keypair's
// private half and a peer's base64-encoded public key. Rejects
// malformed keys and low-order points (all-zero shared secret).
//
// The returned buffer must be closed by the caller.
func (k *Keypair) Shared(peerPublicBase64 string) (*secret.Buffer, error) {
	peerPublic, err := DecodePublicBase64(peerPublicBase64)
	if err != nil {
		return nil, err
	}

	var privateKey x448.Key
	copy(privateKey[:], k.private.Bytes())
	defer secret.Zero(privateKey[:])

	var sharedSecret x448.Key
	if !x448.Shared(&sharedSecret, &privateKey, &peerPublic) {
		return nil, fmt.Errorf("X448 key exchange failed: peer key is a low-order point")
	}

	// NewFromBytes zeros the stack copy of the shared secret.
	return secret.NewFromBytes(sharedSecret[:])
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	return k.private.Close()
}

// DecodePublicBase64 decodes and validates a base64-encoded X448
// public key.
func DecodePublicBase64(blob string) (x448.Key, error) {
	var key x448.Key
	decoded, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return key, fmt.Errorf("decoding public key: %w", err)
	}
	if len(decoded) != x448.Size {
		return key, fmt.Errorf("public key must be %d bytes, got %d", x448.Size, len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// FingerprintPublicBase64 returns the BLAKE3 fingerprint of a
// base64-encoded public key. Used to log which key a peer presented
// without logging the key itself.
func FingerprintPublicBase64(blob string) (string, error) {
	key, err := DecodePublicBase64(blob)
	if err != nil {
		return "", err
	}
	return fingerprintBytes(key[:]), nil
}

// fingerprintBytes hashes key material with BLAKE3 and renders the
// first 8 bytes as hex.
func fingerprintBytes(material []byte) string {
	digest := blake3.Sum256(material)
	return hex.EncodeToString(digest[:8])
}
