// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package keyex

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/concordnet/concord/lib/secret"
)

// SymmetricKeySize is the size in bytes of the derived AES-256 key.
const SymmetricKeySize = 32

// NonceSize is the size in bytes of the AES-GCM nonce prepended to a
// sealed challenge blob.
const NonceSize = 12

// ChallengeLength is the length of the plaintext challenge string.
const ChallengeLength = 32

// hkdfInfoChallenge is the "info" parameter to HKDF-SHA256 when
// deriving the challenge encryption key. Both sides of the handshake
// must use the same label; changing it invalidates every deployed
// client.
var hkdfInfoChallenge = []byte("challenge")

// challengeAlphabet is the character set challenges are drawn from.
// 64 characters, so an unbiased choice is a single masked random byte.
const challengeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// NewChallenge returns a fresh random challenge of ChallengeLength
// printable characters.
func NewChallenge() (string, error) {
	randomBytes := make([]byte, ChallengeLength)
	if _, err := io.ReadFull(rand.Reader, randomBytes); err != nil {
		return "", fmt.Errorf("generating challenge: %w", err)
	}
	challenge := make([]byte, ChallengeLength)
	for index, value := range randomBytes {
		challenge[index] = challengeAlphabet[value&63]
	}
	return string(challenge), nil
}

// DeriveChallengeKey expands an X448 shared secret into a 256-bit
// AES key via HKDF-SHA256 under the fixed "challenge" label. The salt
// is nil: the input key material is a fresh DH output, so HKDF's
// extract phase with a zero salt is appropriate per RFC 5869.
//
// The sharedSecret is borrowed and NOT closed. The returned buffer
// must be closed by the caller.
func DeriveChallengeKey(sharedSecret *secret.Buffer) (*secret.Buffer, error) {
	reader := hkdf.New(sha256.New, sharedSecret.Bytes(), nil, hkdfInfoChallenge)
	derived := make([]byte, SymmetricKeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("HKDF key derivation failed: %w", err)
	}
	// NewFromBytes copies into mmap and zeros the heap slice.
	return secret.NewFromBytes(derived)
}

// SealChallenge encrypts a challenge plaintext with AES-256-GCM under
// a freshly generated 96-bit nonce and returns the wire blob:
// base64(nonce || ciphertext+tag).
//
// The key is borrowed and NOT closed. It must be exactly
// SymmetricKeySize bytes (the output of DeriveChallengeKey).
func SealChallenge(key *secret.Buffer, plaintext []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends the ciphertext+tag to the nonce prefix.
	blob := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	copy(blob, nonce[:])
	blob = aead.Seal(blob, nonce[:], plaintext, nil)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// OpenChallenge decrypts a wire blob produced by SealChallenge.
// Returns an error if the blob is undecodable, shorter than the
// nonce, or fails AEAD authentication (wrong key or tampered data).
//
// The key is borrowed and NOT closed.
func OpenChallenge(key *secret.Buffer, blob string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding challenge blob: %w", err)
	}
	if len(decoded) < NonceSize {
		return nil, fmt.Errorf("challenge blob is %d bytes, minimum is %d (nonce)", len(decoded), NonceSize)
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := decoded[:NonceSize]
	ciphertext := decoded[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("AEAD decryption failed (wrong key or tampered data): %w", err)
	}
	return plaintext, nil
}

// newGCM builds the AES-256-GCM AEAD for a derived key.
func newGCM(key *secret.Buffer) (cipher.AEAD, error) {
	if key.Len() != SymmetricKeySize {
		return nil, fmt.Errorf("challenge key must be %d bytes, got %d", SymmetricKeySize, key.Len())
	}
	block, err := aes.NewCipher(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
