// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/concordnet/concord/lib/secret"
)

// Keypair holds an age x25519 keypair. The private key is stored in a
// secret.Buffer (mmap-backed, locked against swap, excluded from core
// dumps). The public key is a plain string, safe to publish.
//
// The caller must call Close when the keypair is no longer needed.
type Keypair struct {
	// PrivateKey is the secret key in AGE-SECRET-KEY-1... format,
	// stored in mmap memory outside the Go heap. Must never be
	// logged, stored in plaintext on disk, or passed on a command
	// line.
	PrivateKey *secret.Buffer

	// PublicKey is the corresponding public key in age1... format.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair with the private
// key held in a secret.Buffer. The caller must call Close on the
// returned Keypair when done.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	// Move the private key string into mmap-backed memory
	// immediately. The heap string returned by the age API is
	// unavoidable; the mmap buffer is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Encrypt encrypts plaintext to one or more recipients specified by
// their age public key strings (age1... format). Returns the
// ciphertext as a base64 string suitable for storage in persisted
// configuration. At least one recipient is required.
func Encrypt(plaintext []byte, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var ciphertextBuffer bytes.Buffer
	writer, err := age.Encrypt(&ciphertextBuffer, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertextBuffer.Bytes()), nil
}

// Decrypt decrypts a base64-encoded ciphertext string using the given
// private key. Returns the plaintext in a secret.Buffer (mmap-backed,
// zeroed on close).
//
// The private key is borrowed (read via .String() to parse the age
// identity) and is NOT closed by this function. The caller must call
// Close on the returned buffer when the plaintext is no longer needed.
func Decrypt(ciphertext string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	rawCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(rawCiphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("decrypted plaintext is empty")
	}

	// NewFromBytes moves the plaintext into mmap-backed memory and
	// zeros the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}

// LoadIdentity reads an age private key from a file (or stdin for
// "-") and validates it. Used to load the operator's key-sealing
// identity at server start.
func LoadIdentity(path string) (*secret.Buffer, error) {
	identity, err := secret.ReadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("reading sealing identity: %w", err)
	}
	if err := ParsePrivateKey(identity); err != nil {
		identity.Close()
		return nil, err
	}
	return identity, nil
}

// Recipient derives the age public key for an identity held in a
// secret.Buffer. Sealing to an identity's own recipient lets a server
// configured with only an identity file encrypt what it can later
// decrypt.
func Recipient(identity *secret.Buffer) (string, error) {
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return "", fmt.Errorf("parsing identity: %w", err)
	}
	return parsed.Recipient().String(), nil
}

// ParsePublicKey validates an age public key string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}

// ParsePrivateKey validates an age private key stored in a
// secret.Buffer.
func ParsePrivateKey(privateKey *secret.Buffer) error {
	if _, err := age.ParseX25519Identity(privateKey.String()); err != nil {
		return fmt.Errorf("invalid age private key: %w", err)
	}
	return nil
}
