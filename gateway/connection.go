// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/concordnet/concord/community"
	"github.com/concordnet/concord/lib/clock"
	"github.com/concordnet/concord/lib/directory"
	"github.com/concordnet/concord/lib/keyex"
	"github.com/concordnet/concord/lib/ref"
	"github.com/concordnet/concord/lib/secret"
	"github.com/concordnet/concord/protocol"
)

// DefaultHandshakeTimeout bounds how long a connection may stay
// unauthenticated. A peer that has not completed the handshake by
// then is disconnected.
const DefaultHandshakeTimeout = 60 * time.Second

// Transport is the duplex message stream a Connection runs on. The
// WebSocket listener provides one per accepted socket; tests provide
// in-memory pairs.
type Transport interface {
	// ReadMessage blocks for the next inbound frame.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one frame. Callers serialize writes.
	WriteMessage(data []byte) error

	// Close tears the stream down. Safe to call more than once; a
	// blocked ReadMessage must return after Close.
	Close() error
}

// handshakeState is the authentication progress of one connection. It
// is replaced as a whole value under one lock, never field by field,
// so no reader can observe a torn intermediate (identified set but a
// stale challenge, say).
type handshakeState struct {
	// identified is true once the claimed user resolved against the
	// directory.
	identified bool

	// challenged is true once the peer proved possession of the
	// user's private key.
	challenged bool

	// user is the bound user ID, set when identified.
	user ref.ID

	// publicKey is the directory-attested public key of the bound
	// user, kept for the challenge_response re-derivation.
	publicKey string

	// challenge is the issued plaintext challenge.
	challenge string

	// registered is true once the connection entered the
	// community's connection index.
	registered bool
}

func (s handshakeState) authenticated() bool {
	return s.identified && s.challenged
}

// Config assembles a Connection.
type Config struct {
	Transport Transport
	Community *community.Community
	Directory directory.Directory

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// HandshakeTimeout defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// Connection owns one live transport stream: the handshake state
// machine, the send side used by community broadcasts, and the
// post-authentication dispatch into the community.
type Connection struct {
	transport        Transport
	community        *community.Community
	directory        directory.Directory
	clock            clock.Clock
	logger           *slog.Logger
	handshakeTimeout time.Duration

	// sendMu serializes writes: the read-loop goroutine and
	// broadcast fan-out both send on the same transport.
	sendMu sync.Mutex

	// stateMu guards replacement of the handshake state value.
	// Mutations happen only on the read-loop goroutine; the lock
	// exists for the deadline timer's cross-goroutine read.
	stateMu sync.Mutex
	state   handshakeState

	// rtt is the peer-reported round-trip sample in milliseconds.
	rtt atomic.Int64

	closeOnce sync.Once
}

// NewConnection wires up a connection. Call Run to start serving it.
func NewConnection(cfg Config) (*Connection, error) {
	if cfg.Transport == nil {
		return nil, errors.New("gateway: a transport is required")
	}
	if cfg.Community == nil {
		return nil, errors.New("gateway: a community is required")
	}
	if cfg.Directory == nil {
		return nil, errors.New("gateway: a directory is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Connection{
		transport:        cfg.Transport,
		community:        cfg.Community,
		directory:        cfg.Directory,
		clock:            cfg.Clock,
		logger:           cfg.Logger.With("community", cfg.Community.Name().String()),
		handshakeTimeout: cfg.HandshakeTimeout,
	}, nil
}

// Send encodes and writes one envelope. It implements
// community.Sender, so broadcasts from any goroutine interleave
// safely with the read loop's replies.
func (c *Connection) Send(envelope protocol.Envelope) error {
	encoded, err := protocol.Encode(envelope)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.transport.WriteMessage(encoded)
}

// RTT returns the last round-trip sample the peer reported.
func (c *Connection) RTT() time.Duration {
	return time.Duration(c.rtt.Load()) * time.Millisecond
}

// User returns the authenticated user, or ref.Nobody before the
// handshake completes.
func (c *Connection) User() ref.ID {
	state := c.snapshotState()
	if !state.authenticated() {
		return ref.Nobody
	}
	return state.user
}

func (c *Connection) snapshotState() handshakeState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Connection) replaceState(state handshakeState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

// Close tears down the transport. Idempotent; the read loop exits
// with the next ReadMessage error and finishes cleanup.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if err := c.transport.Close(); err != nil {
			c.logger.Debug("closing transport", "error", err)
		}
	})
}

// Run reads and handles envelopes until the transport closes. It
// owns all handshake-state mutation. On return the connection is
// unregistered from the community if it ever registered.
func (c *Connection) Run(ctx context.Context) {
	deadline := c.clock.AfterFunc(c.handshakeTimeout, func() {
		if !c.snapshotState().authenticated() {
			c.logger.Info("handshake deadline expired")
			c.Close()
		}
	})
	defer deadline.Stop()

	defer func() {
		state := c.snapshotState()
		if state.registered {
			c.community.Unregister(state.user, c)
		}
		c.Close()
	}()

	for {
		raw, err := c.transport.ReadMessage()
		if err != nil {
			return
		}
		c.handle(ctx, protocol.Decode(raw))
	}
}

// handle is the per-envelope state machine: the handshake gate, then
// authenticated dispatch.
func (c *Connection) handle(ctx context.Context, envelope protocol.Envelope) {
	state := c.snapshotState()

	switch envelope.Type {
	case protocol.TypeIdentification:
		// A second identification while already identified is
		// ignored; a handshake is not restartable mid-flight.
		if state.identified {
			return
		}
		c.handleIdentification(ctx, envelope)

	case protocol.TypeChallengeResponse:
		if !state.identified || state.challenged {
			return
		}
		c.handleChallengeResponse(envelope, state)

	default:
		// Everything else is gated on full authentication and is
		// silently ignored before it: no reply is the peer's signal
		// that it has not authenticated yet.
		if !state.authenticated() {
			return
		}
		c.handleAuthenticated(ctx, envelope, state)
	}
}

// handleIdentification runs the New -> Identified transition: resolve
// the claimed user, derive the session key, and issue the sealed
// challenge. Every failure replies with a correlated error and leaves
// the connection in New.
func (c *Connection) handleIdentification(ctx context.Context, envelope protocol.Envelope) {
	claimed := ref.Nobody
	if raw, ok := envelope.Field(protocol.TagUserID); ok {
		parsed, err := ref.ParseID(raw)
		if err != nil {
			c.reply(protocol.NewError(envelope.ID, "invalid user id"))
			return
		}
		claimed = parsed
	}

	profile, err := c.directory.Resolve(ctx, claimed)
	if err != nil {
		c.logger.Debug("identification rejected", "claimed", claimed.String(), "error", err)
		c.reply(protocol.NewError(envelope.ID, "invalid user id"))
		return
	}

	challenge, err := keyex.NewChallenge()
	if err != nil {
		c.reply(protocol.NewError(envelope.ID, "challenge generation failed"))
		return
	}
	sealedChallenge, err := c.sealChallenge(profile.PublicKey, challenge)
	if err != nil {
		c.logger.Debug("challenge sealing failed", "user", claimed.String(), "error", err)
		c.reply(protocol.NewError(envelope.ID, "invalid public key"))
		return
	}

	c.replaceState(handshakeState{
		identified: true,
		user:       profile.UserID,
		publicKey:  profile.PublicKey,
		challenge:  challenge,
	})
	c.reply(protocol.NewReply(envelope, protocol.TypeChallenge).
		WithField(protocol.TagPublicKey, c.community.PublicKey()).
		WithField(protocol.TagChallenge, sealedChallenge))
}

// sealChallenge encrypts the plaintext challenge against the peer's
// public key using the community keypair.
func (c *Connection) sealChallenge(peerPublicKey, challenge string) (string, error) {
	key, err := c.sessionKey(peerPublicKey)
	if err != nil {
		return "", err
	}
	defer key.Close()
	return keyex.SealChallenge(key, []byte(challenge))
}

// sessionKey performs the X448 agreement with the peer and derives
// the challenge AEAD key.
func (c *Connection) sessionKey(peerPublicKey string) (*secret.Buffer, error) {
	shared, err := c.community.Keypair().Shared(peerPublicKey)
	if err != nil {
		return nil, err
	}
	defer shared.Close()
	return keyex.DeriveChallengeKey(shared)
}

// handleChallengeResponse runs the Identified -> Authenticated
// transition. A response that cannot be decoded or decrypted is a
// recoverable error; a response that decrypts to the wrong plaintext
// is a failed proof and closes the transport.
func (c *Connection) handleChallengeResponse(envelope protocol.Envelope, state handshakeState) {
	response, ok := envelope.Field(protocol.TagResponse)
	if !ok {
		c.reply(protocol.NewError(envelope.ID, "missing challenge response"))
		return
	}

	key, err := c.sessionKey(state.publicKey)
	if err != nil {
		c.reply(protocol.NewError(envelope.ID, "key agreement failed"))
		return
	}
	plaintext, err := keyex.OpenChallenge(key, response)
	key.Close()
	if err != nil {
		c.reply(protocol.NewError(envelope.ID, "malformed challenge response"))
		return
	}

	if subtle.ConstantTimeCompare(plaintext, []byte(state.challenge)) != 1 {
		// The peer holds the session key but answered with the wrong
		// plaintext. That is a protocol violation, not a retryable
		// error: reply, then tear the transport down.
		c.logger.Warn("challenge proof failed", "user", state.user.String())
		c.reply(protocol.NewError(envelope.ID, "challenge mismatch"))
		c.Close()
		return
	}

	state.challenged = true
	if err := c.community.Register(state.user, c); err != nil {
		c.reply(protocol.NewError(envelope.ID, "registration failed"))
		return
	}
	state.registered = true
	c.replaceState(state)

	enumeration, err := c.community.EnumerateResources()
	if err != nil {
		c.logger.Error("resource enumeration failed", "error", err)
		c.reply(protocol.NewError(envelope.ID, "resource enumeration failed"))
		return
	}
	encoded, err := json.Marshal(enumeration)
	if err != nil {
		c.reply(protocol.NewError(envelope.ID, "resource enumeration failed"))
		return
	}
	c.logger.Info("connection authenticated", "user", state.user.String())
	c.reply(protocol.NewReply(envelope, protocol.TypeIdentificationResponse).
		WithField(protocol.TagResources, string(encoded)))
}

// handleAuthenticated dispatches post-handshake envelopes.
func (c *Connection) handleAuthenticated(ctx context.Context, envelope protocol.Envelope, state handshakeState) {
	switch envelope.Type {
	case protocol.TypePing:
		if raw, ok := envelope.Field(protocol.TagRTT); ok {
			if sample, err := strconv.ParseInt(raw, 10, 64); err == nil && sample >= 0 {
				c.rtt.Store(sample)
			}
		}
		c.reply(protocol.NewReply(envelope, protocol.TypePong))

	case protocol.TypeFunction:
		// The sender is the authenticated user, never whatever the
		// peer put on the wire.
		reply := c.community.Dispatch(ctx, envelope.WithSender(state.user))
		c.reply(reply)

	default:
		// Recognized types with no authenticated-phase handler
		// (update, success, error, ...) are no-ops.
	}
}

func (c *Connection) reply(envelope protocol.Envelope) {
	if err := c.Send(envelope); err != nil {
		c.logger.Debug("reply failed", "type", envelope.Type.String(), "error", err)
	}
}
