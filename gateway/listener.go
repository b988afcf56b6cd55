// Copyright 2026 The Concord Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/concordnet/concord/community"
	"github.com/concordnet/concord/lib/clock"
	"github.com/concordnet/concord/lib/directory"
	"github.com/concordnet/concord/lib/ref"
)

// ListenerConfig assembles a Listener.
type ListenerConfig struct {
	// Address is the TCP listen address, e.g. ":7410".
	Address string

	// Registry holds the communities clients can connect to.
	Registry *community.Registry

	// Directory resolves claimed user IDs during the handshake.
	Directory directory.Directory

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// HandshakeTimeout defaults to DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// Listener serves the WebSocket endpoint. Each community is reachable
// at /community/{name}/; an upgrade on that path hands the socket to
// a new Connection goroutine.
type Listener struct {
	cfg      ListenerConfig
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewListener builds a listener. Call Serve to start accepting.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if cfg.Address == "" {
		return nil, errors.New("gateway: a listen address is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("gateway: a community registry is required")
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

	listener := &Listener{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The handshake authenticates peers cryptographically;
			// browser origin checks add nothing here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/community/", listener.handleCommunity)
	listener.server = &http.Server{Addr: cfg.Address, Handler: mux}
	return listener, nil
}

// Serve accepts connections until the context is cancelled, then
// shuts the HTTP server down.
func (l *Listener) Serve(ctx context.Context) error {
	tcp, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.cfg.Address, err)
	}
	l.cfg.Logger.Info("gateway listening", "address", tcp.Addr().String())

	errs := make(chan error, 1)
	go func() {
		if err := l.server.Serve(tcp); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return l.server.Shutdown(shutdownCtx)
	}
}

// communityName extracts the community name from a request path of
// the shape /community/{name}/.
func communityName(path string) (ref.CommunityName, error) {
	trimmed := strings.TrimPrefix(path, "/community/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" || strings.Contains(trimmed, "/") {
		return ref.CommunityName{}, fmt.Errorf("malformed community path %q", path)
	}
	return ref.ParseCommunityName(trimmed)
}

func (l *Listener) handleCommunity(w http.ResponseWriter, r *http.Request) {
	name, err := communityName(r.URL.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	// The upgrade happens before the community lookup settles the
	// connection's fate: an unknown community accepts the socket and
	// immediately drops it without a protocol envelope.
	socket, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.cfg.Logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	target, ok := l.cfg.Registry.Get(name)
	if !ok {
		l.cfg.Logger.Info("connection to unknown community dropped",
			"community", name.String())
		socket.Close()
		return
	}

	conn, err := NewConnection(Config{
		Transport:        &wsTransport{socket: socket},
		Community:        target,
		Directory:        l.cfg.Directory,
		Clock:            l.cfg.Clock,
		Logger:           l.cfg.Logger,
		HandshakeTimeout: l.cfg.HandshakeTimeout,
	})
	if err != nil {
		l.cfg.Logger.Error("connection setup failed", "error", err)
		socket.Close()
		return
	}
	// The request context is cancelled as soon as this handler
	// returns, and the connection outlives the handler by design.
	// Detach from the cancellation while keeping request values.
	go conn.Run(context.WithoutCancel(r.Context()))
}

// wsTransport adapts a gorilla WebSocket to the Transport interface.
// Envelopes travel as text frames.
type wsTransport struct {
	socket *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, payload, err := t.socket.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	return t.socket.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.socket.Close()
}

// compile-time check that Connection satisfies the community's send
// surface.
var _ community.Sender = (*Connection)(nil)
