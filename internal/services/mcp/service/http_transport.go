package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/louisbranch/crosscheck/internal/platform/config"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// mcpHTTPEnv holds env-parsed configuration for the MCP HTTP transport.
type mcpHTTPEnv struct {
	AllowedHosts  []string `env:"CROSSCHECK_MCP_ALLOWED_HOSTS" envSeparator:","`
	AuthIssuer    string   `env:"CROSSCHECK_MCP_AUTH_ISSUER"`
	AuthAudience  string   `env:"CROSSCHECK_MCP_AUTH_AUDIENCE"`
	AuthPublicKey string   `env:"CROSSCHECK_MCP_AUTH_PUBLIC_KEY"`
}

const (
	// defaultChannelBufferSize buffers request, response, and notification
	// channels so bursts do not block immediately.
	defaultChannelBufferSize = 10

	// defaultRequestTimeout is the maximum time to wait for a JSON-RPC
	// response.
	defaultRequestTimeout = 30 * time.Second

	// defaultShutdownTimeout bounds graceful HTTP shutdown. It exceeds the
	// request timeout so in-flight requests can finish.
	defaultShutdownTimeout = 35 * time.Second

	// sessionCleanupInterval is how often expired sessions are swept.
	sessionCleanupInterval = 5 * time.Minute

	// sessionExpirationTime is how long a session can sit idle before the
	// sweep removes it.
	sessionExpirationTime = 1 * time.Hour

	// sseHeartbeatInterval refreshes liveness for active SSE connections.
	sseHeartbeatInterval = 30 * time.Second

	// defaultSessionReadyTimeout bounds how long request handling waits for
	// a session connection to become ready.
	defaultSessionReadyTimeout = 100 * time.Millisecond
)

// HTTPTransport serves MCP over HTTP: JSON-RPC messages on POST /mcp and
// Server-Sent Events for notifications on GET /mcp. Session lifecycle and
// cleanup are explicit so long-lived clients cannot leak connections.
type HTTPTransport struct {
	addr         string
	allowedHosts map[string]struct{}
	server       *mcp.Server
	bearer       *bearerVerifier
	sessions     map[string]*httpSession
	sessionsMu   sync.RWMutex
	httpServer   *http.Server
	serverCtx    context.Context
	serverCancel context.CancelFunc
	serverOnceMu sync.Mutex
	serverOnce   map[string]*sync.Once

	serverReadyTimeout time.Duration
	randomReader       func([]byte) (int, error)
}

// httpSession tracks one MCP session: its connection and liveness, so
// cleanup and SSE delivery stay scoped to a single client.
type httpSession struct {
	id        string
	conn      *httpConnection
	createdAt time.Time
	lastUsed  time.Time
}

// NewHTTPTransport creates an HTTP transport bound to addr. The default
// binding is localhost-only; broader exposure needs explicit allowed hosts
// and bearer auth configuration.
func NewHTTPTransport(addr string) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8095"
	}
	var raw mcpHTTPEnv
	_ = config.ParseEnv(&raw)
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPTransport{
		addr:               addr,
		allowedHosts:       parseAllowedHosts(raw.AllowedHosts),
		bearer:             loadBearerVerifierFromEnv(raw),
		sessions:           make(map[string]*httpSession),
		serverCtx:          ctx,
		serverCancel:       cancel,
		serverOnce:         make(map[string]*sync.Once),
		serverReadyTimeout: defaultSessionReadyTimeout,
		randomReader:       rand.Read,
	}
}

// NewHTTPTransportWithServer creates an HTTP transport that serves a
// preconfigured MCP server.
func NewHTTPTransportWithServer(addr string, server *mcp.Server) *HTTPTransport {
	transport := NewHTTPTransport(addr)
	transport.server = server
	return transport
}

// Start runs the HTTP server until the context ends. One server instance
// multiplexes POST messages and SSE streams behind shared host validation
// and auth enforcement.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serverCtx, t.serverCancel = context.WithCancel(ctx)

	go t.cleanupSessions(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			t.handleSSE(w, r)
		case http.MethodPost:
			t.handleMessages(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/mcp/health", t.handleHealth)

	t.httpServer = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	log.Printf("mcp: HTTP server listening on %s", t.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("mcp: shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		if t.serverCancel != nil {
			t.serverCancel()
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// handleHealth reports liveness without touching session state.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Printf("mcp: write health response: %v", err)
	}
}

// Connect implements mcp.Transport. Each call creates a fresh session whose
// connection is fed by subsequent HTTP requests.
func (t *HTTPTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	sessionID := t.generateSessionID()

	conn := &httpConnection{
		sessionID:   sessionID,
		reqChan:     make(chan jsonrpc.Message, defaultChannelBufferSize),
		notifyChan:  make(chan jsonrpc.Message, defaultChannelBufferSize),
		closed:      make(chan struct{}),
		ready:       make(chan struct{}, 1),
		pendingReqs: make(map[jsonrpc.ID]chan jsonrpc.Message),
	}

	now := time.Now()
	t.sessionsMu.Lock()
	t.sessions[sessionID] = &httpSession{id: sessionID, conn: conn, createdAt: now, lastUsed: now}
	t.sessionsMu.Unlock()

	return conn, nil
}

// cleanupSessions sweeps idle sessions so abandoned clients release their
// connections.
func (t *HTTPTransport) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionExpirationTime)
			t.sessionsMu.Lock()
			for id, session := range t.sessions {
				if session.lastUsed.Before(cutoff) {
					session.conn.Close()
					delete(t.sessions, id)
					t.serverOnceMu.Lock()
					delete(t.serverOnce, id)
					t.serverOnceMu.Unlock()
				}
			}
			t.sessionsMu.Unlock()
		}
	}
}

// ensureServerRunning starts the MCP server goroutine for one session
// exactly once and waits briefly for the connection to become readable.
func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}

	t.serverOnceMu.Lock()
	once, exists := t.serverOnce[session.id]
	if !exists {
		once = &sync.Once{}
		t.serverOnce[session.id] = once
	}
	t.serverOnceMu.Unlock()

	transport := &sessionTransport{conn: session.conn}
	once.Do(func() {
		go func() {
			serverSession, err := t.server.Connect(t.serverCtx, transport, nil)
			if err != nil {
				log.Printf("mcp: connect server session %s: %v", session.id, err)
				return
			}
			_ = serverSession.Wait()
		}()
	})

	select {
	case <-session.conn.ready:
	case <-time.After(t.serverReadyTimeoutOrDefault()):
		// Readiness completes on the first Read; request delivery below
		// still succeeds through the buffered channel.
	case <-t.serverCtx.Done():
	}
}

func (t *HTTPTransport) serverReadyTimeoutOrDefault() time.Duration {
	if t == nil || t.serverReadyTimeout <= 0 {
		return defaultSessionReadyTimeout
	}
	return t.serverReadyTimeout
}

// sessionTransport hands the MCP server a pre-existing per-session
// connection.
type sessionTransport struct {
	conn mcp.Connection
}

func (st *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

var sessionCounter atomic.Uint64

func (t *HTTPTransport) generateSessionID() string {
	randomRead := rand.Read
	if t != nil && t.randomReader != nil {
		randomRead = t.randomReader
	}
	b := make([]byte, 8)
	counter := sessionCounter.Add(1)
	if _, err := randomRead(b); err != nil {
		return fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), counter)
	}
	return fmt.Sprintf("session_%s_%d", hex.EncodeToString(b), counter)
}
