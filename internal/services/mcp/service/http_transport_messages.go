package service

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// handleMessages is the write path for POST /mcp: it validates the caller,
// resolves or creates the MCP session, and routes the JSON-RPC payload into
// the session connection, blocking for the matching response when the
// message is a request.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !t.authorizeRequest(w, r) {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
		return
	}

	// The MCP HTTP transport requires initialize before other methods.
	isInitialize := false
	if req, ok := msg.(*jsonrpc.Request); ok {
		isInitialize = req.Method == "initialize"
	}

	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	var session *httpSession
	if sessionID != "" {
		t.sessionsMu.RLock()
		session = t.sessions[sessionID]
		t.sessionsMu.RUnlock()
		if session == nil && !isInitialize {
			writeSessionError(w, "Invalid session ID")
			return
		}
	}

	if session == nil {
		if !isInitialize {
			writeSessionError(w, "Invalid or missing session ID")
			return
		}
		conn, err := t.Connect(r.Context())
		if err != nil {
			log.Printf("mcp: create session: %v", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		sessionID = conn.SessionID()
		t.sessionsMu.RLock()
		session = t.sessions[sessionID]
		t.sessionsMu.RUnlock()
		w.Header().Set("Mcp-Session-Id", sessionID)
	}

	if session == nil {
		http.Error(w, "Failed to retrieve session after creation", http.StatusInternalServerError)
		return
	}
	t.touchSession(sessionID)

	t.ensureServerRunning(session)

	var isRequest bool
	switch v := msg.(type) {
	case *jsonrpc.Request:
		// A zero ID marks a notification in JSON-RPC 2.0.
		isRequest = v.ID != jsonrpc.ID{}
	case *jsonrpc.Response:
		http.Error(w, "Invalid message type: response", http.StatusBadRequest)
		return
	default:
		isRequest = true
	}

	if !isRequest {
		select {
		case session.conn.reqChan <- msg:
		case <-r.Context().Done():
			http.Error(w, "Request cancelled", http.StatusRequestTimeout)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	req := msg.(*jsonrpc.Request)
	respChan := make(chan jsonrpc.Message, 1)
	session.conn.pendingMu.Lock()
	session.conn.pendingReqs[req.ID] = respChan
	session.conn.pendingMu.Unlock()
	clearPending := func() {
		session.conn.pendingMu.Lock()
		delete(session.conn.pendingReqs, req.ID)
		session.conn.pendingMu.Unlock()
	}

	select {
	case session.conn.reqChan <- msg:
	case <-r.Context().Done():
		clearPending()
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		return
	}

	select {
	case resp := <-respChan:
		clearPending()
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("mcp: write response: %v", err)
		}
	case <-r.Context().Done():
		clearPending()
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
	case <-time.After(defaultRequestTimeout):
		clearPending()
		http.Error(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// handleSSE streams notifications for one session over Server-Sent Events.
// Request/response traffic stays on the POST path.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !t.authorizeRequest(w, r) {
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get("Mcp-Session-Id"))
	t.sessionsMu.RLock()
	session := t.sessions[sessionID]
	t.sessionsMu.RUnlock()
	if session == nil {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	t.touchSession(sessionID)

	// Heartbeat keeps long-lived SSE sessions out of the idle sweep.
	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.conn.closed:
			return
		case <-ticker.C:
			t.touchSession(sessionID)
		case msg := <-session.conn.notifyChan:
			t.touchSession(sessionID)
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("mcp: marshal SSE message: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// touchSession refreshes a session's liveness timestamp.
func (t *HTTPTransport) touchSession(sessionID string) {
	t.sessionsMu.Lock()
	if session, ok := t.sessions[sessionID]; ok && session != nil {
		session.lastUsed = time.Now()
	}
	t.sessionsMu.Unlock()
}

func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	payload := map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    -32000,
			"message": message,
		},
		"id": nil,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Session error"},"id":null}`))
		return
	}
	_, _ = w.Write(data)
}
