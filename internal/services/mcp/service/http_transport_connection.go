package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// httpConnection implements mcp.Connection for HTTP-based communication. The
// SDK expects a bidirectional stream, so this adapter maps request/response
// flow and notification delivery onto separate buffered channels.
type httpConnection struct {
	sessionID   string
	reqChan     chan jsonrpc.Message
	notifyChan  chan jsonrpc.Message
	closed      chan struct{}
	ready       chan struct{}
	readyOnce   sync.Once
	mu          sync.Mutex
	closedFlag  bool
	pendingReqs map[jsonrpc.ID]chan jsonrpc.Message
	pendingMu   sync.Mutex
}

func (c *httpConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	// The first Read signals the HTTP handlers that the server loop is up.
	c.readyOnce.Do(func() {
		select {
		case c.ready <- struct{}{}:
		default:
		}
	})

	select {
	case msg, ok := <-c.reqChan:
		if !ok {
			return nil, fmt.Errorf("connection closed")
		}
		return msg, nil
	case <-c.closed:
		return nil, fmt.Errorf("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write routes server output: responses with a pending request ID go back to
// the awaiting HTTP handler, everything else feeds the notification channel
// drained by SSE.
func (c *httpConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}

	if resp, ok := msg.(*jsonrpc.Response); ok && resp.ID != (jsonrpc.ID{}) {
		c.pendingMu.Lock()
		respChan, exists := c.pendingReqs[resp.ID]
		c.pendingMu.Unlock()
		if exists {
			if c.isClosed() {
				return fmt.Errorf("connection closed")
			}
			select {
			case respChan <- msg:
				return nil
			case <-c.closed:
				return fmt.Errorf("connection closed")
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if c.isClosed() {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.notifyChan <- msg:
		return nil
	case <-c.closed:
		return fmt.Errorf("connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains all waiters so a dropped session cannot leave goroutines
// blocked on per-session channels.
func (c *httpConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closedFlag {
		return nil
	}
	c.closedFlag = true
	close(c.closed)
	close(c.reqChan)
	close(c.notifyChan)

	c.pendingMu.Lock()
	for _, respChan := range c.pendingReqs {
		close(respChan)
	}
	c.pendingReqs = nil
	c.pendingMu.Unlock()

	return nil
}

func (c *httpConnection) SessionID() string {
	return c.sessionID
}

func (c *httpConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedFlag
}
