package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/crosscheck/internal/services/mcp/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/app"
	"github.com/louisbranch/crosscheck/internal/services/review/storage/sqlite"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "crosscheck"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

type mcpRegistrationKind int

const (
	mcpRegistrationKindTools mcpRegistrationKind = iota
	mcpRegistrationKindResources
)

type mcpRegistrationModule struct {
	name     string
	kind     mcpRegistrationKind
	register func(mcpRegistrationTarget) error
}

const (
	mcpSessionToolsModuleName    = "session-tools"
	mcpRoundToolsModuleName      = "round-tools"
	mcpIssueToolsModuleName      = "issue-tools"
	mcpCheckpointToolsModuleName = "checkpoint-tools"
	mcpGraphToolsModuleName      = "graph-tools"
	mcpReviewResourceModuleName  = "review-resources"
)

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

func (r mcpServerRegistrationAdapter) AddResourceTemplate(resourceTemplate *mcp.ResourceTemplate, handler mcp.ResourceHandler) {
	r.server.AddResourceTemplate(resourceTemplate, handler)
}

func (r mcpServerRegistrationAdapter) AddResource(resource *mcp.Resource, handler mcp.ResourceHandler) {
	r.server.AddResource(resource, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.StartSessionInput, domain.StartSessionResult](),
	newMCPToolRegistrar[domain.EndSessionInput, domain.EndSessionResult](),
	newMCPToolRegistrar[domain.ListSessionsInput, domain.ListSessionsResult](),
	newMCPToolRegistrar[domain.SetActiveSessionInput, domain.SetActiveSessionResult](),
	newMCPToolRegistrar[domain.SubmitRoundInput, domain.SubmitRoundResult](),
	newMCPToolRegistrar[domain.GetContextInput, domain.GetContextResult](),
	newMCPToolRegistrar[domain.GetIssuesInput, domain.GetIssuesResult](),
	newMCPToolRegistrar[domain.ListIssuesInput, domain.ListIssuesResult](),
	newMCPToolRegistrar[domain.CreateCheckpointInput, domain.CreateCheckpointResult](),
	newMCPToolRegistrar[domain.RollbackSessionInput, domain.RollbackSessionResult](),
	newMCPToolRegistrar[domain.RippleEffectInput, domain.RippleEffectResult](),
	newMCPToolRegistrar[domain.MediatorSummaryInput, domain.MediatorSummaryResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

func newMCPRegistrationModules(server *Server, orch domain.Orchestrator) []mcpRegistrationModule {
	return []mcpRegistrationModule{
		{
			name: mcpSessionToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerSessionTools(registrar, orch, server)
			},
		},
		{
			name: mcpRoundToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerRoundTools(registrar, orch, server)
			},
		},
		{
			name: mcpIssueToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerIssueTools(registrar, orch, server)
			},
		},
		{
			name: mcpCheckpointToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerCheckpointTools(registrar, orch, server)
			},
		},
		{
			name: mcpGraphToolsModuleName,
			kind: mcpRegistrationKindTools,
			register: func(registrar mcpRegistrationTarget) error {
				return registerGraphTools(registrar, orch, server)
			},
		},
		{
			name: mcpReviewResourceModuleName,
			kind: mcpRegistrationKindResources,
			register: func(registrar mcpRegistrationTarget) error {
				registerReviewResources(registrar, orch, server)
				return nil
			},
		},
	}
}

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over HTTP/SSE for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	// DBPath locates the sqlite session database.
	DBPath    string
	Transport TransportKind
	// HTTPAddr is the HTTP listen address. Defaults to localhost:8095 for
	// the HTTP transport.
	HTTPAddr string
}

// Server hosts the MCP server and the active-session pointer shared by tool
// handlers.
type Server struct {
	mcpServer *mcp.Server
	closer    func() error

	activeMu sync.RWMutex
	activeID string
}

// New creates a configured MCP server backed by a sqlite session store at
// dbPath.
func New(dbPath string) (*Server, error) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session store at %s: %w", dbPath, err)
	}
	server, err := newServer(app.New(store))
	if err != nil {
		store.Close()
		return nil, err
	}
	server.closer = store.Close
	return server, nil
}

// newServer creates MCP tool/resource bindings once against the provided
// orchestrator.
func newServer(orch domain.Orchestrator) (*Server, error) {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		CompletionHandler:  completionHandler,
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})

	server := &Server{mcpServer: mcpServer}
	for _, module := range newMCPRegistrationModules(server, orch) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return server, nil
}

// completionHandler handles completion/complete requests with empty results.
// Review tool arguments are free-form text, so there is nothing useful to
// complete yet.
func completionHandler(_ context.Context, _ *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{
			Values: []string{},
		},
	}, nil
}

// resourceSubscribeHandler accepts resource subscriptions with a valid URI.
func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// resourceUnsubscribeHandler accepts resource unsubscriptions with a valid URI.
func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil || strings.TrimSpace(req.Params.URI) == "" {
		return fmt.Errorf("resource uri is required")
	}
	return nil
}

// Run is the service entrypoint for MCP and blocks until context
// cancellation. It is transport-agnostic: stdio for local tools, HTTP for
// remote integrations.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	server, err := New(cfg.DBPath)
	if err != nil {
		return err
	}

	switch cfg.Transport {
	case TransportStdio:
		return server.serveWithTransport(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	default:
		server.Close()
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the session store held by the server.
func (s *Server) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	closer := s.closer
	s.closer = nil
	return closer()
}

// setActive points the server at a session; tool calls that omit session_id
// resolve to it.
func (s *Server) setActive(sessionID string) {
	if s == nil {
		return
	}
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.activeID = sessionID
}

// clearActive drops the active pointer when it references sessionID.
func (s *Server) clearActive(sessionID string) {
	if s == nil {
		return
	}
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.activeID == sessionID {
		s.activeID = ""
	}
}

// getActive returns the server's active session ID, empty when unset.
func (s *Server) getActive() string {
	if s == nil {
		return ""
	}
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return s.activeID
}

// selectSession resolves the effective session for a tool call: explicit
// input wins over the active pointer.
func (s *Server) selectSession(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.getActive()
}

// serveWithTransport starts the MCP server using the provided transport. The
// server and its store share a single exit path so cleanup is consistent for
// stdio and HTTP runs.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close session store: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close session store: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// serveHTTP serves the MCP server over the HTTP transport until the context
// ends.
func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	defer s.Close()

	transport := NewHTTPTransportWithServer(addr, s.mcpServer)
	return transport.Start(ctx)
}
