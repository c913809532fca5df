package service

import (
	"fmt"

	"github.com/louisbranch/crosscheck/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
	AddResourceTemplate(*mcp.ResourceTemplate, mcp.ResourceHandler)
	AddResource(*mcp.Resource, mcp.ResourceHandler)
}

func registerSessionTools(registrar mcpRegistrationTarget, orch domain.Orchestrator, server *Server) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.StartSessionTool(), handler: domain.StartSessionHandler(orch, server.setActive)},
		{tool: domain.EndSessionTool(), handler: domain.EndSessionHandler(orch, server.selectSession, server.clearActive)},
		{tool: domain.ListSessionsTool(), handler: domain.ListSessionsHandler(orch)},
		{tool: domain.SetActiveSessionTool(), handler: domain.SetActiveSessionHandler(orch, server.setActive)},
	}
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}

func registerRoundTools(registrar mcpRegistrationTarget, orch domain.Orchestrator, server *Server) error {
	if err := registerTool(registrar, domain.SubmitRoundTool(), domain.SubmitRoundHandler(orch, server.selectSession)); err != nil {
		return err
	}
	return registerTool(registrar, domain.GetContextTool(), domain.GetContextHandler(orch, server.selectSession))
}

func registerIssueTools(registrar mcpRegistrationTarget, orch domain.Orchestrator, server *Server) error {
	if err := registerTool(registrar, domain.GetIssuesTool(), domain.GetIssuesHandler(orch, server.selectSession)); err != nil {
		return err
	}
	return registerTool(registrar, domain.ListIssuesTool(), domain.ListIssuesHandler(orch, server.selectSession))
}

func registerCheckpointTools(registrar mcpRegistrationTarget, orch domain.Orchestrator, server *Server) error {
	if err := registerTool(registrar, domain.CreateCheckpointTool(), domain.CreateCheckpointHandler(orch, server.selectSession)); err != nil {
		return err
	}
	return registerTool(registrar, domain.RollbackSessionTool(), domain.RollbackSessionHandler(orch, server.selectSession))
}

func registerGraphTools(registrar mcpRegistrationTarget, orch domain.Orchestrator, server *Server) error {
	if err := registerTool(registrar, domain.RippleEffectTool(), domain.RippleEffectHandler(orch, server.selectSession)); err != nil {
		return err
	}
	return registerTool(registrar, domain.MediatorSummaryTool(), domain.MediatorSummaryHandler(orch, server.selectSession))
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	return registrar.AddTool(tool, handler)
}

// registerReviewResources registers readable review MCP resources.
func registerReviewResources(registrar mcpRegistrationTarget, orch domain.Orchestrator, server *Server) {
	registrar.AddResource(domain.ActiveSessionResource(), domain.ActiveSessionResourceHandler(server.getActive))
	registrar.AddResourceTemplate(domain.SessionContextResourceTemplate(), domain.SessionContextResourceHandler(orch))
}
