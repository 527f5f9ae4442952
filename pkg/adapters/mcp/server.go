// Package mcp exposes the session orchestration layer as an MCP server, so
// agent tooling can create sessions, chat, and clean up through tool calls.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/grove/pkg/domain"
)

// SessionService is the slice of the grove client the MCP tools need.
type SessionService interface {
	CreateSession(ctx context.Context, agentID string, initial domain.StateMap) (*domain.Session, error)
	SendMessage(ctx context.Context, sessionID, text string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, agentID string) ([]domain.Session, error)
}

// CreateSessionResponse is the structured output of the create_session tool.
type CreateSessionResponse struct {
	SessionID string `json:"session_id" jsonschema_description:"ID of the created session"`
}

// ChatResponse is the structured output of the send_message tool.
type ChatResponse struct {
	Response string `json:"response" jsonschema_description:"The agent's reply"`
}

// SessionListResponse is the structured output of the list_sessions tool.
type SessionListResponse struct {
	Sessions []domain.Session `json:"sessions" jsonschema_description:"Known sessions"`
}

// Server wraps a SessionService and exposes it over MCP.
type Server struct {
	svc       SessionService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers its tools.
func NewServer(svc SessionService, version string, logger *slog.Logger) *Server {
	s := &Server{
		svc:       svc,
		logger:    logger,
		mcpServer: server.NewMCPServer("grove-mcp", strings.TrimSpace(version)),
	}
	s.registerTools()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and shuts it down
// gracefully when ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	createTool := mcp.NewTool("create_session",
		mcp.WithDescription("Create a backend session for an agent, optionally seeded with JSON state."),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Agent to create the session for")),
		mcp.WithString("state", mcp.Description("JSON object of initial session state (optional)")),
		mcp.WithOutputSchema[CreateSessionResponse](),
	)
	s.mcpServer.AddTool(createTool, mcp.NewStructuredToolHandler(s.handleCreateSession))

	chatTool := mcp.NewTool("send_message",
		mcp.WithDescription("Send a message to an existing session and return the agent's reply."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Target session ID")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message text")),
		mcp.WithOutputSchema[ChatResponse](),
	)
	s.mcpServer.AddTool(chatTool, mcp.NewStructuredToolHandler(s.handleSendMessage))

	deleteTool := mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a session. Deleting an unknown session succeeds silently."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID to delete")),
	)
	s.mcpServer.AddTool(deleteTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetString("session_id", "")
		if err := s.svc.DeleteSession(ctx, id); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("delete failed: %v", err)), nil
		}
		return mcp.NewToolResultText("deleted"), nil
	})

	listTool := mcp.NewTool("list_sessions",
		mcp.WithDescription("List backend sessions, optionally filtered by agent."),
		mcp.WithString("agent_id", mcp.Description("Only list sessions for this agent (optional)")),
		mcp.WithOutputSchema[SessionListResponse](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListSessions))

	getTool := mcp.NewTool("get_session",
		mcp.WithDescription("Fetch one session's metadata and state."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID to fetch")),
		mcp.WithOutputSchema[domain.Session](),
	)
	s.mcpServer.AddTool(getTool, mcp.NewStructuredToolHandler(s.handleGetSession))
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (CreateSessionResponse, error) {
	agentID, _ := args["agent_id"].(string)

	var state domain.StateMap
	if raw, ok := args["state"].(string); ok && raw != "" {
		var err error
		state, err = domain.ParseStateJSON([]byte(raw))
		if err != nil {
			return CreateSessionResponse{}, fmt.Errorf("invalid state: %w", err)
		}
	}

	sess, err := s.svc.CreateSession(ctx, agentID, state)
	if err != nil {
		return CreateSessionResponse{}, fmt.Errorf("create failed: %w", err)
	}
	s.logger.Debug("mcp session created", "session_id", sess.ID, "agent_id", agentID)
	return CreateSessionResponse{SessionID: sess.ID}, nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ChatResponse, error) {
	sessionID, _ := args["session_id"].(string)
	message, _ := args["message"].(string)

	reply, err := s.svc.SendMessage(ctx, sessionID, message)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("send failed: %w", err)
	}
	return ChatResponse{Response: reply}, nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionListResponse, error) {
	agentID, _ := args["agent_id"].(string)

	sessions, err := s.svc.ListSessions(ctx, agentID)
	if err != nil {
		return SessionListResponse{}, fmt.Errorf("list failed: %w", err)
	}
	return SessionListResponse{Sessions: sessions}, nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.Session, error) {
	sessionID, _ := args["session_id"].(string)

	sess, err := s.svc.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("get failed: %w", err)
	}
	return *sess, nil
}
