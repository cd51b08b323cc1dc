package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/server"
)

// RegisterUserResources registers mailbox and session resources.
// These resources describe the configured mailbox and the health of the
// shared OWA cookie session.
func RegisterUserResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// Register mailbox profile resource
	profileResource := mcp.NewResource(
		"user://profile",
		"Mailbox Profile",
		mcp.WithResourceDescription("Information about the configured Exchange mailbox"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(profileResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleMailboxProfile(ctx, request, sc)
	})

	// Register session status resource
	statusResource := mcp.NewResource(
		"session://status",
		"Session Status",
		mcp.WithResourceDescription("Authentication state of the OWA cookie session"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleSessionStatus(ctx, request, sc)
	})

	return nil
}

// handleMailboxProfile returns the static configuration of the mailbox.
func handleMailboxProfile(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	client := sc.Client()

	profileData := map[string]interface{}{
		"email":      client.UserEmail(),
		"serverUrl":  client.BaseURL(),
		"timezone":   client.Timezone(),
		"cookieFile": client.Session().Path(),
	}

	jsonData, err := json.MarshalIndent(profileData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}

// handleSessionStatus probes the session with a lightweight inbox fetch.
func handleSessionStatus(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	status := sc.Folders().Status(ctx)

	jsonData, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session status: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
