package people_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

// RegisterPeopleTools registers directory lookup tools with the MCP
// server.
func RegisterPeopleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	findPersonTool := mcp.NewTool("find_person",
		mcp.WithDescription("Find a person in the directory by name or email address"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Name, partial name or email address to search for"),
		),
	)

	s.AddTool(findPersonTool, common.InstrumentedToolHandlerWithService(
		"find_person", "people", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindPerson(ctx, request, sc)
		}))

	return nil
}

func handleFindPerson(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("'query' field is required"), nil
	}

	people, err := sc.People().Find(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to search directory: %v", err)), nil
	}
	if len(people) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No directory matches for %q.", query)), nil
	}

	data, err := json.MarshalIndent(people, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
