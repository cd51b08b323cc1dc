package folder_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

// DefaultParentFolder is the distinguished root of the message folder
// hierarchy.
const DefaultParentFolder = "msgfolderroot"

// RegisterFolderTools registers folder management tools with the MCP
// server. Tools that modify folders are skipped in read-only mode.
func RegisterFolderTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// Session probe (read-only, always available)
	checkSessionTool := mcp.NewTool("check_session",
		mcp.WithDescription("Check whether the OWA session is authenticated and working"),
	)

	s.AddTool(checkSessionTool, common.InstrumentedToolHandlerWithService(
		"check_session", "folders", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCheckSession(ctx, request, sc)
		}))

	// List folders tool
	getFoldersTool := mcp.NewTool("get_folders",
		mcp.WithDescription("List mail folders with unread and total counts"),
		mcp.WithString("parent_folder_id",
			mcp.Description("Parent folder ID or distinguished name (default: 'msgfolderroot')"),
		),
		mcp.WithBoolean("recursive",
			mcp.Description("Descend into subfolders (default: false)"),
		),
	)

	s.AddTool(getFoldersTool, common.InstrumentedToolHandlerWithService(
		"get_folders", "folders", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetFolders(ctx, request, sc)
		}))

	// Register folder write tools only if not in read-only mode
	if !readOnly {
		createTool := mcp.NewTool("create_folder",
			mcp.WithDescription("Create a new mail folder"),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Name of the new folder"),
			),
			mcp.WithString("parent_folder_id",
				mcp.Description("Parent folder ID or distinguished name (default: 'msgfolderroot')"),
			),
		)

		s.AddTool(createTool, common.InstrumentedToolHandlerWithService(
			"create_folder", "folders", "create", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleCreateFolder(ctx, request, sc)
			}))

		renameTool := mcp.NewTool("rename_folder",
			mcp.WithDescription("Rename a mail folder"),
			mcp.WithString("folder_id",
				mcp.Required(),
				mcp.Description("ID of the folder to rename"),
			),
			mcp.WithString("new_name",
				mcp.Required(),
				mcp.Description("New folder name"),
			),
		)

		s.AddTool(renameTool, common.InstrumentedToolHandlerWithService(
			"rename_folder", "folders", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleRenameFolder(ctx, request, sc)
			}))

		moveTool := mcp.NewTool("move_folder",
			mcp.WithDescription("Move a folder under another parent folder"),
			mcp.WithString("folder_id",
				mcp.Required(),
				mcp.Description("ID of the folder to move"),
			),
			mcp.WithString("target_parent_folder_id",
				mcp.Description("New parent folder ID or distinguished name (default: 'msgfolderroot')"),
			),
		)

		s.AddTool(moveTool, common.InstrumentedToolHandlerWithService(
			"move_folder", "folders", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleMoveFolder(ctx, request, sc)
			}))

		emptyTool := mcp.NewTool("empty_folder",
			mcp.WithDescription("Delete all items in a folder"),
			mcp.WithString("folder_id",
				mcp.Required(),
				mcp.Description("ID of the folder to empty"),
			),
			mcp.WithBoolean("delete_sub_folders",
				mcp.Description("Also delete subfolders (default: false)"),
			),
			mcp.WithBoolean("permanent",
				mcp.Description("Permanently delete instead of moving to Deleted Items (default: false)"),
			),
		)

		s.AddTool(emptyTool, common.InstrumentedToolHandlerWithService(
			"empty_folder", "folders", "delete", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleEmptyFolder(ctx, request, sc)
			}))

		deleteTool := mcp.NewTool("delete_folder",
			mcp.WithDescription("Delete a mail folder"),
			mcp.WithString("folder_id",
				mcp.Required(),
				mcp.Description("ID of the folder to delete"),
			),
			mcp.WithBoolean("permanent",
				mcp.Description("Permanently delete instead of moving to Deleted Items (default: false)"),
			),
		)

		s.AddTool(deleteTool, common.InstrumentedToolHandlerWithService(
			"delete_folder", "folders", "delete", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleDeleteFolder(ctx, request, sc)
			}))
	}

	return nil
}

func handleCheckSession(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	status := sc.Folders().Status(ctx)
	return jsonResult(status)
}

func handleGetFolders(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	parentID := DefaultParentFolder
	if v, ok := args["parent_folder_id"].(string); ok && v != "" {
		parentID = v
	}
	recursive := false
	if v, ok := args["recursive"].(bool); ok {
		recursive = v
	}

	folders, err := sc.Folders().List(ctx, parentID, recursive)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list folders: %v", err)), nil
	}

	return jsonResult(folders)
}

func handleCreateFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("'name' field is required"), nil
	}
	parentID := DefaultParentFolder
	if v, ok := args["parent_folder_id"].(string); ok && v != "" {
		parentID = v
	}

	created, err := sc.Folders().Create(ctx, name, parentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create folder: %v", err)), nil
	}

	return jsonResult(created)
}

func handleRenameFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	folderID, ok := args["folder_id"].(string)
	if !ok || folderID == "" {
		return mcp.NewToolResultError("'folder_id' field is required"), nil
	}
	newName, ok := args["new_name"].(string)
	if !ok || newName == "" {
		return mcp.NewToolResultError("'new_name' field is required"), nil
	}

	name, err := sc.Folders().Rename(ctx, folderID, newName)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to rename folder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Folder renamed to %s.", name)), nil
}

func handleMoveFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	folderID, ok := args["folder_id"].(string)
	if !ok || folderID == "" {
		return mcp.NewToolResultError("'folder_id' field is required"), nil
	}
	targetID := DefaultParentFolder
	if v, ok := args["target_parent_folder_id"].(string); ok && v != "" {
		targetID = v
	}

	name, err := sc.Folders().Move(ctx, folderID, targetID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to move folder: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Folder %s moved.", name)), nil
}

func handleEmptyFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	folderID, ok := args["folder_id"].(string)
	if !ok || folderID == "" {
		return mcp.NewToolResultError("'folder_id' field is required"), nil
	}
	deleteSubFolders := false
	if v, ok := args["delete_sub_folders"].(bool); ok {
		deleteSubFolders = v
	}
	permanent := false
	if v, ok := args["permanent"].(bool); ok {
		permanent = v
	}

	if err := sc.Folders().Empty(ctx, folderID, deleteSubFolders, permanent); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to empty folder: %v", err)), nil
	}

	return mcp.NewToolResultText("Folder emptied."), nil
}

func handleDeleteFolder(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	folderID, ok := args["folder_id"].(string)
	if !ok || folderID == "" {
		return mcp.NewToolResultError("'folder_id' field is required"), nil
	}
	permanent := false
	if v, ok := args["permanent"].(bool); ok {
		permanent = v
	}

	if err := sc.Folders().Delete(ctx, folderID, permanent); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete folder: %v", err)), nil
	}

	if permanent {
		return mcp.NewToolResultText("Folder permanently deleted."), nil
	}
	return mcp.NewToolResultText("Folder moved to Deleted Items."), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
