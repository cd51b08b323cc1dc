package mail_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/mail"
	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/batch"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

// DefaultAttachmentDir is where download_attachments saves files when
// the caller does not pick a target folder.
const DefaultAttachmentDir = "/tmp/attachments"

// RegisterMailTools registers email tools with the MCP server. Tools
// that modify the mailbox are skipped in read-only mode.
func RegisterMailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List emails tool (read-only, always available)
	getEmailsTool := mcp.NewTool("get_emails",
		mcp.WithDescription("Get emails from a folder with pagination"),
		mcp.WithString("folder",
			mcp.Description("Folder name, e.g. 'Inbox', 'SentItems', 'Drafts', 'DeletedItems' (default: 'Inbox')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of emails to return (default: 10)"),
		),
		mcp.WithNumber("offset",
			mcp.Description("Number of emails to skip, for pagination (default: 0)"),
		),
		mcp.WithBoolean("include_body",
			mcp.Description("Include the full message body in each result (default: false)"),
		),
		mcp.WithBoolean("unread_only",
			mcp.Description("Only return unread emails (default: false)"),
		),
		mcp.WithBoolean("ids_only",
			mcp.Description("Return only item IDs, dates and subjects, useful for bulk operations (default: false)"),
		),
	)

	s.AddTool(getEmailsTool, common.InstrumentedToolHandlerWithService(
		"get_emails", "mail", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmails(ctx, request, sc)
		}))

	// Get single email tool
	getEmailTool := mcp.NewTool("get_email",
		mcp.WithDescription("Get a single email with full body and attachment metadata"),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("The item ID of the email"),
		),
	)

	s.AddTool(getEmailTool, common.InstrumentedToolHandlerWithService(
		"get_email", "mail", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmail(ctx, request, sc)
		}))

	// Extract links tool
	getLinksTool := mcp.NewTool("get_email_links",
		mcp.WithDescription("Extract all hyperlinks from an email body"),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("The item ID of the email"),
		),
	)

	s.AddTool(getLinksTool, common.InstrumentedToolHandlerWithService(
		"get_email_links", "mail", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmailLinks(ctx, request, sc)
		}))

	// Download attachments tool
	downloadTool := mcp.NewTool("download_attachments",
		mcp.WithDescription("Download all file attachments of one or more emails to a local folder"),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("Item ID of the email, or a JSON array of item IDs"),
		),
		mcp.WithString("target_folder",
			mcp.Description("Local directory to save attachments into (default: '/tmp/attachments')"),
		),
	)

	s.AddTool(downloadTool, common.InstrumentedToolHandlerWithService(
		"download_attachments", "mail", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDownloadAttachments(ctx, request, sc)
		}))

	// Register write tools only if not in read-only mode
	if !readOnly {
		sendEmailTool := mcp.NewTool("send_email",
			mcp.WithDescription("Send a new email"),
			mcp.WithString("to",
				mcp.Required(),
				mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
			),
			mcp.WithString("subject",
				mcp.Required(),
				mcp.Description("Email subject"),
			),
			mcp.WithString("body",
				mcp.Required(),
				mcp.Description("Email body content"),
			),
			mcp.WithString("cc",
				mcp.Description("CC email address(es), comma-separated"),
			),
			mcp.WithString("bcc",
				mcp.Description("BCC email address(es), comma-separated"),
			),
			mcp.WithString("importance",
				mcp.Description("Importance: 'Low', 'Normal' or 'High' (default: 'Normal')"),
			),
			mcp.WithBoolean("is_html",
				mcp.Description("Whether the body is HTML (default: false for plain text)"),
			),
		)

		s.AddTool(sendEmailTool, common.InstrumentedToolHandlerWithService(
			"send_email", "mail", "send", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleSendEmail(ctx, request, sc)
			}))

		replyTool := mcp.NewTool("reply_email",
			mcp.WithDescription("Reply to an email, keeping the original thread"),
			mcp.WithString("item_id",
				mcp.Required(),
				mcp.Description("The item ID of the email to reply to"),
			),
			mcp.WithString("body",
				mcp.Required(),
				mcp.Description("Reply body content"),
			),
			mcp.WithBoolean("reply_all",
				mcp.Description("Reply to all recipients instead of only the sender (default: false)"),
			),
		)

		s.AddTool(replyTool, common.InstrumentedToolHandlerWithService(
			"reply_email", "mail", "send", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleReplyEmail(ctx, request, sc)
			}))

		forwardTool := mcp.NewTool("forward_email",
			mcp.WithDescription("Forward an email to other recipients"),
			mcp.WithString("item_id",
				mcp.Required(),
				mcp.Description("The item ID of the email to forward"),
			),
			mcp.WithString("to",
				mcp.Required(),
				mcp.Description("Recipient email address(es), comma-separated"),
			),
			mcp.WithString("body",
				mcp.Description("Optional note to prepend to the forwarded message"),
			),
		)

		s.AddTool(forwardTool, common.InstrumentedToolHandlerWithService(
			"forward_email", "mail", "send", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleForwardEmail(ctx, request, sc)
			}))

		markReadTool := mcp.NewTool("mark_email_read",
			mcp.WithDescription("Mark one or more emails as read or unread"),
			mcp.WithString("item_ids",
				mcp.Required(),
				mcp.Description("Item ID of the email, or a JSON array of item IDs"),
			),
			mcp.WithBoolean("is_read",
				mcp.Description("true to mark as read, false to mark as unread (default: true)"),
			),
		)

		s.AddTool(markReadTool, common.InstrumentedToolHandlerWithService(
			"mark_email_read", "mail", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleMarkEmailRead(ctx, request, sc)
			}))

		moveTool := mcp.NewTool("move_email",
			mcp.WithDescription("Move one or more emails to another folder"),
			mcp.WithString("item_ids",
				mcp.Required(),
				mcp.Description("Item ID of the email, or a JSON array of item IDs"),
			),
			mcp.WithString("target_folder",
				mcp.Required(),
				mcp.Description("Target folder name (e.g. 'Archive') or folder ID"),
			),
		)

		s.AddTool(moveTool, common.InstrumentedToolHandlerWithService(
			"move_email", "mail", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleMoveEmail(ctx, request, sc)
			}))

		deleteTool := mcp.NewTool("delete_email",
			mcp.WithDescription("Delete one or more emails"),
			mcp.WithString("item_ids",
				mcp.Required(),
				mcp.Description("Item ID of the email, or a JSON array of item IDs"),
			),
			mcp.WithBoolean("permanent",
				mcp.Description("Permanently delete instead of moving to Deleted Items (default: false)"),
			),
		)

		s.AddTool(deleteTool, common.InstrumentedToolHandlerWithService(
			"delete_email", "mail", "delete", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleDeleteEmail(ctx, request, sc)
			}))
	}

	return nil
}

func handleGetEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	opts := mail.ListOptions{Folder: "Inbox", Limit: 10}
	if folder, ok := args["folder"].(string); ok && folder != "" {
		opts.Folder = folder
	}
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		opts.Limit = int(limit)
	}
	if offset, ok := args["offset"].(float64); ok && offset > 0 {
		opts.Offset = int(offset)
	}
	if includeBody, ok := args["include_body"].(bool); ok {
		opts.IncludeBody = includeBody
	}
	if unreadOnly, ok := args["unread_only"].(bool); ok {
		opts.UnreadOnly = unreadOnly
	}

	idsOnly := false
	if v, ok := args["ids_only"].(bool); ok {
		idsOnly = v
	}

	var (
		result any
		err    error
	)
	if idsOnly {
		result, err = sc.Mail().ListRefs(ctx, opts)
	} else {
		result, err = sc.Mail().List(ctx, opts)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list emails: %v", err)), nil
	}

	return jsonResult(result)
}

func handleGetEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}

	detail, err := sc.Mail().Get(ctx, itemID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get email: %v", err)), nil
	}

	return jsonResult(detail)
}

func handleGetEmailLinks(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}

	links, err := sc.Mail().Links(ctx, itemID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to extract links: %v", err)), nil
	}

	return jsonResult(links)
}

func handleDownloadAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemIDs, err := batch.ParseStringOrArray(args["item_id"], "item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	dir := DefaultAttachmentDir
	if v, ok := args["target_folder"].(string); ok && v != "" {
		dir = v
	}

	// Single message keeps the detailed per-file result; batches get
	// the compact per-item summary.
	if len(itemIDs) == 1 {
		result, err := sc.Mail().DownloadAttachments(ctx, itemIDs[0], dir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to download attachments: %v", err)), nil
		}
		return jsonResult(result)
	}

	results := batch.ProcessBatch(itemIDs, func(id string) (string, error) {
		result, err := sc.Mail().DownloadAttachments(ctx, id, dir)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("downloaded %d file(s) to %s", len(result.Downloaded), dir), nil
	})

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	toStr, ok := args["to"].(string)
	if !ok || toStr == "" {
		return mcp.NewToolResultError("'to' field is required"), nil
	}
	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("'subject' field is required"), nil
	}
	body, ok := args["body"].(string)
	if !ok || body == "" {
		return mcp.NewToolResultError("'body' field is required"), nil
	}

	opts := mail.SendOptions{
		To:         splitAddresses(toStr),
		Subject:    subject,
		Body:       body,
		Importance: "Normal",
	}
	if ccStr, ok := args["cc"].(string); ok {
		opts.Cc = splitAddresses(ccStr)
	}
	if bccStr, ok := args["bcc"].(string); ok {
		opts.Bcc = splitAddresses(bccStr)
	}
	if importance, ok := args["importance"].(string); ok && importance != "" {
		opts.Importance = importance
	}
	if isHTML, ok := args["is_html"].(bool); ok {
		opts.HTML = isHTML
	}

	if err := sc.Mail().Send(ctx, opts); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send email: %v", err)), nil
	}

	result := fmt.Sprintf("Email sent successfully!\nTo: %s\nSubject: %s",
		strings.Join(opts.To, ", "), subject)
	if len(opts.Cc) > 0 {
		result += fmt.Sprintf("\nCC: %s", strings.Join(opts.Cc, ", "))
	}
	if len(opts.Bcc) > 0 {
		result += fmt.Sprintf("\nBCC: %s", strings.Join(opts.Bcc, ", "))
	}

	return mcp.NewToolResultText(result), nil
}

func handleReplyEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}
	body, ok := args["body"].(string)
	if !ok || body == "" {
		return mcp.NewToolResultError("'body' field is required"), nil
	}

	replyAll := false
	if v, ok := args["reply_all"].(bool); ok {
		replyAll = v
	}

	if err := sc.Mail().Reply(ctx, itemID, body, replyAll); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send reply: %v", err)), nil
	}

	if replyAll {
		return mcp.NewToolResultText("Reply sent to all recipients."), nil
	}
	return mcp.NewToolResultText("Reply sent."), nil
}

func handleForwardEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}
	toStr, ok := args["to"].(string)
	if !ok || toStr == "" {
		return mcp.NewToolResultError("'to' field is required"), nil
	}

	body := ""
	if v, ok := args["body"].(string); ok {
		body = v
	}

	to := splitAddresses(toStr)
	if err := sc.Mail().Forward(ctx, itemID, to, body); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to forward email: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Email forwarded to %s.", strings.Join(to, ", "))), nil
}

func handleMarkEmailRead(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemIDs, err := batch.ParseStringOrArray(args["item_ids"], "item_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	isRead := true
	if v, ok := args["is_read"].(bool); ok {
		isRead = v
	}

	if err := sc.Mail().MarkRead(ctx, itemIDs, isRead); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update read state: %v", err)), nil
	}

	state := "read"
	if !isRead {
		state = "unread"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Marked %d email(s) as %s.", len(itemIDs), state)), nil
}

func handleMoveEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemIDs, err := batch.ParseStringOrArray(args["item_ids"], "item_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	targetFolder, ok := args["target_folder"].(string)
	if !ok || targetFolder == "" {
		return mcp.NewToolResultError("'target_folder' field is required"), nil
	}

	if err := sc.Mail().Move(ctx, itemIDs, targetFolder); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to move emails: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Moved %d email(s) to %s.", len(itemIDs), targetFolder)), nil
}

func handleDeleteEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemIDs, err := batch.ParseStringOrArray(args["item_ids"], "item_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	permanent := false
	if v, ok := args["permanent"].(bool); ok {
		permanent = v
	}

	if err := sc.Mail().Delete(ctx, itemIDs, permanent); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete emails: %v", err)), nil
	}

	if permanent {
		return mcp.NewToolResultText(fmt.Sprintf("Permanently deleted %d email(s).", len(itemIDs))), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Moved %d email(s) to Deleted Items.", len(itemIDs))), nil
}

// splitAddresses splits a comma-separated string of email addresses
// and trims whitespace around each entry.
func splitAddresses(addresses string) []string {
	if addresses == "" {
		return nil
	}
	parts := strings.Split(addresses, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
