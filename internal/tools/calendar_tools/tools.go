package calendar_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/calendar"
	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

const dateFormat = "2006-01-02"

// RegisterCalendarTools registers calendar tools with the MCP server.
// Tools that modify the calendar are skipped in read-only mode.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	// List events tool (read-only, always available)
	getEventsTool := mcp.NewTool("get_calendar_events",
		mcp.WithDescription("Get calendar events within a date range"),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start date in YYYY-MM-DD format"),
		),
		mcp.WithString("end_date",
			mcp.Required(),
			mcp.Description("End date in YYYY-MM-DD format (inclusive)"),
		),
		mcp.WithBoolean("include_body",
			mcp.Description("Fetch organizer, attendees and body for each event. Slower but more complete (default: true)"),
		),
		mcp.WithBoolean("expand_recurring",
			mcp.Description("Show every occurrence of recurring meetings. Accurate counts but fewer fields per event (default: false)"),
		),
	)

	s.AddTool(getEventsTool, common.InstrumentedToolHandlerWithService(
		"get_calendar_events", "calendar", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCalendarEvents(ctx, request, sc)
		}))

	// Event attachments tool
	downloadTool := mcp.NewTool("download_event_attachments",
		mcp.WithDescription("Download all file attachments of a calendar event to a local folder"),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("The item ID of the calendar event"),
		),
		mcp.WithString("target_folder",
			mcp.Description("Local directory to save attachments into (default: '/tmp/attachments')"),
		),
	)

	s.AddTool(downloadTool, common.InstrumentedToolHandlerWithService(
		"download_event_attachments", "calendar", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleDownloadEventAttachments(ctx, request, sc)
		}))

	// Event links tool
	getLinksTool := mcp.NewTool("get_event_links",
		mcp.WithDescription("Extract all hyperlinks from a calendar event body"),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("The item ID of the calendar event"),
		),
	)

	s.AddTool(getLinksTool, common.InstrumentedToolHandlerWithService(
		"get_event_links", "calendar", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEventLinks(ctx, request, sc)
		}))

	// Register scheduling tools only if not in read-only mode
	if !readOnly {
		createTool := mcp.NewTool("create_meeting",
			mcp.WithDescription("Create a calendar meeting and send invitations to attendees"),
			mcp.WithString("subject",
				mcp.Required(),
				mcp.Description("Meeting subject"),
			),
			mcp.WithString("date",
				mcp.Required(),
				mcp.Description("Meeting date in YYYY-MM-DD format"),
			),
			mcp.WithString("start_time",
				mcp.Description("Start time in HH:MM format, 24h clock. Required unless is_all_day"),
			),
			mcp.WithNumber("duration_minutes",
				mcp.Description("Meeting length in minutes (default: 30)"),
			),
			mcp.WithString("required_attendees",
				mcp.Description("Required attendees: email addresses or directory names, comma-separated"),
			),
			mcp.WithString("optional_attendees",
				mcp.Description("Optional attendees: email addresses or directory names, comma-separated"),
			),
			mcp.WithString("location",
				mcp.Description("Meeting location"),
			),
			mcp.WithString("description",
				mcp.Description("Meeting body text"),
			),
			mcp.WithBoolean("is_all_day",
				mcp.Description("Create an all-day event; start_time is ignored (default: false)"),
			),
			mcp.WithNumber("reminder_minutes",
				mcp.Description("Reminder lead time in minutes (default: 15)"),
			),
			mcp.WithString("importance",
				mcp.Description("Importance: 'Low', 'Normal' or 'High' (default: 'Normal')"),
			),
			mcp.WithString("sensitivity",
				mcp.Description("Sensitivity: 'Normal', 'Personal', 'Private' or 'Confidential' (default: 'Normal')"),
			),
		)

		s.AddTool(createTool, common.InstrumentedToolHandlerWithService(
			"create_meeting", "calendar", "create", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleCreateMeeting(ctx, request, sc)
			}))

		updateTool := mcp.NewTool("update_meeting",
			mcp.WithDescription("Update an existing meeting. Omitted fields keep their current value"),
			mcp.WithString("item_id",
				mcp.Required(),
				mcp.Description("The item ID of the meeting to update"),
			),
			mcp.WithString("subject",
				mcp.Description("New meeting subject"),
			),
			mcp.WithString("date",
				mcp.Description("New meeting date in YYYY-MM-DD format"),
			),
			mcp.WithString("start_time",
				mcp.Description("New start time in HH:MM format"),
			),
			mcp.WithNumber("duration_minutes",
				mcp.Description("New meeting length in minutes"),
			),
			mcp.WithString("location",
				mcp.Description("New meeting location"),
			),
			mcp.WithString("description",
				mcp.Description("New meeting body text"),
			),
			mcp.WithString("required_attendees",
				mcp.Description("Replacement required attendee list, comma-separated. Omit to keep current attendees"),
			),
			mcp.WithString("optional_attendees",
				mcp.Description("Replacement optional attendee list, comma-separated. Omit to keep current attendees"),
			),
		)

		s.AddTool(updateTool, common.InstrumentedToolHandlerWithService(
			"update_meeting", "calendar", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleUpdateMeeting(ctx, request, sc)
			}))

		cancelTool := mcp.NewTool("cancel_meeting",
			mcp.WithDescription("Cancel a meeting, notifying attendees"),
			mcp.WithString("item_id",
				mcp.Required(),
				mcp.Description("The item ID of the meeting to cancel"),
			),
		)

		s.AddTool(cancelTool, common.InstrumentedToolHandlerWithService(
			"cancel_meeting", "calendar", "delete", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleCancelMeeting(ctx, request, sc)
			}))

		respondTool := mcp.NewTool("respond_to_meeting",
			mcp.WithDescription("Accept, tentatively accept or decline a meeting invitation"),
			mcp.WithString("item_id",
				mcp.Required(),
				mcp.Description("The item ID of the meeting invitation"),
			),
			mcp.WithString("response",
				mcp.Required(),
				mcp.Description("Response: 'accept', 'tentative' or 'decline'"),
			),
			mcp.WithString("message",
				mcp.Description("Optional message to send with the response"),
			),
		)

		s.AddTool(respondTool, common.InstrumentedToolHandlerWithService(
			"respond_to_meeting", "calendar", "update", sc,
			func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return handleRespondToMeeting(ctx, request, sc)
			}))
	}

	return nil
}

func handleGetCalendarEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, end, errResult := parseDateRange(args)
	if errResult != nil {
		return errResult, nil
	}

	expandRecurring := false
	if v, ok := args["expand_recurring"].(bool); ok {
		expandRecurring = v
	}

	if expandRecurring {
		occurrences, err := sc.Calendar().Expanded(ctx, start, end)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}
		return jsonResult(occurrences)
	}

	includeBody := true
	if v, ok := args["include_body"].(bool); ok {
		includeBody = v
	}

	events, err := sc.Calendar().Events(ctx, start, end, includeBody)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
	}

	return jsonResult(events)
}

func handleCreateMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	subject, ok := args["subject"].(string)
	if !ok || subject == "" {
		return mcp.NewToolResultError("'subject' field is required"), nil
	}
	date, ok := args["date"].(string)
	if !ok || date == "" {
		return mcp.NewToolResultError("'date' field is required"), nil
	}
	if _, err := time.Parse(dateFormat, date); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid date format: %v", err)), nil
	}

	opts := calendar.CreateOptions{
		Subject:         subject,
		Date:            date,
		DurationMinutes: 30,
		ReminderMinutes: 15,
		Importance:      "Normal",
		Sensitivity:     "Normal",
	}
	if v, ok := args["is_all_day"].(bool); ok {
		opts.AllDay = v
	}
	if v, ok := args["start_time"].(string); ok {
		opts.StartTime = v
	}
	if !opts.AllDay && opts.StartTime == "" {
		return mcp.NewToolResultError("'start_time' field is required unless is_all_day is set"), nil
	}
	if v, ok := args["duration_minutes"].(float64); ok && v > 0 {
		opts.DurationMinutes = int(v)
	}
	if v, ok := args["required_attendees"].(string); ok {
		opts.RequiredAttendees = splitList(v)
	}
	if v, ok := args["optional_attendees"].(string); ok {
		opts.OptionalAttendees = splitList(v)
	}
	if v, ok := args["location"].(string); ok {
		opts.Location = v
	}
	if v, ok := args["description"].(string); ok {
		opts.Description = v
	}
	if v, ok := args["reminder_minutes"].(float64); ok && v >= 0 {
		opts.ReminderMinutes = int(v)
	}
	if v, ok := args["importance"].(string); ok && v != "" {
		opts.Importance = v
	}
	if v, ok := args["sensitivity"].(string); ok && v != "" {
		opts.Sensitivity = v
	}

	result, err := sc.Calendar().Create(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create meeting: %v", err)), nil
	}

	return jsonResult(result)
}

func handleUpdateMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}

	var opts calendar.UpdateOptions
	if v, ok := args["subject"].(string); ok {
		opts.Subject = &v
	}
	if v, ok := args["date"].(string); ok {
		if _, err := time.Parse(dateFormat, v); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid date format: %v", err)), nil
		}
		opts.Date = &v
	}
	if v, ok := args["start_time"].(string); ok {
		opts.StartTime = &v
	}
	if v, ok := args["duration_minutes"].(float64); ok && v > 0 {
		minutes := int(v)
		opts.DurationMinutes = &minutes
	}
	if v, ok := args["location"].(string); ok {
		opts.Location = &v
	}
	if v, ok := args["description"].(string); ok {
		opts.Description = &v
	}
	if v, ok := args["required_attendees"].(string); ok {
		opts.RequiredAttendees = splitList(v)
	}
	if v, ok := args["optional_attendees"].(string); ok {
		opts.OptionalAttendees = splitList(v)
	}

	result, err := sc.Calendar().Update(ctx, itemID, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update meeting: %v", err)), nil
	}

	return jsonResult(result)
}

func handleCancelMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}

	if err := sc.Calendar().Cancel(ctx, itemID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel meeting: %v", err)), nil
	}

	return mcp.NewToolResultText("Meeting cancelled."), nil
}

func handleRespondToMeeting(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}
	response, ok := args["response"].(string)
	if !ok || response == "" {
		return mcp.NewToolResultError("'response' field is required"), nil
	}
	response = strings.ToLower(response)
	switch response {
	case "accept", "tentative", "decline":
	default:
		return mcp.NewToolResultError("'response' must be 'accept', 'tentative' or 'decline'"), nil
	}

	message := ""
	if v, ok := args["message"].(string); ok {
		message = v
	}

	if err := sc.Calendar().Respond(ctx, itemID, response, message); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to respond to meeting: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Response '%s' sent.", response)), nil
}

func handleDownloadEventAttachments(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	itemID, ok := args["item_id"].(string)
	if !ok || itemID == "" {
		return mcp.NewToolResultError("'item_id' field is required"), nil
	}

	dir := "/tmp/attachments"
	if v, ok := args["target_folder"].(string); ok && v != "" {
		dir = v
	}

	// Calendar events are items like any other, so the mail attachment
	// pipeline handles them.
	result, err := sc.Mail().DownloadAttachments(ctx, itemID, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to download attachments: %v", err)), nil
	}

	return jsonResult(result)
}

func handleGetEventLinks(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
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

// parseDateRange reads the required start_date and end_date arguments.
// The second return value is a non-nil error result when parsing fails.
func parseDateRange(args map[string]any) (time.Time, time.Time, *mcp.CallToolResult) {
	startStr, ok := args["start_date"].(string)
	if !ok || startStr == "" {
		return time.Time{}, time.Time{}, mcp.NewToolResultError("'start_date' field is required")
	}
	endStr, ok := args["end_date"].(string)
	if !ok || endStr == "" {
		return time.Time{}, time.Time{}, mcp.NewToolResultError("'end_date' field is required")
	}

	start, err := time.Parse(dateFormat, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid start_date: %v", err))
	}
	end, err := time.Parse(dateFormat, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid end_date: %v", err))
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, mcp.NewToolResultError("end_date must not be before start_date")
	}

	return start, end, nil
}

// splitList splits a comma-separated list and trims each entry.
func splitList(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
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
