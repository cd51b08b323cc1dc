package availability_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/availability"
	"github.com/avdeev/owa-mcp/internal/interval"
	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

const dateFormat = "2006-01-02"

// RegisterAvailabilityTools registers free/busy search tools with the
// MCP server. Both tools are read-only.
func RegisterAvailabilityTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	freeTimeTool := mcp.NewTool("find_free_time",
		mcp.WithDescription("Find free slots in your own calendar within working hours"),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start date in YYYY-MM-DD format"),
		),
		mcp.WithString("end_date",
			mcp.Description("End date in YYYY-MM-DD format, inclusive (default: same as start_date)"),
		),
		mcp.WithNumber("duration_minutes",
			mcp.Description("Minimum slot length in minutes (default: 30)"),
		),
		mcp.WithNumber("start_hour",
			mcp.Description("Working day start hour, 24h clock (default: 9)"),
		),
		mcp.WithNumber("end_hour",
			mcp.Description("Working day end hour, 24h clock (default: 18)"),
		),
	)

	s.AddTool(freeTimeTool, common.InstrumentedToolHandlerWithService(
		"find_free_time", "availability", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindFreeTime(ctx, request, sc)
		}))

	meetingTimeTool := mcp.NewTool("find_meeting_time",
		mcp.WithDescription("Find slots where all given attendees are free, using their free/busy data"),
		mcp.WithString("emails",
			mcp.Required(),
			mcp.Description("Attendees: email addresses or directory names, comma-separated"),
		),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start date in YYYY-MM-DD format"),
		),
		mcp.WithString("end_date",
			mcp.Description("End date in YYYY-MM-DD format, inclusive (default: same as start_date)"),
		),
		mcp.WithNumber("duration_minutes",
			mcp.Description("Minimum slot length in minutes (default: 30)"),
		),
		mcp.WithNumber("start_hour",
			mcp.Description("Working day start hour, 24h clock (default: 9)"),
		),
		mcp.WithNumber("end_hour",
			mcp.Description("Working day end hour, 24h clock (default: 18)"),
		),
	)

	s.AddTool(meetingTimeTool, common.InstrumentedToolHandlerWithService(
		"find_meeting_time", "availability", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleFindMeetingTime(ctx, request, sc)
		}))

	return nil
}

func handleFindFreeTime(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, end, errResult := parseDateRange(args)
	if errResult != nil {
		return errResult, nil
	}
	win := parseWorkWindow(args)

	result, err := sc.Availability().FindFreeTime(ctx, start, end, win)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find free time: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"period": map[string]string{
			"start": start.Format(dateFormat),
			"end":   end.Format(dateFormat),
		},
		"working_hours": fmt.Sprintf("%02d:00-%02d:00", win.StartHour, win.EndHour),
		"free_slots":    formatDays(result.Days),
	})
}

func handleFindMeetingTime(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailsStr, ok := args["emails"].(string)
	if !ok || emailsStr == "" {
		return mcp.NewToolResultError("'emails' field is required"), nil
	}
	entries := splitList(emailsStr)
	if len(entries) == 0 {
		return mcp.NewToolResultError("'emails' field is required"), nil
	}

	start, end, errResult := parseDateRange(args)
	if errResult != nil {
		return errResult, nil
	}
	win := parseWorkWindow(args)

	result, err := sc.Availability().FindMeetingTime(ctx, entries, start, end, win)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find meeting time: %v", err)), nil
	}

	attendees := make([]map[string]any, 0, len(result.Attendees))
	for _, a := range result.Attendees {
		entry := map[string]any{
			"email":      a.Email,
			"busy_slots": a.BusySlots,
			"free_slots": a.FreeSlots,
		}
		if a.CalendarEvents > 0 {
			entry["calendar_events"] = a.CalendarEvents
		}
		if a.NoData {
			entry["no_data"] = true
		}
		attendees = append(attendees, entry)
	}

	out := map[string]any{
		"period": map[string]string{
			"start": result.Start.Format(dateFormat),
			"end":   result.End.Format(dateFormat),
		},
		"attendees":  attendees,
		"free_slots": formatDays(result.Days),
	}
	if len(result.Unresolved) > 0 {
		out["unresolved"] = result.Unresolved
	}

	return jsonResult(out)
}

// parseDateRange reads start_date and the optional end_date, which
// defaults to the start for a single-day search.
func parseDateRange(args map[string]any) (time.Time, time.Time, *mcp.CallToolResult) {
	startStr, ok := args["start_date"].(string)
	if !ok || startStr == "" {
		return time.Time{}, time.Time{}, mcp.NewToolResultError("'start_date' field is required")
	}

	start, err := time.Parse(dateFormat, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid start_date: %v", err))
	}

	end := start
	if endStr, ok := args["end_date"].(string); ok && endStr != "" {
		end, err = time.Parse(dateFormat, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, mcp.NewToolResultError(fmt.Sprintf("Invalid end_date: %v", err))
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, mcp.NewToolResultError("end_date must not be before start_date")
	}

	return start, end, nil
}

func parseWorkWindow(args map[string]any) availability.WorkWindow {
	win := availability.WorkWindow{
		StartHour:   9,
		EndHour:     18,
		MinDuration: 30 * time.Minute,
	}
	if v, ok := args["start_hour"].(float64); ok && v >= 0 && v < 24 {
		win.StartHour = int(v)
	}
	if v, ok := args["end_hour"].(float64); ok && v > 0 && v <= 24 {
		win.EndHour = int(v)
	}
	if v, ok := args["duration_minutes"].(float64); ok && v > 0 {
		win.MinDuration = time.Duration(v) * time.Minute
	}
	return win
}

// formatDays renders per-day free slots as wall-clock intervals.
func formatDays(days map[string][]interval.Period) map[string][]map[string]any {
	out := make(map[string][]map[string]any, len(days))
	for date, slots := range days {
		formatted := make([]map[string]any, 0, len(slots))
		for _, slot := range slots {
			formatted = append(formatted, map[string]any{
				"start":            slot.Start.Format("15:04"),
				"end":              slot.End.Format("15:04"),
				"duration_minutes": int(slot.Duration().Minutes()),
			})
		}
		out[date] = formatted
	}
	return out
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
