package analytics_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/availability"
	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

const dateFormat = "2006-01-02"

// RegisterAnalyticsTools registers meeting analytics tools with the
// MCP server. Both tools are read-only.
func RegisterAnalyticsTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	statsTool := mcp.NewTool("get_meeting_stats",
		mcp.WithDescription("Count meetings per workday for a list of people over a date range"),
		mcp.WithString("people",
			mcp.Required(),
			mcp.Description("People to analyze: email addresses or directory names, comma-separated"),
		),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start date in YYYY-MM-DD format"),
		),
		mcp.WithString("end_date",
			mcp.Required(),
			mcp.Description("End date in YYYY-MM-DD format (exclusive)"),
		),
	)

	s.AddTool(statsTool, common.InstrumentedToolHandlerWithService(
		"get_meeting_stats", "analytics", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMeetingStats(ctx, request, sc)
		}))

	contactsTool := mcp.NewTool("get_meeting_contacts",
		mcp.WithDescription("Rank the people you meet with most over a date range"),
		mcp.WithString("start_date",
			mcp.Required(),
			mcp.Description("Start date in YYYY-MM-DD format"),
		),
		mcp.WithString("end_date",
			mcp.Required(),
			mcp.Description("End date in YYYY-MM-DD format (exclusive)"),
		),
		mcp.WithNumber("top_n",
			mcp.Description("How many contacts to return (default: 30)"),
		),
	)

	s.AddTool(contactsTool, common.InstrumentedToolHandlerWithService(
		"get_meeting_contacts", "analytics", "search", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetMeetingContacts(ctx, request, sc)
		}))

	return nil
}

func handleGetMeetingStats(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	peopleStr, ok := args["people"].(string)
	if !ok || peopleStr == "" {
		return mcp.NewToolResultError("'people' field is required"), nil
	}
	people := splitList(peopleStr)
	if len(people) == 0 {
		return mcp.NewToolResultError("'people' field is required"), nil
	}

	start, end, errResult := parseDateRange(args)
	if errResult != nil {
		return errResult, nil
	}

	result, err := sc.Analytics().MeetingStats(ctx, people, start, end)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute meeting stats: %v", err)), nil
	}

	stats := make([]map[string]any, 0, len(result.Stats))
	for _, p := range result.Stats {
		stats = append(stats, map[string]any{
			"name":                 p.Name,
			"email":                p.Email,
			"total_meetings":       p.TotalMeetings,
			"meetings_per_workday": p.MeetingsPerWorkday,
			"days_with_meetings":   p.DaysWithMeetings,
			"workdays":             p.Workdays,
		})
	}

	out := map[string]any{
		"period": map[string]any{
			"start":    result.Start.Format(dateFormat),
			"end":      result.End.Format(dateFormat),
			"workdays": result.Workdays,
		},
		"stats": stats,
	}
	if failures := formatFailures(result.Failures); len(failures) > 0 {
		out["errors"] = failures
	}

	return jsonResult(out)
}

func handleGetMeetingContacts(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	start, end, errResult := parseDateRange(args)
	if errResult != nil {
		return errResult, nil
	}

	topN := 30
	if v, ok := args["top_n"].(float64); ok && v > 0 {
		topN = int(v)
	}

	result, err := sc.Analytics().ConnectionMatrix(ctx, start, end, topN)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to compute meeting contacts: %v", err)), nil
	}

	contacts := make([]map[string]any, 0, len(result.Contacts))
	for _, c := range result.Contacts {
		contacts = append(contacts, map[string]any{
			"name":     c.Name,
			"email":    c.Email,
			"meetings": c.Meetings,
		})
	}

	out := map[string]any{
		"period": map[string]string{
			"start": result.Start.Format(dateFormat),
			"end":   result.End.Format(dateFormat),
		},
		"total_meetings":  result.TotalMeetings,
		"unique_contacts": result.UniqueContacts,
		"contacts":        contacts,
	}
	if failures := formatFailures(result.Failures); len(failures) > 0 {
		out["errors"] = failures
	}

	return jsonResult(out)
}

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
	if !end.After(start) {
		return time.Time{}, time.Time{}, mcp.NewToolResultError("end_date must be after start_date")
	}

	return start, end, nil
}

// formatFailures renders partial availability failures; these do not
// abort the whole query, so they ride along in the result.
func formatFailures(failures []availability.ChunkFailure) []string {
	out := make([]string, 0, len(failures))
	for _, f := range failures {
		out = append(out, fmt.Sprintf("%s %s to %s: %v",
			strings.Join(f.Emails, ","),
			f.Start.Format(dateFormat), f.End.Format(dateFormat), f.Err))
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
