package availability_tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/interval"
	"github.com/avdeev/owa-mcp/internal/owa"
	"github.com/avdeev/owa-mcp/internal/server"
)

func newTestServerContext(t *testing.T) *server.ServerContext {
	t.Helper()

	cookieFile := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(cookieFile, []byte("sessionid=test\n"), 0o600); err != nil {
		t.Fatalf("failed to write cookie file: %v", err)
	}

	sc, err := server.NewServerContext(context.Background(), owa.Config{
		BaseURL:    "https://owa.example.com",
		CookieFile: cookieFile,
		UserEmail:  "me@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create server context: %v", err)
	}
	t.Cleanup(func() { sc.Shutdown() })

	return sc
}

func TestRegisterAvailabilityTools(t *testing.T) {
	sc := newTestServerContext(t)
	s := mcpserver.NewMCPServer("test", "0.0.1")

	if err := RegisterAvailabilityTools(s, sc); err != nil {
		t.Errorf("RegisterAvailabilityTools() error = %v", err)
	}
}

func TestParseDateRangeDefaultsEndToStart(t *testing.T) {
	start, end, errResult := parseDateRange(map[string]any{"start_date": "2026-03-02"})
	if errResult != nil {
		t.Fatalf("unexpected error result: %v", errResult)
	}
	if !end.Equal(start) {
		t.Errorf("end = %v, want %v", end, start)
	}
}

func TestParseWorkWindow(t *testing.T) {
	win := parseWorkWindow(map[string]any{
		"start_hour":       8.0,
		"end_hour":         17.0,
		"duration_minutes": 60.0,
	})
	if win.StartHour != 8 || win.EndHour != 17 {
		t.Errorf("hours = %d-%d, want 8-17", win.StartHour, win.EndHour)
	}
	if win.MinDuration != time.Hour {
		t.Errorf("MinDuration = %v, want 1h", win.MinDuration)
	}

	defaults := parseWorkWindow(map[string]any{})
	if defaults.StartHour != 9 || defaults.EndHour != 18 || defaults.MinDuration != 30*time.Minute {
		t.Errorf("defaults = %+v", defaults)
	}
}

func TestFormatDays(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	days := map[string][]interval.Period{
		"2026-03-02": {
			{Start: day.Add(9 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)},
		},
	}

	out := formatDays(days)
	slots, ok := out["2026-03-02"]
	if !ok || len(slots) != 1 {
		t.Fatalf("formatDays() = %v", out)
	}
	slot := slots[0]
	if slot["start"] != "09:00" || slot["end"] != "10:30" {
		t.Errorf("slot = %v", slot)
	}
	if slot["duration_minutes"] != 90 {
		t.Errorf("duration_minutes = %v, want 90", slot["duration_minutes"])
	}
}

func TestHandleFindMeetingTimeRequiresEmails(t *testing.T) {
	sc := newTestServerContext(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"start_date": "2026-03-02"}

	result, err := handleFindMeetingTime(context.Background(), req, sc)
	if err != nil {
		t.Fatalf("handleFindMeetingTime() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result for missing emails")
	}
}
