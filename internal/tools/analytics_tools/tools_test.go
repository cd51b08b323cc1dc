package analytics_tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/availability"
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

func TestRegisterAnalyticsTools(t *testing.T) {
	sc := newTestServerContext(t)
	s := mcpserver.NewMCPServer("test", "0.0.1")

	if err := RegisterAnalyticsTools(s, sc); err != nil {
		t.Errorf("RegisterAnalyticsTools() error = %v", err)
	}
}

func TestParseDateRangeRejectsEmptyRange(t *testing.T) {
	_, _, errResult := parseDateRange(map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2026-03-02",
	})
	if errResult == nil {
		t.Error("expected an error result for an empty range")
	}
}

func TestHandleGetMeetingStatsRequiresPeople(t *testing.T) {
	sc := newTestServerContext(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"start_date": "2026-03-02",
		"end_date":   "2026-03-09",
	}

	result, err := handleGetMeetingStats(context.Background(), req, sc)
	if err != nil {
		t.Fatalf("handleGetMeetingStats() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result for missing people")
	}
}

func TestFormatFailures(t *testing.T) {
	failures := []availability.ChunkFailure{
		{
			Emails: []string{"a@example.com", "b@example.com"},
			Start:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			End:    time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			Err:    errors.New("timeout"),
		},
	}

	out := formatFailures(failures)
	if len(out) != 1 {
		t.Fatalf("formatFailures() = %v", out)
	}
	if !strings.Contains(out[0], "a@example.com,b@example.com") ||
		!strings.Contains(out[0], "2026-03-02") ||
		!strings.Contains(out[0], "timeout") {
		t.Errorf("unexpected failure string: %q", out[0])
	}
}
