package calendar_tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

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

func TestRegisterCalendarTools(t *testing.T) {
	sc := newTestServerContext(t)
	s := mcpserver.NewMCPServer("test", "0.0.1")

	if err := RegisterCalendarTools(s, sc, false); err != nil {
		t.Errorf("RegisterCalendarTools() error = %v", err)
	}
}

func TestParseDateRange(t *testing.T) {
	cases := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"start_date": "2026-03-02", "end_date": "2026-03-06"}, false},
		{"single day", map[string]any{"start_date": "2026-03-02", "end_date": "2026-03-02"}, false},
		{"missing start", map[string]any{"end_date": "2026-03-06"}, true},
		{"missing end", map[string]any{"start_date": "2026-03-02"}, true},
		{"bad format", map[string]any{"start_date": "03/02/2026", "end_date": "2026-03-06"}, true},
		{"reversed", map[string]any{"start_date": "2026-03-06", "end_date": "2026-03-02"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, errResult := parseDateRange(tc.args)
			if tc.wantErr {
				if errResult == nil {
					t.Error("expected an error result")
				}
				return
			}
			if errResult != nil {
				t.Fatalf("unexpected error result: %v", errResult)
			}
			if end.Before(start) {
				t.Errorf("end %v before start %v", end, start)
			}
		})
	}
}

func TestHandleCreateMeetingValidation(t *testing.T) {
	sc := newTestServerContext(t)

	cases := []struct {
		name string
		args map[string]any
	}{
		{"missing subject", map[string]any{"date": "2026-03-02", "start_time": "10:00"}},
		{"missing date", map[string]any{"subject": "Standup", "start_time": "10:00"}},
		{"bad date", map[string]any{"subject": "Standup", "date": "tomorrow", "start_time": "10:00"}},
		{"missing start_time", map[string]any{"subject": "Standup", "date": "2026-03-02"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := mcp.CallToolRequest{}
			req.Params.Arguments = tc.args

			result, err := handleCreateMeeting(context.Background(), req, sc)
			if err != nil {
				t.Fatalf("handleCreateMeeting() error = %v", err)
			}
			if !result.IsError {
				t.Error("expected an error result")
			}
		})
	}
}

func TestHandleRespondToMeetingRejectsUnknownResponse(t *testing.T) {
	sc := newTestServerContext(t)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{
		"item_id":  "AAMk=",
		"response": "maybe",
	}

	result, err := handleRespondToMeeting(context.Background(), req, sc)
	if err != nil {
		t.Fatalf("handleRespondToMeeting() error = %v", err)
	}
	if !result.IsError {
		t.Error("expected an error result for an unknown response value")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" alice@example.com , Bob Smith ,")
	want := []string{"alice@example.com", "Bob Smith"}
	if len(got) != len(want) {
		t.Fatalf("splitList() = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("splitList()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
