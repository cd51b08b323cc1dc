package auth_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/avdeev/owa-mcp/internal/instrumentation"
	"github.com/avdeev/owa-mcp/internal/server"
	"github.com/avdeev/owa-mcp/internal/session"
	"github.com/avdeev/owa-mcp/internal/tools/common"
)

// LoginCommandEnv names the environment variable holding an external
// login command. The command must print session cookies to stdout as
// name=value lines; interactive sign-in (including 2FA) happens inside
// the command, so it may run for minutes.
const LoginCommandEnv = "OWA_LOGIN_COMMAND"

// RegisterAuthTools registers the login tool with the MCP server. The
// tool is available in read-only mode too, since a valid session is
// needed even for reads.
func RegisterAuthTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	loginTool := mcp.NewTool("login",
		mcp.WithDescription("Establish or restore the OWA session. Call without arguments to check or start a login; call again to poll a pending login. Pass cookies to restore a session directly"),
		mcp.WithString("cookies",
			mcp.Description("Session cookies as name=value lines, for restoring a session obtained elsewhere"),
		),
		mcp.WithString("user_email",
			mcp.Description("Mailbox owner email address, recorded for availability queries"),
		),
	)

	s.AddTool(loginTool, common.InstrumentedToolHandlerWithService(
		"login", "auth", "create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleLogin(ctx, request, sc)
		}))

	return nil
}

func handleLogin(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	if email, ok := args["user_email"].(string); ok && email != "" {
		sc.Client().SetUserEmail(email)
	}

	// A pending background login takes precedence over everything else.
	state, result := sc.LoginTask().Status()
	switch state {
	case session.LoginInProgress:
		return statusResult("awaiting_2fa",
			"Login is still in progress. Complete the sign-in, including 2FA, then call login again.")
	case session.LoginDone:
		if result.Err != nil {
			recordLogin(ctx, sc, instrumentation.SessionResultFailure)
			return statusResult("failure", fmt.Sprintf("Login failed: %v", result.Err))
		}
		return restoreSession(ctx, sc, result.Cookies)
	}

	if cookies, ok := args["cookies"].(string); ok && cookies != "" {
		return restoreSession(ctx, sc, cookies)
	}

	// Nothing pending and no cookies supplied: probe the current
	// session before starting anything.
	if status := sc.Folders().Status(ctx); status.Authenticated {
		return statusResult("success",
			fmt.Sprintf("Session is already active for %s.", status.Mailbox))
	}

	command := os.Getenv(LoginCommandEnv)
	if command == "" {
		return statusResult("login_required",
			fmt.Sprintf("No valid session. Provide session cookies via the 'cookies' argument, or set %s to an external login command.", LoginCommandEnv))
	}

	sc.LoginTask().Start(func() (string, error) {
		out, err := exec.Command("sh", "-c", command).Output()
		if err != nil {
			return "", fmt.Errorf("login command failed: %w", err)
		}
		return string(out), nil
	})

	return statusResult("awaiting_2fa",
		"Login started. Complete the sign-in, including 2FA, then call login again to finish.")
}

// restoreSession installs cookies in the client, persists them to the
// cookie file and verifies that the session actually works.
func restoreSession(ctx context.Context, sc *server.ServerContext, cookies string) (*mcp.CallToolResult, error) {
	client := sc.Client()

	if err := client.LoadSessionFromString(cookies); err != nil {
		recordLogin(ctx, sc, instrumentation.SessionResultFailure)
		return statusResult("failure", fmt.Sprintf("Failed to load cookies: %v", err))
	}

	status := sc.Folders().Status(ctx)
	if !status.Authenticated {
		recordLogin(ctx, sc, instrumentation.SessionResultFailure)
		return statusResult("failure",
			fmt.Sprintf("Cookies loaded, but the session is not working: %s", status.Error))
	}

	path := client.Session().Path()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(cookies)+"\n"), 0o600); err != nil {
		// The session works in memory even if persisting failed.
		recordLogin(ctx, sc, instrumentation.SessionResultSuccess)
		return statusResult("success",
			fmt.Sprintf("Session restored for %s, but saving cookies to %s failed: %v", status.Mailbox, path, err))
	}

	recordLogin(ctx, sc, instrumentation.SessionResultSuccess)
	return statusResult("success", fmt.Sprintf("Session restored for %s.", status.Mailbox))
}

func recordLogin(ctx context.Context, sc *server.ServerContext, result string) {
	if m := sc.Metrics(); m != nil {
		m.RecordSessionLogin(ctx, result)
	}
}

func statusResult(status, message string) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(map[string]string{
		"status":  status,
		"message": message,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
