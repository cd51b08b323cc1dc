package owa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/session"
)

const (
	servicePath = "/owa/service.svc"

	// statusLoginTimeout is the non-standard code IIS uses for an
	// expired forms-auth session.
	statusLoginTimeout = 440

	// snippetLimit bounds how much of an HTML body is kept for diagnostics.
	snippetLimit = 300

	defaultTimeout  = 30 * time.Second
	downloadTimeout = 60 * time.Second

	// DefaultTimezone is the Exchange timezone definition used for
	// calendar and availability requests.
	DefaultTimezone = "Russian Standard Time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the OWA server root, e.g. "https://mail.example.com".
	BaseURL string
	// CookieFile is the path to the name=value-per-line session cookie file.
	CookieFile string
	// UserEmail is the mailbox owner's address, used by callers that
	// need to distinguish "own" items from other attendees.
	UserEmail string
	// Timezone is the Exchange timezone definition ID for requests that
	// carry a TimeZoneContext. Defaults to DefaultTimezone.
	Timezone string
	// Timeout applies to JSON API requests. Defaults to 30s.
	Timeout time.Duration
	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is the authenticated transport for the OWA JSON API.
//
// It is safe for concurrent use. Session state (cookies and the canary
// token) is guarded by a mutex; the canary is refreshed from every
// response so that long-running sessions survive server-side rotation.
type Client struct {
	baseURL  string
	timezone string
	email    string

	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	session *session.Store
}

// NewClient creates a Client from cfg. Cookies are loaded lazily on the
// first request, so a missing cookie file is not an error here.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("OWA base URL not configured")
	}
	if cfg.CookieFile == "" {
		return nil, fmt.Errorf("cookie file path not configured")
	}
	timezone := cfg.Timezone
	if timezone == "" {
		timezone = DefaultTimezone
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timezone:   timezone,
		email:      cfg.UserEmail,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.WithService(logger, "owa"),
		session:    session.NewStore(cfg.CookieFile),
	}, nil
}

// BaseURL returns the configured OWA server root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timezone returns the Exchange timezone definition ID for this client.
func (c *Client) Timezone() string {
	return c.timezone
}

// UserEmail returns the configured mailbox owner address, which may be empty.
func (c *Client) UserEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// SetUserEmail records the mailbox owner address once the login flow
// has determined it.
func (c *Client) SetUserEmail(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.email = email
}

// Session returns the underlying cookie store. The login flow uses it
// to inject freshly decrypted cookies without touching disk.
func (c *Client) Session() *session.Store {
	return c.session
}

// LoadSessionFromString replaces the in-memory session with cookies
// parsed from a name=value-per-line string.
func (c *Client) LoadSessionFromString(cookies string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.LoadString(cookies)
}

// Do executes an OWA JSON API action with the payload in the POST body
// and decodes the JSON response into out.
//
// Session handling: cookies load lazily on first use. When a request
// fails with a session expiry signal, the cookie file is reloaded once
// (the user may have re-logged in) and the request retried; a reload
// failure keeps the in-memory session and still retries. A second
// expiry propagates to the caller.
func (c *Client) Do(ctx context.Context, action string, payload, out any) error {
	return c.doWithRetry(ctx, action, payload, out, false)
}

// DoHeaderPayload executes an action that requires the JSON payload
// URL-encoded in the X-OWA-UrlPostData header with an empty POST body
// (CreateFolder, DeleteFolder, RenameFolder and friends). Retry
// semantics match Do.
func (c *Client) DoHeaderPayload(ctx context.Context, action string, payload, out any) error {
	return c.doWithRetry(ctx, action, payload, out, true)
}

func (c *Client) doWithRetry(ctx context.Context, action string, payload, out any, headerPayload bool) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		err := c.doOnce(ctx, action, payload, out, headerPayload)
		if err == nil {
			return nil
		}
		if !IsSessionExpired(err) {
			return err
		}
		lastErr = err
		if attempt == 0 {
			c.logger.Warn("session expired, reloading cookies",
				logging.Action(action), logging.Err(err))
			if rerr := c.reload(); rerr != nil {
				// Keep the in-memory session and retry anyway; the
				// server may simply have rotated the canary.
				c.logger.Debug("cookie reload failed, retrying with cached session",
					logging.Action(action), logging.Err(rerr))
			}
		}
	}
	return lastErr
}

func (c *Client) ensureLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Loaded() {
		return nil
	}
	if err := c.session.Load(); err != nil {
		return &SessionExpiredError{Reason: "no usable session, call the login tool first", Cause: err}
	}
	return nil
}

func (c *Client) reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Reload()
}

func (c *Client) sessionHeaders() (canary, cookieHeader string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Canary(), c.session.CookieHeader()
}

// doOnce executes a single request with no retry.
func (c *Client) doOnce(ctx context.Context, action string, payload, out any, headerPayload bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", action, err)
	}

	reqURL := c.baseURL + servicePath + "?action=" + url.QueryEscape(action) + "&EP=1&ID=-1&AC=1"
	canary, cookieHeader := c.sessionHeaders()

	var reqBody io.Reader
	if !headerPayload {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Action", action)
	req.Header.Set("X-OWA-CANARY", canary)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}
	if headerPayload {
		req.Header.Set("X-OWA-UrlPostData", url.PathEscape(string(body)))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SessionExpiredError{Reason: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	c.rotateCanary(resp)

	if err := c.checkExpiry(resp); err != nil {
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SessionExpiredError{Reason: "read response", Status: resp.StatusCode, Cause: err}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &SessionExpiredError{Reason: "unexpected non-JSON response", Status: resp.StatusCode, Cause: err}
		}
	}

	c.logger.Debug("request completed",
		logging.Action(action),
		slog.Int(logging.KeyStatus, resp.StatusCode),
		slog.Duration(logging.KeyDuration, time.Since(start)))
	return nil
}

// rotateCanary keeps the tracked canary in sync when the server sets a
// new X-OWA-CANARY cookie on a response.
func (c *Client) rotateCanary(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name == session.CanaryCookie && ck.Value != "" {
			c.mu.Lock()
			c.session.SetCanary(ck.Value)
			c.mu.Unlock()
			c.logger.Debug("canary rotated",
				slog.String("canary", logging.SanitizeToken(ck.Value)))
		}
	}
}

// checkExpiry classifies a response as a session expiry signal.
// 401 and 440 are the direct signals; a text/html Content-Type means
// OWA served its login page instead of a JSON API response.
func (c *Client) checkExpiry(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == statusLoginTimeout {
		return &SessionExpiredError{Status: resp.StatusCode}
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return &SessionExpiredError{
			Reason:  "session expired or invalid action (HTML response)",
			Status:  resp.StatusCode,
			Snippet: readSnippet(resp.Body),
		}
	}
	return nil
}

func readSnippet(r io.Reader) string {
	buf := make([]byte, snippetLimit)
	n, _ := io.ReadFull(r, buf)
	return strings.TrimSpace(string(buf[:n]))
}
