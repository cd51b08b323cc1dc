package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/owa-mcp/internal/owa"
)

func newClient(t *testing.T, baseURL, userEmail string) *owa.Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("sessionid=test\nX-OWA-CANARY=tok\n"), 0o600))
	client, err := owa.NewClient(owa.Config{
		BaseURL:    baseURL,
		CookieFile: path,
		UserEmail:  userEmail,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return client
}

// availabilityCall is one recorded GetUserAvailability request.
type availabilityCall struct {
	Emails      []string
	WindowStart string
	WindowEnd   string
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(v))
}

func decodeAvailabilityCall(t *testing.T, r *http.Request) availabilityCall {
	t.Helper()
	var payload struct {
		Body struct {
			MailboxDataArray []struct {
				Email struct {
					Address string `json:"Address"`
				} `json:"Email"`
			} `json:"MailboxDataArray"`
			FreeBusyViewOptions struct {
				TimeWindow struct {
					StartTime string `json:"StartTime"`
					EndTime   string `json:"EndTime"`
				} `json:"TimeWindow"`
			} `json:"FreeBusyViewOptions"`
		} `json:"Body"`
	}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

	call := availabilityCall{
		WindowStart: payload.Body.FreeBusyViewOptions.TimeWindow.StartTime,
		WindowEnd:   payload.Body.FreeBusyViewOptions.TimeWindow.EndTime,
	}
	for _, mb := range payload.Body.MailboxDataArray {
		call.Emails = append(call.Emails, mb.Email.Address)
	}
	return call
}

func freeBusyBody(views []map[string]any) map[string]any {
	return map[string]any{
		"Body": map[string]any{
			"FreeBusyResponseArray": func() []any {
				out := make([]any, 0, len(views))
				for _, v := range views {
					out = append(out, map[string]any{"FreeBusyView": v})
				}
				return out
			}(),
		},
	}
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

func day(dayOfMonth int) time.Time {
	return time.Date(2026, time.March, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func TestQueryBatchesAndChunks(t *testing.T) {
	var calls []availabilityCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GetUserAvailability", r.Header.Get("Action"))
		call := decodeAvailabilityCall(t, r)
		calls = append(calls, call)

		views := make([]map[string]any, len(call.Emails))
		for i := range call.Emails {
			views[i] = map[string]any{
				"CalendarEventArray": map[string]any{
					"Items": []any{
						map[string]any{
							"StartTime": call.WindowStart,
							"EndTime":   call.WindowEnd,
							"BusyType":  "Busy",
							"CalendarEventDetails": map[string]any{
								"Subject": "Weekly Sync",
							},
						},
					},
				},
			}
		}
		respondJSON(w, freeBusyBody(views))
	}))
	defer server.Close()

	service := NewService(newClient(t, server.URL, ""), nil)

	emails := make([]string, 12)
	for i := range emails {
		emails[i] = fmt.Sprintf("person%02d@example.com", i)
	}

	// 40 days: chunks of 14 + 14 + 12; 12 mailboxes: batches of 5 + 5 + 2.
	result, err := service.Query(context.Background(), emails, day(1), day(1).AddDate(0, 0, 40))
	require.NoError(t, err)
	require.Len(t, calls, 9)
	assert.Empty(t, result.Failures)

	// The first batch visits all three chunks before the second batch starts.
	assert.Len(t, calls[0].Emails, 5)
	assert.Equal(t, "2026-03-01T00:00:00", calls[0].WindowStart)
	assert.Equal(t, "2026-03-15T00:00:00", calls[0].WindowEnd)
	assert.Equal(t, "2026-03-15T00:00:00", calls[1].WindowStart)
	assert.Equal(t, "2026-03-29T00:00:00", calls[1].WindowEnd)
	assert.Equal(t, "2026-03-29T00:00:00", calls[2].WindowStart)
	assert.Equal(t, "2026-04-10T00:00:00", calls[2].WindowEnd)

	assert.Len(t, calls[3].Emails, 5)
	assert.Len(t, calls[8].Emails, 2)
	assert.Equal(t, emails[10:], calls[8].Emails)

	// Every mailbox saw one event per chunk.
	for _, email := range emails {
		assert.Len(t, result.Events[email], 3, email)
	}
	first := result.Events[emails[0]][0]
	assert.Equal(t, "Weekly Sync", first.Subject)
	assert.Equal(t, "Busy", first.BusyType)
	assert.Equal(t, "2026-03-01", first.Date)
}

func TestQueryRecordsChunkFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := decodeAvailabilityCall(t, r)
		if call.WindowStart == "2026-03-15T00:00:00" {
			respondJSON(w, map[string]any{
				"Body": map[string]any{
					"ErrorCode":    5037,
					"FaultMessage": "mailbox unavailable",
				},
			})
			return
		}
		respondJSON(w, freeBusyBody([]map[string]any{{
			"CalendarEventArray": map[string]any{
				"Items": []any{
					map[string]any{"StartTime": call.WindowStart, "BusyType": "Tentative"},
				},
			},
		}}))
	}))
	defer server.Close()

	service := NewService(newClient(t, server.URL, ""), nil)

	result, err := service.Query(context.Background(),
		[]string{"solo@example.com"}, day(1), day(1).AddDate(0, 0, 30))
	require.NoError(t, err)

	// Chunks: 03-01..03-15 (ok), 03-15..03-29 (fails), 03-29..03-31 (ok).
	require.Len(t, result.Failures, 1)
	failure := result.Failures[0]
	assert.Equal(t, []string{"solo@example.com"}, failure.Emails)
	assert.Equal(t, day(15), failure.Start)
	assert.Equal(t, day(29), failure.End)
	assert.ErrorContains(t, failure.Err, "mailbox unavailable")

	// The surviving chunks still contributed events.
	assert.Len(t, result.Events["solo@example.com"], 2)
}

func TestQuerySkipsFreeAndKeepsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, freeBusyBody([]map[string]any{{
			"CalendarEventArray": map[string]any{
				"Items": []any{
					map[string]any{"StartTime": "2026-03-02T10:00:00", "BusyType": "Free"},
					map[string]any{"StartTime": "2026-03-02T11:00:00", "BusyType": "NoData"},
					map[string]any{"StartTime": "", "BusyType": "Busy"},
					map[string]any{"StartTime": "2026-03-02T12:00:00", "BusyType": "Busy"},
				},
			},
		}}))
	}))
	defer server.Close()

	service := NewService(newClient(t, server.URL, ""), nil)

	result, err := service.Query(context.Background(),
		[]string{"a@example.com"}, day(2), day(3))
	require.NoError(t, err)

	events := result.Events["a@example.com"]
	require.Len(t, events, 2)
	assert.Equal(t, "NoData", events[0].BusyType)
	assert.Equal(t, "Busy", events[1].BusyType)
}

func TestQueryHandlesBareEventArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Some server builds render CalendarEventArray as a bare list.
		respondJSON(w, freeBusyBody([]map[string]any{{
			"CalendarEventArray": []any{
				map[string]any{"StartTime": "2026-03-02T10:00:00", "BusyType": "Busy"},
			},
		}}))
	}))
	defer server.Close()

	service := NewService(newClient(t, server.URL, ""), nil)

	result, err := service.Query(context.Background(),
		[]string{"a@example.com"}, day(2), day(3))
	require.NoError(t, err)
	assert.Len(t, result.Events["a@example.com"], 1)
}

func TestOwnOccurrences(t *testing.T) {
	var call availabilityCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call = decodeAvailabilityCall(t, r)
		respondJSON(w, freeBusyBody([]map[string]any{{
			"CalendarEventArray": map[string]any{
				"Items": []any{
					map[string]any{
						"StartTime": "2026-03-02T10:00:00",
						"EndTime":   "2026-03-02T11:00:00",
						"BusyType":  "Busy",
						"CalendarEventDetails": map[string]any{
							"Subject": "Planning",
						},
					},
					map[string]any{"StartTime": "2026-03-02T12:00:00", "EndTime": "2026-03-02T13:00:00", "BusyType": "NoData"},
					map[string]any{"StartTime": "broken", "EndTime": "2026-03-02T14:00:00", "BusyType": "Busy"},
				},
			},
		}}))
	}))
	defer server.Close()

	service := NewService(newClient(t, server.URL, "me@example.com"), nil)

	events, err := service.OwnOccurrences(context.Background(), "me@example.com", day(2), day(6))
	require.NoError(t, err)

	// The closed date range becomes a window ending the morning after.
	assert.Equal(t, []string{"me@example.com"}, call.Emails)
	assert.Equal(t, "2026-03-02T00:00:00", call.WindowStart)
	assert.Equal(t, "2026-03-07T00:00:00", call.WindowEnd)

	// NoData and unparseable occurrences are dropped here.
	require.Len(t, events, 1)
	assert.Equal(t, "Planning", events[0].Subject)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), events[0].Start)
}

func TestOwnOccurrencesRequiresEmail(t *testing.T) {
	service := NewService(newClient(t, "https://mail.example.com", ""), nil)
	_, err := service.OwnOccurrences(context.Background(), "", day(2), day(3))
	assert.Error(t, err)
}
