package people

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeev/owa-mcp/internal/owa"
)

func newService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("sessionid=test\nX-OWA-CANARY=tok\n"), 0o600))
	client, err := owa.NewClient(owa.Config{
		BaseURL:    server.URL,
		CookieFile: path,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return NewService(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func resolutionsResponse(resolutions ...map[string]any) map[string]any {
	list := make([]any, 0, len(resolutions))
	for _, r := range resolutions {
		list = append(list, r)
	}
	return map[string]any{
		"Body": map[string]any{
			"ResponseMessages": map[string]any{
				"Items": []any{
					map[string]any{
						"ResolutionSet": map[string]any{"Resolutions": list},
					},
				},
			},
		},
	}
}

func TestFind(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ResolveNames", r.Header.Get("Action"))
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		body := payload["Body"].(map[string]any)
		assert.Equal(t, "godunov", body["UnresolvedEntry"])
		assert.Equal(t, true, body["ReturnFullContactData"])
		assert.Equal(t, "AllProperties", body["ContactDataShape"])
		assert.Equal(t, "ActiveDirectoryContacts", body["SearchScope"])

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		require.NoError(t, json.NewEncoder(w).Encode(resolutionsResponse(map[string]any{
			"Mailbox": map[string]any{
				"Name":         "Boris Godunov",
				"EmailAddress": "boris@example.com",
				"MailboxType":  "Mailbox",
			},
			"Contact": map[string]any{
				"GivenName":      "Boris",
				"Surname":        "Godunov",
				"JobTitle":       "Tsar",
				"Department":     "Operations",
				"CompanyName":    "Example Corp",
				"OfficeLocation": "Moscow HQ",
				"Alias":          "bgodunov",
				"PhoneNumbers": []any{
					map[string]any{"Key": "BusinessPhone", "PhoneNumber": "+7 495 000-00-00"},
					map[string]any{"Key": "MobilePhone", "PhoneNumber": ""},
				},
				"PhysicalAddresses": []any{
					map[string]any{"Key": "Home", "Street": "Hidden st."},
					map[string]any{
						"Key":             "Business",
						"Street":          "Tverskaya 1",
						"City":            "Moscow",
						"PostalCode":      "125009",
						"CountryOrRegion": "Russia",
					},
				},
				"ManagerMailbox": map[string]any{
					"Mailbox": map[string]any{"Name": "Fyodor I", "EmailAddress": "fyodor@example.com"},
				},
				"DirectReports": []any{
					map[string]any{"Name": "Grigory Otrepyev", "EmailAddress": "grigory@example.com"},
				},
			},
		})))
	})

	people, err := svc.Find(context.Background(), "godunov")
	require.NoError(t, err)
	require.Len(t, people, 1)

	p := people[0]
	assert.Equal(t, "Boris Godunov", p.Name)
	assert.Equal(t, "boris@example.com", p.Email)
	assert.Equal(t, "Mailbox", p.Type)
	assert.Equal(t, "Tsar", p.JobTitle)
	assert.Equal(t, "bgodunov", p.Alias)
	assert.Equal(t, map[string]string{"BusinessPhone": "+7 495 000-00-00"}, p.Phones)
	require.NotNil(t, p.Address)
	assert.Equal(t, "Tverskaya 1, Moscow, 125009, Russia", p.Address.Full)
	assert.Equal(t, "Fyodor I", p.Manager)
	assert.Equal(t, "fyodor@example.com", p.ManagerEmail)
	assert.Equal(t, []Report{{Name: "Grigory Otrepyev", Email: "grigory@example.com"}}, p.DirectReports)
}

func TestFindNameFallsBackToDisplayName(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		require.NoError(t, json.NewEncoder(w).Encode(resolutionsResponse(map[string]any{
			"Mailbox": map[string]any{"EmailAddress": "dl@example.com"},
			"Contact": map[string]any{
				"DisplayName": "All Staff",
				"Manager":     "Nobody In Particular",
			},
		})))
	})

	people, err := svc.Find(context.Background(), "staff")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "All Staff", people[0].Name)
	assert.Equal(t, "Nobody In Particular", people[0].Manager)
	assert.Empty(t, people[0].ManagerEmail)
	assert.Nil(t, people[0].Address)
}

func TestFindNoMatches(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		require.NoError(t, json.NewEncoder(w).Encode(resolutionsResponse()))
	})

	people, err := svc.Find(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestFindMailboxOnly(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		require.NoError(t, json.NewEncoder(w).Encode(resolutionsResponse(map[string]any{
			"Mailbox": map[string]any{"Name": "Room 101", "EmailAddress": "room101@example.com"},
		})))
	})

	people, err := svc.Find(context.Background(), "room")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Room 101", people[0].Name)
	assert.Empty(t, people[0].Phones)
	assert.Empty(t, people[0].DirectReports)
}
