package folders

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
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

func respondJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func decodeBodyPayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	return payload
}

// decodeHeaderPayload unpacks a payload carried in X-OWA-UrlPostData.
func decodeHeaderPayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	raw := r.Header.Get("X-OWA-UrlPostData")
	require.NotEmpty(t, raw, "missing X-OWA-UrlPostData header")
	decoded, err := url.PathUnescape(raw)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(decoded), &payload))
	return payload
}

func payloadBody(t *testing.T, payload map[string]any) map[string]any {
	t.Helper()
	body, ok := payload["Body"].(map[string]any)
	require.True(t, ok, "payload has no Body")
	return body
}

func messagesResponse(items ...map[string]any) map[string]any {
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, it)
	}
	return map[string]any{
		"Body": map[string]any{
			"ResponseMessages": map[string]any{"Items": list},
		},
	}
}

func TestStatusAuthenticated(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "GetFolder", r.Header.Get("Action"))
		body := payloadBody(t, decodeBodyPayload(t, r))
		folderIDs := body["FolderIds"].([]any)
		assert.Equal(t, "inbox", folderIDs[0].(map[string]any)["Id"])

		respondJSON(t, w, messagesResponse(map[string]any{
			"Folders": []any{
				map[string]any{"DisplayName": "Boris Godunov", "UnreadCount": 7},
			},
		}))
	})

	status := svc.Status(context.Background())
	assert.True(t, status.Authenticated)
	assert.Equal(t, "Boris Godunov", status.Mailbox)
	assert.Equal(t, 7, status.Unread)
	assert.NotEmpty(t, status.CookieFile)
	assert.Empty(t, status.Error)
}

func TestStatusServerError(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	status := svc.Status(context.Background())
	assert.False(t, status.Authenticated)
	assert.NotEmpty(t, status.Error)
	assert.NotEmpty(t, status.CookieFile)
}

func TestStatusUnexpectedResponse(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, messagesResponse(map[string]any{}))
	})

	status := svc.Status(context.Background())
	assert.False(t, status.Authenticated)
	assert.Equal(t, "unexpected response", status.Error)
}

func TestList(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "FindFolder", r.Header.Get("Action"))
		body := payloadBody(t, decodeBodyPayload(t, r))
		assert.Equal(t, "Shallow", body["Traversal"])

		parent := body["ParentFolderIds"].([]any)[0].(map[string]any)
		assert.Equal(t, "DistinguishedFolderId:#Exchange", parent["__type"])
		assert.Equal(t, "msgfolderroot", parent["Id"])

		paging := body["Paging"].(map[string]any)
		assert.Equal(t, float64(200), paging["MaxEntriesReturned"])

		respondJSON(t, w, messagesResponse(map[string]any{
			"RootFolder": map[string]any{
				"Folders": []any{
					map[string]any{
						"DisplayName":      "Projects",
						"FolderId":         map[string]any{"Id": "folder-1"},
						"TotalCount":       12,
						"UnreadCount":      3,
						"ChildFolderCount": 2,
					},
					map[string]any{
						"FolderId": map[string]any{"Id": "folder-2"},
					},
				},
			},
		}))
	})

	infos, err := svc.List(context.Background(), "", false)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, Info{Name: "Projects", ID: "folder-1", TotalCount: 12, UnreadCount: 3, ChildFolderCount: 2}, infos[0])
	assert.Equal(t, "Unknown", infos[1].Name)
}

func TestListDeepWithRawParent(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		body := payloadBody(t, decodeBodyPayload(t, r))
		assert.Equal(t, "Deep", body["Traversal"])
		parent := body["ParentFolderIds"].([]any)[0].(map[string]any)
		assert.Equal(t, "FolderId:#Exchange", parent["__type"])
		assert.Equal(t, "AAMkAD-raw", parent["Id"])
		respondJSON(t, w, messagesResponse())
	})

	infos, err := svc.List(context.Background(), "AAMkAD-raw", true)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestCreate(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "CreateFolder", r.Header.Get("Action"))
		payload := decodeHeaderPayload(t, r)

		header := payload["Header"].(map[string]any)
		tz := header["TimeZoneContext"].(map[string]any)["TimeZoneDefinition"].(map[string]any)
		assert.Equal(t, "Russian Standard Time", tz["Id"])

		body := payloadBody(t, payload)
		parent := body["ParentFolderId"].(map[string]any)
		assert.Equal(t, "TargetFolderId:#Exchange", parent["__type"])
		assert.Equal(t, "inbox", parent["BaseFolderId"].(map[string]any)["Id"])

		folder := body["Folders"].([]any)[0].(map[string]any)
		assert.Equal(t, "Receipts", folder["DisplayName"])
		assert.Equal(t, "IPF.Note", folder["FolderClass"])

		respondJSON(t, w, messagesResponse(map[string]any{
			"Folders": []any{
				map[string]any{"FolderId": map[string]any{"Id": "folder-new"}},
			},
		}))
	})

	created, err := svc.Create(context.Background(), "Receipts", "inbox")
	require.NoError(t, err)
	assert.Equal(t, &Created{Name: "Receipts", ID: "folder-new"}, created)
}

func TestCreateUnexpectedResponse(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, messagesResponse(map[string]any{}))
	})

	_, err := svc.Create(context.Background(), "Receipts", "")
	assert.ErrorContains(t, err, "no folder in response")
}

func TestRename(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "UpdateFolder", r.Header.Get("Action"))
		body := payloadBody(t, decodeHeaderPayload(t, r))

		change := body["FolderChanges"].([]any)[0].(map[string]any)
		assert.Equal(t, "folder-1", change["FolderId"].(map[string]any)["Id"])

		update := change["Updates"].([]any)[0].(map[string]any)
		assert.Equal(t, "SetFolderField:#Exchange", update["__type"])
		assert.Equal(t, "FolderDisplayName", update["Path"].(map[string]any)["FieldURI"])
		assert.Equal(t, "Archive 2025", update["Folder"].(map[string]any)["DisplayName"])

		respondJSON(t, w, messagesResponse(map[string]any{
			"Folders": []any{
				map[string]any{"FolderId": map[string]any{"Id": "folder-1b"}},
			},
		}))
	})

	id, err := svc.Rename(context.Background(), "folder-1", "Archive 2025")
	require.NoError(t, err)
	assert.Equal(t, "folder-1b", id)
}

func TestEmpty(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "EmptyFolder", r.Header.Get("Action"))
		body := payloadBody(t, decodeHeaderPayload(t, r))
		assert.Equal(t, "MoveToDeletedItems", body["DeleteType"])
		assert.Equal(t, true, body["DeleteSubFolders"])
		assert.Equal(t, true, body["SuppressReadReceipt"])
		respondJSON(t, w, messagesResponse(map[string]any{"ResponseClass": "Success"}))
	})

	require.NoError(t, svc.Empty(context.Background(), "folder-1", true, false))
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name       string
		permanent  bool
		deleteType string
	}{
		{"soft", false, "MoveToDeletedItems"},
		{"permanent", true, "HardDelete"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "DeleteFolder", r.Header.Get("Action"))
				body := payloadBody(t, decodeHeaderPayload(t, r))
				assert.Equal(t, tt.deleteType, body["DeleteType"])
				assert.Equal(t, "folder-1", body["FolderIds"].([]any)[0].(map[string]any)["Id"])
				respondJSON(t, w, messagesResponse(map[string]any{"ResponseClass": "Success"}))
			})
			require.NoError(t, svc.Delete(context.Background(), "folder-1", tt.permanent))
		})
	}
}

func TestDeleteErrorResponse(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, messagesResponse(map[string]any{
			"ResponseClass": "Error",
			"MessageText":   "folder is protected",
			"ResponseCode":  "ErrorDeleteDistinguishedFolder",
		}))
	})

	err := svc.Delete(context.Background(), "folder-1", false)
	assert.ErrorContains(t, err, "folder is protected")
	assert.ErrorContains(t, err, "ErrorDeleteDistinguishedFolder")
}

func TestMove(t *testing.T) {
	svc := newService(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "MoveFolder", r.Header.Get("Action"))
		body := payloadBody(t, decodeHeaderPayload(t, r))
		assert.Equal(t, "folder-1", body["FolderIds"].([]any)[0].(map[string]any)["Id"])
		target := body["ToFolderId"].(map[string]any)["BaseFolderId"].(map[string]any)
		assert.Equal(t, "DistinguishedFolderId:#Exchange", target["__type"])
		assert.Equal(t, "msgfolderroot", target["Id"])

		respondJSON(t, w, messagesResponse(map[string]any{
			"Folders": []any{
				map[string]any{"FolderId": map[string]any{"Id": "folder-moved"}},
			},
		}))
	})

	id, err := svc.Move(context.Background(), "folder-1", "")
	require.NoError(t, err)
	assert.Equal(t, "folder-moved", id)
}

func TestFolderRef(t *testing.T) {
	dist := folderRef("Inbox")
	assert.Equal(t, owa.NewDistinguishedFolderID("inbox"), dist)
	raw := folderRef("AAMkAD-raw")
	assert.Equal(t, owa.NewFolderID("AAMkAD-raw"), raw)
}
