package owa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func folderServer(t *testing.T, customFolders map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		switch r.Header.Get("Action") {
		case "GetFolder":
			body := payload.Body.(map[string]any)
			ids := body["FolderIds"].([]any)
			id := ids[0].(map[string]any)["Id"].(string)
			writeJSON(w, map[string]any{
				"Body": map[string]any{
					"ResponseMessages": map[string]any{
						"Items": []any{
							map[string]any{
								"Folders": []any{
									map[string]any{"FolderId": map[string]any{"Id": "distinguished:" + id}},
								},
							},
						},
					},
				},
			})
		case "FindFolder":
			var folders []any
			for name, id := range customFolders {
				folders = append(folders, map[string]any{
					"DisplayName": name,
					"FolderId":    map[string]any{"Id": id},
				})
			}
			writeJSON(w, map[string]any{
				"Body": map[string]any{
					"ResponseMessages": map[string]any{
						"Items": []any{
							map[string]any{
								"RootFolder": map[string]any{"Folders": folders},
							},
						},
					},
				},
			})
		default:
			t.Fatalf("unexpected action %q", r.Header.Get("Action"))
		}
	}))
}

func TestResolveFolderIDDistinguished(t *testing.T) {
	server := folderServer(t, nil)
	defer server.Close()

	client := newTestClient(t, server.URL, writeCookieFile(t, "sessionid=abc\n"))

	tests := []struct {
		name string
		want string
	}{
		{name: "inbox", want: "distinguished:inbox"},
		{name: "Sent", want: "distinguished:sentitems"},
		{name: "Входящие", want: "distinguished:inbox"},
		{name: "черновики", want: "distinguished:drafts"},
		{name: "Календарь", want: "distinguished:calendar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := client.ResolveFolderID(context.Background(), tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestResolveFolderIDCustom(t *testing.T) {
	server := folderServer(t, map[string]string{"Project Reports": "custom-42"})
	defer server.Close()

	client := newTestClient(t, server.URL, writeCookieFile(t, "sessionid=abc\n"))

	id, err := client.ResolveFolderID(context.Background(), "project reports")
	require.NoError(t, err)
	assert.Equal(t, "custom-42", id)
}

func TestResolveFolderIDNotFound(t *testing.T) {
	server := folderServer(t, map[string]string{"Archive": "a1"})
	defer server.Close()

	client := newTestClient(t, server.URL, writeCookieFile(t, "sessionid=abc\n"))

	_, err := client.ResolveFolderID(context.Background(), "No Such Folder")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}
