package owa

import (
	"context"
	"strings"
)

// distinguishedFolders maps common folder names, in English and
// Russian, to OWA distinguished folder IDs.
var distinguishedFolders = map[string]string{
	"inbox":              "inbox",
	"входящие":           "inbox",
	"sent":               "sentitems",
	"отправленные":       "sentitems",
	"drafts":             "drafts",
	"черновики":          "drafts",
	"deleted":            "deleteditems",
	"удаленные":          "deleteditems",
	"junk":               "junkemail",
	"нежелательная почта": "junkemail",
	"outbox":             "outbox",
	"исходящие":          "outbox",
	"calendar":           "calendar",
	"календарь":          "calendar",
}

// Folder is the wire form of a mail folder in GetFolder/FindFolder
// responses.
type Folder struct {
	FolderID         FolderID `json:"FolderId"`
	ParentFolderID   FolderID `json:"ParentFolderId"`
	DisplayName      string   `json:"DisplayName"`
	TotalCount       int      `json:"TotalCount"`
	UnreadCount      int      `json:"UnreadCount"`
	ChildFolderCount int      `json:"ChildFolderCount"`
}

type getFolderBody struct {
	Type        string        `json:"__type"`
	FolderShape ResponseShape `json:"FolderShape"`
	FolderIDs   []any         `json:"FolderIds"`
}

type getFolderResponse struct {
	Body struct {
		ResponseMessages struct {
			Items []struct {
				Folders []Folder `json:"Folders"`
			} `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

type findFolderBody struct {
	Type            string          `json:"__type"`
	FolderShape     ResponseShape   `json:"FolderShape"`
	ParentFolderIDs []any           `json:"ParentFolderIds"`
	Traversal       string          `json:"Traversal"`
	Paging          IndexedPageView `json:"Paging"`
}

type findFolderResponse struct {
	Body struct {
		ResponseMessages struct {
			Items []struct {
				RootFolder struct {
					Folders []Folder `json:"Folders"`
				} `json:"RootFolder"`
			} `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

// ResolveFolderID resolves a folder name to its Exchange folder ID.
// Distinguished folder names (English and Russian) resolve via
// GetFolder; anything else falls back to a shallow FindFolder scan of
// msgfolderroot matched by display name, case-insensitively. Returns
// ErrFolderNotFound when neither path matches.
func (c *Client) ResolveFolderID(ctx context.Context, name string) (string, error) {
	lower := strings.ToLower(name)

	if distinguished, ok := distinguishedFolders[lower]; ok {
		payload := NewRequest("GetFolder", getFolderBody{
			Type:        "GetFolderRequest:#Exchange",
			FolderShape: NewFolderShape(ShapeIDOnly),
			FolderIDs:   []any{NewDistinguishedFolderID(distinguished)},
		})

		var resp getFolderResponse
		if err := c.Do(ctx, "GetFolder", payload, &resp); err != nil {
			return "", err
		}
		for _, msg := range resp.Body.ResponseMessages.Items {
			for _, f := range msg.Folders {
				if f.FolderID.ID != "" {
					return f.FolderID.ID, nil
				}
			}
		}
	}

	payload := NewRequest("FindFolder", findFolderBody{
		Type:            "FindFolderRequest:#Exchange",
		FolderShape:     NewFolderShape(ShapeDefault),
		ParentFolderIDs: []any{NewDistinguishedFolderID("msgfolderroot")},
		Traversal:       "Shallow",
		Paging:          NewPageView(0, 200),
	})

	var resp findFolderResponse
	if err := c.Do(ctx, "FindFolder", payload, &resp); err != nil {
		return "", err
	}
	for _, msg := range resp.Body.ResponseMessages.Items {
		for _, f := range msg.RootFolder.Folders {
			if strings.ToLower(f.DisplayName) == lower {
				return f.FolderID.ID, nil
			}
		}
	}

	return "", ErrFolderNotFound
}
