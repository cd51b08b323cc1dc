// Package folders manages the mailbox folder tree: listing, creation,
// renaming, emptying, deletion, and moves. It also provides the
// lightweight session probe the auth tooling exposes.
package folders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/owa"
)

const (
	defaultParent = "msgfolderroot"
	listPageSize  = 200
)

// Info is one folder in a listing.
type Info struct {
	Name             string `json:"name"`
	ID               string `json:"id"`
	TotalCount       int    `json:"total_count"`
	UnreadCount      int    `json:"unread_count"`
	ChildFolderCount int    `json:"child_folder_count"`
}

// SessionStatus reports whether the OWA session is usable. On failure
// Authenticated is false and Error carries the reason; the probe never
// returns a Go error so callers can always render the status.
type SessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	Mailbox       string `json:"mailbox,omitempty"`
	Unread        int    `json:"unread,omitempty"`
	CookieFile    string `json:"cookie_file"`
	Error         string `json:"error,omitempty"`
}

// Created reports a newly created folder.
type Created struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Service implements folder operations on top of an OWA client.
type Service struct {
	client *owa.Client
	logger *slog.Logger
}

// NewService creates a folder Service.
func NewService(client *owa.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logging.WithService(logger, "folders")}
}

// folderRef builds the typed folder reference for an ID that may be a
// distinguished folder name or a raw Exchange folder ID.
func folderRef(id string) any {
	if _, ok := distinguishedNames[strings.ToLower(id)]; ok {
		return owa.NewDistinguishedFolderID(strings.ToLower(id))
	}
	return owa.NewFolderID(id)
}

// Status probes the session with a GetFolder on the inbox.
func (s *Service) Status(ctx context.Context) SessionStatus {
	status := SessionStatus{CookieFile: s.client.Session().Path()}

	body := getFolderBody{
		Type:        "GetFolderRequest:#Exchange",
		FolderShape: owa.NewFolderShape(owa.ShapeDefault),
		FolderIDs:   []any{owa.NewDistinguishedFolderID("inbox")},
	}

	var resp folderResponse
	if err := s.client.Do(ctx, "GetFolder", owa.NewRequest("GetFolder", body), &resp); err != nil {
		status.Error = err.Error()
		return status
	}

	for _, msg := range resp.Body.ResponseMessages.Items {
		if len(msg.Folders) > 0 {
			status.Authenticated = true
			status.Mailbox = msg.Folders[0].DisplayName
			status.Unread = msg.Folders[0].UnreadCount
			return status
		}
	}

	status.Error = "unexpected response"
	return status
}

// List returns the child folders of parentID, recursively when deep is
// set. An empty parentID lists the top level of the mailbox.
func (s *Service) List(ctx context.Context, parentID string, deep bool) ([]Info, error) {
	if parentID == "" {
		parentID = defaultParent
	}
	traversal := "Shallow"
	if deep {
		traversal = "Deep"
	}

	body := findFolderBody{
		Type:            "FindFolderRequest:#Exchange",
		FolderShape:     owa.NewFolderShape(owa.ShapeDefault),
		ParentFolderIDs: []any{folderRef(parentID)},
		Traversal:       traversal,
		Paging:          owa.NewPageView(0, listPageSize),
	}

	var resp folderResponse
	if err := s.client.Do(ctx, "FindFolder", owa.NewRequest("FindFolder", body), &resp); err != nil {
		return nil, err
	}
	if err := resp.firstError(); err != nil {
		return nil, err
	}

	infos := []Info{}
	for _, msg := range resp.Body.ResponseMessages.Items {
		for _, f := range msg.RootFolder.Folders {
			name := f.DisplayName
			if name == "" {
				name = "Unknown"
			}
			infos = append(infos, Info{
				Name:             name,
				ID:               f.FolderID.ID,
				TotalCount:       f.TotalCount,
				UnreadCount:      f.UnreadCount,
				ChildFolderCount: f.ChildFolderCount,
			})
		}
	}
	return infos, nil
}

// Create makes a new mail folder under parentID.
func (s *Service) Create(ctx context.Context, name, parentID string) (*Created, error) {
	if parentID == "" {
		parentID = defaultParent
	}

	body := createFolderBody{
		Type: "CreateFolderRequest:#Exchange",
		ParentFolderID: targetFolder{
			Type:         "TargetFolderId:#Exchange",
			BaseFolderID: folderRef(parentID),
		},
		Folders: []newFolder{{
			Type:        "Folder:#Exchange",
			DisplayName: name,
			FolderClass: "IPF.Note",
		}},
	}

	var resp folderResponse
	if err := s.doHeaderPayload(ctx, "CreateFolder", body, &resp); err != nil {
		return nil, err
	}
	id, err := resp.firstFolderID()
	if err != nil {
		return nil, err
	}
	s.logger.Debug("folder created", slog.String("name", name))
	return &Created{Name: name, ID: id}, nil
}

// Rename changes a folder's display name and returns its (possibly
// rewritten) folder ID.
func (s *Service) Rename(ctx context.Context, folderID, newName string) (string, error) {
	body := updateFolderBody{
		Type: "UpdateFolderRequest:#Exchange",
		FolderChanges: []folderChange{{
			Type:     "FolderChange:#Exchange",
			FolderID: owa.NewFolderID(folderID),
			Updates: []setFolderField{{
				Type: "SetFolderField:#Exchange",
				Path: owa.NewPropertyURI("FolderDisplayName"),
				Folder: newFolder{
					Type:        "Folder:#Exchange",
					DisplayName: newName,
				},
			}},
		}},
	}

	var resp folderResponse
	if err := s.doHeaderPayload(ctx, "UpdateFolder", body, &resp); err != nil {
		return "", err
	}
	return resp.firstFolderID()
}

// Empty removes every item from a folder. With deleteSubFolders set
// the sub-folder tree goes too; permanent skips Deleted Items.
func (s *Service) Empty(ctx context.Context, folderID string, deleteSubFolders, permanent bool) error {
	body := emptyFolderBody{
		Type:             "EmptyFolderRequest:#Exchange",
		FolderIDs:        []any{owa.NewFolderID(folderID)},
		DeleteType:       deleteType(permanent),
		DeleteSubFolders: deleteSubFolders,
		SuppressReceipt:  true,
	}

	var resp folderResponse
	if err := s.doHeaderPayload(ctx, "EmptyFolder", body, &resp); err != nil {
		return err
	}
	return resp.requireSuccess()
}

// Delete removes a folder, permanently with permanent set.
func (s *Service) Delete(ctx context.Context, folderID string, permanent bool) error {
	body := deleteFolderBody{
		Type:       "DeleteFolderRequest:#Exchange",
		FolderIDs:  []any{owa.NewFolderID(folderID)},
		DeleteType: deleteType(permanent),
	}

	var resp folderResponse
	if err := s.doHeaderPayload(ctx, "DeleteFolder", body, &resp); err != nil {
		return err
	}
	return resp.requireSuccess()
}

// Move reparents a folder and returns its new folder ID.
func (s *Service) Move(ctx context.Context, folderID, targetParentID string) (string, error) {
	if targetParentID == "" {
		targetParentID = defaultParent
	}

	body := moveFolderBody{
		Type:      "MoveFolderRequest:#Exchange",
		FolderIDs: []any{owa.NewFolderID(folderID)},
		ToFolderID: targetFolder{
			Type:         "TargetFolderId:#Exchange",
			BaseFolderID: folderRef(targetParentID),
		},
	}

	var resp folderResponse
	if err := s.doHeaderPayload(ctx, "MoveFolder", body, &resp); err != nil {
		return "", err
	}
	return resp.firstFolderID()
}

func deleteType(permanent bool) string {
	if permanent {
		return "HardDelete"
	}
	return "MoveToDeletedItems"
}

// doHeaderPayload sends a folder write action; these actions ride in
// the X-OWA-UrlPostData header and need a timezone context.
func (s *Service) doHeaderPayload(ctx context.Context, action string, body any, out any) error {
	req := owa.NewRequest(action, body).WithTimeZone(s.client.Timezone())
	return s.client.DoHeaderPayload(ctx, action, req, out)
}

func (r folderResponse) firstError() error {
	for _, msg := range r.Body.ResponseMessages.Items {
		if msg.ResponseClass == "Error" {
			text := msg.MessageText
			if text == "" {
				text = "unknown error"
			}
			if msg.ResponseCode != "" {
				return fmt.Errorf("%s (%s)", text, msg.ResponseCode)
			}
			return errors.New(text)
		}
	}
	return nil
}

func (r folderResponse) firstFolderID() (string, error) {
	if err := r.firstError(); err != nil {
		return "", err
	}
	for _, msg := range r.Body.ResponseMessages.Items {
		if len(msg.Folders) > 0 {
			return msg.Folders[0].FolderID.ID, nil
		}
	}
	return "", errors.New("no folder in response")
}

func (r folderResponse) requireSuccess() error {
	if err := r.firstError(); err != nil {
		return err
	}
	for _, msg := range r.Body.ResponseMessages.Items {
		if msg.ResponseClass == "Success" {
			return nil
		}
	}
	return errors.New("unexpected response")
}
