package folders

import "github.com/avdeev/owa-mcp/internal/owa"

// Wire types for the folder management actions.

// distinguishedNames are the well-known folder IDs the server accepts
// as DistinguishedFolderId values. Anything else is a raw folder ID.
var distinguishedNames = map[string]struct{}{
	"msgfolderroot": {},
	"inbox":         {},
	"sentitems":     {},
	"drafts":        {},
	"deleteditems":  {},
	"junkemail":     {},
	"outbox":        {},
	"calendar":      {},
	"contacts":      {},
	"tasks":         {},
	"notes":         {},
	"journal":       {},
	"searchfolders": {},
}

type getFolderBody struct {
	Type        string            `json:"__type"`
	FolderShape owa.ResponseShape `json:"FolderShape"`
	FolderIDs   []any             `json:"FolderIds"`
}

type findFolderBody struct {
	Type            string              `json:"__type"`
	FolderShape     owa.ResponseShape   `json:"FolderShape"`
	ParentFolderIDs []any               `json:"ParentFolderIds"`
	Traversal       string              `json:"Traversal"`
	Paging          owa.IndexedPageView `json:"Paging"`
}

type targetFolder struct {
	Type         string `json:"__type"`
	BaseFolderID any    `json:"BaseFolderId"`
}

type newFolder struct {
	Type        string `json:"__type"`
	DisplayName string `json:"DisplayName"`
	FolderClass string `json:"FolderClass,omitempty"`
}

type createFolderBody struct {
	Type           string       `json:"__type"`
	ParentFolderID targetFolder `json:"ParentFolderId"`
	Folders        []newFolder  `json:"Folders"`
}

type setFolderField struct {
	Type   string          `json:"__type"`
	Path   owa.PropertyURI `json:"Path"`
	Folder newFolder       `json:"Folder"`
}

type folderChange struct {
	Type     string           `json:"__type"`
	FolderID owa.FolderID     `json:"FolderId"`
	Updates  []setFolderField `json:"Updates"`
}

type updateFolderBody struct {
	Type          string         `json:"__type"`
	FolderChanges []folderChange `json:"FolderChanges"`
}

type emptyFolderBody struct {
	Type             string `json:"__type"`
	FolderIDs        []any  `json:"FolderIds"`
	DeleteType       string `json:"DeleteType"`
	DeleteSubFolders bool   `json:"DeleteSubFolders"`
	SuppressReceipt  bool   `json:"SuppressReadReceipt"`
}

type deleteFolderBody struct {
	Type       string `json:"__type"`
	FolderIDs  []any  `json:"FolderIds"`
	DeleteType string `json:"DeleteType"`
}

type moveFolderBody struct {
	Type       string       `json:"__type"`
	FolderIDs  []any        `json:"FolderIds"`
	ToFolderID targetFolder `json:"ToFolderId"`
}

// folderResponse covers every folder action reply: Folders directly on
// the message (GetFolder, CreateFolder, UpdateFolder, MoveFolder) or
// under RootFolder (FindFolder).
type folderResponse struct {
	Body struct {
		ResponseMessages struct {
			Items []folderResponseMessage `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

type folderResponseMessage struct {
	ResponseClass string       `json:"ResponseClass"`
	MessageText   string       `json:"MessageText"`
	ResponseCode  string       `json:"ResponseCode"`
	Folders       []owa.Folder `json:"Folders"`
	RootFolder    struct {
		Folders []owa.Folder `json:"Folders"`
	} `json:"RootFolder"`
}
