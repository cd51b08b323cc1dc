package mail

import "github.com/avdeev/owa-mcp/internal/owa"

// Wire types for message items and the mail write operations.

type recipientWrap struct {
	Mailbox owa.Mailbox `json:"Mailbox"`
}

type bodyContent struct {
	Type     string `json:"__type,omitempty"`
	BodyType string `json:"BodyType"`
	Value    string `json:"Value"`
}

func newBodyContent(bodyType, value string) *bodyContent {
	return &bodyContent{Type: "BodyContentType:#Exchange", BodyType: bodyType, Value: value}
}

type wireAttachment struct {
	Name         string     `json:"Name"`
	Size         int        `json:"Size"`
	ContentType  string     `json:"ContentType"`
	AttachmentID owa.ItemID `json:"AttachmentId"`
	IsInline     bool       `json:"IsInline"`
}

type enhancedLocation struct {
	DisplayName string `json:"DisplayName"`
}

// wireItem is the superset of message and meeting-message fields this
// package reads from FindItem and GetItem responses.
type wireItem struct {
	Type             string            `json:"__type"`
	ItemID           owa.ItemID        `json:"ItemId"`
	Subject          string            `json:"Subject"`
	From             *recipientWrap    `json:"From"`
	Sender           *recipientWrap    `json:"Sender"`
	Organizer        *recipientWrap    `json:"Organizer"`
	DateTimeSent     string            `json:"DateTimeSent"`
	DateTimeReceived string            `json:"DateTimeReceived"`
	DateTimeCreated  string            `json:"DateTimeCreated"`
	IsRead           bool              `json:"IsRead"`
	HasAttachments   bool              `json:"HasAttachments"`
	Size             int               `json:"Size"`
	Preview          string            `json:"Preview"`
	DisplayTo        string            `json:"DisplayTo"`
	DisplayCc        string            `json:"DisplayCc"`
	Importance       string            `json:"Importance"`
	Body             *bodyContent      `json:"Body"`
	ToRecipients     []owa.Mailbox     `json:"ToRecipients"`
	CcRecipients     []owa.Mailbox     `json:"CcRecipients"`
	BccRecipients    []owa.Mailbox     `json:"BccRecipients"`
	Attachments      []wireAttachment  `json:"Attachments"`
	Location         string            `json:"Location"`
	EnhancedLocation *enhancedLocation `json:"EnhancedLocation"`
	Start            string            `json:"Start"`
	End              string            `json:"End"`
	StartWallClock   string            `json:"StartWallClock"`
	EndWallClock     string            `json:"EndWallClock"`
	ReminderDueBy    string            `json:"ReminderDueBy"`
	RequiredAttendees []recipientWrap  `json:"RequiredAttendees"`
	OptionalAttendees []recipientWrap  `json:"OptionalAttendees"`
}

// recipient is a Mailbox without the __type tag; the CreateItem action
// rejects tagged recipient entries on messages.
type recipient struct {
	Name         string `json:"Name"`
	EmailAddress string `json:"EmailAddress"`
	RoutingType  string `json:"RoutingType"`
}

type outgoingMessage struct {
	Type          string       `json:"__type"`
	Subject       string       `json:"Subject"`
	Body          *bodyContent `json:"Body"`
	Importance    string       `json:"Importance"`
	ToRecipients  []recipient  `json:"ToRecipients"`
	CcRecipients  []recipient  `json:"CcRecipients,omitempty"`
	BccRecipients []recipient  `json:"BccRecipients,omitempty"`
}

// responseItem is a reply or forward referencing an existing message.
type responseItem struct {
	Type            string       `json:"__type"`
	ReferenceItemID owa.ItemID   `json:"ReferenceItemId"`
	NewBodyContent  *bodyContent `json:"NewBodyContent,omitempty"`
	ToRecipients    []recipient  `json:"ToRecipients,omitempty"`
}

type createItemBody struct {
	Type               string `json:"__type"`
	Items              []any  `json:"Items"`
	MessageDisposition string `json:"MessageDisposition"`
}

type itemChange struct {
	Type    string         `json:"__type"`
	ItemID  owa.ItemID     `json:"ItemId"`
	Updates []setItemField `json:"Updates"`
}

type setItemField struct {
	Type string          `json:"__type"`
	Path owa.PropertyURI `json:"Path"`
	Item any             `json:"Item"`
}

type updateItemBody struct {
	Type               string       `json:"__type"`
	ItemChanges        []itemChange `json:"ItemChanges"`
	ConflictResolution string       `json:"ConflictResolution"`
	MessageDisposition string       `json:"MessageDisposition"`
}

type targetFolderID struct {
	Type         string       `json:"__type"`
	BaseFolderID owa.FolderID `json:"BaseFolderId"`
}

type moveItemBody struct {
	Type       string         `json:"__type"`
	ItemIDs    []owa.ItemID   `json:"ItemIds"`
	ToFolderID targetFolderID `json:"ToFolderId"`
}

type deleteItemBody struct {
	Type       string       `json:"__type"`
	ItemIDs    []owa.ItemID `json:"ItemIds"`
	DeleteType string       `json:"DeleteType"`
}

type restriction struct {
	Type string    `json:"__type"`
	Item isEqualTo `json:"Item"`
}

type isEqualTo struct {
	Type               string             `json:"__type"`
	FieldURIOrConstant fieldURIOrConstant `json:"FieldURIOrConstant"`
	Path               owa.PropertyURI    `json:"Path"`
}

type fieldURIOrConstant struct {
	Type string        `json:"__type"`
	Item constantValue `json:"Item"`
}

type constantValue struct {
	Type  string `json:"__type"`
	Value string `json:"Value"`
}

// unreadRestriction matches items with IsRead equal to false.
func unreadRestriction() restriction {
	return restriction{
		Type: "RestrictionType:#Exchange",
		Item: isEqualTo{
			Type: "IsEqualTo:#Exchange",
			FieldURIOrConstant: fieldURIOrConstant{
				Type: "FieldURIOrConstantType:#Exchange",
				Item: constantValue{Type: "ConstantValueType:#Exchange", Value: "false"},
			},
			Path: owa.NewPropertyURI("IsRead"),
		},
	}
}

// shapeWithBodyType is a response shape extended with the BodyType
// selector GetItem supports.
type shapeWithBodyType struct {
	owa.ResponseShape
	BodyType string `json:"BodyType"`
}

// getItemBody mirrors owa.GetItemBody with a free-form shape so the
// BodyType selector can ride along.
type getItemBody struct {
	Type      string       `json:"__type"`
	ItemShape any          `json:"ItemShape"`
	ItemIDs   []owa.ItemID `json:"ItemIds"`
}

func newGetItemBody(shape any, ids ...owa.ItemID) getItemBody {
	return getItemBody{Type: "GetItemRequest:#Exchange", ItemShape: shape, ItemIDs: ids}
}
