package calendar

import (
	"encoding/json"

	"github.com/avdeev/owa-mcp/internal/owa"
)

// Wire types for CalendarView listings and the meeting write actions.

type calendarView struct {
	Type      string `json:"__type"`
	StartDate string `json:"StartDate"`
	EndDate   string `json:"EndDate"`
}

// calendarFindBody is a FindItem body with a CalendarView instead of
// paging; the view expands recurring series into occurrences with
// their own item IDs.
type calendarFindBody struct {
	Type            string            `json:"__type"`
	ItemShape       owa.ResponseShape `json:"ItemShape"`
	ParentFolderIDs []any             `json:"ParentFolderIds"`
	Traversal       string            `json:"Traversal"`
	CalendarView    calendarView      `json:"CalendarView"`
}

type bodyContent struct {
	Type     string `json:"__type,omitempty"`
	BodyType string `json:"BodyType"`
	Value    string `json:"Value"`
}

type mailboxWrap struct {
	Mailbox owa.Mailbox `json:"Mailbox"`
}

type attendee struct {
	Mailbox      owa.Mailbox `json:"Mailbox"`
	ResponseType string      `json:"ResponseType"`
}

type enhancedLocation struct {
	DisplayName string `json:"DisplayName"`
}

type wireAttachment struct {
	Name         string     `json:"Name"`
	Size         int        `json:"Size"`
	ContentType  string     `json:"ContentType"`
	AttachmentID owa.ItemID `json:"AttachmentId"`
	IsInline     bool       `json:"IsInline"`
}

// wireEvent is the superset of calendar item fields read from FindItem
// and GetItem responses.
type wireEvent struct {
	ItemID            owa.ItemID        `json:"ItemId"`
	Subject           string            `json:"Subject"`
	Start             string            `json:"Start"`
	End               string            `json:"End"`
	IsAllDayEvent     bool              `json:"IsAllDayEvent"`
	IsCancelled       bool              `json:"IsCancelled"`
	MyResponseType    string            `json:"MyResponseType"`
	Sensitivity       string            `json:"Sensitivity"`
	Location          string            `json:"Location"`
	EnhancedLocation  *enhancedLocation `json:"EnhancedLocation"`
	Body              *bodyContent      `json:"Body"`
	Organizer         *mailboxWrap      `json:"Organizer"`
	RequiredAttendees []attendee        `json:"RequiredAttendees"`
	OptionalAttendees []attendee        `json:"OptionalAttendees"`
	Attachments       []wireAttachment  `json:"Attachments"`
}

func (e wireEvent) location() string {
	if e.Location != "" {
		return e.Location
	}
	if e.EnhancedLocation != nil {
		return e.EnhancedLocation.DisplayName
	}
	return ""
}

// resolvedAttendee is an attendee reference on outgoing calendar
// items; the Mailbox carries no __type tag.
type resolvedAttendee struct {
	Mailbox resolvedMailbox `json:"Mailbox"`
}

type resolvedMailbox struct {
	Name         string `json:"Name"`
	EmailAddress string `json:"EmailAddress"`
	RoutingType  string `json:"RoutingType"`
}

type postalAddress struct {
	Type           string `json:"__type"`
	AddressType    string `json:"Type"`
	LocationSource string `json:"LocationSource"`
}

type locationObject struct {
	Type          string        `json:"__type"`
	Annotation    string        `json:"Annotation"`
	DisplayName   string        `json:"DisplayName"`
	PostalAddress postalAddress `json:"PostalAddress"`
}

func newLocationObject(displayName string) locationObject {
	return locationObject{
		Type:        "EnhancedLocation:#Exchange",
		DisplayName: displayName,
		PostalAddress: postalAddress{
			Type:           "PersonaPostalAddress:#Exchange",
			AddressType:    "Business",
			LocationSource: "None",
		},
	}
}

type calendarItem struct {
	Type                       string             `json:"__type"`
	ClientSeriesID             string             `json:"ClientSeriesId"`
	Subject                    string             `json:"Subject"`
	Body                       bodyContent        `json:"Body"`
	Sensitivity                string             `json:"Sensitivity"`
	ReminderIsSet              bool               `json:"ReminderIsSet"`
	ReminderMinutesBeforeStart int                `json:"ReminderMinutesBeforeStart"`
	IsResponseRequested        bool               `json:"IsResponseRequested"`
	DoNotForwardMeeting        bool               `json:"DoNotForwardMeeting"`
	IsAllDayEvent              bool               `json:"IsAllDayEvent"`
	Start                      string             `json:"Start"`
	End                        string             `json:"End"`
	FreeBusyType               string             `json:"FreeBusyType"`
	Location                   locationObject     `json:"Location"`
	UnfoldedIndex              int                `json:"unfoldedIndex"`
	Importance                 string             `json:"Importance,omitempty"`
	RequiredAttendees          []resolvedAttendee `json:"RequiredAttendees,omitempty"`
	OptionalAttendees          []resolvedAttendee `json:"OptionalAttendees,omitempty"`
}

type savedItemFolder struct {
	Type         string                    `json:"__type"`
	BaseFolderID owa.DistinguishedFolderID `json:"BaseFolderId"`
}

type createEventBody struct {
	Type                   string          `json:"__type"`
	Items                  []calendarItem  `json:"Items"`
	ClientSupportsIrm      bool            `json:"ClientSupportsIrm"`
	SavedItemFolderID      savedItemFolder `json:"SavedItemFolderId"`
	SendMeetingInvitations string          `json:"SendMeetingInvitations,omitempty"`
}

type cancelItemBody struct {
	Type                     string       `json:"__type"`
	ItemIDs                  []owa.ItemID `json:"ItemIds"`
	DeleteType               string       `json:"DeleteType"`
	SendMeetingCancellations string       `json:"SendMeetingCancellations"`
	SuppressReadReceipts     bool         `json:"SuppressReadReceipts"`
}

type meetingResponseItem struct {
	Type            string       `json:"__type"`
	ReferenceItemID owa.ItemID   `json:"ReferenceItemId"`
	Body            *bodyContent `json:"Body,omitempty"`
}

type respondBody struct {
	Type               string                `json:"__type"`
	Items              []meetingResponseItem `json:"Items"`
	MessageDisposition string                `json:"MessageDisposition"`
}

// writeResponse is the envelope for calendar write actions, covering
// both the top-level fault shape and per-message statuses.
type writeResponse struct {
	Body struct {
		ErrorCode        json.RawMessage `json:"ErrorCode"`
		FaultMessage     string          `json:"FaultMessage"`
		ResponseMessages struct {
			Items []writeResponseMessage `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

type writeResponseMessage struct {
	ResponseClass string `json:"ResponseClass"`
	MessageText   string `json:"MessageText"`
	ResponseCode  string `json:"ResponseCode"`
	Items         []struct {
		ItemID owa.ItemID `json:"ItemId"`
	} `json:"Items"`
}
