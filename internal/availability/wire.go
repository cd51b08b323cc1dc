package availability

import "encoding/json"

// Wire types for the GetUserAvailability action.

type mailboxData struct {
	Type         string       `json:"__type"`
	Email        emailAddress `json:"Email"`
	AttendeeType string       `json:"AttendeeType"`
}

type emailAddress struct {
	Type    string `json:"__type"`
	Address string `json:"Address"`
}

func newMailboxData(email string) mailboxData {
	return mailboxData{
		Type:         "MailboxData:#Exchange",
		Email:        emailAddress{Type: "EmailAddress:#Exchange", Address: email},
		AttendeeType: "Required",
	}
}

type availabilityBody struct {
	Type                string        `json:"__type"`
	MailboxDataArray    []mailboxData `json:"MailboxDataArray"`
	FreeBusyViewOptions viewOptions   `json:"FreeBusyViewOptions"`
}

type viewOptions struct {
	Type                            string     `json:"__type"`
	TimeWindow                      timeWindow `json:"TimeWindow"`
	MergedFreeBusyIntervalInMinutes int        `json:"MergedFreeBusyIntervalInMinutes"`
	RequestedView                   string     `json:"RequestedView"`
}

type timeWindow struct {
	Type      string `json:"__type"`
	StartTime string `json:"StartTime"`
	EndTime   string `json:"EndTime"`
}

type availabilityResponse struct {
	Body struct {
		ErrorCode             json.RawMessage    `json:"ErrorCode"`
		FaultMessage          string             `json:"FaultMessage"`
		FreeBusyResponseArray []freeBusyResponse `json:"FreeBusyResponseArray"`
	} `json:"Body"`
}

type freeBusyResponse struct {
	FreeBusyView FreeBusyView `json:"FreeBusyView"`
}

// FreeBusyView is one mailbox's slice of a GetUserAvailability response:
// the merged free/busy digit string plus the expanded event list
// (recurring meetings appear once per occurrence).
type FreeBusyView struct {
	MergedFreeBusy string     `json:"MergedFreeBusy"`
	Events         eventArray `json:"CalendarEventArray"`
}

// CalendarEvent is one expanded occurrence from the availability view.
// Times are the raw server strings; details are only present for the
// caller's own mailbox in detailed views.
type CalendarEvent struct {
	StartTime string        `json:"StartTime"`
	EndTime   string        `json:"EndTime"`
	BusyType  string        `json:"BusyType"`
	Details   *EventDetails `json:"CalendarEventDetails"`
}

// EventDetails carries the subject and flags of an occurrence.
type EventDetails struct {
	ID          string `json:"ID"`
	Subject     string `json:"Subject"`
	Location    string `json:"Location"`
	IsMeeting   bool   `json:"IsMeeting"`
	IsRecurring bool   `json:"IsRecurring"`
	IsPrivate   bool   `json:"IsPrivate"`
}

// Subject returns the occurrence subject, tolerating missing details.
func (e CalendarEvent) Subject() string {
	if e.Details == nil {
		return ""
	}
	return e.Details.Subject
}

// eventArray absorbs the server's two renderings of CalendarEventArray:
// an object with an Items member, or a bare JSON array.
type eventArray struct {
	Items []CalendarEvent
}

func (a *eventArray) UnmarshalJSON(data []byte) error {
	a.Items = nil
	var wrapped struct {
		Items []CalendarEvent `json:"Items"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		a.Items = wrapped.Items
		return nil
	}
	var bare []CalendarEvent
	if err := json.Unmarshal(data, &bare); err == nil {
		a.Items = bare
		return nil
	}
	// Unknown shape, treat as no events.
	return nil
}
