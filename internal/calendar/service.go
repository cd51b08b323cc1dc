// Package calendar lists calendar events and manages meetings over the
// OWA JSON API. Listings join two sources: the availability view, which
// expands recurring series into occurrences, and a CalendarView
// FindItem, which carries the item IDs the write operations need.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avdeev/owa-mcp/internal/availability"
	"github.com/avdeev/owa-mcp/internal/interval"
	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/mail"
	"github.com/avdeev/owa-mcp/internal/owa"
)

const (
	defaultDurationMinutes = 30
	defaultReminderMinutes = 15

	dateFormat     = "2006-01-02"
	clockFormat    = "2006-01-02T15:04:05"
	itemTimeFormat = "2006-01-02T15:04:05.000"

	sendToAll = "SendToAllAndSaveCopy"
)

// localOffset normalizes FindItem's UTC timestamps to the wall clock
// the availability view reports. Defaults to UTC+3 (Moscow, no DST);
// override with OWA_TZ_OFFSET_HOURS for other fixed-offset zones.
var localOffset = offsetFromEnv()

func offsetFromEnv() time.Duration {
	if v := os.Getenv("OWA_TZ_OFFSET_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			return time.Duration(hours) * time.Hour
		}
	}
	return 3 * time.Hour
}

// Event is one calendar entry with FindItem enrichment where an
// occurrence could be matched to an item.
type Event struct {
	Subject           string   `json:"subject"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	Location          string   `json:"location"`
	IsAllDay          bool     `json:"is_all_day"`
	IsCancelled       bool     `json:"is_cancelled"`
	IsMeeting         bool     `json:"is_meeting"`
	IsRecurring       bool     `json:"is_recurring"`
	Organizer         string   `json:"organizer"`
	MyResponse        string   `json:"my_response"`
	ItemID            string   `json:"item_id"`
	Body              string   `json:"body"`
	RequiredAttendees []string `json:"attendees_required"`
	OptionalAttendees []string `json:"attendees_optional"`
}

// Service implements calendar operations on top of an OWA client and
// the availability view.
type Service struct {
	client *owa.Client
	avail  *availability.Service
	logger *slog.Logger
}

// NewService creates a calendar Service.
func NewService(client *owa.Client, avail *availability.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		avail:  avail,
		logger: logging.WithService(logger, "calendar"),
	}
}

// Expanded returns every individual occurrence in the closed date
// range [start, end], recurring series expanded. The entries carry no
// item IDs.
func (s *Service) Expanded(ctx context.Context, start, end time.Time) ([]availability.Occurrence, error) {
	return s.avail.Occurrences(ctx, s.client.UserEmail(), start, end.AddDate(0, 0, 1))
}

// utcToLocalClock converts a UTC timestamp to the local wall clock
// format the availability view uses for occurrence starts.
func utcToLocalClock(v string) string {
	if !strings.HasSuffix(v, "Z") {
		return v
	}
	t, err := time.Parse(clockFormat+"Z", v)
	if err != nil {
		return strings.TrimSuffix(v, "Z")
	}
	return t.Add(localOffset).Format(clockFormat)
}

// Events lists the events in the closed date range [start, end]. The
// expanded occurrence list is authoritative; CalendarView items are
// joined by subject and local start time to attach item IDs. With
// includeBody set, matched events are hydrated with organizer,
// attendees, and body via GetItem.
func (s *Service) Events(ctx context.Context, start, end time.Time, includeBody bool) ([]Event, error) {
	occurrences, err := s.Expanded(ctx, start, end)
	if err != nil {
		return nil, err
	}

	itemsByKey, err := s.calendarViewIndex(ctx, start, end)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(occurrences))
	for _, occ := range occurrences {
		ev := Event{
			Subject:           occ.Subject,
			Start:             occ.Start,
			End:               occ.End,
			Location:          occ.Location,
			IsMeeting:         occ.IsMeeting,
			IsRecurring:       occ.IsRecurring,
			RequiredAttendees: []string{},
			OptionalAttendees: []string{},
		}

		if item, ok := itemsByKey[occ.Subject+"|"+occ.Start]; ok {
			ev.ItemID = item.ItemID.ID
			if item.Start != "" {
				ev.Start = item.Start
			}
			if item.End != "" {
				ev.End = item.End
			}
			ev.IsAllDay = item.IsAllDayEvent
			ev.IsCancelled = item.IsCancelled
			ev.MyResponse = item.MyResponseType
		}

		if includeBody && ev.ItemID != "" {
			details, err := s.eventDetails(ctx, ev.ItemID)
			if err != nil {
				return nil, fmt.Errorf("fetching details for %q: %w", ev.Subject, err)
			}
			ev.Organizer = details.organizer
			if details.location != "" {
				ev.Location = details.location
			}
			ev.Body = details.body
			ev.RequiredAttendees = details.required
			ev.OptionalAttendees = details.optional
		}

		events = append(events, ev)
	}
	return events, nil
}

// calendarViewIndex runs a CalendarView FindItem over the range and
// indexes the items by subject plus normalized local start time. A
// missing calendar folder yields an empty index.
func (s *Service) calendarViewIndex(ctx context.Context, start, end time.Time) (map[string]wireEvent, error) {
	folderID, err := s.client.ResolveFolderID(ctx, "calendar")
	if errors.Is(err, owa.ErrFolderNotFound) {
		return map[string]wireEvent{}, nil
	}
	if err != nil {
		return nil, err
	}

	body := calendarFindBody{
		Type:            "FindItemRequest:#Exchange",
		ItemShape:       owa.NewItemShape(owa.ShapeAllProperties),
		ParentFolderIDs: []any{owa.NewFolderID(folderID)},
		Traversal:       "Shallow",
		CalendarView: calendarView{
			Type:      "CalendarView:#Exchange",
			StartDate: start.Format(dateFormat) + "T00:00:00",
			EndDate:   end.AddDate(0, 0, 1).Format(dateFormat) + "T00:00:00",
		},
	}

	var resp owa.FindItemResponse[wireEvent]
	if err := s.client.Do(ctx, "FindItem", owa.NewRequest("FindItem", body), &resp); err != nil {
		return nil, err
	}

	index := map[string]wireEvent{}
	if root, ok := resp.Root(); ok {
		for _, item := range root.Items {
			index[item.Subject+"|"+utcToLocalClock(item.Start)] = item
		}
	}
	return index, nil
}

type eventDetails struct {
	organizer      string
	organizerEmail string
	location       string
	body           string
	required       []string
	optional       []string
}

// formatAttendee renders an attendee entry, keeping legacy DN
// addresses name-only and tagging real responses.
func formatAttendee(a attendee) string {
	name := a.Mailbox.Name
	addr := a.Mailbox.EmailAddress
	if name == "" && addr == "" {
		return ""
	}

	var entry string
	if addr != "" && !strings.HasPrefix(addr, "/O=") {
		if name != "" {
			entry = fmt.Sprintf("%s <%s>", name, addr)
		} else {
			entry = addr
		}
	} else {
		entry = name
	}
	if a.ResponseType != "" && a.ResponseType != "Unknown" && a.ResponseType != "Organizer" {
		entry += fmt.Sprintf(" [%s]", a.ResponseType)
	}
	return entry
}

func formatAttendees(list []attendee) []string {
	out := []string{}
	for _, a := range list {
		if entry := formatAttendee(a); entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func (s *Service) eventDetails(ctx context.Context, itemID string) (*eventDetails, error) {
	req := owa.NewRequest("GetItem", owa.NewGetItemBody(owa.NewItemShape(owa.ShapeAllProperties), itemID))
	var resp owa.GetItemResponse[wireEvent]
	if err := s.client.Do(ctx, "GetItem", req, &resp); err != nil {
		return nil, err
	}

	details := &eventDetails{required: []string{}, optional: []string{}}
	items := resp.Items()
	if len(items) == 0 {
		return details, nil
	}
	item := items[0]

	details.location = item.location()
	if item.Body != nil {
		text := item.Body.Value
		if item.Body.BodyType == "HTML" {
			text = mail.HTMLToText(text)
		}
		details.body = strings.TrimSpace(text)
	}

	if item.Organizer != nil {
		name := item.Organizer.Mailbox.Name
		addr := item.Organizer.Mailbox.EmailAddress
		if addr != "" && !strings.HasPrefix(addr, "/O=") {
			if name != "" {
				details.organizer = fmt.Sprintf("%s <%s>", name, addr)
			} else {
				details.organizer = addr
			}
			details.organizerEmail = addr
		} else {
			details.organizer = name
		}
	}

	details.required = formatAttendees(item.RequiredAttendees)
	details.optional = formatAttendees(item.OptionalAttendees)
	return details, nil
}

// resolveAttendee resolves an email through the directory, falling
// back to the raw address when resolution fails.
func (s *Service) resolveAttendee(ctx context.Context, email string) resolvedAttendee {
	fallback := resolvedAttendee{Mailbox: resolvedMailbox{
		Name:         email,
		EmailAddress: email,
		RoutingType:  "SMTP",
	}}

	resolutions, err := s.client.ResolveNames(ctx, email, false)
	if err != nil || len(resolutions) == 0 {
		return fallback
	}
	mb := resolutions[0].Mailbox
	if mb.Name != "" {
		fallback.Mailbox.Name = mb.Name
	}
	if mb.EmailAddress != "" {
		fallback.Mailbox.EmailAddress = mb.EmailAddress
	}
	return fallback
}

func (s *Service) resolveAttendees(ctx context.Context, emails []string) []resolvedAttendee {
	var out []resolvedAttendee
	for _, email := range emails {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		out = append(out, s.resolveAttendee(ctx, email))
	}
	return out
}

// buildHTMLBody wraps a description in the OWA composer's HTML frame.
func buildHTMLBody(description string) string {
	var sb strings.Builder
	sb.WriteString(`<html><head><meta http-equiv="Content-Type" content="text/html; charset=UTF-8"></head><body dir="ltr">`)
	if description != "" {
		escaped := strings.ReplaceAll(html.EscapeString(description), "\n", "<br>")
		sb.WriteString(`<div style="font-size:12pt;color:#000000;font-family:Calibri,Helvetica,sans-serif;">`)
		sb.WriteString(escaped)
		sb.WriteString(`</div>`)
	} else {
		sb.WriteString(`<div style="font-size:12pt;color:#000000;font-family:Calibri,Helvetica,sans-serif;"><p><br></p></div>`)
	}
	sb.WriteString(`</body></html>`)
	return sb.String()
}

// CreateOptions describe a new meeting.
type CreateOptions struct {
	Subject           string
	Date              string // YYYY-MM-DD
	StartTime         string // HH:MM
	DurationMinutes   int
	RequiredAttendees []string
	OptionalAttendees []string
	Location          string
	Description       string
	AllDay            bool
	ReminderMinutes   int
	Importance        string
	Sensitivity       string
}

// CreateResult reports a created meeting.
type CreateResult struct {
	Subject           string    `json:"subject"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	DurationMinutes   int       `json:"duration_minutes"`
	ItemID            string    `json:"item_id,omitempty"`
	ChangeKey         string    `json:"change_key,omitempty"`
	Location          string    `json:"location,omitempty"`
	RequiredAttendees []string  `json:"required_attendees,omitempty"`
	OptionalAttendees []string  `json:"optional_attendees,omitempty"`
}

// Create schedules a new meeting, resolving attendees through the
// directory and sending invitations when there are any.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	start, err := time.Parse(dateFormat+" 15:04", opts.Date+" "+opts.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid date/time: %w", err)
	}
	duration := opts.DurationMinutes
	if duration <= 0 {
		duration = defaultDurationMinutes
	}
	end := start.Add(time.Duration(duration) * time.Minute)

	reminder := opts.ReminderMinutes
	if reminder <= 0 {
		reminder = defaultReminderMinutes
	}
	sensitivity := opts.Sensitivity
	if sensitivity == "" {
		sensitivity = "Normal"
	}
	importance := opts.Importance
	if importance == "Normal" {
		importance = ""
	}

	required := s.resolveAttendees(ctx, opts.RequiredAttendees)
	optional := s.resolveAttendees(ctx, opts.OptionalAttendees)

	item := calendarItem{
		Type:                       "CalendarItem:#Exchange",
		ClientSeriesID:             uuid.NewString(),
		Subject:                    opts.Subject,
		Body:                       bodyContent{Type: "BodyContentType:#Exchange", BodyType: "HTML", Value: buildHTMLBody(opts.Description)},
		Sensitivity:                sensitivity,
		ReminderIsSet:              true,
		ReminderMinutesBeforeStart: reminder,
		IsResponseRequested:        true,
		IsAllDayEvent:              opts.AllDay,
		Start:                      start.Format(itemTimeFormat),
		End:                        end.Format(itemTimeFormat),
		FreeBusyType:               "Busy",
		Location:                   newLocationObject(opts.Location),
		Importance:                 importance,
		RequiredAttendees:          required,
		OptionalAttendees:          optional,
	}

	created, err := s.createEvent(ctx, item)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{
		Subject:           opts.Subject,
		Start:             start,
		End:               end,
		DurationMinutes:   duration,
		ItemID:            created.ID,
		ChangeKey:         created.ChangeKey,
		Location:          opts.Location,
		RequiredAttendees: attendeeEmails(required),
		OptionalAttendees: attendeeEmails(optional),
	}
	return result, nil
}

func attendeeEmails(list []resolvedAttendee) []string {
	var out []string
	for _, a := range list {
		out = append(out, a.Mailbox.EmailAddress)
	}
	return out
}

// createEvent sends the CreateCalendarEvent action and returns the
// created item reference, which may be empty when the server omits
// confirmation details.
func (s *Service) createEvent(ctx context.Context, item calendarItem) (owa.ItemID, error) {
	body := createEventBody{
		Type:              "CreateItemRequest:#Exchange",
		Items:             []calendarItem{item},
		ClientSupportsIrm: true,
		SavedItemFolderID: savedItemFolder{
			Type:         "TargetFolderId:#Exchange",
			BaseFolderID: owa.NewDistinguishedFolderID("calendar"),
		},
	}
	if len(item.RequiredAttendees) > 0 || len(item.OptionalAttendees) > 0 {
		body.SendMeetingInvitations = sendToAll
	}

	req := owa.NewRequest("CreateItem", body).
		WithServerVersion(owa.Version2017).
		WithTimeZone(s.client.Timezone())

	var resp writeResponse
	if err := s.client.Do(ctx, "CreateCalendarEvent", req, &resp); err != nil {
		return owa.ItemID{}, err
	}
	if err := resp.firstError(); err != nil {
		return owa.ItemID{}, err
	}

	s.logger.Debug("meeting created", slog.String("subject", item.Subject))
	return resp.createdID(), nil
}

func (r writeResponse) firstError() error {
	if len(r.Body.ErrorCode) > 0 && string(r.Body.ErrorCode) != "0" {
		msg := r.Body.FaultMessage
		if msg == "" {
			msg = "unknown error"
		}
		return errors.New(msg)
	}
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

func (r writeResponse) createdID() owa.ItemID {
	for _, msg := range r.Body.ResponseMessages.Items {
		for _, item := range msg.Items {
			return item.ItemID
		}
	}
	return owa.ItemID{}
}

// UpdateOptions carry replacement values for an existing meeting; nil
// fields keep the original value.
type UpdateOptions struct {
	Subject           *string
	Date              *string // YYYY-MM-DD
	StartTime         *string // HH:MM
	DurationMinutes   *int
	Location          *string
	Description       *string
	RequiredAttendees []string // nil keeps the original attendees
	OptionalAttendees []string
}

// Update replaces a meeting: the OWA JSON API has no reliable
// UpdateItem for calendar items, so the original is cancelled and a
// new meeting created with unchanged fields preserved.
func (s *Service) Update(ctx context.Context, itemID string, opts UpdateOptions) (*CreateResult, error) {
	orig, err := s.fullEvent(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("could not fetch original meeting: %w", err)
	}

	subject := orig.Subject
	if opts.Subject != nil {
		subject = *opts.Subject
	}

	origStart, startErr := interval.ParseWallClock(orig.Start)
	origEnd, endErr := interval.ParseWallClock(orig.End)
	origDuration := defaultDurationMinutes
	haveOrigTimes := startErr == nil && endErr == nil
	if haveOrigTimes {
		origDuration = int(origEnd.Sub(origStart).Minutes())
	}

	duration := origDuration
	if opts.DurationMinutes != nil {
		duration = *opts.DurationMinutes
	}

	var start, end time.Time
	switch {
	case opts.Date != nil && opts.StartTime != nil:
		start, err = time.Parse(dateFormat+" 15:04", *opts.Date+" "+*opts.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid date/time: %w", err)
		}
		end = start.Add(time.Duration(duration) * time.Minute)
	case opts.Date != nil && haveOrigTimes:
		day, err := time.Parse(dateFormat, *opts.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date: %w", err)
		}
		start = time.Date(day.Year(), day.Month(), day.Day(),
			origStart.Hour(), origStart.Minute(), 0, 0, time.UTC)
		end = start.Add(time.Duration(duration) * time.Minute)
	case opts.StartTime != nil && haveOrigTimes:
		clock, err := time.Parse("15:04", *opts.StartTime)
		if err != nil {
			return nil, fmt.Errorf("invalid start time: %w", err)
		}
		start = time.Date(origStart.Year(), origStart.Month(), origStart.Day(),
			clock.Hour(), clock.Minute(), 0, 0, time.UTC)
		end = start.Add(time.Duration(duration) * time.Minute)
	case opts.DurationMinutes != nil && haveOrigTimes:
		start = origStart
		end = start.Add(time.Duration(duration) * time.Minute)
	case haveOrigTimes:
		start = origStart
		end = origEnd
	default:
		return nil, errors.New("cannot determine meeting time, provide date and start time")
	}

	location := orig.location()
	if opts.Location != nil {
		location = *opts.Location
	}

	required := orig.resolvedRequired()
	if opts.RequiredAttendees != nil {
		required = s.resolveAttendees(ctx, opts.RequiredAttendees)
	}
	optional := orig.resolvedOptional()
	if opts.OptionalAttendees != nil {
		optional = s.resolveAttendees(ctx, opts.OptionalAttendees)
	}

	bodyHTML := origBodyHTML(orig)
	if opts.Description != nil {
		bodyHTML = buildHTMLBody(*opts.Description)
	}

	if err := s.Cancel(ctx, itemID); err != nil {
		return nil, fmt.Errorf("failed to cancel original meeting: %w", err)
	}

	sensitivity := orig.Sensitivity
	if sensitivity == "" {
		sensitivity = "Normal"
	}

	item := calendarItem{
		Type:                       "CalendarItem:#Exchange",
		ClientSeriesID:             uuid.NewString(),
		Subject:                    subject,
		Body:                       bodyContent{Type: "BodyContentType:#Exchange", BodyType: "HTML", Value: bodyHTML},
		Sensitivity:                sensitivity,
		ReminderIsSet:              true,
		ReminderMinutesBeforeStart: defaultReminderMinutes,
		IsResponseRequested:        true,
		IsAllDayEvent:              orig.IsAllDayEvent,
		Start:                      start.Format(itemTimeFormat),
		End:                        end.Format(itemTimeFormat),
		FreeBusyType:               "Busy",
		Location:                   newLocationObject(location),
		RequiredAttendees:          required,
		OptionalAttendees:          optional,
	}

	created, err := s.createEvent(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("original cancelled but failed to create new meeting: %w", err)
	}

	return &CreateResult{
		Subject:         subject,
		Start:           start,
		End:             end,
		DurationMinutes: int(end.Sub(start).Minutes()),
		ItemID:          created.ID,
		ChangeKey:       created.ChangeKey,
		Location:        location,
	}, nil
}

func origBodyHTML(ev *wireEvent) string {
	if ev.Body == nil {
		return ""
	}
	return ev.Body.Value
}

func (e *wireEvent) resolvedRequired() []resolvedAttendee {
	return resolveExisting(e.RequiredAttendees)
}

func (e *wireEvent) resolvedOptional() []resolvedAttendee {
	return resolveExisting(e.OptionalAttendees)
}

// resolveExisting converts existing attendees back into outgoing
// references, dropping legacy DN addresses that cannot be re-invited.
func resolveExisting(list []attendee) []resolvedAttendee {
	var out []resolvedAttendee
	for _, a := range list {
		addr := a.Mailbox.EmailAddress
		if addr == "" || strings.HasPrefix(addr, "/O=") {
			continue
		}
		out = append(out, resolvedAttendee{Mailbox: resolvedMailbox{
			Name:         a.Mailbox.Name,
			EmailAddress: addr,
			RoutingType:  "SMTP",
		}})
	}
	return out
}

var errMeetingNotFound = errors.New("meeting not found")

func (s *Service) fullEvent(ctx context.Context, itemID string) (*wireEvent, error) {
	req := owa.NewRequest("GetItem", owa.NewGetItemBody(owa.NewItemShape(owa.ShapeAllProperties), itemID))
	var resp owa.GetItemResponse[wireEvent]
	if err := s.client.Do(ctx, "GetItem", req, &resp); err != nil {
		return nil, err
	}
	items := resp.Items()
	if len(items) == 0 {
		return nil, errMeetingNotFound
	}
	return &items[0], nil
}

// Cancel removes a meeting and sends cancellations to its attendees.
func (s *Service) Cancel(ctx context.Context, itemID string) error {
	body := cancelItemBody{
		Type:                     "DeleteItemRequest:#Exchange",
		ItemIDs:                  []owa.ItemID{owa.NewItemID(itemID)},
		DeleteType:               "MoveToDeletedItems",
		SendMeetingCancellations: sendToAll,
		SuppressReadReceipts:     true,
	}

	var resp writeResponse
	if err := s.client.Do(ctx, "DeleteItem", owa.NewRequest("DeleteItem", body), &resp); err != nil {
		return err
	}
	return resp.firstError()
}

var responseTypes = map[string]string{
	"Accept":    "AcceptItem:#Exchange",
	"Decline":   "DeclineItem:#Exchange",
	"Tentative": "TentativelyAcceptItem:#Exchange",
}

// Respond accepts, declines, or tentatively accepts a meeting
// invitation, optionally with a message to the organizer.
func (s *Service) Respond(ctx context.Context, itemID, response, message string) error {
	itemType, ok := responseTypes[response]
	if !ok {
		return fmt.Errorf("invalid response %q, must be Accept, Decline, or Tentative", response)
	}

	item := meetingResponseItem{
		Type:            itemType,
		ReferenceItemID: owa.NewItemID(itemID),
	}
	if message != "" {
		item.Body = &bodyContent{Type: "BodyContentType:#Exchange", BodyType: "Text", Value: message}
	}

	body := respondBody{
		Type:               "CreateItemRequest:#Exchange",
		Items:              []meetingResponseItem{item},
		MessageDisposition: "SendAndSaveCopy",
	}

	var resp writeResponse
	if err := s.client.Do(ctx, "CreateItem", owa.NewRequest("CreateItem", body), &resp); err != nil {
		return err
	}
	return resp.firstError()
}
