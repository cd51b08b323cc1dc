package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avdeev/owa-mcp/internal/interval"
	"github.com/avdeev/owa-mcp/internal/owa"
)

// WorkWindow bounds the search for free slots to working hours.
type WorkWindow struct {
	StartHour   int
	EndHour     int
	MinDuration time.Duration
}

func (w WorkWindow) normalized() WorkWindow {
	if w.StartHour == 0 && w.EndHour == 0 {
		w.StartHour, w.EndHour = 9, 18
	}
	if w.MinDuration == 0 {
		w.MinDuration = 30 * time.Minute
	}
	return w
}

// FreeTimeResult maps YYYY-MM-DD dates to free slots. Weekends and
// days without a qualifying slot are absent.
type FreeTimeResult struct {
	Days map[string][]interval.Period
}

// FindFreeTime locates free slots in the caller's own calendar for
// each weekday in the closed range [start, end]. When a user email is
// configured the availability view is used so recurring meetings count
// correctly; otherwise it falls back to a calendar item scan, which
// misses recurring occurrences.
func (s *Service) FindFreeTime(ctx context.Context, start, end time.Time, win WorkWindow) (*FreeTimeResult, error) {
	win = win.normalized()

	var busy []interval.Period
	if email := s.client.UserEmail(); email != "" {
		events, err := s.OwnOccurrences(ctx, email, start, end)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			busy = append(busy, interval.Period{Start: ev.Start, End: ev.End})
		}
	} else {
		var err error
		busy, err = s.calendarItemBusy(ctx, start, end)
		if err != nil {
			return nil, err
		}
	}

	return &FreeTimeResult{Days: slotsByDay(busy, start, end, win)}, nil
}

// slotsByDay runs the gap search for every weekday in [start, end].
func slotsByDay(busy []interval.Period, start, end time.Time, win WorkWindow) map[string][]interval.Period {
	days := make(map[string][]interval.Period)
	for d := interval.DateOf(start); !d.After(interval.DateOf(end)); d = d.AddDate(0, 0, 1) {
		if !interval.IsWorkday(d) {
			continue
		}
		free := interval.FindFreeSlots(busy, d, win.StartHour, win.EndHour, win.MinDuration)
		if len(free) > 0 {
			days[d.Format(dateFormat)] = free
		}
	}
	return days
}

// calendarItem is the wire form of a calendar event in FindItem
// responses, reduced to the busy-scan fields.
type calendarItem struct {
	Subject      string `json:"Subject"`
	Start        string `json:"Start"`
	End          string `json:"End"`
	FreeBusyType string `json:"FreeBusyType"`
	IsCancelled  bool   `json:"IsCancelled"`
}

// calendarItemBusy pages through the calendar folder and collects busy
// periods from plain calendar items.
func (s *Service) calendarItemBusy(ctx context.Context, start, end time.Time) ([]interval.Period, error) {
	folderID, err := s.client.ResolveFolderID(ctx, "calendar")
	if err != nil {
		if errors.Is(err, owa.ErrFolderNotFound) {
			return nil, errors.New("could not find calendar folder")
		}
		return nil, err
	}

	const pageSize = 100
	var busy []interval.Period

	for offset := 0; ; offset += pageSize {
		body := owa.NewFindItemBody(owa.NewFolderID(folderID),
			owa.NewItemShape(owa.ShapeAllProperties),
			owa.NewPageView(offset, pageSize))
		body.SortOrder = []owa.SortOrder{owa.NewSortOrder("Start", "Ascending")}

		var resp owa.FindItemResponse[calendarItem]
		if err := s.client.Do(ctx, "FindItem", owa.NewRequest("FindItem", body), &resp); err != nil {
			return nil, err
		}
		root, ok := resp.Root()
		if !ok || len(root.Items) == 0 {
			break
		}

		for _, item := range root.Items {
			if item.IsCancelled {
				continue
			}
			fbt := item.FreeBusyType
			if fbt == "Free" || fbt == "NoData" {
				continue
			}
			itemStart, err := interval.ParseWallClock(item.Start)
			if err != nil {
				continue
			}
			itemEnd, err := interval.ParseWallClock(item.End)
			if err != nil {
				continue
			}
			if interval.DateOf(itemEnd).Before(interval.DateOf(start)) ||
				interval.DateOf(itemStart).After(interval.DateOf(end)) {
				continue
			}
			busy = append(busy, interval.Period{Start: itemStart, End: itemEnd})
		}

		if root.Last() {
			break
		}
	}

	return busy, nil
}

// Attendee summarizes one mailbox's contribution to a meeting-time
// search. Exactly one of the count pairs is meaningful: merged slot
// counts when the server produced a merged view, the raw event count
// when only the event array came back, or NoData when neither did.
type Attendee struct {
	Email          string
	BusySlots      int
	FreeSlots      int
	CalendarEvents int
	NoData         bool
}

// MeetingTimeResult is the outcome of a cross-mailbox free-slot search.
type MeetingTimeResult struct {
	Start      time.Time
	End        time.Time
	Attendees  []Attendee
	Days       map[string][]interval.Period
	Unresolved []string
}

// FindMeetingTime finds slots where every attendee is free on each
// weekday of the closed range [start, end]. Entries may be email
// addresses or directory names; names resolve through ResolveNames and
// entries that fail to resolve are reported, not fatal. The whole
// range goes into one availability call since the server handles
// multi-day windows natively here.
func (s *Service) FindMeetingTime(ctx context.Context, entries []string, start, end time.Time, win WorkWindow) (*MeetingTimeResult, error) {
	win = win.normalized()

	emails, unresolved, err := s.resolveEntries(ctx, entries)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, fmt.Errorf("could not resolve any names to email addresses: %s", strings.Join(unresolved, ", "))
	}

	views, err := s.queryWindow(ctx, emails, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	windowStart := interval.DateOf(start)
	var allBusy []interval.Period
	attendees := make([]Attendee, 0, len(views))

	for i, view := range views {
		email := fmt.Sprintf("Person %d", i+1)
		if i < len(emails) {
			email = emails[i]
		}
		att := Attendee{Email: email}

		switch {
		case view.MergedFreeBusy != "":
			allBusy = append(allBusy,
				interval.ParseMergedFreeBusy(view.MergedFreeBusy, windowStart, interval.DefaultSlot)...)
			for j := 0; j < len(view.MergedFreeBusy); j++ {
				if view.MergedFreeBusy[j] == interval.Free {
					att.FreeSlots++
				} else {
					att.BusySlots++
				}
			}
		case len(view.Events.Items) > 0:
			att.CalendarEvents = len(view.Events.Items)
			for _, raw := range view.Events.Items {
				evStart, err := interval.ParseWallClock(raw.StartTime)
				if err != nil {
					continue
				}
				evEnd, err := interval.ParseWallClock(raw.EndTime)
				if err != nil {
					continue
				}
				allBusy = append(allBusy, interval.Period{Start: evStart, End: evEnd})
			}
		default:
			att.NoData = true
		}
		attendees = append(attendees, att)
	}

	merged := interval.Merge(allBusy)

	return &MeetingTimeResult{
		Start:      windowStart,
		End:        interval.DateOf(end),
		Attendees:  attendees,
		Days:       slotsByDay(merged, start, end, win),
		Unresolved: unresolved,
	}, nil
}

// resolveEntries splits entries into resolved email addresses and the
// names that could not be resolved. Anything containing '@' passes
// through untouched; the rest take the first directory match.
func (s *Service) resolveEntries(ctx context.Context, entries []string) (emails, unresolved []string, err error) {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "@") {
			emails = append(emails, entry)
			continue
		}
		resolutions, err := s.client.ResolveNames(ctx, entry, false)
		if err != nil {
			return nil, nil, err
		}
		if len(resolutions) > 0 && resolutions[0].Mailbox.EmailAddress != "" {
			emails = append(emails, resolutions[0].Mailbox.EmailAddress)
		} else {
			unresolved = append(unresolved, entry)
		}
	}
	return emails, unresolved, nil
}
