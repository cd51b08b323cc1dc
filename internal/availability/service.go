// Package availability queries the GetUserAvailability API and turns
// the results into free-slot and meeting-time answers. The availability
// view expands recurring meetings into individual occurrences, which
// makes it the authoritative source for "is this person busy" questions
// that a plain calendar item scan would get wrong.
package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avdeev/owa-mcp/internal/interval"
	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/owa"
)

const (
	// mailboxBatchSize bounds how many mailboxes go into a single
	// GetUserAvailability call; the server throttles larger arrays.
	mailboxBatchSize = 5
	// chunkDays bounds the time window per call; the merged free/busy
	// view degrades beyond roughly two weeks.
	chunkDays = 14

	mergedSlotMinutes = 30
	viewDetailedMerged = "DetailedMerged"

	dateFormat = "2006-01-02"
)

// Event is one expanded busy occurrence of a mailbox.
type Event struct {
	Subject  string
	BusyType string
	Date     string // YYYY-MM-DD of the occurrence start
	// Start and End are wall-clock times; End is zero when the server
	// omitted the field.
	Start time.Time
	End   time.Time
}

// ChunkFailure records one failed batch/chunk request. Failures are
// reported alongside partial results instead of aborting the whole
// aggregation.
type ChunkFailure struct {
	Emails []string
	Start  time.Time
	End    time.Time
	Err    error
}

// QueryResult holds per-mailbox expanded events plus any chunk failures.
type QueryResult struct {
	Events   map[string][]Event
	Failures []ChunkFailure
}

// Service wraps an OWA client with availability operations.
type Service struct {
	client *owa.Client
	logger *slog.Logger
}

// NewService creates an availability Service.
func NewService(client *owa.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		logger: logging.WithService(logger, "availability"),
	}
}

// Query fetches expanded busy events for emails over the half-open
// date range [start, end). Mailboxes are queried in batches and the
// range in day chunks, sequentially; a failed chunk is recorded in the
// result and the remaining chunks still run. Free slots are dropped,
// everything else (including NoData) is kept.
func (s *Service) Query(ctx context.Context, emails []string, start, end time.Time) (*QueryResult, error) {
	result := &QueryResult{Events: make(map[string][]Event, len(emails))}
	for _, email := range emails {
		result.Events[email] = nil
	}

	for batchStart := 0; batchStart < len(emails); batchStart += mailboxBatchSize {
		batch := emails[batchStart:min(batchStart+mailboxBatchSize, len(emails))]

		for current := start; current.Before(end); {
			chunkEnd := current.AddDate(0, 0, chunkDays)
			if chunkEnd.After(end) {
				chunkEnd = end
			}

			views, err := s.queryWindow(ctx, batch, current, chunkEnd)
			if err != nil {
				s.logger.Warn("availability chunk failed",
					slog.String("window_start", current.Format(dateFormat)),
					slog.String("window_end", chunkEnd.Format(dateFormat)),
					logging.Err(err))
				result.Failures = append(result.Failures, ChunkFailure{
					Emails: batch,
					Start:  current,
					End:    chunkEnd,
					Err:    err,
				})
				current = chunkEnd
				continue
			}

			for i, view := range views {
				if i >= len(batch) {
					break
				}
				email := batch[i]
				for _, raw := range view.Events.Items {
					if raw.StartTime == "" || raw.BusyType == "Free" {
						continue
					}
					ev := Event{
						Subject:  raw.Subject(),
						BusyType: raw.BusyType,
					}
					if t, err := interval.ParseWallClock(raw.StartTime); err == nil {
						ev.Start = t
						ev.Date = t.Format(dateFormat)
					} else if len(raw.StartTime) >= len(dateFormat) {
						ev.Date = raw.StartTime[:len(dateFormat)]
					}
					if t, err := interval.ParseWallClock(raw.EndTime); err == nil {
						ev.End = t
					}
					result.Events[email] = append(result.Events[email], ev)
				}
			}

			current = chunkEnd
		}
	}

	return result, nil
}

// queryWindow runs one GetUserAvailability call for a mailbox batch
// over [windowStart, windowEnd) and returns one view per mailbox in
// request order.
func (s *Service) queryWindow(ctx context.Context, emails []string, windowStart, windowEnd time.Time) ([]FreeBusyView, error) {
	boxes := make([]mailboxData, 0, len(emails))
	for _, email := range emails {
		boxes = append(boxes, newMailboxData(email))
	}

	payload := owa.NewRequest("GetUserAvailability", availabilityBody{
		Type:             "GetUserAvailabilityRequest:#Exchange",
		MailboxDataArray: boxes,
		FreeBusyViewOptions: viewOptions{
			Type: "FreeBusyViewOptions:#Exchange",
			TimeWindow: timeWindow{
				Type:      "Duration:#Exchange",
				StartTime: windowStart.Format(dateFormat) + "T00:00:00",
				EndTime:   windowEnd.Format(dateFormat) + "T00:00:00",
			},
			MergedFreeBusyIntervalInMinutes: mergedSlotMinutes,
			RequestedView:                   viewDetailedMerged,
		},
	}).WithTimeZone(s.client.Timezone())

	var resp availabilityResponse
	if err := s.client.Do(ctx, "GetUserAvailability", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Body.ErrorCode) > 0 && string(resp.Body.ErrorCode) != "0" {
		msg := resp.Body.FaultMessage
		if msg == "" {
			msg = "unknown availability error"
		}
		return nil, fmt.Errorf("availability query failed: %s", msg)
	}

	views := make([]FreeBusyView, 0, len(resp.Body.FreeBusyResponseArray))
	for _, fb := range resp.Body.FreeBusyResponseArray {
		views = append(views, fb.FreeBusyView)
	}
	return views, nil
}

// OwnOccurrences fetches the caller's own expanded events over the
// closed date range [start, end], including event details. Free and
// NoData slots are skipped, and occurrences without parseable times
// are dropped.
func (s *Service) OwnOccurrences(ctx context.Context, email string, start, end time.Time) ([]Event, error) {
	if email == "" {
		return nil, errors.New("user email not configured")
	}

	views, err := s.queryWindow(ctx, []string{email}, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, view := range views {
		for _, raw := range view.Events.Items {
			if raw.BusyType == "Free" || raw.BusyType == "NoData" {
				continue
			}
			startTime, err := interval.ParseWallClock(raw.StartTime)
			if err != nil {
				continue
			}
			endTime, err := interval.ParseWallClock(raw.EndTime)
			if err != nil {
				continue
			}
			events = append(events, Event{
				Subject:  raw.Subject(),
				BusyType: raw.BusyType,
				Date:     startTime.Format(dateFormat),
				Start:    startTime,
				End:      endTime,
			})
		}
	}
	return events, nil
}
