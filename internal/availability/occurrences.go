package availability

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/avdeev/owa-mcp/internal/logging"
)

// Occurrence is one expanded calendar entry, recurring series included
// once per instance. Times are the server's wall-clock strings.
type Occurrence struct {
	Subject     string `json:"subject"`
	Start       string `json:"start"`
	End         string `json:"end"`
	BusyType    string `json:"busy_type"`
	Location    string `json:"location"`
	IsMeeting   bool   `json:"is_meeting"`
	IsRecurring bool   `json:"is_recurring"`
}

// Occurrences fetches every expanded occurrence of the caller's own
// calendar over the half-open range [start, end), in day chunks. A
// failed chunk is logged and skipped; the result is sorted by start
// time and keeps free slots.
func (s *Service) Occurrences(ctx context.Context, email string, start, end time.Time) ([]Occurrence, error) {
	if email == "" {
		return nil, errors.New("user email not configured")
	}

	var out []Occurrence
	for current := start; current.Before(end); {
		chunkEnd := current.AddDate(0, 0, chunkDays)
		if chunkEnd.After(end) {
			chunkEnd = end
		}

		views, err := s.queryWindow(ctx, []string{email}, current, chunkEnd)
		if err != nil {
			s.logger.Warn("occurrence chunk failed",
				slog.String("window_start", current.Format(dateFormat)),
				slog.String("window_end", chunkEnd.Format(dateFormat)),
				logging.Err(err))
			current = chunkEnd
			continue
		}

		for _, view := range views {
			for _, raw := range view.Events.Items {
				occ := Occurrence{
					Subject:  raw.Subject(),
					Start:    raw.StartTime,
					End:      raw.EndTime,
					BusyType: raw.BusyType,
				}
				if occ.Subject == "" {
					occ.Subject = "(No subject)"
				}
				if raw.Details != nil {
					occ.Location = raw.Details.Location
					occ.IsMeeting = raw.Details.IsMeeting
					occ.IsRecurring = raw.Details.IsRecurring
				}
				out = append(out, occ)
			}
		}

		current = chunkEnd
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}
