// Package analytics derives meeting statistics and contact rankings
// from calendar data. All counting runs over the availability view so
// recurring meetings are weighted by how often they actually occur.
package analytics

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/avdeev/owa-mcp/internal/availability"
	"github.com/avdeev/owa-mcp/internal/interval"
	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/owa"
)

const dateFormat = "2006-01-02"

// Service wraps the OWA client and availability service with analytics
// operations.
type Service struct {
	client *owa.Client
	avail  *availability.Service
	logger *slog.Logger
}

// NewService creates an analytics Service.
func NewService(client *owa.Client, avail *availability.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		avail:  avail,
		logger: logging.WithService(logger, "analytics"),
	}
}

// PersonStats summarizes one person's meeting load over a period.
type PersonStats struct {
	Name               string
	Email              string
	TotalMeetings      int
	MeetingsPerWorkday float64
	DaysWithMeetings   int
	Workdays           int
}

// StatsResult is the outcome of a MeetingStats query.
type StatsResult struct {
	Start    time.Time
	End      time.Time
	Workdays int
	Stats    []PersonStats
	Failures []availability.ChunkFailure
}

// MeetingStats counts expanded calendar events for each person over
// the half-open range [start, end). People may be names or email
// addresses; unresolvable entries appear in the result with zero
// counts and an empty email.
func (s *Service) MeetingStats(ctx context.Context, people []string, start, end time.Time) (*StatsResult, error) {
	type resolvedPerson struct {
		name  string
		email string
	}

	var resolved []resolvedPerson
	var emails []string
	for _, person := range people {
		person = strings.TrimSpace(person)
		if person == "" {
			continue
		}
		name, email := s.resolvePerson(ctx, person)
		resolved = append(resolved, resolvedPerson{name: name, email: email})
		if email != "" {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		return nil, &ResolveError{Entries: people}
	}

	queried, err := s.avail.Query(ctx, emails, start, end)
	if err != nil {
		return nil, err
	}

	workdays := interval.Workdays(start, end)
	if workdays < 1 {
		workdays = 1
	}

	stats := make([]PersonStats, 0, len(resolved))
	for _, person := range resolved {
		entry := PersonStats{
			Name:     person.name,
			Email:    person.email,
			Workdays: workdays,
		}
		if events, ok := queried.Events[person.email]; ok && person.email != "" {
			entry.TotalMeetings = len(events)
			entry.MeetingsPerWorkday = math.Round(float64(len(events))/float64(workdays)*10) / 10

			seen := make(map[string]struct{})
			for _, ev := range events {
				seen[ev.Date] = struct{}{}
			}
			entry.DaysWithMeetings = len(seen)
		}
		stats = append(stats, entry)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalMeetings > stats[j].TotalMeetings
	})

	return &StatsResult{
		Start:    start,
		End:      end,
		Workdays: workdays,
		Stats:    stats,
		Failures: queried.Failures,
	}, nil
}

// resolvePerson turns a name or address into (display name, email).
// Resolution failures yield the input name and an empty email.
func (s *Service) resolvePerson(ctx context.Context, entry string) (string, string) {
	resolutions, err := s.client.ResolveNames(ctx, entry, true)
	if err != nil {
		s.logger.Warn("name resolution failed",
			logging.Operation("resolve_person"), logging.Err(err))
		return entry, ""
	}
	if len(resolutions) == 0 {
		return entry, ""
	}
	mb := resolutions[0].Mailbox
	name := mb.Name
	if name == "" {
		name = entry
	}
	if mb.EmailAddress == "" {
		return entry, ""
	}
	return name, mb.EmailAddress
}

// ResolveError reports that none of the given entries resolved to an
// email address.
type ResolveError struct {
	Entries []string
}

func (e *ResolveError) Error() string {
	return "could not resolve any names to email addresses: " + strings.Join(e.Entries, ", ")
}
