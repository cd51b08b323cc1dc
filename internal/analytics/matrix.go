package analytics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/avdeev/owa-mcp/internal/availability"
	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/owa"
)

const (
	scanPageSize = 200
	// scanOffsetCeiling stops the calendar scan on pathological
	// mailboxes; beyond this the remaining subjects are stale anyway.
	scanOffsetCeiling = 3000

	getItemBatchSize = 10
)

// Contact is one ranked entry of a connection matrix.
type Contact struct {
	Name     string
	Email    string
	Meetings int
}

// MatrixResult ranks the people the mailbox owner meets with most.
type MatrixResult struct {
	Start          time.Time
	End            time.Time
	TotalMeetings  int
	UniqueContacts int
	Contacts       []Contact
	Failures       []availability.ChunkFailure
}

// scanItem is the subject/id slice of a calendar item in the master
// item scan.
type scanItem struct {
	ItemID  owa.ItemID `json:"ItemId"`
	Subject string     `json:"Subject"`
}

// attendeeEntry wraps a mailbox in attendee and organizer lists.
type attendeeEntry struct {
	Mailbox owa.Mailbox `json:"Mailbox"`
}

// meetingItem is the attendee slice of a calendar item from GetItem.
type meetingItem struct {
	ItemID            owa.ItemID      `json:"ItemId"`
	RequiredAttendees []attendeeEntry `json:"RequiredAttendees"`
	OptionalAttendees []attendeeEntry `json:"OptionalAttendees"`
	Organizer         *attendeeEntry  `json:"Organizer"`
}

type contactKey struct {
	name  string
	email string
}

// ConnectionMatrix builds the weighted who-do-I-meet-with ranking over
// the half-open range [start, end).
//
// Recurring meetings are handled by weighting: each unique subject in
// the expanded availability view counts its occurrences, the master
// calendar item supplies the attendee list, and every attendee earns
// the occurrence count as weight. The mailbox owner and legacy
// Exchange DNs (addresses starting with "/O=") are excluded.
func (s *Service) ConnectionMatrix(ctx context.Context, start, end time.Time, topN int) (*MatrixResult, error) {
	ownEmail := strings.ToLower(s.client.UserEmail())
	if ownEmail == "" {
		return nil, errors.New("user email not available, call the login tool first")
	}

	folderID, err := s.client.ResolveFolderID(ctx, "calendar")
	if err != nil {
		if errors.Is(err, owa.ErrFolderNotFound) {
			return nil, errors.New("could not find calendar folder")
		}
		return nil, err
	}

	queried, err := s.avail.Query(ctx, []string{s.client.UserEmail()}, start, end)
	if err != nil {
		return nil, err
	}
	expanded := queried.Events[s.client.UserEmail()]

	subjectCounts := make(map[string]int)
	for _, ev := range expanded {
		subjectCounts[ev.Subject]++
	}

	subjectToID, err := s.scanMasterItems(ctx, folderID, subjectCounts)
	if err != nil {
		return nil, err
	}

	idToAttendees := s.fetchAttendees(ctx, subjectToID)

	contacts := make(map[contactKey]int)
	for subject, itemID := range subjectToID {
		weight := subjectCounts[subject]
		if weight == 0 {
			weight = 1
		}
		for key := range idToAttendees[itemID] {
			if key.email == ownEmail {
				continue
			}
			contacts[key] += weight
		}
	}

	ranked := make([]Contact, 0, len(contacts))
	for key, count := range contacts {
		ranked = append(ranked, Contact{Name: key.name, Email: key.email, Meetings: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Meetings != ranked[j].Meetings {
			return ranked[i].Meetings > ranked[j].Meetings
		}
		return ranked[i].Email < ranked[j].Email
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	return &MatrixResult{
		Start:          start,
		End:            end,
		TotalMeetings:  len(expanded),
		UniqueContacts: len(contacts),
		Contacts:       ranked,
		Failures:       queried.Failures,
	}, nil
}

// scanMasterItems pages the calendar folder newest-first, mapping each
// wanted subject to its most recent item ID. The scan stops when every
// subject is found, the folder is exhausted, or the offset ceiling is
// reached.
func (s *Service) scanMasterItems(ctx context.Context, folderID string, subjectCounts map[string]int) (map[string]string, error) {
	subjectToID := make(map[string]string)

	for offset := 0; len(subjectToID) < len(subjectCounts); offset += scanPageSize {
		body := owa.NewFindItemBody(owa.NewFolderID(folderID),
			owa.NewItemShape(owa.ShapeDefault),
			owa.NewPageView(offset, scanPageSize))
		body.SortOrder = []owa.SortOrder{owa.NewSortOrder("Start", "Descending")}

		var resp owa.FindItemResponse[scanItem]
		if err := s.client.Do(ctx, "FindItem", owa.NewRequest("FindItem", body), &resp); err != nil {
			return nil, err
		}
		root, ok := resp.Root()
		if !ok || len(root.Items) == 0 {
			break
		}

		for _, item := range root.Items {
			if item.Subject == "" {
				continue
			}
			if _, wanted := subjectCounts[item.Subject]; !wanted {
				continue
			}
			if _, seen := subjectToID[item.Subject]; !seen {
				subjectToID[item.Subject] = item.ItemID.ID
			}
		}

		if root.Last() || offset+scanPageSize > scanOffsetCeiling {
			break
		}
	}

	return subjectToID, nil
}

// fetchAttendees resolves item IDs to attendee sets via GetItem in
// batches. A failed batch is logged and skipped so a single bad item
// cannot sink the whole matrix.
func (s *Service) fetchAttendees(ctx context.Context, subjectToID map[string]string) map[string]map[contactKey]struct{} {
	seen := make(map[string]struct{}, len(subjectToID))
	uniqueIDs := make([]string, 0, len(subjectToID))
	for _, id := range subjectToID {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		uniqueIDs = append(uniqueIDs, id)
	}
	sort.Strings(uniqueIDs)

	idToAttendees := make(map[string]map[contactKey]struct{}, len(uniqueIDs))

	for batchStart := 0; batchStart < len(uniqueIDs); batchStart += getItemBatchSize {
		batch := uniqueIDs[batchStart:min(batchStart+getItemBatchSize, len(uniqueIDs))]

		body := owa.NewGetItemBody(owa.NewItemShape(owa.ShapeAllProperties), batch...)
		var resp owa.GetItemResponse[meetingItem]
		if err := s.client.Do(ctx, "GetItem", owa.NewRequest("GetItem", body), &resp); err != nil {
			s.logger.Warn("attendee fetch failed",
				logging.Operation("connection_matrix"), logging.Err(err))
			continue
		}

		for _, item := range resp.Items() {
			attendees := make(map[contactKey]struct{})
			for _, list := range [][]attendeeEntry{item.RequiredAttendees, item.OptionalAttendees} {
				for _, entry := range list {
					mb := entry.Mailbox
					if mb.Name == "" || mb.EmailAddress == "" || strings.HasPrefix(mb.EmailAddress, "/O=") {
						continue
					}
					attendees[contactKey{name: mb.Name, email: strings.ToLower(mb.EmailAddress)}] = struct{}{}
				}
			}
			if org := item.Organizer; org != nil {
				mb := org.Mailbox
				if mb.EmailAddress != "" && !strings.HasPrefix(mb.EmailAddress, "/O=") {
					attendees[contactKey{name: mb.Name, email: strings.ToLower(mb.EmailAddress)}] = struct{}{}
				}
			}
			idToAttendees[item.ItemID.ID] = attendees
		}
	}

	return idToAttendees
}
