package mail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/owa"
)

const (
	defaultFolder   = "Inbox"
	defaultLimit    = 10
	limitCap        = 50
	refsLimitCap    = 500
	fallbackName    = "attachment"
	defaultBodyType = "Text"
)

// Summary is a single message as returned by folder listings.
type Summary struct {
	Subject           string   `json:"subject"`
	From              string   `json:"from"`
	FromName          string   `json:"from_name"`
	Date              string   `json:"date"`
	IsRead            bool     `json:"is_read"`
	HasAttachments    bool     `json:"has_attachments"`
	ItemID            string   `json:"item_id"`
	Size              int      `json:"size"`
	IsMeeting         bool     `json:"is_meeting"`
	Type              string   `json:"type"`
	Preview           string   `json:"preview"`
	HasLinks          bool     `json:"has_links"`
	To                []string `json:"to"`
	Cc                []string `json:"cc"`
	Location          string   `json:"location,omitempty"`
	Start             string   `json:"start,omitempty"`
	End               string   `json:"end,omitempty"`
	Body              string   `json:"body,omitempty"`
	RequiredAttendees []string `json:"required_attendees,omitempty"`
	OptionalAttendees []string `json:"optional_attendees,omitempty"`
}

// Detail is a fully hydrated message with body, recipients, and
// attachment metadata.
type Detail struct {
	ItemID            string       `json:"item_id"`
	Subject           string       `json:"subject"`
	From              string       `json:"from"`
	FromName          string       `json:"from_name"`
	Date              string       `json:"date"`
	To                []string     `json:"to"`
	Cc                []string     `json:"cc"`
	Bcc               []string     `json:"bcc"`
	Body              string       `json:"body"`
	BodyType          string       `json:"body_type"`
	IsRead            bool         `json:"is_read"`
	HasAttachments    bool         `json:"has_attachments"`
	HasLinks          bool         `json:"has_links"`
	Importance        string       `json:"importance"`
	Attachments       []Attachment `json:"attachments"`
	Location          string       `json:"location,omitempty"`
	Start             string       `json:"start,omitempty"`
	End               string       `json:"end,omitempty"`
	RequiredAttendees []string     `json:"required_attendees,omitempty"`
	OptionalAttendees []string     `json:"optional_attendees,omitempty"`
}

// Attachment describes one attachment on a message.
type Attachment struct {
	Name         string `json:"name"`
	Size         int    `json:"size"`
	ContentType  string `json:"content_type"`
	AttachmentID string `json:"attachment_id"`
	IsInline     bool   `json:"is_inline"`
}

// Ref is the compact listing entry used for bulk operations.
type Ref struct {
	ItemID  string `json:"item_id"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
}

// ListOptions control a folder listing.
type ListOptions struct {
	Folder      string
	Limit       int
	Offset      int
	IncludeBody bool
	UnreadOnly  bool
}

// Service reads and writes mailbox messages.
type Service struct {
	client *owa.Client
	logger *slog.Logger
}

// NewService builds a mail service on top of an OWA client.
func NewService(client *owa.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		logger: logging.WithService(logger, "mail"),
	}
}

// List returns message summaries from a folder, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Summary, error) {
	opts = opts.normalized(limitCap)

	items, err := s.findItems(ctx, opts, owa.NewItemShape(owa.ShapeAllProperties))
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(items))
	for _, item := range items {
		sum := summarize(item)
		if opts.IncludeBody && sum.ItemID != "" {
			detail, err := s.Get(ctx, sum.ItemID)
			if err != nil {
				return nil, fmt.Errorf("fetching body for %q: %w", sum.Subject, err)
			}
			sum.To = detail.To
			sum.Cc = detail.Cc
			sum.Body = detail.Body
			sum.HasLinks = detail.HasLinks
			if sum.IsMeeting {
				sum.Location = detail.Location
				if detail.Start != "" {
					sum.Start = detail.Start
				}
				if detail.End != "" {
					sum.End = detail.End
				}
				sum.RequiredAttendees = detail.RequiredAttendees
				sum.OptionalAttendees = detail.OptionalAttendees
			}
		}
		summaries = append(summaries, sum)
	}

	s.logger.Debug("listed messages",
		slog.String("folder", opts.Folder),
		slog.Int("count", len(summaries)))
	return summaries, nil
}

// ListRefs returns compact item references from a folder. The limit
// cap is higher than List since no item bodies travel with the result.
func (s *Service) ListRefs(ctx context.Context, opts ListOptions) ([]Ref, error) {
	opts = opts.normalized(refsLimitCap)

	shape := owa.NewItemShape(owa.ShapeIDOnly, "DateTimeReceived", "Subject")
	items, err := s.findItems(ctx, opts, shape)
	if err != nil {
		return nil, err
	}

	refs := make([]Ref, 0, len(items))
	for _, item := range items {
		refs = append(refs, Ref{
			ItemID:  item.ItemID.ID,
			Date:    item.DateTimeReceived,
			Subject: item.Subject,
		})
	}
	return refs, nil
}

func (o ListOptions) normalized(ceiling int) ListOptions {
	if o.Folder == "" {
		o.Folder = defaultFolder
	}
	if o.Limit <= 0 {
		o.Limit = defaultLimit
	}
	if o.Limit > ceiling {
		o.Limit = ceiling
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func (s *Service) findItems(ctx context.Context, opts ListOptions, shape owa.ResponseShape) ([]wireItem, error) {
	folderID, err := s.client.ResolveFolderID(ctx, opts.Folder)
	if err != nil {
		return nil, fmt.Errorf("folder %q: %w", opts.Folder, err)
	}

	body := owa.NewFindItemBody(
		owa.NewFolderID(folderID),
		shape,
		owa.NewPageView(opts.Offset, opts.Limit),
	)
	body.SortOrder = []owa.SortOrder{owa.NewSortOrder("DateTimeReceived", "Descending")}
	if opts.UnreadOnly {
		body.Restriction = unreadRestriction()
	}

	var resp owa.FindItemResponse[wireItem]
	if err := s.client.Do(ctx, "FindItem", owa.NewRequest("FindItem", body), &resp); err != nil {
		return nil, err
	}
	root, ok := resp.Root()
	if !ok {
		return nil, nil
	}
	return root.Items, nil
}

func isMeetingType(itemType string) bool {
	for _, t := range []string{"MeetingRequest", "MeetingResponse", "MeetingCancellation"} {
		if strings.Contains(itemType, t) {
			return true
		}
	}
	return false
}

// senderOf resolves the visible sender, falling back through the
// alternate sender fields meeting messages use.
func senderOf(item wireItem, wraps ...*recipientWrap) owa.Mailbox {
	for _, w := range wraps {
		if w != nil && (w.Mailbox.EmailAddress != "" || w.Mailbox.Name != "") {
			return w.Mailbox
		}
	}
	return owa.Mailbox{}
}

func splitDisplay(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func formatMailbox(mb owa.Mailbox) string {
	switch {
	case mb.Name != "" && mb.EmailAddress != "":
		return fmt.Sprintf("%s <%s>", mb.Name, mb.EmailAddress)
	default:
		return mb.EmailAddress
	}
}

func formatMailboxes(boxes []owa.Mailbox) []string {
	out := []string{}
	for _, mb := range boxes {
		if v := formatMailbox(mb); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func formatAttendees(wraps []recipientWrap) []string {
	boxes := make([]owa.Mailbox, 0, len(wraps))
	for _, w := range wraps {
		boxes = append(boxes, w.Mailbox)
	}
	return formatMailboxes(boxes)
}

func summarize(item wireItem) Summary {
	meeting := isMeetingType(item.Type)
	from := senderOf(item, item.From, item.Organizer, item.Sender)

	sum := Summary{
		Subject:        item.Subject,
		From:           from.EmailAddress,
		FromName:       from.Name,
		Date:           firstNonEmpty(item.DateTimeSent, item.DateTimeReceived, item.DateTimeCreated),
		IsRead:         item.IsRead,
		HasAttachments: item.HasAttachments,
		ItemID:         item.ItemID.ID,
		Size:           item.Size,
		IsMeeting:      meeting,
		Type:           "Email",
		Preview:        item.Preview,
		To:             splitDisplay(item.DisplayTo),
		Cc:             splitDisplay(item.DisplayCc),
	}
	if sum.Subject == "" {
		sum.Subject = "(No subject)"
	}
	if meeting {
		sum.Type = "Meeting"
		sum.Location = item.Location
		sum.Start = firstNonEmpty(item.Start, item.StartWallClock, item.ReminderDueBy)
		sum.End = firstNonEmpty(item.End, item.EndWallClock)
	}
	return sum
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Get fetches a single message with its full body and attachment list.
// HTML bodies are converted to plain text.
func (s *Service) Get(ctx context.Context, itemID string) (*Detail, error) {
	shape := shapeWithBodyType{
		ResponseShape: owa.NewItemShape(owa.ShapeAllProperties),
		BodyType:      "HTML",
	}
	req := owa.NewRequest("GetItem", newGetItemBody(shape, owa.NewItemID(itemID))).
		WithServerVersion(owa.Version2017)

	var resp owa.GetItemResponse[wireItem]
	if err := s.client.Do(ctx, "GetItem", req, &resp); err != nil {
		return nil, err
	}

	detail := &Detail{
		ItemID:      itemID,
		BodyType:    defaultBodyType,
		Importance:  "Normal",
		To:          []string{},
		Cc:          []string{},
		Bcc:         []string{},
		Attachments: []Attachment{},
	}
	items := resp.Items()
	if len(items) == 0 {
		return detail, nil
	}
	item := items[0]

	detail.Subject = item.Subject
	if detail.Subject == "" {
		detail.Subject = "(No subject)"
	}

	from := senderOf(item, item.From, item.Sender)
	detail.From = from.EmailAddress
	detail.FromName = from.Name
	detail.Date = firstNonEmpty(item.DateTimeSent, item.DateTimeReceived, item.DateTimeCreated)
	detail.IsRead = item.IsRead
	detail.HasAttachments = item.HasAttachments
	if item.Importance != "" {
		detail.Importance = item.Importance
	}

	if item.Body != nil {
		detail.BodyType = item.Body.BodyType
		if item.Body.BodyType == "HTML" {
			detail.HasLinks = len(ExtractLinks(item.Body.Value)) > 0
			detail.Body = HTMLToText(item.Body.Value)
		} else {
			detail.Body = item.Body.Value
		}
	}

	detail.To = formatMailboxes(item.ToRecipients)
	detail.Cc = formatMailboxes(item.CcRecipients)
	detail.Bcc = formatMailboxes(item.BccRecipients)

	for _, att := range item.Attachments {
		detail.Attachments = append(detail.Attachments, Attachment{
			Name:         att.Name,
			Size:         att.Size,
			ContentType:  att.ContentType,
			AttachmentID: att.AttachmentID.ID,
			IsInline:     att.IsInline,
		})
	}

	if isMeetingType(item.Type) || strings.Contains(item.Type, "CalendarItem") {
		detail.Location = item.Location
		if detail.Location == "" && item.EnhancedLocation != nil {
			detail.Location = item.EnhancedLocation.DisplayName
		}
		detail.Start = item.Start
		detail.End = item.End
		detail.RequiredAttendees = formatAttendees(item.RequiredAttendees)
		detail.OptionalAttendees = formatAttendees(item.OptionalAttendees)
	}

	return detail, nil
}

// lookupChangeKey fetches the current ChangeKey for an item. Write
// operations that reference an existing item need it.
func (s *Service) lookupChangeKey(ctx context.Context, itemID string) (string, error) {
	req := owa.NewRequest("GetItem", owa.NewGetItemBody(owa.NewItemShape(owa.ShapeIDOnly), itemID))
	var resp owa.GetItemResponse[wireItem]
	if err := s.client.Do(ctx, "GetItem", req, &resp); err != nil {
		return "", err
	}
	for _, item := range resp.Items() {
		if item.ItemID.ChangeKey != "" {
			return item.ItemID.ChangeKey, nil
		}
	}
	return "", nil
}

func (s *Service) requireChangeKey(ctx context.Context, itemID string) (string, error) {
	key, err := s.lookupChangeKey(ctx, itemID)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("could not resolve ChangeKey for item")
	}
	return key, nil
}

func buildRecipients(addrs []string) []recipient {
	out := make([]recipient, 0, len(addrs))
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, recipient{Name: addr, EmailAddress: addr, RoutingType: "SMTP"})
	}
	return out
}

// SendOptions describe an outgoing message.
type SendOptions struct {
	To         []string
	Cc         []string
	Bcc        []string
	Subject    string
	Body       string
	Importance string
	HTML       bool
}

// Send composes and sends a new message, saving a copy to Sent Items.
func (s *Service) Send(ctx context.Context, opts SendOptions) error {
	to := buildRecipients(opts.To)
	if len(to) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}

	bodyType := defaultBodyType
	if opts.HTML {
		bodyType = "HTML"
	}
	importance := opts.Importance
	if importance == "" {
		importance = "Normal"
	}

	msg := outgoingMessage{
		Type:          "Message:#Exchange",
		Subject:       opts.Subject,
		Body:          newBodyContent(bodyType, opts.Body),
		Importance:    importance,
		ToRecipients:  to,
		CcRecipients:  buildRecipients(opts.Cc),
		BccRecipients: buildRecipients(opts.Bcc),
	}

	return s.createItem(ctx, msg)
}

// Reply sends a reply to an existing message. With replyAll set the
// reply goes to every original recipient.
func (s *Service) Reply(ctx context.Context, itemID, body string, replyAll bool) error {
	changeKey, err := s.requireChangeKey(ctx, itemID)
	if err != nil {
		return err
	}

	itemType := "ReplyToItem:#Exchange"
	if replyAll {
		itemType = "ReplyAllToItem:#Exchange"
	}
	item := responseItem{
		Type:            itemType,
		ReferenceItemID: owa.ItemID{Type: "ItemId:#Exchange", ID: itemID, ChangeKey: changeKey},
		NewBodyContent:  newBodyContent(defaultBodyType, body),
	}
	return s.createItem(ctx, item)
}

// Forward forwards a message, optionally with a note above the
// forwarded content.
func (s *Service) Forward(ctx context.Context, itemID string, to []string, body string) error {
	recipients := buildRecipients(to)
	if len(recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}

	changeKey, err := s.requireChangeKey(ctx, itemID)
	if err != nil {
		return err
	}

	item := responseItem{
		Type:            "ForwardItem:#Exchange",
		ReferenceItemID: owa.ItemID{Type: "ItemId:#Exchange", ID: itemID, ChangeKey: changeKey},
		ToRecipients:    recipients,
	}
	if body != "" {
		item.NewBodyContent = newBodyContent(defaultBodyType, body)
	}
	return s.createItem(ctx, item)
}

func (s *Service) createItem(ctx context.Context, item any) error {
	body := createItemBody{
		Type:               "CreateItemRequest:#Exchange",
		Items:              []any{item},
		MessageDisposition: "SendAndSaveCopy",
	}
	req := owa.NewRequest("CreateItem", body).WithServerVersion(owa.Version2017)

	var resp owa.StatusResponse
	if err := s.client.Do(ctx, "CreateItem", req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

type readFlag struct {
	Type   string `json:"__type"`
	IsRead bool   `json:"IsRead"`
}

// MarkRead sets the read flag on the given items.
func (s *Service) MarkRead(ctx context.Context, itemIDs []string, isRead bool) error {
	changes := make([]itemChange, 0, len(itemIDs))
	for _, id := range itemIDs {
		changeKey, err := s.lookupChangeKey(ctx, id)
		if err != nil {
			return err
		}
		changes = append(changes, itemChange{
			Type:   "ItemChange:#Exchange",
			ItemID: owa.ItemID{Type: "ItemId:#Exchange", ID: id, ChangeKey: changeKey},
			Updates: []setItemField{{
				Type: "SetItemField:#Exchange",
				Path: owa.NewPropertyURI("IsRead"),
				Item: readFlag{Type: "Message:#Exchange", IsRead: isRead},
			}},
		})
	}

	body := updateItemBody{
		Type:               "UpdateItemRequest:#Exchange",
		ItemChanges:        changes,
		ConflictResolution: "AutoResolve",
		MessageDisposition: "SaveOnly",
	}
	req := owa.NewRequest("UpdateItem", body).WithServerVersion(owa.Version2017)

	var resp owa.StatusResponse
	if err := s.client.Do(ctx, "UpdateItem", req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// Move moves items into the named folder.
func (s *Service) Move(ctx context.Context, itemIDs []string, targetFolder string) error {
	folderID, err := s.client.ResolveFolderID(ctx, targetFolder)
	if err != nil {
		return fmt.Errorf("folder %q: %w", targetFolder, err)
	}

	ids := make([]owa.ItemID, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, owa.NewItemID(id))
	}
	body := moveItemBody{
		Type:    "MoveItemRequest:#Exchange",
		ItemIDs: ids,
		ToFolderID: targetFolderID{
			Type:         "TargetFolderId:#Exchange",
			BaseFolderID: owa.NewFolderID(folderID),
		},
	}
	req := owa.NewRequest("MoveItem", body).WithServerVersion(owa.Version2017)

	var resp owa.StatusResponse
	if err := s.client.Do(ctx, "MoveItem", req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// Delete removes items. Permanent deletion bypasses Deleted Items.
func (s *Service) Delete(ctx context.Context, itemIDs []string, permanent bool) error {
	deleteType := "MoveToDeletedItems"
	if permanent {
		deleteType = "HardDelete"
	}
	ids := make([]owa.ItemID, 0, len(itemIDs))
	for _, id := range itemIDs {
		ids = append(ids, owa.NewItemID(id))
	}
	body := deleteItemBody{
		Type:       "DeleteItemRequest:#Exchange",
		ItemIDs:    ids,
		DeleteType: deleteType,
	}
	req := owa.NewRequest("DeleteItem", body).WithServerVersion(owa.Version2017)

	var resp owa.StatusResponse
	if err := s.client.Do(ctx, "DeleteItem", req, &resp); err != nil {
		return err
	}
	return resp.Err()
}

// DownloadedFile records one attachment saved to disk.
type DownloadedFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
}

// DownloadFailure records an attachment that could not be saved.
type DownloadFailure struct {
	Name string `json:"name"`
	Err  string `json:"error"`
}

// DownloadResult is the outcome of downloading all attachments of a
// message. Per-file failures do not abort the remaining files.
type DownloadResult struct {
	Downloaded []DownloadedFile  `json:"downloaded"`
	Failures   []DownloadFailure `json:"errors,omitempty"`
}

// DownloadAttachments saves every non-inline file attachment of a
// message into dir, renaming on filename collisions.
func (s *Service) DownloadAttachments(ctx context.Context, itemID, dir string) (*DownloadResult, error) {
	detail, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}

	var files []Attachment
	for _, att := range detail.Attachments {
		if att.AttachmentID != "" && !att.IsInline {
			files = append(files, att)
		}
	}
	result := &DownloadResult{Downloaded: []DownloadedFile{}}
	if len(files) == 0 {
		return result, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	usedNames := map[string]bool{}
	for _, att := range files {
		saved, err := s.downloadOne(ctx, att, dir, usedNames)
		if err != nil {
			s.logger.Warn("attachment download failed",
				slog.String("name", att.Name),
				logging.Err(err))
			result.Failures = append(result.Failures, DownloadFailure{
				Name: firstNonEmpty(att.Name, "unknown"),
				Err:  err.Error(),
			})
			continue
		}
		result.Downloaded = append(result.Downloaded, saved)
	}
	return result, nil
}

func (s *Service) downloadOne(ctx context.Context, att Attachment, dir string, usedNames map[string]bool) (DownloadedFile, error) {
	file, err := s.client.DownloadAttachment(ctx, att.AttachmentID)
	if err != nil {
		return DownloadedFile{}, err
	}

	filename := filepath.Base(file.Filename)
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		filename = firstNonEmpty(att.Name, fallbackName)
	}
	filename = uniqueName(filename, usedNames)
	usedNames[strings.ToLower(filename)] = true

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, file.Content, 0o644); err != nil {
		return DownloadedFile{}, err
	}

	return DownloadedFile{
		Name:        filename,
		Path:        path,
		Size:        len(file.Content),
		ContentType: file.ContentType,
	}, nil
}

// uniqueName appends a counter before the extension until the name no
// longer collides, comparing case-insensitively.
func uniqueName(filename string, used map[string]bool) string {
	namePart := filename
	extPart := ""
	if i := strings.LastIndex(filename, "."); i > 0 {
		namePart = filename[:i]
		extPart = filename[i+1:]
	}

	for counter := 1; used[strings.ToLower(filename)]; counter++ {
		if extPart != "" {
			filename = fmt.Sprintf("%s_%d.%s", namePart, counter, extPart)
		} else {
			filename = fmt.Sprintf("%s_%d", namePart, counter)
		}
	}
	return filename
}

// LinkResult holds the hyperlinks extracted from a message body.
type LinkResult struct {
	ItemID  string `json:"item_id"`
	Subject string `json:"subject"`
	Links   []Link `json:"links"`
}

// Links fetches the HTML body of a message and extracts its
// hyperlinks.
func (s *Service) Links(ctx context.Context, itemID string) (*LinkResult, error) {
	shape := shapeWithBodyType{
		ResponseShape: owa.NewItemShape(owa.ShapeIDOnly, "Subject", "Body"),
		BodyType:      "HTML",
	}
	req := owa.NewRequest("GetItem", newGetItemBody(shape, owa.NewItemID(itemID))).
		WithServerVersion(owa.Version2017)

	var resp owa.GetItemResponse[wireItem]
	if err := s.client.Do(ctx, "GetItem", req, &resp); err != nil {
		return nil, err
	}

	result := &LinkResult{ItemID: itemID, Links: []Link{}}
	for _, item := range resp.Items() {
		result.Subject = item.Subject
		if item.Body != nil {
			result.Links = ExtractLinks(item.Body.Value)
		}
		break
	}
	return result, nil
}
