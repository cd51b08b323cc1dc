package owa

// Request envelopes for the OWA JSON API. Every request is a __type
// tagged wrapper around an operation-specific body; the tag suffix is
// always ":#Exchange". Operation bodies live in the packages that own
// the operation, the shared pieces (ids, shapes, paging, sorting) live
// here.

// Exchange server versions accepted in the request header. Most
// operations use Exchange2013; the calendar meeting CRUD actions
// require the dated API version.
const (
	VersionExchange2013 = "Exchange2013"
	Version2017         = "V2017_08_18"
)

// Base shapes for item and folder response shapes.
const (
	ShapeIDOnly        = "IdOnly"
	ShapeDefault       = "Default"
	ShapeAllProperties = "AllProperties"
)

// Request is the outer envelope for an OWA JSON API call.
type Request struct {
	Type   string         `json:"__type"`
	Header RequestHeaders `json:"Header"`
	Body   any            `json:"Body"`
}

// RequestHeaders is the Header block of a request envelope.
type RequestHeaders struct {
	Type                 string           `json:"__type"`
	RequestServerVersion string           `json:"RequestServerVersion"`
	TimeZoneContext      *TimeZoneContext `json:"TimeZoneContext,omitempty"`
}

// TimeZoneContext pins server-side date rendering to a named timezone.
type TimeZoneContext struct {
	Type               string             `json:"__type"`
	TimeZoneDefinition TimeZoneDefinition `json:"TimeZoneDefinition"`
}

// TimeZoneDefinition names an Exchange timezone definition, e.g.
// "Russian Standard Time".
type TimeZoneDefinition struct {
	Type string `json:"__type"`
	ID   string `json:"Id"`
}

// NewRequest builds a request envelope for the named operation with the
// default server version and no timezone context. The operation name is
// the bare action, e.g. "FindItem".
func NewRequest(op string, body any) Request {
	return Request{
		Type: op + "JsonRequest:#Exchange",
		Header: RequestHeaders{
			Type:                 "JsonRequestHeaders:#Exchange",
			RequestServerVersion: VersionExchange2013,
		},
		Body: body,
	}
}

// WithTimeZone returns a copy of the request carrying a TimeZoneContext
// for the given timezone definition ID.
func (r Request) WithTimeZone(id string) Request {
	r.Header.TimeZoneContext = &TimeZoneContext{
		Type: "TimeZoneContext:#Exchange",
		TimeZoneDefinition: TimeZoneDefinition{
			Type: "TimeZoneDefinitionType:#Exchange",
			ID:   id,
		},
	}
	return r
}

// WithServerVersion returns a copy of the request using the given
// RequestServerVersion.
func (r Request) WithServerVersion(version string) Request {
	r.Header.RequestServerVersion = version
	return r
}

// ItemID identifies an item (message, event) on the wire.
type ItemID struct {
	Type      string `json:"__type,omitempty"`
	ID        string `json:"Id"`
	ChangeKey string `json:"ChangeKey,omitempty"`
}

// NewItemID builds a tagged ItemId reference for request payloads.
func NewItemID(id string) ItemID {
	return ItemID{Type: "ItemId:#Exchange", ID: id}
}

// FolderID identifies a concrete folder by its opaque ID.
type FolderID struct {
	Type      string `json:"__type,omitempty"`
	ID        string `json:"Id"`
	ChangeKey string `json:"ChangeKey,omitempty"`
}

// NewFolderID builds a tagged FolderId reference for request payloads.
func NewFolderID(id string) FolderID {
	return FolderID{Type: "FolderId:#Exchange", ID: id}
}

// DistinguishedFolderID references a well-known folder by name
// ("inbox", "sentitems", "calendar", ...).
type DistinguishedFolderID struct {
	Type string `json:"__type"`
	ID   string `json:"Id"`
}

// NewDistinguishedFolderID builds a tagged DistinguishedFolderId reference.
func NewDistinguishedFolderID(id string) DistinguishedFolderID {
	return DistinguishedFolderID{Type: "DistinguishedFolderId:#Exchange", ID: id}
}

// ResponseShape selects which properties the server returns for items.
type ResponseShape struct {
	Type                 string        `json:"__type"`
	BaseShape            string        `json:"BaseShape"`
	AdditionalProperties []PropertyURI `json:"AdditionalProperties,omitempty"`
}

// NewItemShape builds an ItemResponseShape with optional extra fields.
func NewItemShape(base string, fields ...string) ResponseShape {
	return newShape("ItemResponseShape:#Exchange", base, fields)
}

// NewFolderShape builds a FolderResponseShape with optional extra fields.
func NewFolderShape(base string, fields ...string) ResponseShape {
	return newShape("FolderResponseShape:#Exchange", base, fields)
}

func newShape(typ, base string, fields []string) ResponseShape {
	shape := ResponseShape{Type: typ, BaseShape: base}
	for _, f := range fields {
		shape.AdditionalProperties = append(shape.AdditionalProperties, NewPropertyURI(f))
	}
	return shape
}

// PropertyURI names a single item property, e.g. "item:Subject".
type PropertyURI struct {
	Type     string `json:"__type"`
	FieldURI string `json:"FieldURI"`
}

// NewPropertyURI builds a tagged PropertyUri reference.
func NewPropertyURI(field string) PropertyURI {
	return PropertyURI{Type: "PropertyUri:#Exchange", FieldURI: field}
}

// IndexedPageView is the paging block for Find* operations.
type IndexedPageView struct {
	Type               string `json:"__type"`
	BasePoint          string `json:"BasePoint"`
	Offset             int    `json:"Offset"`
	MaxEntriesReturned int    `json:"MaxEntriesReturned"`
}

// NewPageView builds an IndexedPageView starting at offset from the
// beginning of the result set.
func NewPageView(offset, max int) IndexedPageView {
	return IndexedPageView{
		Type:               "IndexedPageView:#Exchange",
		BasePoint:          "Beginning",
		Offset:             offset,
		MaxEntriesReturned: max,
	}
}

// SortOrder describes a single sort field for Find* operations.
type SortOrder struct {
	Type  string      `json:"__type"`
	Order string      `json:"Order"`
	Path  PropertyURI `json:"Path"`
}

// NewSortOrder builds a SortResults entry; order is "Ascending" or
// "Descending".
func NewSortOrder(field, order string) SortOrder {
	return SortOrder{
		Type:  "SortResults:#Exchange",
		Order: order,
		Path:  NewPropertyURI(field),
	}
}

// Mailbox is the wire form of an SMTP recipient, used in both requests
// and responses.
type Mailbox struct {
	Type         string `json:"__type,omitempty"`
	Name         string `json:"Name,omitempty"`
	EmailAddress string `json:"EmailAddress,omitempty"`
	RoutingType  string `json:"RoutingType,omitempty"`
	MailboxType  string `json:"MailboxType,omitempty"`
}

// NewMailbox builds a tagged Mailbox reference for request payloads.
func NewMailbox(email string) Mailbox {
	return Mailbox{Type: "Mailbox:#Exchange", EmailAddress: email, RoutingType: "SMTP"}
}
