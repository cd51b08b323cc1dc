package owa

// Shared request/response envelopes for the FindItem and GetItem
// actions. The item payload differs per caller (mail messages,
// calendar events), so the response types take it as a parameter.

// FindItemBody is the Body block of a FindItem request.
type FindItemBody struct {
	Type            string          `json:"__type"`
	ItemShape       ResponseShape   `json:"ItemShape"`
	ParentFolderIDs []any           `json:"ParentFolderIds"`
	Traversal       string          `json:"Traversal"`
	Paging          IndexedPageView `json:"Paging"`
	SortOrder       []SortOrder     `json:"SortOrder,omitempty"`
	Restriction     any             `json:"Restriction,omitempty"`
	QueryString     string          `json:"QueryString,omitempty"`
}

// NewFindItemBody builds a shallow-traversal FindItem body over a
// single folder.
func NewFindItemBody(folder any, shape ResponseShape, paging IndexedPageView) FindItemBody {
	return FindItemBody{
		Type:            "FindItemRequest:#Exchange",
		ItemShape:       shape,
		ParentFolderIDs: []any{folder},
		Traversal:       "Shallow",
		Paging:          paging,
	}
}

// RootFolder is the paged result set inside a FindItem response.
type RootFolder[T any] struct {
	Items                   []T   `json:"Items"`
	IncludesLastItemInRange *bool `json:"IncludesLastItemInRange"`
	TotalItemsInView        int   `json:"TotalItemsInView"`
}

// Last reports whether this page is the final one. A missing flag
// means the server has nothing more to send.
func (r RootFolder[T]) Last() bool {
	return r.IncludesLastItemInRange == nil || *r.IncludesLastItemInRange
}

// FindItemResponse is the response envelope for FindItem with items of
// type T.
type FindItemResponse[T any] struct {
	Body struct {
		ResponseMessages struct {
			Items []struct {
				RootFolder RootFolder[T] `json:"RootFolder"`
			} `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

// Root returns the first root folder of the response, if any.
func (r FindItemResponse[T]) Root() (RootFolder[T], bool) {
	if len(r.Body.ResponseMessages.Items) == 0 {
		return RootFolder[T]{}, false
	}
	return r.Body.ResponseMessages.Items[0].RootFolder, true
}

// GetItemBody is the Body block of a GetItem request.
type GetItemBody struct {
	Type      string        `json:"__type"`
	ItemShape ResponseShape `json:"ItemShape"`
	ItemIDs   []ItemID      `json:"ItemIds"`
}

// NewGetItemBody builds a GetItem body for the given item IDs.
func NewGetItemBody(shape ResponseShape, ids ...string) GetItemBody {
	itemIDs := make([]ItemID, 0, len(ids))
	for _, id := range ids {
		itemIDs = append(itemIDs, NewItemID(id))
	}
	return GetItemBody{
		Type:      "GetItemRequest:#Exchange",
		ItemShape: shape,
		ItemIDs:   itemIDs,
	}
}

// GetItemResponse is the response envelope for GetItem with items of
// type T.
type GetItemResponse[T any] struct {
	Body struct {
		ResponseMessages struct {
			Items []struct {
				Items []T `json:"Items"`
			} `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

// Items flattens the response messages into a single item list.
func (r GetItemResponse[T]) Items() []T {
	var items []T
	for _, msg := range r.Body.ResponseMessages.Items {
		items = append(items, msg.Items...)
	}
	return items
}
