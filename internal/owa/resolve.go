package owa

import "context"

// Resolution is one directory match from ResolveNames. Mailbox is
// always present; Contact carries the full Active Directory record when
// the query asked for full contact data.
type Resolution struct {
	Mailbox Mailbox  `json:"Mailbox"`
	Contact *Contact `json:"Contact"`
}

// Contact is the directory contact record attached to a resolution.
type Contact struct {
	DisplayName       string            `json:"DisplayName"`
	GivenName         string            `json:"GivenName"`
	Surname           string            `json:"Surname"`
	Alias             string            `json:"Alias"`
	JobTitle          string            `json:"JobTitle"`
	Department        string            `json:"Department"`
	CompanyName       string            `json:"CompanyName"`
	OfficeLocation    string            `json:"OfficeLocation"`
	Manager           string            `json:"Manager"`
	ManagerMailbox    *ManagerMailbox   `json:"ManagerMailbox"`
	DirectReports     []Mailbox         `json:"DirectReports"`
	PhoneNumbers      []PhoneNumber     `json:"PhoneNumbers"`
	PhysicalAddresses []PhysicalAddress `json:"PhysicalAddresses"`
}

// ManagerMailbox wraps the manager's mailbox entry in a contact record.
type ManagerMailbox struct {
	Mailbox Mailbox `json:"Mailbox"`
}

// PhoneNumber is a keyed phone entry ("BusinessPhone", "MobilePhone", ...).
type PhoneNumber struct {
	Key         string `json:"Key"`
	PhoneNumber string `json:"PhoneNumber"`
}

// PhysicalAddress is a keyed postal address; the "Business" entry is
// the one the directory populates.
type PhysicalAddress struct {
	Key             string `json:"Key"`
	Street          string `json:"Street"`
	City            string `json:"City"`
	PostalCode      string `json:"PostalCode"`
	CountryOrRegion string `json:"CountryOrRegion"`
}

type resolveNamesBody struct {
	Type                  string `json:"__type"`
	UnresolvedEntry       string `json:"UnresolvedEntry"`
	ReturnFullContactData bool   `json:"ReturnFullContactData"`
	SearchScope           string `json:"SearchScope"`
	ContactDataShape      string `json:"ContactDataShape"`
}

type resolveNamesResponse struct {
	Body struct {
		ResponseMessages struct {
			Items []struct {
				ResolutionSet struct {
					Resolutions []Resolution `json:"Resolutions"`
				} `json:"ResolutionSet"`
			} `json:"Items"`
		} `json:"ResponseMessages"`
	} `json:"Body"`
}

// ResolveNames searches the Active Directory contacts scope for query
// (a name, alias, email address, or keyword). With fullContact set the
// server returns the complete contact record for each match.
// An empty result is not an error.
func (c *Client) ResolveNames(ctx context.Context, query string, fullContact bool) ([]Resolution, error) {
	shape := ShapeDefault
	if fullContact {
		shape = ShapeAllProperties
	}
	payload := NewRequest("ResolveNames", resolveNamesBody{
		Type:                  "ResolveNamesRequest:#Exchange",
		UnresolvedEntry:       query,
		ReturnFullContactData: fullContact,
		SearchScope:           "ActiveDirectoryContacts",
		ContactDataShape:      shape,
	})

	var resp resolveNamesResponse
	if err := c.Do(ctx, "ResolveNames", payload, &resp); err != nil {
		return nil, err
	}
	for _, msg := range resp.Body.ResponseMessages.Items {
		if len(msg.ResolutionSet.Resolutions) > 0 {
			return msg.ResolutionSet.Resolutions, nil
		}
	}
	return nil, nil
}
