// Package people searches the corporate directory through the
// ResolveNames API and flattens Active Directory contact records.
package people

import (
	"context"
	"log/slog"
	"strings"

	"github.com/avdeev/owa-mcp/internal/logging"
	"github.com/avdeev/owa-mcp/internal/owa"
)

// Person is a flattened directory entry.
type Person struct {
	Name          string            `json:"name"`
	Email         string            `json:"email"`
	Type          string            `json:"type"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	JobTitle      string            `json:"job_title"`
	Department    string            `json:"department"`
	Company       string            `json:"company"`
	Office        string            `json:"office"`
	Manager       string            `json:"manager"`
	ManagerEmail  string            `json:"manager_email"`
	Phones        map[string]string `json:"phones"`
	Address       *Address          `json:"address,omitempty"`
	DirectReports []Report          `json:"direct_reports"`
	Alias         string            `json:"alias"`
}

// Address is the business postal address of a directory entry.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Full       string `json:"full"`
}

// Report is one direct report of a directory entry.
type Report struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Service searches the directory.
type Service struct {
	client *owa.Client
	logger *slog.Logger
}

// NewService creates a people Service.
func NewService(client *owa.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, logger: logging.WithService(logger, "people")}
}

// Find looks up people by name, email address, alias, or keyword. An
// empty result is not an error.
func (s *Service) Find(ctx context.Context, query string) ([]Person, error) {
	resolutions, err := s.client.ResolveNames(ctx, query, true)
	if err != nil {
		return nil, err
	}

	people := []Person{}
	for _, r := range resolutions {
		people = append(people, parsePerson(r))
	}
	return people, nil
}

// parsePerson flattens one resolution into a Person. The mailbox name
// wins over the contact display name; the manager mailbox entry wins
// over the plain manager string.
func parsePerson(r owa.Resolution) Person {
	contact := r.Contact
	if contact == nil {
		contact = &owa.Contact{}
	}

	name := r.Mailbox.Name
	if name == "" {
		name = contact.DisplayName
	}

	p := Person{
		Name:          name,
		Email:         r.Mailbox.EmailAddress,
		Type:          r.Mailbox.MailboxType,
		FirstName:     contact.GivenName,
		LastName:      contact.Surname,
		JobTitle:      contact.JobTitle,
		Department:    contact.Department,
		Company:       contact.CompanyName,
		Office:        contact.OfficeLocation,
		Phones:        map[string]string{},
		DirectReports: []Report{},
		Alias:         contact.Alias,
	}

	for _, phone := range contact.PhoneNumbers {
		if phone.PhoneNumber != "" {
			p.Phones[phone.Key] = phone.PhoneNumber
		}
	}

	for _, addr := range contact.PhysicalAddresses {
		if addr.Key != "Business" {
			continue
		}
		var parts []string
		for _, part := range []string{addr.Street, addr.City, addr.PostalCode, addr.CountryOrRegion} {
			if part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) > 0 {
			p.Address = &Address{
				Street:     addr.Street,
				City:       addr.City,
				PostalCode: addr.PostalCode,
				Country:    addr.CountryOrRegion,
				Full:       strings.Join(parts, ", "),
			}
		}
	}

	if contact.ManagerMailbox != nil {
		p.Manager = contact.ManagerMailbox.Mailbox.Name
		p.ManagerEmail = contact.ManagerMailbox.Mailbox.EmailAddress
	} else if contact.Manager != "" {
		p.Manager = contact.Manager
	}

	for _, report := range contact.DirectReports {
		p.DirectReports = append(p.DirectReports, Report{
			Name:  report.Name,
			Email: report.EmailAddress,
		})
	}

	return p
}
