package owa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveNames(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotBody = payload["Body"].(map[string]any)

		writeJSON(w, map[string]any{
			"Body": map[string]any{
				"ResponseMessages": map[string]any{
					"Items": []any{
						map[string]any{
							"ResolutionSet": map[string]any{
								"Resolutions": []any{
									map[string]any{
										"Mailbox": map[string]any{
											"Name":         "Ivan Petrov",
											"EmailAddress": "ivan.petrov@example.com",
											"MailboxType":  "Mailbox",
										},
										"Contact": map[string]any{
											"GivenName":  "Ivan",
											"Surname":    "Petrov",
											"JobTitle":   "Engineer",
											"Department": "Platform",
											"ManagerMailbox": map[string]any{
												"Mailbox": map[string]any{
													"Name":         "Anna K",
													"EmailAddress": "anna.k@example.com",
												},
											},
											"PhoneNumbers": []any{
												map[string]any{"Key": "BusinessPhone", "PhoneNumber": "+7 495 000 00 00"},
											},
										},
									},
								},
							},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, writeCookieFile(t, "sessionid=abc\n"))

	resolutions, err := client.ResolveNames(context.Background(), "petrov", true)
	require.NoError(t, err)

	assert.Equal(t, "petrov", gotBody["UnresolvedEntry"])
	assert.Equal(t, true, gotBody["ReturnFullContactData"])
	assert.Equal(t, "ActiveDirectoryContacts", gotBody["SearchScope"])
	assert.Equal(t, "AllProperties", gotBody["ContactDataShape"])

	require.Len(t, resolutions, 1)
	got := resolutions[0]
	assert.Equal(t, "ivan.petrov@example.com", got.Mailbox.EmailAddress)
	require.NotNil(t, got.Contact)
	assert.Equal(t, "Engineer", got.Contact.JobTitle)
	require.NotNil(t, got.Contact.ManagerMailbox)
	assert.Equal(t, "anna.k@example.com", got.Contact.ManagerMailbox.Mailbox.EmailAddress)
	require.Len(t, got.Contact.PhoneNumbers, 1)
	assert.Equal(t, "BusinessPhone", got.Contact.PhoneNumbers[0].Key)
}

func TestResolveNamesEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"Body": map[string]any{"ResponseMessages": map[string]any{"Items": []any{}}}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, writeCookieFile(t, "sessionid=abc\n"))

	resolutions, err := client.ResolveNames(context.Background(), "nobody", false)
	require.NoError(t, err)
	assert.Empty(t, resolutions)
}

func TestNewRequestEnvelope(t *testing.T) {
	req := NewRequest("FindItem", map[string]string{"k": "v"})
	assert.Equal(t, "FindItemJsonRequest:#Exchange", req.Type)
	assert.Equal(t, VersionExchange2013, req.Header.RequestServerVersion)
	assert.Nil(t, req.Header.TimeZoneContext)

	tz := req.WithTimeZone("Russian Standard Time").WithServerVersion(Version2017)
	assert.Equal(t, Version2017, tz.Header.RequestServerVersion)
	require.NotNil(t, tz.Header.TimeZoneContext)
	assert.Equal(t, "Russian Standard Time", tz.Header.TimeZoneContext.TimeZoneDefinition.ID)

	// The original request is unchanged.
	assert.Nil(t, req.Header.TimeZoneContext)
	assert.Equal(t, VersionExchange2013, req.Header.RequestServerVersion)
}
