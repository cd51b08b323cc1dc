// Package calendar_tools provides MCP (Model Context Protocol) tools
// for the Exchange calendar.
//
// Reading:
//   - get_calendar_events: list events in a date range, optionally
//     expanding recurring series into individual occurrences
//   - download_event_attachments: save event attachments locally
//   - get_event_links: extract hyperlinks from an event body
//
// Scheduling (skipped in read-only mode):
//   - create_meeting: schedule a meeting and invite attendees
//   - update_meeting: change fields of an existing meeting
//   - cancel_meeting: cancel and notify attendees
//   - respond_to_meeting: accept, tentatively accept or decline
//
// Attendees may be given as email addresses or directory names; names
// are resolved against the global address list before invitations go
// out.
package calendar_tools
