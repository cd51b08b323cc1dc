// Package analytics_tools provides MCP (Model Context Protocol) tools
// for meeting analytics.
//
//   - get_meeting_stats: meetings per workday for a list of people,
//     counted from their expanded free/busy calendars
//   - get_meeting_contacts: ranks the people who appear most often as
//     attendees of the caller's own meetings
//
// Availability lookups over long ranges are chunked; a failed chunk is
// reported in the result instead of failing the whole query.
package analytics_tools
