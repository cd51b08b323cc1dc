// Package availability_tools provides MCP (Model Context Protocol)
// tools for free/busy search.
//
//   - find_free_time: free slots in the caller's own calendar
//   - find_meeting_time: slots where every listed attendee is free
//
// Both tools work on weekdays within a configurable working-hours
// window and report slots per day as wall-clock intervals. Attendees
// may be email addresses or directory names.
package availability_tools
