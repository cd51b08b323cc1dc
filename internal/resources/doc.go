// Package resources provides MCP resources for exposing mailbox and
// session data. Resources are read-only data sources that MCP clients
// can fetch, such as the mailbox profile and the cookie-session status.
package resources
