// Package people_tools provides the find_person MCP tool, a directory
// search against the global address list via ResolveNames. Results
// include contact details, phones and the management chain when the
// directory exposes them.
package people_tools
