// Package auth_tools provides the login MCP tool.
//
// The tool is two-phase and never blocks: the first call either
// restores a session from supplied cookies, reports that the session
// is already active, or starts the external login command named by
// OWA_LOGIN_COMMAND in the background. Subsequent calls poll the
// pending login; once the command has printed its cookies the session
// is installed, persisted to the cookie file and verified with a live
// request. Browser automation and 2FA handling live in the external
// command, not here.
package auth_tools
