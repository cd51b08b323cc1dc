// Package folder_tools provides MCP (Model Context Protocol) tools
// for the mail folder hierarchy.
//
//   - check_session: probe whether the OWA session is still valid
//   - get_folders: list folders with unread and total counts
//   - create_folder, rename_folder, move_folder
//   - empty_folder, delete_folder
//
// Folder write operations go through the header-payload variant of the
// OWA JSON API. check_session never returns an error; a broken session
// shows up as authenticated=false in its result.
package folder_tools
