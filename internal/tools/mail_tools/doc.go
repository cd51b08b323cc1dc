// Package mail_tools provides MCP (Model Context Protocol) tools for
// working with the Exchange mailbox.
//
// Reading:
//   - get_emails: list messages in a folder with pagination
//   - get_email: fetch a single message with full body and attachments
//   - get_email_links: extract hyperlinks from a message body
//   - download_attachments: save file attachments to a local folder
//
// Writing (skipped in read-only mode):
//   - send_email, reply_email, forward_email
//   - mark_email_read, move_email, delete_email
//
// Bulk tools accept either a single item ID or a JSON array of IDs.
// All tools go through the shared OWA client held by the server
// context; an expired session is reloaded and retried once before an
// error reaches the caller.
package mail_tools
