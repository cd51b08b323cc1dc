// Package logging provides structured logging utilities for the owa-mcp
// application.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (mailbox anonymization)
//   - Consistent attribute naming across the codebase
//   - Logger adapter interface for flexibility
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "mail.list")
//	logger.Info("listing emails",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("mailbox operation",
//	    logging.Mailbox(email))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Mailbox addresses are hashed to prevent PII leakage while allowing correlation
//   - Session cookies and the canary token are never logged directly
package logging
