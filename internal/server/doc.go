// Package server provides the MCP server context and its HTTP sidecars.
//
// # Key Components
//
// ServerContext wires a single OWA client into the domain services
// (mail, calendar, availability, analytics, folders, people) and holds
// the login task and observability plumbing. Authentication is a shared
// cookie session, so there is no per-request identity: every tool call
// acts as the configured mailbox.
//
// HealthChecker exposes /healthz, /readyz, and /healthz/detailed for
// Kubernetes probes when running with the HTTP transport.
//
// MetricsServer serves Prometheus metrics on a dedicated port, keeping
// operational metrics off the main MCP endpoint.
package server
