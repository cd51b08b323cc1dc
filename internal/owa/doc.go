// Package owa implements the authenticated HTTP transport for the OWA
// (Outlook Web Access) JSON API.
//
// All API calls go through a single Client that handles cookie loading,
// canary (CSRF token) tracking and rotation, session expiry detection,
// and a one-shot cookie reload on the first expired request. Higher
// level packages build typed request envelopes (see envelope.go) and
// decode responses into their own structs.
package owa
