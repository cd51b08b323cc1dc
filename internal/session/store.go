// Package session holds the OWA authentication state: the cookie set loaded
// from the external cookie source and the rotating X-OWA-CANARY token.
//
// The store never refreshes itself; the transport drives reloads, and the
// login tool injects freshly decrypted cookies via LoadString.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// CanaryCookie is the cookie that carries the anti-forgery token.
const CanaryCookie = "X-OWA-CANARY"

// encryptedMarker is the prefix of a Fernet token. A cookie file that still
// starts with it has not been decrypted by the login tool yet.
const encryptedMarker = "gAAAAA"

var (
	// ErrNoCookies indicates the cookie source contained no name=value pairs.
	ErrNoCookies = errors.New("cookie source is empty")

	// ErrEncryptedCookies indicates the cookie file is still encrypted at
	// rest. The caller should route the user to the login tool instead of
	// retrying.
	ErrEncryptedCookies = errors.New("cookie file is encrypted")
)

// Store holds the current cookie set and canary token for one mailbox session.
//
// Not safe for concurrent use; the owning transport must serialize access.
type Store struct {
	path string

	cookies map[string]string
	canary  string
	loaded  bool
}

// NewStore creates a store backed by the cookie file at path.
// Nothing is read until Load is called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the cookie file path backing this store.
func (s *Store) Path() string {
	return s.path
}

// Loaded reports whether a cookie set has been loaded.
func (s *Store) Loaded() bool {
	return s.loaded
}

// Canary returns the current anti-forgery token. Empty means the cookie
// source did not carry one; the transport surfaces that as an expiry cause.
func (s *Store) Canary() string {
	return s.canary
}

// SetCanary replaces the tracked canary and keeps the cookie jar in sync so
// the rotated value survives to the next call.
func (s *Store) SetCanary(canary string) {
	if canary == "" {
		return
	}
	s.canary = canary
	if s.cookies == nil {
		s.cookies = make(map[string]string)
	}
	s.cookies[CanaryCookie] = canary
}

// Cookies returns the cookie map. Callers must not mutate it.
func (s *Store) Cookies() map[string]string {
	return s.cookies
}

// CookieHeader renders the cookie set as a single Cookie header value.
func (s *Store) CookieHeader() string {
	if len(s.cookies) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(s.cookies))
	for name, value := range s.cookies {
		pairs = append(pairs, name+"="+value)
	}
	return strings.Join(pairs, "; ")
}

// Load reads the cookie file (name=value per line) and extracts the canary.
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read cookie file %s: %w", s.path, err)
	}

	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(text, encryptedMarker) {
		return fmt.Errorf("%s: %w", s.path, ErrEncryptedCookies)
	}

	return s.LoadString(text)
}

// LoadString loads cookies from a decrypted name=value string, one per line.
// Used by the login tool to inject cookies directly into memory without
// writing plaintext to disk.
func (s *Store) LoadString(text string) error {
	if strings.HasPrefix(strings.TrimSpace(text), encryptedMarker) {
		return ErrEncryptedCookies
	}

	cookies := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		name, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || name == "" {
			continue
		}
		cookies[name] = value
	}
	if len(cookies) == 0 {
		return ErrNoCookies
	}

	s.cookies = cookies
	s.canary = cookies[CanaryCookie]
	s.loaded = true
	return nil
}

// Reload force-reloads cookies from the file (e.g. after re-login).
// The existing in-memory session is preserved when reloading fails, so a
// transient source failure cannot corrupt a still-valid session.
func (s *Store) Reload() error {
	oldCookies := s.cookies
	oldCanary := s.canary
	oldLoaded := s.loaded

	s.loaded = false
	if err := s.Load(); err != nil {
		s.cookies = oldCookies
		s.canary = oldCanary
		s.loaded = oldLoaded
		return err
	}
	return nil
}
