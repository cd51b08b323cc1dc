package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"regular address", "ivanov@corp.example.com"},
		{"uppercase normalized", "IVANOV@corp.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			assert.True(t, strings.HasPrefix(got, "user:"))
			assert.NotContains(t, got, "ivanov")
		})
	}

	// Same mailbox must hash identically regardless of case so log
	// entries can be correlated.
	assert.Equal(t, AnonymizeEmail("a@b.com"), AnonymizeEmail("A@B.COM"))
	assert.Empty(t, AnonymizeEmail(""))
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	got := SanitizeToken("c4n4ry-t0ken-value")
	assert.Equal(t, "[token:18 chars]", got)
	assert.NotContains(t, got, "c4n4ry")
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected string
	}{
		{"normal", "user@corp.example.com", "corp.example.com"},
		{"empty", "", ""},
		{"no at sign", "not-an-email", ""},
		{"two at signs", "a@b@c", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractDomain(tt.email))
		})
	}
}

func TestErrNilSafe(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("ok", Err(nil))
	assert.NotContains(t, buf.String(), "error=")

	buf.Reset()
	logger.Info("bad", Err(errors.New("boom")))
	assert.Contains(t, buf.String(), "error=boom")
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	WithOperation(logger, "availability.query").Info("done", Status(StatusSuccess))
	out := buf.String()
	assert.Contains(t, out, "operation=availability.query")
	assert.Contains(t, out, "status=success")
}

func TestMailboxAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("query", Mailbox("petrov@corp.example.com"))
	out := buf.String()
	assert.Contains(t, out, KeyMailbox)
	assert.NotContains(t, out, "petrov@")
}
