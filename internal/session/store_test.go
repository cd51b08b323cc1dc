package session

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session-cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeCookieFile(t, "cadata=abc123\nX-OWA-CANARY=canary-value\nOWA-SID=sid\n")
	store := NewStore(path)

	require.NoError(t, store.Load())
	assert.True(t, store.Loaded())
	assert.Equal(t, "canary-value", store.Canary())
	assert.Equal(t, "abc123", store.Cookies()["cadata"])
	assert.Len(t, store.Cookies(), 3)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.txt"))

	err := store.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.False(t, store.Loaded())
}

func TestLoadEncrypted(t *testing.T) {
	path := writeCookieFile(t, "gAAAAABh3x7...ciphertext...")
	store := NewStore(path)

	err := store.Load()
	assert.ErrorIs(t, err, ErrEncryptedCookies)
	assert.False(t, store.Loaded())
}

func TestLoadEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"only whitespace", "   \n\n  "},
		{"lines without equals", "not-a-cookie\nstill not\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(writeCookieFile(t, tt.content))
			assert.ErrorIs(t, store.Load(), ErrNoCookies)
		})
	}
}

func TestLoadStringNoCanary(t *testing.T) {
	store := NewStore("")

	require.NoError(t, store.LoadString("cadata=abc\n"))
	assert.True(t, store.Loaded())
	// Missing canary is not an error at load time; the transport surfaces
	// it as an expiry cause.
	assert.Empty(t, store.Canary())
}

func TestLoadStringValueWithEquals(t *testing.T) {
	store := NewStore("")

	require.NoError(t, store.LoadString("cadata=a=b=c"))
	assert.Equal(t, "a=b=c", store.Cookies()["cadata"])
}

func TestSetCanary(t *testing.T) {
	store := NewStore("")
	require.NoError(t, store.LoadString("X-OWA-CANARY=old\ncadata=x"))

	store.SetCanary("rotated")
	assert.Equal(t, "rotated", store.Canary())
	// Rotation must be written back into the jar so it survives to the
	// next call.
	assert.Equal(t, "rotated", store.Cookies()[CanaryCookie])

	store.SetCanary("")
	assert.Equal(t, "rotated", store.Canary())
}

func TestReloadPreservesStateOnFailure(t *testing.T) {
	path := writeCookieFile(t, "cadata=first\nX-OWA-CANARY=c1\n")
	store := NewStore(path)
	require.NoError(t, store.Load())

	// Simulate the login tool re-encrypting the file.
	require.NoError(t, os.WriteFile(path, []byte("gAAAAAciphertext"), 0o600))

	err := store.Reload()
	assert.ErrorIs(t, err, ErrEncryptedCookies)
	// The in-memory session must survive so the transport can retry with it.
	assert.True(t, store.Loaded())
	assert.Equal(t, "first", store.Cookies()["cadata"])
	assert.Equal(t, "c1", store.Canary())
}

func TestReloadPicksUpNewCookies(t *testing.T) {
	path := writeCookieFile(t, "cadata=first\n")
	store := NewStore(path)
	require.NoError(t, store.Load())

	require.NoError(t, os.WriteFile(path, []byte("cadata=second\nX-OWA-CANARY=c2\n"), 0o600))
	require.NoError(t, store.Reload())
	assert.Equal(t, "second", store.Cookies()["cadata"])
	assert.Equal(t, "c2", store.Canary())
}

func TestCookieHeader(t *testing.T) {
	store := NewStore("")
	assert.Empty(t, store.CookieHeader())

	require.NoError(t, store.LoadString("a=1"))
	assert.Equal(t, "a=1", store.CookieHeader())
}
