package chrome

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/kmlx/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackendDefaultsNavigationTimeout(t *testing.T) {
	t.Parallel()

	backend := NewBackend(Options{})
	assert.Equal(t, defaultNavigationTimeout, backend.opts.NavigationTimeout)
	assert.Equal(t, BackendName, backend.Name())
}

func TestAllocatorOptionsAddsExecPath(t *testing.T) {
	t.Parallel()

	base := allocatorOptions(Options{})
	withPath := allocatorOptions(Options{ExecPath: "/opt/chrome/chrome"})
	assert.Len(t, withPath, len(base)+1)
}

func TestNewSessionReportsMissingBrowser(t *testing.T) {
	t.Parallel()

	backend := NewBackend(Options{ExecPath: filepath.Join(t.TempDir(), "no-such-chrome")})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := backend.NewSession(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSessionCreation)
	assert.Contains(t, err.Error(), BackendName)
}

func TestSessionFollowsRedirectToCoordinates(t *testing.T) {
	execPath := findChrome(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/maps/place/Camp/data=x", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/maps/place/Camp/@38.61,-106.32,17z/data=x", http.StatusFound)
	})
	mux.HandleFunc("/maps/place/Camp/@38.61,-106.32,17z/data=x", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>camp</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	backend := NewBackend(Options{ExecPath: execPath, NavigationTimeout: 20 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := backend.NewSession(ctx)
	require.NoError(t, err)
	defer func() { assert.NoError(t, session.Close()) }()

	require.NoError(t, session.Navigate(ctx, server.URL+"/maps/place/Camp/data=x"))
	current, err := session.CurrentURL(ctx)
	require.NoError(t, err)
	assert.True(t, strings.Contains(current, domain.CoordinateMarker), current)
}

func findChrome(t *testing.T) string {
	t.Helper()

	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("chrome is not installed")
	return ""
}
