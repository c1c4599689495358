package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/studybuddy/internal/settings"
)

const testToken = "test-token-12345"

const testDefaults = `{"notifications": true, "grade": 3, "reminders": {"hour": 18}}`

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	return settings.New(settings.Options{
		Kind:         settings.KindFile,
		Capabilities: settings.Capabilities{Filesystem: true},
		Defaults:     settings.StaticDefaults(testDefaults),
		Dir:          t.TempDir(),
		Logger:       quietLogger,
	})
}

func setupAppHandler(t *testing.T, token string) (http.Handler, *settings.Store) {
	t.Helper()
	store := newTestStore(t)
	handler := NewAppHandler(AppDeps{
		Settings: store,
		Token:    token,
		Version:  "test",
		Logger:   quietLogger,
	})
	return handler, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
