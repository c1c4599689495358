package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/studybuddy/internal/settings"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v; body = %s", err, rr.Body.String())
	}
	return out
}

// assertErrorEnvelope checks rr carries exactly {"error": {code, message, details}}.
func assertErrorEnvelope(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	if rr.Code != status {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, status, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if len(body) != 1 {
		t.Errorf("envelope keys = %v, want only error", body)
	}
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("error = %T, want object", body["error"])
	}
	if errObj["code"] != code {
		t.Errorf("error.code = %v, want %s", errObj["code"], code)
	}
	if msg, _ := errObj["message"].(string); msg == "" {
		t.Errorf("error.message = %v, want non-empty string", errObj["message"])
	}
	details, ok := errObj["details"].(map[string]any)
	if !ok {
		t.Fatalf("error.details = %T, want object", errObj["details"])
	}
	return details
}

func TestGetSettings_SeedsDefaults(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/settings", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rr.Code, rr.Body.String())
	}
	want := map[string]any{"notifications": true, "grade": float64(3), "reminders": map[string]any{"hour": float64(18)}}
	if diff := cmp.Diff(want, decodeBody(t, rr)); diff != "" {
		t.Errorf("GET /settings mismatch (-want +got):\n%s", diff)
	}
	if rr.Header().Get(degradedHeader) != "" {
		t.Errorf("unexpected %s header", degradedHeader)
	}

	target, err := store.Target(context.Background())
	if err != nil {
		t.Fatalf("Target: %v", err)
	}
	if !strings.HasSuffix(target, "settings.json") {
		t.Errorf("target = %q", target)
	}
}

func TestPutSettings_ReplacesDocument(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/settings", `{"notifications": false, "grade": 7}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !doc.Equal(settings.Document{"notifications": false, "grade": 7}) {
		t.Errorf("stored = %v", doc)
	}
}

func TestPutSettings_RejectsNonObject(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	for _, body := range []string{`[1,2]`, `null`, `{"a":1} trailing`, `{"a":1}}`, `{bad`} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodPut, "/settings", body, testToken))
		assertErrorEnvelope(t, rr, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	}
}

func TestPutSettings_TooLarge(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	body := `{"notes":"` + strings.Repeat("x", defaultMaxBodyBytes) + `"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/settings", body, testToken))
	details := assertErrorEnvelope(t, rr, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
	if details["limit"] != float64(65536) {
		t.Errorf("details.limit = %v, want 65536", details["limit"])
	}
}

func TestPutSettings_ConfiguredBodyLimit(t *testing.T) {
	h := NewAppHandler(AppDeps{
		Settings:     newTestStore(t),
		Logger:       quietLogger,
		MaxBodyBytes: 32,
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/settings", `{"grade": 4}`, ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("small body: status = %d; body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/settings", `{"notes": "`+strings.Repeat("y", 40)+`"}`, ""))
	details := assertErrorEnvelope(t, rr, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE")
	if details["limit"] != float64(32) {
		t.Errorf("details.limit = %v, want 32", details["limit"])
	}
}

func TestPatchSettings_MergesAndDeletes(t *testing.T) {
	h, store := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/settings", `{"grade": 5, "reminders": null, "theme": "dark"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := settings.Document{"notifications": true, "grade": 5, "theme": "dark"}
	if !doc.Equal(want) {
		t.Errorf("stored = %v, want %v", doc, want)
	}
}

func TestResetSettings(t *testing.T) {
	h, store := setupAppHandler(t, testToken)
	ctx := context.Background()

	if err := store.Save(ctx, settings.Document{"grade": 9}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/settings/reset", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}

	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, _ := doc.Int("grade"); got != 3 {
		t.Errorf("grade after reset = %d, want 3", got)
	}
}

func TestSettingsTarget(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/settings/target", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var resp TargetResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Backend != "file" || !strings.HasSuffix(resp.Target, "settings.json") {
		t.Errorf("target response = %+v", resp)
	}
}

func TestUnsupportedBackend(t *testing.T) {
	store := settings.New(settings.Options{
		Kind:     settings.KindUnsupported,
		Defaults: settings.StaticDefaults(testDefaults),
		Logger:   quietLogger,
	})
	h := NewAppHandler(AppDeps{Settings: store, Logger: quietLogger})

	// Reads degrade to defaults.
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/settings", "", ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rr.Code)
	}
	if rr.Header().Get(degradedHeader) == "" {
		t.Errorf("missing %s header", degradedHeader)
	}
	if got := decodeBody(t, rr)["grade"]; got != float64(3) {
		t.Errorf("grade = %v, want 3", got)
	}

	// Writes fail.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPut, "/settings", `{"grade": 1}`, ""))
	assertErrorEnvelope(t, rr, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE")
}

func TestAuth(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"missing token", "/settings", "", http.StatusUnauthorized},
		{"wrong token", "/settings", "nope", http.StatusUnauthorized},
		{"valid token", "/settings", testToken, http.StatusOK},
		{"health is public", "/system/healthz", "", http.StatusOK},
		{"version is public", "/system/version", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, authReq(http.MethodGet, tt.path, "", tt.token))
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuth_ErrorEnvelope(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/settings", "", ""))
	assertErrorEnvelope(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAuth_DisabledWithoutToken(t *testing.T) {
	h, _ := setupAppHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/settings", "", ""))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestRequestID(t *testing.T) {
	h, _ := setupAppHandler(t, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/system/healthz", "", ""))
	if rr.Header().Get(requestIDHeader) == "" {
		t.Error("response missing request ID")
	}

	req := authReq(http.MethodGet, "/system/healthz", "", "")
	req.Header.Set(requestIDHeader, "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request ID = %q, want caller's abc-123", got)
	}
}

func TestSystemRoutes(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	tests := []struct {
		path string
		want map[string]any
	}{
		{"/system/healthz", map[string]any{"ok": true}},
		{"/system/version", map[string]any{"version": "test"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, authReq(http.MethodGet, tt.path, "", ""))
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if diff := cmp.Diff(tt.want, decodeBody(t, rr)); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	h, _ := setupAppHandler(t, testToken)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/__this_path_does_not_exist__", "", testToken))
	assertErrorEnvelope(t, rr, http.StatusNotFound, "NOT_FOUND")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodDelete, "/system/healthz", "", ""))
	assertErrorEnvelope(t, rr, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
}

func TestRecoverer(t *testing.T) {
	h := RequestID(Recoverer(quietLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/__boom__", nil))
	assertErrorEnvelope(t, rr, http.StatusInternalServerError, "INTERNAL")
}

func TestCORS(t *testing.T) {
	h := NewAppHandler(AppDeps{
		Settings:       newTestStore(t),
		Token:          testToken,
		Logger:         quietLogger,
		AllowedOrigins: []string{"https://app.example"},
	})

	preflight := httptest.NewRequest(http.MethodOptions, "/settings", nil)
	preflight.Header.Set("Origin", "https://app.example")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, preflight)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("preflight Allow-Origin = %q", got)
	}

	req := authReq(http.MethodGet, "/settings", "", testToken)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin = %q", got)
	}
}

func TestCORS_DisabledByDefault(t *testing.T) {
	h, _ := setupAppHandler(t, "")

	req := authReq(http.MethodGet, "/settings", "", "")
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want none without configured origins", got)
	}
}
