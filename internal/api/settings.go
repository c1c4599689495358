package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kalambet/studybuddy/internal/settings"
)

const defaultMaxBodyBytes = 64 << 10

// degradedHeader is set when a GET served defaults because storage was
// unavailable.
const degradedHeader = "X-Settings-Degraded"

type AppDeps struct {
	Settings *settings.Store
	Token    string
	Version  string
	Logger   *slog.Logger

	// MaxBodyBytes caps PUT/PATCH bodies; zero means 64 KiB.
	MaxBodyBytes int64
	// AllowedOrigins enables CORS for the listed browser origins.
	AllowedOrigins []string
}

// TargetResponse is the body of GET /settings/target.
type TargetResponse struct {
	Backend string `json:"backend"`
	Target  string `json:"target"`
}

// NewAppHandler returns the HTTP API the UI shell talks to.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer(deps.Logger))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader, degradedHeader},
			MaxAge:         300,
		}))
	}
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Route("/system", func(r chi.Router) {
		r.Get("/healthz", handleHealth)
		r.Get("/version", handleVersion(deps.Version))
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/settings", handleGetSettings(deps))
		r.Put("/settings", handlePutSettings(deps))
		r.Patch("/settings", handlePatchSettings(deps))
		r.Post("/settings/reset", handleResetSettings(deps))
		r.Get("/settings/target", handleTarget(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": version})
	}
}

func handleGetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Settings.Load(r.Context())
		if err != nil {
			if doc == nil {
				settingsError(w, err)
				return
			}
			deps.Logger.Warn("serving default settings", "request_id", RequestIDFrom(r.Context()), "error", err)
			w.Header().Set(degradedHeader, "storage-unavailable")
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handlePutSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := readDocument(w, r, deps.MaxBodyBytes)
		if !ok {
			return
		}
		if err := deps.Settings.Save(r.Context(), doc); err != nil {
			deps.Logger.Error("saving settings", "request_id", RequestIDFrom(r.Context()), "error", err)
			settingsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// handlePatchSettings merges the top-level keys of the body into the stored
// document. A null value removes the key.
func handlePatchSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patch, ok := readDocument(w, r, deps.MaxBodyBytes)
		if !ok {
			return
		}
		doc, err := deps.Settings.Update(r.Context(), func(d settings.Document) error {
			for k, v := range patch {
				if v == nil {
					delete(d, k)
					continue
				}
				d[k] = v
			}
			return nil
		})
		if err != nil {
			deps.Logger.Error("patching settings", "request_id", RequestIDFrom(r.Context()), "error", err)
			settingsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleResetSettings(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Settings.Reset(r.Context())
		if err != nil {
			deps.Logger.Error("resetting settings", "request_id", RequestIDFrom(r.Context()), "error", err)
			settingsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleTarget(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := deps.Settings.Target(r.Context())
		if err != nil {
			settingsError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, TargetResponse{
			Backend: deps.Settings.Backend().Name(),
			Target:  target,
		})
	}
}

func readDocument(w http.ResponseWriter, r *http.Request, limit int64) (settings.Document, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpErrorDetails(w, http.StatusRequestEntityTooLarge, codeTooLarge,
				map[string]any{"limit": tooLarge.Limit},
				"request body exceeds %d bytes", tooLarge.Limit)
			return nil, false
		}
		httpError(w, http.StatusBadRequest, codeValidation, "reading request body: %v", err)
		return nil, false
	}
	doc, err := settings.Decode(body)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, codeValidation, "request body must be a JSON object: %v", err)
		return nil, false
	}
	return doc, true
}
