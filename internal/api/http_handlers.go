package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	charapp "lor-api/internal/app/character"
	locapp "lor-api/internal/app/location"
	"lor-api/internal/domain/character"
	"lor-api/internal/domain/location"
	"lor-api/internal/platform/observability"
)

const (
	msgCharacterNotFound = "Character not found"
	msgNameExists        = "Name already exists"
	msgLocationNotFound  = "Location not found"
	msgInternal          = "Internal server error"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	logger      zerolog.Logger
	characters  *charapp.Service
	locations   *locapp.Service
	store       Pinger
	corsOrigin  string
	maxBodySize int64
}

func NewHandler(logger zerolog.Logger, characters *charapp.Service, locations *locapp.Service, store Pinger, corsOrigin string, maxBodySize int64) *Handler {
	return &Handler{logger: logger, characters: characters, locations: locations, store: store, corsOrigin: corsOrigin, maxBodySize: maxBodySize}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.AccessLog(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(20 * time.Second))
	r.Use(h.cors)

	r.Get("/ping", h.ping)
	r.Get("/readyz", h.ready)

	r.Route("/api", func(api chi.Router) {
		api.Get("/ping", h.ping)

		api.Post("/characters", h.createCharacter)
		api.Get("/characters", h.listCharacters)
		api.Get("/characters/{id}", h.getCharacter)
		api.Put("/characters/{id}", h.updateCharacter)
		api.Delete("/characters/{id}", h.deleteCharacter)

		api.Post("/locations", h.createLocation)
		api.Get("/locations", h.listLocations)
		// {id} is the owning character here and the location itself on DELETE.
		api.Get("/locations/{id}", h.listCharacterLocations)
		api.Delete("/locations/{id}", h.deleteLocation)
	})

	return r
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("storage ping failed")
		writeDetail(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type characterRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (req characterRequest) validate() (string, bool) {
	if req.Name == nil {
		return "name is required", false
	}
	if err := character.ValidateName(*req.Name); err != nil {
		return err.Error(), false
	}
	return "", true
}

func (h *Handler) createCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	c, err := h.characters.Create(r.Context(), *req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) listCharacters(w http.ResponseWriter, r *http.Request) {
	chars, err := h.characters.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": chars})
}

func (h *Handler) getCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	c, err := h.characters.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var req characterRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	c, err := h.characters.Update(r.Context(), id, *req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := h.characters.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type locationRequest struct {
	CharacterID *uuid.UUID `json:"character_id"`
	X           *float64   `json:"x"`
	Y           *float64   `json:"y"`
	CreatedAt   *timestamp `json:"created_at"`
}

// timestamp decodes a JSON string with the same layouts as the start/end
// query parameters.
type timestamp time.Time

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := parseTimeParam(raw)
	if err != nil {
		return err
	}
	*ts = timestamp(t)
	return nil
}

func (req locationRequest) validate() (string, bool) {
	switch {
	case req.CharacterID == nil:
		return "character_id is required", false
	case req.X == nil:
		return "x is required", false
	case req.Y == nil:
		return "y is required", false
	case req.CreatedAt == nil:
		return "created_at is required", false
	}
	return "", true
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if msg, ok := req.validate(); !ok {
		writeDetail(w, http.StatusUnprocessableEntity, msg)
		return
	}
	l, err := h.locations.Create(r.Context(), locapp.NewLocation{
		CharacterID: *req.CharacterID,
		X:           *req.X,
		Y:           *req.Y,
		CreatedAt:   time.Time(*req.CreatedAt),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.locations.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (h *Handler) listCharacterLocations(w http.ResponseWriter, r *http.Request) {
	characterID, ok := pathUUID(w, r)
	if !ok {
		return
	}
	var win location.Window
	for _, p := range []struct {
		key  string
		dest **time.Time
	}{{"start", &win.Start}, {"end", &win.End}} {
		raw := r.URL.Query().Get(p.key)
		if raw == "" {
			continue
		}
		t, err := parseTimeParam(raw)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid "+p.key+" timestamp")
			return
		}
		*p.dest = &t
	}
	locs, err := h.locations.ListByCharacter(r.Context(), characterID, win)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locs})
}

func (h *Handler) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}
	if err := h.locations.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, character.ErrNotFound):
		writeDetail(w, http.StatusNotFound, msgCharacterNotFound)
	case errors.Is(err, character.ErrNameTaken):
		writeDetail(w, http.StatusConflict, msgNameExists)
	case errors.Is(err, location.ErrNotFound):
		writeDetail(w, http.StatusNotFound, msgLocationNotFound)
	case errors.Is(err, character.ErrInvalidName):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeDetail(w, http.StatusInternalServerError, msgInternal)
	}
}

var timeParamLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimeParam accepts RFC 3339 and naive timestamps; naive ones are UTC.
func parseTimeParam(raw string) (time.Time, error) {
	var err error
	for _, layout := range timeParamLayouts {
		var t time.Time
		if t, err = time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) cors(next http.Handler) http.Handler {
	origin := h.corsOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
