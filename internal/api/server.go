package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/engine"
	"github.com/aoba-lab/daiko/internal/shift"
	"github.com/aoba-lab/daiko/internal/slack"
)

// Resolver is the chat entry point of the engine.
type Resolver interface {
	ResolveTurn(ctx context.Context, userID, rawText string) engine.Outcome
}

// Registry is the store slice the administrative endpoints need.
type Registry interface {
	InsertShift(ctx context.Context, s shift.Shift) (uuid.UUID, error)
	Members(ctx context.Context) (map[string]string, error)
	UpsertMember(ctx context.Context, slackID, displayName string) error
}

type Server struct {
	router   *chi.Mux
	port     int
	resolver Resolver
	registry Registry
	apiToken string
	loc      *time.Location
	logger   *slog.Logger
}

func NewServer(port int, resolver Resolver, registry Registry, apiToken string, loc *time.Location, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		resolver: resolver,
		registry: registry,
		apiToken: apiToken,
		loc:      loc,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/daiko/status", s.status)
	router.Post("/slack/events", s.slackEvents)
	router.Get("/api/v1/members", s.listMembers)
	router.Post("/api/v1/members", s.requireToken(s.upsertMember))
	router.Post("/api/v1/shifts", s.requireToken(s.registerShifts))

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// requireToken guards mutating routes with the shared API token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" || r.Header.Get("Authorization") != "Bearer "+s.apiToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "daiko",
		"status":  "ok",
	})
}

// slackEvents handles the Events API: the url_verification handshake plus
// message events, which are resolved off-request so Slack gets its 200
// within the deadline.
func (s *Server) slackEvents(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	cb, err := slack.ParseEventCallback(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	if cb.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": cb.Challenge})
		return
	}

	if cb.IsMessage() {
		user, text := cb.Event.User, cb.MessageText()
		go func() {
			outcome := s.resolver.ResolveTurn(context.Background(), user, text)
			s.logger.Info("turn resolved",
				"user", user,
				"kind", outcome.Kind.String(),
				"reason", string(outcome.Reason),
			)
		}()
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.registry.Members(r.Context())
	if err != nil {
		s.logger.Error("failed to list members", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) upsertMember(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SlackID     string `json:"slack_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SlackID == "" || body.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slack_id and display_name are required"})
		return
	}
	if err := s.registry.UpsertMember(r.Context(), body.SlackID, body.DisplayName); err != nil {
		s.logger.Error("failed to upsert member", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ShiftEntry is one row of a bulk registration request.
type ShiftEntry struct {
	Name    string `json:"name"`
	SlackID string `json:"slack_id"`
	Date    string `json:"date"`  // 2006-01-02
	Start   string `json:"start"` // HH:MM
	End     string `json:"end"`   // HH:MM
}

// registerShifts inserts a batch of confirmed shifts, rejecting the whole
// request on the first malformed entry.
func (s *Server) registerShifts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Shifts []ShiftEntry `json:"shifts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Shifts) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "shifts are required"})
		return
	}

	inserted := make([]string, 0, len(body.Shifts))
	for i, entry := range body.Shifts {
		sh, err := s.entryToShift(entry)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": fmt.Sprintf("shift %d: %v", i, err),
			})
			return
		}
		id, err := s.registry.InsertShift(r.Context(), sh)
		if err != nil {
			s.logger.Error("failed to insert shift", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage failure"})
			return
		}
		inserted = append(inserted, id.String())
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ids": inserted})
}

func (s *Server) entryToShift(entry ShiftEntry) (shift.Shift, error) {
	day, err := time.ParseInLocation("2006-01-02", entry.Date, s.loc)
	if err != nil {
		return shift.Shift{}, fmt.Errorf("invalid date %q", entry.Date)
	}
	start, err := shift.ParseClockTime(entry.Start)
	if err != nil {
		return shift.Shift{}, fmt.Errorf("invalid start %q", entry.Start)
	}
	end, err := shift.ParseClockTime(entry.End)
	if err != nil {
		return shift.Shift{}, fmt.Errorf("invalid end %q", entry.End)
	}
	sh := shift.Shift{
		StaffName: entry.Name,
		SlackID:   entry.SlackID,
		Start:     start.On(day),
		End:       end.On(day),
	}
	if err := sh.Validate(); err != nil {
		return shift.Shift{}, err
	}
	return sh, nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
