// Package api serves the assignment, settings and alert HTTP endpoints.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"deadlinemaster/internal/countdown"
	"deadlinemaster/internal/domain"
	"deadlinemaster/internal/metrics"
	"deadlinemaster/internal/notify"
	"deadlinemaster/internal/scheduler"
	"deadlinemaster/internal/settings"
	"deadlinemaster/internal/store"
)

const (
	defaultHistoryLimit = 50
	upcomingWindow      = 24 * time.Hour
	upcomingLimit       = 3
)

type Deps struct {
	Store     *store.Store
	Scheduler *scheduler.Service
	Settings  *settings.Manager
	Notifier  notify.Channel
	History   store.AlertLog
	Metrics   *metrics.Metrics
	Now       func() time.Time
	Debug     bool
}

type Server struct {
	Deps
}

func NewServer(d Deps) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{Deps: d}

	r.Get("/health", s.health)
	r.Handle("/metrics", d.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/assignments", s.listAssignments)
		r.Post("/assignments", s.createAssignment)
		r.Get("/assignments/{id}", s.getAssignment)
		r.Put("/assignments/{id}", s.updateAssignment)
		r.Delete("/assignments/{id}", s.deleteAssignment)
		r.Post("/assignments/{id}/toggle", s.toggleAssignment)
		r.Get("/assignments/{id}/countdown", s.getCountdown)

		r.Get("/stats", s.stats)
		r.Get("/upcoming", s.upcoming)

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Post("/settings/{name}/toggle", s.toggleSetting)
		r.Get("/notifications/permission", s.getPermission)
		r.Post("/notifications/permission", s.requestPermission)

		r.Get("/alerts", s.alertHistory)
		r.Post("/alerts/evaluate", s.evaluate)
		r.Post("/alerts/clear", s.clearAlerts)
		r.Get("/alerts/notified", s.notified)
		r.Get("/alerts/digest", s.digest)
	})

	if d.Debug {
		r.HandleFunc("/debug/pprof/", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
		r.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	}

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type assignmentReq struct {
	Title       string `json:"title"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
}

func (req assignmentReq) input() (domain.AssignmentInput, string) {
	in := domain.AssignmentInput{
		Title:       strings.TrimSpace(req.Title),
		Subject:     strings.TrimSpace(req.Subject),
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
	}
	if in.Title == "" {
		return in, "title is required"
	}
	if in.Subject == "" {
		return in, "subject is required"
	}
	due, err := domain.ParseDue(req.DueDate)
	if err != nil {
		return in, "dueDate: " + err.Error()
	}
	in.DueDate = due
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return in, "priority must be High, Medium or Low"
	}
	return in, ""
}

type countdownView struct {
	countdown.TimeRemaining
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Display  string  `json:"display"`
}

type assignmentView struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Subject     string          `json:"subject"`
	Description string          `json:"description"`
	DueDate     time.Time       `json:"dueDate"`
	Priority    domain.Priority `json:"priority"`
	Completed   bool            `json:"completed"`
	Countdown   countdownView   `json:"countdown"`
}

func newCountdownView(a domain.Assignment, now time.Time) countdownView {
	tr := countdown.Classify(a.DueDate, now, a.Completed)
	return countdownView{
		TimeRemaining: tr,
		Status:        countdown.StatusMessage(tr),
		Progress:      countdown.Progress(tr),
		Display:       countdown.Format(tr),
	}
}

func (s *Server) view(a domain.Assignment) assignmentView {
	return assignmentView{
		ID: a.ID, Title: a.Title, Subject: a.Subject, Description: a.Description,
		DueDate: a.DueDate, Priority: a.Priority, Completed: a.Completed,
		Countdown: newCountdownView(a, s.Now()),
	}
}

func (s *Server) views(list []domain.Assignment) []assignmentView {
	out := make([]assignmentView, 0, len(list))
	for _, a := range list {
		out = append(out, s.view(a))
	}
	return out
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		Status: store.Status(q.Get("status")),
		Search: q.Get("q"),
		Sort:   store.SortKey(q.Get("sort")),
	}
	switch f.Status {
	case "", store.StatusAll, store.StatusActive, store.StatusCompleted:
	default:
		http.Error(w, "status must be all, active or completed", http.StatusBadRequest)
		return
	}
	switch f.Sort {
	case store.SortNone, store.SortDueDate, store.SortPriority:
	default:
		http.Error(w, "sort must be dueDate or priority", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.views(s.Store.Query(f)))
}

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (domain.AssignmentInput, bool) {
	var req assignmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return domain.AssignmentInput{}, false
	}
	in, msg := req.input()
	if msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return in, false
	}
	return in, true
}

func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	a, err := s.Store.Create(r.Context(), in)
	if err != nil {
		log.Warn().Err(err).Str("assignment_id", a.ID).Msg("assignment created but not persisted")
	}
	writeJSON(w, http.StatusCreated, s.view(a))
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.view(a))
}

func (s *Server) updateAssignment(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	a, found, err := s.Store.Update(r.Context(), chi.URLParam(r, "id"), in)
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("assignment_id", a.ID).Msg("assignment updated but not persisted")
	}
	writeJSON(w, http.StatusOK, s.view(a))
}

func (s *Server) toggleAssignment(w http.ResponseWriter, r *http.Request) {
	a, found, err := s.Store.ToggleComplete(r.Context(), chi.URLParam(r, "id"))
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("assignment_id", a.ID).Msg("assignment toggled but not persisted")
	}
	writeJSON(w, http.StatusOK, s.view(a))
}

func (s *Server) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.Store.Delete(r.Context(), id); err != nil {
		log.Warn().Err(err).Str("assignment_id", id).Msg("assignment deleted but not persisted")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCountdown(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newCountdownView(a, s.Now()))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Stats(s.Now()))
}

func (s *Server) upcoming(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.views(s.Store.Upcoming(s.Now(), upcomingWindow, upcomingLimit)))
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings.Current())
}

// putSettings applies the fields present in the body over the current settings.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	ns := s.Settings.Current()
	if err := json.NewDecoder(r.Body).Decode(&ns); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Settings.Update(r.Context(), ns); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.Settings.Current())
}

func (s *Server) toggleSetting(w http.ResponseWriter, r *http.Request) {
	ns, err := s.Settings.Toggle(r.Context(), chi.URLParam(r, "name"))
	switch {
	case errors.Is(err, settings.ErrUnknownSetting):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

type permissionResp struct {
	Permission domain.Permission `json:"permission"`
}

func (s *Server) getPermission(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, permissionResp{Permission: s.Notifier.Permission()})
}

func (s *Server) requestPermission(w http.ResponseWriter, r *http.Request) {
	p := s.Notifier.RequestPermission(r.Context())
	log.Info().Str("permission", string(p)).Msg("notification permission requested")
	writeJSON(w, http.StatusOK, permissionResp{Permission: p})
}

func (s *Server) alertHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.History.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []domain.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

type evaluateResp struct {
	Emitted int `json:"emitted"`
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	n := s.Scheduler.Tick(r.Context(), s.Now())
	writeJSON(w, http.StatusOK, evaluateResp{Emitted: n})
}

func (s *Server) clearAlerts(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notified(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Scheduler.Notified())
}

type digestResp struct {
	Scheduled bool       `json:"scheduled"`
	Next      *time.Time `json:"next,omitempty"`
}

func (s *Server) digest(w http.ResponseWriter, r *http.Request) {
	next, ok := s.Scheduler.NextDigest(s.Now())
	resp := digestResp{Scheduled: ok}
	if ok {
		resp.Next = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
