// Package web serves the daemon status page and its JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/custodia-labs/cmsync/internal/core/domain"
	"github.com/custodia-labs/cmsync/internal/core/ports/driving"
	"github.com/custodia-labs/cmsync/internal/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
	shutdownTimeout     = 5 * time.Second
)

// Server is the status web front-end.
type Server struct {
	addr      string
	scheduler driving.Scheduler
	history   driving.HistoryService

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	errChan  chan error
}

// NewServer creates a status server listening on addr.
// history may be nil, in which case no reports are shown.
func NewServer(addr string, scheduler driving.Scheduler, history driving.HistoryService) *Server {
	if addr == "" {
		addr = domain.DefaultListenAddress
	}
	return &Server{
		addr:      addr,
		scheduler: scheduler,
		history:   history,
		errChan:   make(chan error, 1),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleReport)
	})
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errChan <- err:
			default:
			}
		}
	}()

	logger.Info("web: status page on http://%s/", listener.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Errors reports a serve failure after Start.
func (s *Server) Errors() <-chan error {
	return s.errChan
}

// Stop shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server = nil
	s.listener = nil
	return err
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Running   bool           `json:"running"`
	Paused    bool           `json:"paused"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	LastProbe *time.Time     `json:"last_probe,omitempty"`
	Tasks     []taskResponse `json:"tasks"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Enabled     bool       `json:"enabled"`
	Interval    string     `json:"interval"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// reportResponse is one job report in /api/history.
type reportResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Kind              string     `json:"kind"`
	Source            string     `json:"source"`
	Status            string     `json:"status"`
	Message           string     `json:"message,omitempty"`
	Successful        int        `json:"successful"`
	Failed            int        `json:"failed"`
	Skipped           int        `json:"skipped"`
	Total             int        `json:"total"`
	OutageInterrupted bool       `json:"outage_interrupted"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.scheduler.Status(r.Context())
	if err != nil {
		logger.Error("web: status: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "status unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, toStatusResponse(status))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	reports, err := s.recent(r.Context(), limit)
	if err != nil {
		logger.Error("web: history: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}

	out := make([]reportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, toReportResponse(&reports[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "history disabled"})
		return
	}

	report, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "report not found"})
		return
	case errors.Is(err, domain.ErrInvalidInput):
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		logger.Error("web: report: %v", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "history unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, toReportResponse(report))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	status, err := s.scheduler.Status(r.Context())
	if err != nil {
		logger.Error("web: status: %v", err)
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}
	reports, err := s.recent(r.Context(), defaultHistoryLimit)
	if err != nil {
		logger.Warn("web: history: %v", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{Status: status, Reports: reports}); err != nil {
		logger.Error("web: render: %v", err)
	}
}

func (s *Server) recent(ctx context.Context, limit int) ([]domain.JobReport, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if n > maxHistoryLimit {
		n = maxHistoryLimit
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("web: encode response: %v", err)
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toStatusResponse(status *driving.DaemonStatus) statusResponse {
	out := statusResponse{
		Running:   status.Running,
		Paused:    status.Paused,
		StartedAt: timePtr(status.StartedAt),
		LastProbe: timePtr(status.LastProbe),
		Tasks:     make([]taskResponse, 0, len(status.Tasks)),
	}
	for _, task := range status.Tasks {
		out.Tasks = append(out.Tasks, taskResponse{
			ID:          task.ID,
			Name:        task.Name,
			Enabled:     task.Enabled,
			Interval:    task.Interval.String(),
			LastRun:     timePtr(task.LastRun),
			NextRun:     timePtr(task.NextRun),
			LastSuccess: timePtr(task.LastSuccess),
			LastError:   task.LastError,
		})
	}
	return out
}

func toReportResponse(r *domain.JobReport) reportResponse {
	return reportResponse{
		ID:                r.ID,
		Name:              r.Name,
		Kind:              string(r.Kind),
		Source:            r.Source,
		Status:            string(r.Status),
		Message:           r.Message,
		Successful:        r.Summary.Successful,
		Failed:            r.Summary.Failed,
		Skipped:           r.Summary.Skipped,
		Total:             r.Summary.Total,
		OutageInterrupted: r.Summary.OutageInterrupted,
		StartedAt:         timePtr(r.StartedAt),
		EndedAt:           timePtr(r.EndedAt),
	}
}

type indexData struct {
	Status  *driving.DaemonStatus
	Reports []domain.JobReport
}

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"ts": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="30">
<title>cmsync</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
.paused { color: #b00; }
.running { color: #070; }
</style>
</head>
<body>
<h1>cmsync</h1>
{{if .Status.Paused}}<p class="paused">Paused: repository unreachable (last probe {{ts .Status.LastProbe}})</p>
{{else if .Status.Running}}<p class="running">Running since {{ts .Status.StartedAt}}</p>
{{else}}<p>Stopped</p>{{end}}
<h2>Tasks</h2>
<table>
<tr><th>Task</th><th>Enabled</th><th>Interval</th><th>Last run</th><th>Next run</th><th>Last error</th></tr>
{{range .Status.Tasks}}<tr><td>{{.Name}}</td><td>{{.Enabled}}</td><td>{{.Interval}}</td><td>{{ts .LastRun}}</td><td>{{ts .NextRun}}</td><td>{{.LastError}}</td></tr>
{{end}}</table>
<h2>Recent jobs</h2>
<table>
<tr><th>Started</th><th>Job</th><th>Kind</th><th>Status</th><th>OK</th><th>Failed</th><th>Skipped</th><th>Total</th></tr>
{{range .Reports}}<tr><td>{{ts .StartedAt}}</td><td>{{.Name}}</td><td>{{.Kind}}</td><td>{{.Status}}</td><td>{{.Summary.Successful}}</td><td>{{.Summary.Failed}}</td><td>{{.Summary.Skipped}}</td><td>{{.Summary.Total}}</td></tr>
{{end}}</table>
</body>
</html>
`))
