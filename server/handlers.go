package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/taskmesh/taskmesh/ledger"
	"github.com/taskmesh/taskmesh/task"
)

// registerAPIRoutes registers the task and ledger routes on the given mux.
func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.getTask)
	mux.HandleFunc("POST /api/tasks/{id}/execute", s.executeTask)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.cancelTask)

	mux.HandleFunc("GET /api/balances/{id}", s.getBalance)
	mux.HandleFunc("GET /api/leaderboard", s.leaderboard)

	mux.HandleFunc("GET /api/events", s.listEvents)
	mux.HandleFunc("GET /api/version", s.handleVersion)
}

// writeDomainError maps domain sentinel errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrInvalidInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, task.ErrNotFound), errors.Is(err, ledger.ErrAgentNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrInvalidTransition), errors.Is(err, ledger.ErrAlreadyCredited):
		writeJSONError(w, http.StatusConflict, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- Task handlers ---

// createTaskRequest is the body accepted by POST /api/tasks.
type createTaskRequest struct {
	Description string        `json:"description"`
	Priority    task.Priority `json:"priority"`
	DependsOn   []string      `json:"depends_on,omitempty"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := s.svc.CreateTask(r.Context(), req.Description, req.Priority, req.DependsOn)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *task.Status
	if v := q.Get("status"); v != "" {
		st := task.Status(v)
		switch st {
		case task.StatusPending, task.StatusRouting, task.StatusExecuting,
			task.StatusCompleted, task.StatusFailed, task.StatusCancelled:
		default:
			writeJSONError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(v))
			return
		}
		status = &st
	}

	limit := 50
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	tasks, err := s.svc.ListTasks(status, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetTask(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) executeTask(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.ExecuteTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.CancelTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- Ledger handlers ---

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.GetBalance(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	entries, err := s.svc.Leaderboard(limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []*ledger.AgentBalance{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Events / status / version ---

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, s.svc.Feed().History(limit))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"uptime":    time.Since(s.startTime).Truncate(time.Second).String(),
		"executors": s.svc.ExecutorHealth(r.Context()),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": s.version,
	})
}
