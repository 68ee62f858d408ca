package server

import (
	"net/http"
	"testing"

	"github.com/taskmesh/taskmesh/dispatch"
	"github.com/taskmesh/taskmesh/executor/mock"
	"github.com/taskmesh/taskmesh/ledger"
	"github.com/taskmesh/taskmesh/routing"
	"github.com/taskmesh/taskmesh/task"
)

func TestCreateAndGetTask(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	var created task.Task
	rr := doJSON(t, s, token, http.MethodPost, "/api/tasks",
		map[string]any{"description": "summarize the report", "priority": 2}, &created)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created.ID == "" || created.Status != task.StatusPending {
		t.Errorf("created = %+v, want pending with id", created)
	}
	if created.Priority != task.PriorityHigh {
		t.Errorf("Priority = %d, want high", created.Priority)
	}

	var got task.Task
	rr = doJSON(t, s, token, http.MethodGet, "/api/tasks/"+created.ID, nil, &got)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	if got.ID != created.ID {
		t.Errorf("got id %q, want %q", got.ID, created.ID)
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	rr := doJSON(t, s, token, http.MethodPost, "/api/tasks",
		map[string]any{"description": ""}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty description, got %d", rr.Code)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	rr := doJSON(t, s, token, http.MethodGet, "/api/tasks/nope", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestExecuteTask_EndToEnd(t *testing.T) {
	m := mock.New("agent-1", routing.ClassLocal, mock.Succeed("done"))
	s := newTestServer(t, m)
	token := login(t, s)

	var created task.Task
	doJSON(t, s, token, http.MethodPost, "/api/tasks",
		map[string]any{"description": "quick job"}, &created)

	var out dispatch.Outcome
	rr := doJSON(t, s, token, http.MethodPost, "/api/tasks/"+created.ID+"/execute", nil, &out)
	if rr.Code != http.StatusOK {
		t.Fatalf("execute: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if out.Task.Status != task.StatusCompleted {
		t.Errorf("Status = %q, want completed", out.Task.Status)
	}
	if out.Reward <= 0 {
		t.Errorf("Reward = %v, want positive", out.Reward)
	}

	// Second execute hits the compare-and-swap and conflicts.
	rr = doJSON(t, s, token, http.MethodPost, "/api/tasks/"+created.ID+"/execute", nil, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("re-execute: expected 409, got %d", rr.Code)
	}

	// The executor's balance is visible.
	var bal ledger.AgentBalance
	rr = doJSON(t, s, token, http.MethodGet, "/api/balances/agent-1", nil, &bal)
	if rr.Code != http.StatusOK {
		t.Fatalf("balance: expected 200, got %d", rr.Code)
	}
	if bal.Balance != out.Reward {
		t.Errorf("Balance = %v, want %v", bal.Balance, out.Reward)
	}

	var board []*ledger.AgentBalance
	rr = doJSON(t, s, token, http.MethodGet, "/api/leaderboard", nil, &board)
	if rr.Code != http.StatusOK || len(board) != 1 {
		t.Errorf("leaderboard: code %d, len %d", rr.Code, len(board))
	}
}

func TestCancelTask(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	var created task.Task
	doJSON(t, s, token, http.MethodPost, "/api/tasks",
		map[string]any{"description": "to be cancelled"}, &created)

	var got task.Task
	rr := doJSON(t, s, token, http.MethodPost, "/api/tasks/"+created.ID+"/cancel", nil, &got)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}
	if got.Status != task.StatusCancelled {
		t.Errorf("Status = %q, want cancelled", got.Status)
	}

	// Cancelling a terminal task conflicts.
	rr = doJSON(t, s, token, http.MethodPost, "/api/tasks/"+created.ID+"/cancel", nil, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("re-cancel: expected 409, got %d", rr.Code)
	}
}

func TestListTasks_StatusFilter(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	for _, desc := range []string{"one", "two"} {
		doJSON(t, s, token, http.MethodPost, "/api/tasks", map[string]any{"description": desc}, nil)
	}

	var tasks []*task.Task
	rr := doJSON(t, s, token, http.MethodGet, "/api/tasks?status=pending", nil, &tasks)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	if len(tasks) != 2 {
		t.Errorf("len = %d, want 2", len(tasks))
	}

	rr = doJSON(t, s, token, http.MethodGet, "/api/tasks?status=bogus", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bogus status: expected 400, got %d", rr.Code)
	}

	var none []*task.Task
	rr = doJSON(t, s, token, http.MethodGet, "/api/tasks?status=completed", nil, &none)
	if rr.Code != http.StatusOK || len(none) != 0 {
		t.Errorf("completed filter: code %d, len %d", rr.Code, len(none))
	}
}

func TestGetBalance_NotFound(t *testing.T) {
	s := newTestServer(t)
	token := login(t, s)

	rr := doJSON(t, s, token, http.MethodGet, "/api/balances/ghost", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestEventsHistory(t *testing.T) {
	s := newTestServer(t, mock.New("agent-1", routing.ClassLocal))
	token := login(t, s)

	var created task.Task
	doJSON(t, s, token, http.MethodPost, "/api/tasks", map[string]any{"description": "evented"}, &created)
	doJSON(t, s, token, http.MethodPost, "/api/tasks/"+created.ID+"/execute", nil, nil)

	var evts []map[string]any
	rr := doJSON(t, s, token, http.MethodGet, "/api/events", nil, &evts)
	if rr.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", rr.Code)
	}
	if len(evts) < 3 {
		t.Errorf("events len = %d, want at least created/routed/completed", len(evts))
	}
}

func TestStatusEndpoint_NoAuth(t *testing.T) {
	m := mock.New("agent-1", routing.ClassLocal)
	m.SetHealthy(false)
	s := newTestServer(t, m)

	var resp struct {
		Status    string          `json:"status"`
		Version   string          `json:"version"`
		Executors map[string]bool `json:"executors"`
	}
	rr := doJSON(t, s, "", http.MethodGet, "/api/status", nil, &resp)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if resp.Status != "ok" || resp.Version != "test" {
		t.Errorf("status = %+v", resp)
	}
	healthy, present := resp.Executors["local"]
	if !present || healthy {
		t.Errorf("executors = %v, want local reported unhealthy", resp.Executors)
	}
}
