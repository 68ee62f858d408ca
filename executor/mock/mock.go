// Package mock provides a scripted executor for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/executor"
	"github.com/taskmesh/taskmesh/routing"
)

const defaultOutput = "ok"

// Executor implements executor.Executor for testing. It returns scripted
// results in order, repeating the last one once the script is exhausted.
type Executor struct {
	mu      sync.Mutex
	id      string
	class   routing.Class
	results []executor.Result
	idx     int
	healthy bool

	// Calls records every description passed to Execute.
	Calls []string
}

// New creates a mock Executor for the given class that replays results.
// With no scripted results it always succeeds with a fixed output.
func New(id string, class routing.Class, results ...executor.Result) *Executor {
	if id == "" {
		id = "mock-1"
	}
	return &Executor{id: id, class: class, results: results, healthy: true}
}

// Succeed returns a successful scripted result.
func Succeed(output string) executor.Result {
	return executor.Result{Success: true, Output: output, Duration: time.Millisecond}
}

// Fail returns a failed scripted result with the given kind.
func Fail(kind executor.FailureKind, msg string) executor.Result {
	return executor.Result{Success: false, Kind: kind, ErrorMessage: msg, Duration: time.Millisecond}
}

func (m *Executor) ID() string           { return m.id }
func (m *Executor) Class() routing.Class { return m.class }

// Execute returns the next scripted result.
func (m *Executor) Execute(_ context.Context, description string) executor.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, description)

	if len(m.results) == 0 {
		return Succeed(defaultOutput)
	}
	res := m.results[m.idx]
	if m.idx < len(m.results)-1 {
		m.idx++
	}
	return res
}

// HealthCheck reports the scripted health state.
func (m *Executor) HealthCheck(_ context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// SetHealthy changes the scripted health state.
func (m *Executor) SetHealthy(h bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = h
}

// CallCount returns how many times Execute ran.
func (m *Executor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
