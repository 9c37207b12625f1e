package warmup

import (
	"sync"
	"sync/atomic"
	"time"
)

// Warmup phases, in the order they run.
const (
	PhaseStarting  = "starting"
	PhaseRestoring = "restoring"
	PhaseReplaying = "replaying"
	PhaseSyncing   = "syncing"
	PhaseDone      = "done"
)

// ReadinessState tracks startup warmup progress. The service reports ready
// once the first warmup finishes, or once the timeout elapses so a slow
// upstream cannot hold the instance out of rotation forever. The ready flag
// is atomic; startTime and timeout never change after construction, so only
// the phase needs the mutex.
type ReadinessState struct {
	ready     atomic.Bool
	startTime time.Time
	timeout   time.Duration

	mu    sync.RWMutex
	phase string
}

// ReadinessStatus is the readiness probe response body.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Phase          string `json:"phase"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// NewReadinessState returns a not-ready state in PhaseStarting. The timeout
// counts from now.
func NewReadinessState(timeout time.Duration) *ReadinessState {
	return &ReadinessState{
		startTime: time.Now(),
		timeout:   timeout,
		phase:     PhaseStarting,
	}
}

// IsReady reports whether the service should accept traffic: either warmup
// completed, or the timeout elapsed and the service degrades to serving
// whatever catalog data it has.
func (s *ReadinessState) IsReady() bool {
	if s.ready.Load() {
		return true
	}
	return time.Since(s.startTime) >= s.timeout
}

// MarkReady records warmup completion and moves the phase to done.
func (s *ReadinessState) MarkReady() {
	s.ready.Store(true)
	s.SetPhase(PhaseDone)
}

// SetPhase records which warmup phase is currently running.
func (s *ReadinessState) SetPhase(phase string) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

// Phase returns the warmup phase currently running.
func (s *ReadinessState) Phase() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Status builds the readiness probe response.
func (s *ReadinessState) Status() ReadinessStatus {
	elapsed := time.Since(s.startTime)
	isReady := s.IsReady()

	status := ReadinessStatus{
		Ready:          isReady,
		Phase:          s.Phase(),
		ElapsedSeconds: int(elapsed.Seconds()),
		TimeoutSeconds: int(s.timeout.Seconds()),
	}

	if !isReady {
		status.Reason = "warmup in progress"
	} else if !s.ready.Load() {
		// Ready because the timeout passed, not because warmup finished.
		status.Reason = "timeout reached (warmup may still be running)"
	}

	return status
}

// WarmupCompleted reports whether MarkReady was called. Unlike IsReady it
// does not count the timeout, so callers can tell a warm instance from one
// that merely gave up waiting.
func (s *ReadinessState) WarmupCompleted() bool {
	return s.ready.Load()
}
