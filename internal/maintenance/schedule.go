// Package maintenance coordinates periodic jobs across instances.
// Job timestamps live in one JSON object in the bucket; instances claim a
// run with an ETag compare-and-set, so an interval elapses fleet-wide
// before the same job fires again.
package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/r2client"
)

// Job names a periodic job gated through the schedule store.
type Job string

// Jobs coordinated across instances.
const (
	JobSync      Job = "sync"
	JobSnapshot  Job = "snapshot"
	JobReconcile Job = "reconcile"
)

// State stores the last run timestamp of each job, as unix seconds.
type State struct {
	LastRuns  map[string]int64 `json:"last_runs"`
	UpdatedAt int64            `json:"updated_at"`
}

// LastRun returns when the job last ran, or zero when it never has.
func (s *State) LastRun(job Job) int64 {
	return s.LastRuns[string(job)]
}

func (s *State) setLastRun(job Job, ts int64) {
	if s.LastRuns == nil {
		s.LastRuns = make(map[string]int64)
	}
	s.LastRuns[string(job)] = ts
}

type scheduleClient interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	PutObjectIfNotExists(ctx context.Context, key string, body io.Reader, contentType string) (bool, string, error)
	PutObjectIfMatch(ctx context.Context, key string, body io.Reader, etag string, contentType string) (bool, string, error)
}

// ScheduleStore persists job schedule state in object storage.
type ScheduleStore struct {
	client         scheduleClient
	key            string
	requestTimeout time.Duration
}

// NewScheduleStore creates a schedule store.
func NewScheduleStore(client scheduleClient, key string, requestTimeout time.Duration) (*ScheduleStore, error) {
	if client == nil {
		return nil, errors.New("maintenance: object client is required")
	}
	if key == "" {
		return nil, errors.New("maintenance: schedule key is required")
	}
	return &ScheduleStore{client: client, key: key, requestTimeout: requestTimeout}, nil
}

// Load returns the current state and ETag. exists=false when the object is
// missing. Transient errors are retried up to 3 times; context cancellation
// is not retried.
func (s *ScheduleStore) Load(ctx context.Context) (State, string, bool, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := range maxRetries {
		state, etag, exists, err := s.loadOnce(ctx)
		if err == nil {
			return state, etag, exists, nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return State{}, "", false, err
		}

		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return State{}, "", false, ctx.Err()
			case <-time.After(100 * time.Millisecond * time.Duration(attempt+1)):
			}
		}
	}

	return State{}, "", false, lastErr
}

func (s *ScheduleStore) loadOnce(ctx context.Context) (State, string, bool, error) {
	readCtx, cancel := s.withTimeout(ctx)
	body, etag, err := s.client.Download(readCtx, s.key)
	if err != nil {
		cancel()
		if errors.Is(err, r2client.ErrNotFound) {
			return State{}, "", false, nil
		}
		return State{}, "", false, fmt.Errorf("maintenance: download state: %w", err)
	}
	defer cancel()
	defer func() {
		_ = body.Close()
	}()

	var state State
	if err := json.NewDecoder(body).Decode(&state); err != nil {
		return State{}, "", false, fmt.Errorf("maintenance: decode state: %w", err)
	}

	return state, etag, true, nil
}

// Ensure returns the state and ETag, creating the object if needed.
func (s *ScheduleStore) Ensure(ctx context.Context) (State, string, error) {
	state, etag, exists, err := s.Load(ctx)
	if err != nil {
		return State{}, "", err
	}
	if exists {
		return state, etag, nil
	}

	state = State{LastRuns: map[string]int64{}, UpdatedAt: time.Now().UTC().Unix()}
	data, err := json.Marshal(state)
	if err != nil {
		return State{}, "", fmt.Errorf("maintenance: marshal state: %w", err)
	}

	writeCtx, cancel := s.withTimeout(ctx)
	created, createdETag, err := s.client.PutObjectIfNotExists(writeCtx, s.key, bytes.NewReader(data), "application/json")
	cancel()
	if err != nil {
		return State{}, "", fmt.Errorf("maintenance: create state: %w", err)
	}
	if created {
		return state, createdETag, nil
	}

	// Another instance created the object; load again.
	state, etag, exists, err = s.Load(ctx)
	if err != nil {
		return State{}, "", err
	}
	if !exists {
		return State{}, "", errors.New("maintenance: state missing after create race")
	}
	return state, etag, nil
}

// Claim attempts to take the next run of a periodic job. It returns true
// when the last run is older than interval and this instance won the
// compare-and-set stamping the new run; false when the job ran recently or
// another instance claimed it first. The stamp happens before the job
// runs, so the interval also covers jobs still in flight.
func (s *ScheduleStore) Claim(ctx context.Context, job Job, interval time.Duration) (bool, error) {
	for range 3 {
		state, etag, err := s.Ensure(ctx)
		if err != nil {
			return false, err
		}

		now := time.Now().UTC()
		if last := state.LastRun(job); last > 0 && now.Sub(time.Unix(last, 0)) < interval {
			return false, nil
		}

		state.setLastRun(job, now.Unix())
		state.UpdatedAt = now.Unix()
		data, err := json.Marshal(state)
		if err != nil {
			return false, fmt.Errorf("maintenance: marshal state: %w", err)
		}

		writeCtx, cancel := s.withTimeout(ctx)
		updated, _, err := s.client.PutObjectIfMatch(writeCtx, s.key, bytes.NewReader(data), etag, "application/json")
		cancel()
		if err != nil {
			return false, fmt.Errorf("maintenance: claim %s: %w", job, err)
		}
		if updated {
			return true, nil
		}
		// Lost the CAS race; reload and re-check whether the winner already
		// covered this interval.
	}

	return false, errors.New("maintenance: failed to claim after retries")
}

func (s *ScheduleStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}
