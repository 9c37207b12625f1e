// Package delta provides an append-only log of progress mutations in
// object storage. Every progress write lands in the local database and is
// also appended here; after a snapshot restore the log is replayed so
// mutations made since the last snapshot survive restarts. The snapshot
// uploader compacts the log once a fresh snapshot subsumes it.
package delta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

// EntryTypeProgress marks a progress mutation entry.
const EntryTypeProgress = "progress"

// Entry is the wire envelope of a single delta object.
type Entry struct {
	Type      string          `json:"type"`
	CreatedAt int64           `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// ReplayStats summarizes one pass over the log.
type ReplayStats struct {
	ObjectsProcessed int
	ObjectsApplied   int
	ObjectsSkipped   int // decoded but not applicable (orphans, poison entries)
	ObjectsFailed    int // transient failures, left in place for the next pass
}

type objectClient interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Log writes and replays progress delta objects.
type Log struct {
	client     objectClient
	prefix     string
	instanceID string
}

// NewLog creates a delta log rooted at the given key prefix.
func NewLog(client objectClient, prefix, instanceID string) (*Log, error) {
	if client == nil {
		return nil, errors.New("delta: object client is required")
	}
	prefix = normalizePrefix(prefix)
	if prefix == "" {
		return nil, errors.New("delta: prefix must not be empty")
	}
	if instanceID == "" {
		instanceID = "unknown"
	}
	return &Log{client: client, prefix: prefix, instanceID: instanceID}, nil
}

// RecordProgress appends one progress mutation to the log.
func (l *Log) RecordProgress(ctx context.Context, p *storage.Progress) error {
	if p == nil {
		return nil
	}
	return l.record(ctx, EntryTypeProgress, p)
}

// Replay applies all pending delta objects in timestamp order without
// removing them. Used after a snapshot restore on startup.
func (l *Log) Replay(ctx context.Context, db *storage.DB) (ReplayStats, error) {
	return l.walk(ctx, db, false)
}

// Compact applies all pending delta objects and removes every object it
// could read. The caller uploads a fresh snapshot right after, so the
// removed entries stay represented in storage.
func (l *Log) Compact(ctx context.Context, db *storage.DB) (ReplayStats, error) {
	return l.walk(ctx, db, true)
}

func (l *Log) walk(ctx context.Context, db *storage.DB, removeAfter bool) (ReplayStats, error) {
	keys, err := l.client.ListObjects(ctx, l.objectPrefix())
	if err != nil {
		return ReplayStats{}, fmt.Errorf("delta: list objects: %w", err)
	}

	// Entries from all instances interleave; the timestamp in the object
	// basename orders them so the newest mutation wins.
	sort.Slice(keys, func(i, j int) bool {
		ti, okI := entryTimestamp(keys[i])
		tj, okJ := entryTimestamp(keys[j])
		if okI && okJ {
			return ti < tj
		}
		return keys[i] < keys[j]
	})

	stats := ReplayStats{}
	for _, key := range keys {
		stats.ObjectsProcessed++

		applied, err := l.applyObject(ctx, db, key)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.ObjectsFailed++
			slog.WarnContext(ctx, "Delta entry failed, leaving for next pass", "key", key, "error", err)
			continue
		}
		if applied {
			stats.ObjectsApplied++
		} else {
			stats.ObjectsSkipped++
		}

		if removeAfter {
			if err := l.client.DeleteObject(ctx, key); err != nil {
				slog.WarnContext(ctx, "Failed to remove compacted delta entry", "key", key, "error", err)
			}
		}
	}

	return stats, nil
}

// applyObject downloads and applies one entry. Returns (false, nil) for
// entries that can never apply, and an error for transient failures.
func (l *Log) applyObject(ctx context.Context, db *storage.DB, key string) (bool, error) {
	body, _, err := l.client.Download(ctx, key)
	if err != nil {
		return false, fmt.Errorf("download: %w", err)
	}
	defer func() {
		_ = body.Close()
	}()

	var entry Entry
	if err := json.NewDecoder(body).Decode(&entry); err != nil {
		slog.WarnContext(ctx, "Undecodable delta entry", "key", key, "error", err)
		return false, nil
	}

	switch entry.Type {
	case EntryTypeProgress:
		var p storage.Progress
		if err := json.Unmarshal(entry.Payload, &p); err != nil {
			slog.WarnContext(ctx, "Undecodable progress payload", "key", key, "error", err)
			return false, nil
		}
		if err := db.UpdateProgress(ctx, &p); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				slog.DebugContext(ctx, "Delta entry references unknown course", "key", key, "course_id", p.CourseID)
				return false, nil
			}
			return false, fmt.Errorf("apply progress: %w", err)
		}
		return true, nil

	default:
		slog.WarnContext(ctx, "Unknown delta entry type", "key", key, "type", entry.Type)
		return false, nil
	}
}

func (l *Log) record(ctx context.Context, entryType string, payload any) error {
	payloadData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("delta: marshal payload: %w", err)
	}

	entry := Entry{
		Type:      entryType,
		CreatedAt: time.Now().UTC().Unix(),
		Payload:   payloadData,
	}
	entryData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("delta: marshal entry: %w", err)
	}

	key := l.objectKey()
	if _, err := l.client.Upload(ctx, key, bytes.NewReader(entryData), "application/json"); err != nil {
		return fmt.Errorf("delta: upload entry: %w", err)
	}
	return nil
}

func (l *Log) objectPrefix() string {
	return l.prefix + "/"
}

func (l *Log) objectKey() string {
	return fmt.Sprintf("%s/%s/%d-%s.json", l.prefix, l.instanceID, time.Now().UnixNano(), uuid.NewString())
}

// entryTimestamp extracts the nanosecond timestamp from an object basename
// of the form <unixnano>-<uuid>.json.
func entryTimestamp(key string) (int64, bool) {
	base := path.Base(key)
	ts, _, found := strings.Cut(base, "-")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}
