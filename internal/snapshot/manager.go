// Package snapshot persists catalog snapshots in object storage.
// A snapshot is one zstd-compressed JSON document holding every curriculum,
// course, and progress row. Instances restore the latest snapshot on cold
// start before the first sync, and a leader-elected instance uploads fresh
// snapshots periodically so restarts don't depend on upstream availability.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/garyellow/ossu-tracker-go/internal/config"
	"github.com/garyellow/ossu-tracker-go/internal/r2client"
	"github.com/garyellow/ossu-tracker-go/internal/storage"
)

// ErrNotFound indicates no snapshot exists in the bucket.
var ErrNotFound = errors.New("snapshot: not found")

// formatVersion is bumped when Document changes incompatibly. Restore
// rejects documents written by a newer binary.
const formatVersion = 1

// Config holds snapshot manager configuration.
type Config struct {
	SnapshotKey string        // object key for the snapshot (e.g. "snapshots/catalog.json.zst")
	LockKey     string        // object key for the uploader leader lock
	LockTTL     time.Duration // TTL for the leader lock
}

// Document is the snapshot wire format.
type Document struct {
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Curricula []storage.Curriculum `json:"curricula"`
	Courses   []storage.Course     `json:"courses"`
	Progress  []storage.Progress   `json:"progress"`
}

// RestoreStats reports what a restore wrote into the database.
type RestoreStats struct {
	Curricula int
	Courses   int
	Progress  int
	ETag      string
}

// Manager uploads and restores catalog snapshots.
type Manager struct {
	client      *r2client.Client
	config      Config
	currentETag string
	mu          sync.RWMutex

	leaderMu    sync.Mutex
	leaderLock  *r2client.DistributedLock
	renewCancel context.CancelFunc
	renewDone   chan struct{}
}

// New creates a snapshot manager.
func New(client *r2client.Client, cfg Config) *Manager {
	return &Manager{
		client: client,
		config: cfg,
	}
}

// Upload exports the catalog and progress state and uploads it as the new
// snapshot. Returns the ETag of the uploaded object.
func (m *Manager) Upload(ctx context.Context, db *storage.DB) (string, error) {
	doc, err := buildDocument(ctx, db)
	if err != nil {
		return "", fmt.Errorf("build snapshot: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	compressed, err := r2client.CompressBytes(data)
	if err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}

	etag, err := m.client.Upload(ctx, m.config.SnapshotKey, bytes.NewReader(compressed), "application/zstd")
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	m.SetCurrentETag(etag)

	slog.InfoContext(ctx, "Snapshot uploaded",
		"key", m.config.SnapshotKey,
		"courses", len(doc.Courses),
		"progress", len(doc.Progress),
		"compressed_bytes", len(compressed))

	return etag, nil
}

// Restore downloads the latest snapshot and writes it into the database.
// Returns ErrNotFound when no snapshot exists yet.
func (m *Manager) Restore(ctx context.Context, db *storage.DB) (*RestoreStats, error) {
	body, etag, err := m.client.Download(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer body.Close()

	data, err := r2client.DecompressAll(body)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}

	stats, err := applyDocument(ctx, db, doc)
	if err != nil {
		return nil, err
	}
	stats.ETag = etag
	m.SetCurrentETag(etag)

	slog.InfoContext(ctx, "Snapshot restored",
		"key", m.config.SnapshotKey,
		"curricula", stats.Curricula,
		"courses", stats.Courses,
		"progress", stats.Progress,
		"snapshot_age", time.Since(doc.CreatedAt).Round(time.Second).String())

	return stats, nil
}

// ShouldUpload reports whether this instance should write a new snapshot.
// When another instance uploaded since our last write, the remote ETag no
// longer matches ours; adopt it and skip this round.
func (m *Manager) ShouldUpload(ctx context.Context) (bool, error) {
	remote, err := m.client.HeadObject(ctx, m.config.SnapshotKey)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("head snapshot: %w", err)
	}

	if remote != m.CurrentETag() {
		m.SetCurrentETag(remote)
		return false, nil
	}
	return true, nil
}

// AcquireLeaderLock attempts to become the snapshot uploader.
// On success a background goroutine keeps the lock renewed until
// ReleaseLeaderLock is called or the context is cancelled.
func (m *Manager) AcquireLeaderLock(ctx context.Context) (bool, error) {
	lock := r2client.NewDistributedLock(m.client, m.config.LockKey, m.config.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		return acquired, err
	}
	slog.Debug("Leader lock acquired", "key", m.config.LockKey, "owner", lock.OwnerID())

	m.leaderMu.Lock()
	if m.renewCancel != nil {
		m.renewCancel()
		if m.renewDone != nil {
			<-m.renewDone
		}
	}
	m.leaderLock = lock
	ctx, cancel := context.WithCancel(ctx)
	m.renewCancel = cancel
	m.renewDone = make(chan struct{})
	go m.renewLoop(ctx, lock, m.renewDone)
	m.leaderMu.Unlock()

	return true, nil
}

// ReleaseLeaderLock stops renewal and releases the leader lock.
func (m *Manager) ReleaseLeaderLock(ctx context.Context) error {
	m.leaderMu.Lock()
	lock := m.leaderLock
	cancel := m.renewCancel
	done := m.renewDone
	m.leaderLock = nil
	m.renewCancel = nil
	m.renewDone = nil
	m.leaderMu.Unlock()

	if cancel != nil {
		cancel()
		if done != nil {
			<-done
		}
	}

	if lock == nil {
		return nil
	}
	return lock.Release(ctx)
}

func (m *Manager) renewLoop(ctx context.Context, lock *r2client.DistributedLock, done chan struct{}) {
	defer close(done)

	interval := m.config.LockTTL / 3
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := lock.Renew(ctx)
			if err != nil {
				slog.Warn("Leader lock renew failed", "owner", lock.OwnerID(), "error", err)
				return
			}
			if !renewed {
				slog.Warn("Leader lock lost during renew", "owner", lock.OwnerID())
				return
			}
		}
	}
}

// CurrentETag returns the ETag of the snapshot this instance last wrote
// or restored.
func (m *Manager) CurrentETag() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentETag
}

// SetCurrentETag records the ETag of the snapshot in effect.
func (m *Manager) SetCurrentETag(etag string) {
	m.mu.Lock()
	m.currentETag = etag
	m.mu.Unlock()
}

func buildDocument(ctx context.Context, db *storage.DB) (*Document, error) {
	curricula, err := db.GetAllCurricula(ctx)
	if err != nil {
		return nil, fmt.Errorf("load curricula: %w", err)
	}
	courses, err := db.GetAllCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	progress, err := db.GetAllProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	return &Document{
		Version:   formatVersion,
		CreatedAt: time.Now().UTC(),
		Curricula: curricula,
		Courses:   courses,
		Progress:  progress,
	}, nil
}

func decodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Version > formatVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than this binary supports (%d)", doc.Version, formatVersion)
	}
	return &doc, nil
}

// applyDocument writes a snapshot into the database. Courses go in before
// progress so progress rows always reference existing courses; rows for
// courses the snapshot no longer carries are skipped.
func applyDocument(ctx context.Context, db *storage.DB, doc *Document) (*RestoreStats, error) {
	stats := &RestoreStats{}

	for i := range doc.Curricula {
		if err := db.UpsertCurriculum(ctx, &doc.Curricula[i]); err != nil {
			return nil, fmt.Errorf("restore curriculum %q: %w", doc.Curricula[i].Name, err)
		}
		stats.Curricula++
	}

	for start := 0; start < len(doc.Courses); start += config.InsertBatchSize {
		end := min(start+config.InsertBatchSize, len(doc.Courses))
		batch := make([]*storage.Course, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &doc.Courses[i])
		}
		if err := db.SaveCoursesBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("restore courses: %w", err)
		}
		stats.Courses += len(batch)
	}

	for i := range doc.Progress {
		p := &doc.Progress[i]
		if err := db.UpdateProgress(ctx, p); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				slog.DebugContext(ctx, "skipping progress for unknown course", "course_id", p.CourseID)
				continue
			}
			return nil, fmt.Errorf("restore progress for %s: %w", p.CourseID, err)
		}
		stats.Progress++
	}

	return stats, nil
}
