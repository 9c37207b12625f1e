package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LockInfo is the JSON body of a lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DistributedLock coordinates work across instances using conditional writes.
// Only one holder exists at a time; an expired lock can be stolen. The
// snapshot uploader uses it so a single instance writes each snapshot.
type DistributedLock struct {
	client  *Client
	key     string
	ttl     time.Duration
	ownerID string
	etag    string // ETag of the lock we hold, for renew and release
}

// NewDistributedLock creates a lock handle with a fresh owner ID.
func NewDistributedLock(client *Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client:  client,
		key:     key,
		ttl:     ttl,
		ownerID: uuid.New().String(),
	}
}

// Acquire attempts to take the lock.
// Returns (true, nil) if acquired, (false, nil) if another live holder exists.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	data, err := l.marshalInfo()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	created, etag, err := l.client.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(data), "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	// Lock object exists. If the holder's TTL has passed, steal it with an
	// If-Match write so only one contender wins.
	expired, oldEtag, err := l.checkExpired(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock: check expired: %w", err)
	}
	if !expired {
		return false, nil
	}

	data, err = l.marshalInfo()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	stolen, newEtag, err := l.client.PutObjectIfMatch(ctx, l.key, bytes.NewReader(data), oldEtag, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: steal: %w", err)
	}
	if stolen {
		l.etag = newEtag
		return true, nil
	}

	// Someone else stole it first.
	return false, nil
}

// Renew extends the TTL if we still hold the lock.
// Returns (true, nil) if renewed, (false, nil) if the lock was lost.
func (l *DistributedLock) Renew(ctx context.Context) (bool, error) {
	if l.etag == "" {
		return false, nil
	}

	data, err := l.marshalInfo()
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}

	updated, newEtag, err := l.client.PutObjectIfMatch(ctx, l.key, bytes.NewReader(data), l.etag, "application/json")
	if err != nil {
		return false, fmt.Errorf("renew lock: %w", err)
	}
	if !updated {
		return false, nil
	}

	l.etag = newEtag
	return true, nil
}

// Release deletes the lock object if we still own it. Releasing a lock that
// was stolen or already removed is a no-op.
func (l *DistributedLock) Release(ctx context.Context) error {
	body, _, err := l.client.Download(ctx, l.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("release lock: verify: %w", err)
	}

	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return fmt.Errorf("release lock: read: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		// Corrupt lock body, delete it anyway
		return l.client.DeleteObject(ctx, l.key)
	}
	if info.Owner != l.ownerID {
		return nil
	}
	return l.client.DeleteObject(ctx, l.key)
}

// OwnerID returns the unique identifier of this lock handle.
func (l *DistributedLock) OwnerID() string {
	return l.ownerID
}

func (l *DistributedLock) marshalInfo() ([]byte, error) {
	info := LockInfo{
		Owner:     l.ownerID,
		ExpiresAt: time.Now().Add(l.ttl),
	}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal lock info: %w", err)
	}
	return data, nil
}

// checkExpired reads the current lock and reports whether its TTL passed.
// A missing or unreadable lock body counts as expired.
func (l *DistributedLock) checkExpired(ctx context.Context) (bool, string, error) {
	body, etag, err := l.client.Download(ctx, l.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return true, "", nil
		}
		return false, "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return false, "", fmt.Errorf("read lock: %w", err)
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return true, etag, nil
	}
	return time.Now().After(info.ExpiresAt), etag, nil
}
