package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SaveCourse inserts or updates a course record keyed by id
func (db *DB) SaveCourse(ctx context.Context, course *Course) error {
	topics, err := topicsJSON(course.Topics)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO courses (id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			curriculum = excluded.curriculum,
			category = excluded.category,
			url = excluded.url,
			duration = excluded.duration,
			effort = excluded.effort,
			prerequisites = excluded.prerequisites,
			description = excluded.description,
			topics = excluded.topics,
			updated_at = excluded.updated_at
	`
	start := time.Now()
	_, err = db.writer.ExecContext(ctx, query,
		courseID(course),
		course.Name,
		course.Curriculum,
		course.Category,
		nullString(course.URL),
		nullString(course.Duration),
		nullString(course.Effort),
		nullString(course.Prerequisites),
		nullString(course.Description),
		topics,
		unixOr(course.CreatedAt, now),
		unixOr(course.UpdatedAt, now),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save course",
			"course", course.Name,
			"curriculum", course.Curriculum,
			"error", err)
		return fmt.Errorf("failed to save course: %w", err)
	}

	// Warn on slow queries (>100ms)
	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveCourse",
			"duration_ms", duration.Milliseconds(),
			"course", course.Name)
	}
	return nil
}

// SaveCoursesBatch inserts or updates multiple course records in a single transaction.
// This reduces lock contention during warmup by batching writes.
// Caller-provided ids and timestamps are kept, so snapshot restore
// reproduces rows exactly as exported.
func (db *DB) SaveCoursesBatch(ctx context.Context, courses []*Course) error {
	if len(courses) == 0 {
		return nil
	}

	query := `
		INSERT INTO courses (id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			curriculum = excluded.curriculum,
			category = excluded.category,
			url = excluded.url,
			duration = excluded.duration,
			effort = excluded.effort,
			prerequisites = excluded.prerequisites,
			description = excluded.description,
			topics = excluded.topics,
			updated_at = excluded.updated_at
	`

	start := time.Now()
	now := start.Unix()
	err := db.ExecBatchContext(ctx, query, func(stmt *sql.Stmt) error {
		for _, course := range courses {
			topics, err := topicsJSON(course.Topics)
			if err != nil {
				return fmt.Errorf("course %q: %w", course.Name, err)
			}

			if _, err := stmt.ExecContext(ctx,
				courseID(course),
				course.Name,
				course.Curriculum,
				course.Category,
				nullString(course.URL),
				nullString(course.Duration),
				nullString(course.Effort),
				nullString(course.Prerequisites),
				nullString(course.Description),
				topics,
				unixOr(course.CreatedAt, now),
				unixOr(course.UpdatedAt, now),
			); err != nil {
				slog.ErrorContext(ctx, "failed to save course in batch",
					"course", course.Name,
					"error", err)
				return fmt.Errorf("failed to save course %q: %w", course.Name, err)
			}
		}
		return nil
	})

	if err != nil {
		return err
	}

	// Log batch statistics
	duration := time.Since(start)
	slog.DebugContext(ctx, "batch operation completed",
		"operation", "SaveCoursesBatch",
		"count", len(courses),
		"duration_ms", duration.Milliseconds())

	if duration > 500*time.Millisecond {
		slog.WarnContext(ctx, "slow batch operation",
			"operation", "SaveCoursesBatch",
			"count", len(courses),
			"duration_ms", duration.Milliseconds())
	}

	return nil
}

// ReplaceCurriculumCourses drops a curriculum's catalog and writes a fresh one
// in a single transaction. Progress rows cascade away with the dropped
// courses; use UpsertCourses when study state must survive the sync.
func (db *DB) ReplaceCurriculumCourses(ctx context.Context, curriculum string, courses []*Course) error {
	start := time.Now()

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE curriculum = ?`, curriculum); err != nil {
		return fmt.Errorf("failed to clear curriculum courses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO courses (id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := start.Unix()
	for _, course := range courses {
		topics, err := topicsJSON(course.Topics)
		if err != nil {
			return fmt.Errorf("course %q: %w", course.Name, err)
		}

		if _, err := stmt.ExecContext(ctx,
			courseID(course),
			course.Name,
			curriculum,
			course.Category,
			nullString(course.URL),
			nullString(course.Duration),
			nullString(course.Effort),
			nullString(course.Prerequisites),
			nullString(course.Description),
			topics,
			unixOr(course.CreatedAt, now),
			unixOr(course.UpdatedAt, now),
		); err != nil {
			return fmt.Errorf("failed to insert course %q: %w", course.Name, err)
		}
	}

	if err := upsertCurriculumStats(ctx, tx, curriculum, len(courses), now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	duration := time.Since(start)
	slog.DebugContext(ctx, "batch operation completed",
		"operation", "ReplaceCurriculumCourses",
		"curriculum", curriculum,
		"count", len(courses),
		"duration_ms", duration.Milliseconds())

	if duration > 500*time.Millisecond {
		slog.WarnContext(ctx, "slow batch operation",
			"operation", "ReplaceCurriculumCourses",
			"curriculum", curriculum,
			"count", len(courses),
			"duration_ms", duration.Milliseconds())
	}

	return nil
}

// UpsertCourses merges a freshly extracted catalog into a curriculum inside
// one transaction. Rows are matched by name case-insensitively, mirroring
// the UNIQUE(curriculum, name COLLATE NOCASE) constraint: matched rows keep
// their id so progress survives, unmatched incoming rows are inserted, and
// rows absent from the incoming set are removed.
func (db *DB) UpsertCourses(ctx context.Context, curriculum string, courses []*Course) (*UpsertResult, error) {
	start := time.Now()

	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := curriculumNameIndex(ctx, tx, curriculum)
	if err != nil {
		return nil, err
	}

	insertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO courses (id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer func() { _ = insertStmt.Close() }()

	// Extraction produces no topics, so an empty incoming list keeps
	// whatever enrichment already stored on the row.
	updateStmt, err := tx.PrepareContext(ctx, `
		UPDATE courses SET
			name = ?,
			category = ?,
			url = ?,
			duration = ?,
			effort = ?,
			prerequisites = ?,
			description = ?,
			topics = CASE WHEN ? = '[]' THEN topics ELSE ? END,
			updated_at = ?
		WHERE id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare update statement: %w", err)
	}
	defer func() { _ = updateStmt.Close() }()

	now := start.Unix()
	result := &UpsertResult{}
	keep := make(map[string]bool, len(courses))

	for _, course := range courses {
		topics, err := topicsJSON(course.Topics)
		if err != nil {
			return nil, fmt.Errorf("course %q: %w", course.Name, err)
		}

		if id, ok := existing[strings.ToLower(course.Name)]; ok {
			if _, err := updateStmt.ExecContext(ctx,
				course.Name,
				course.Category,
				nullString(course.URL),
				nullString(course.Duration),
				nullString(course.Effort),
				nullString(course.Prerequisites),
				nullString(course.Description),
				topics, topics,
				now,
				id,
			); err != nil {
				return nil, fmt.Errorf("failed to update course %q: %w", course.Name, err)
			}
			keep[id] = true
			result.Updated++
			continue
		}

		id := courseID(course)
		if _, err := insertStmt.ExecContext(ctx,
			id,
			course.Name,
			curriculum,
			course.Category,
			nullString(course.URL),
			nullString(course.Duration),
			nullString(course.Effort),
			nullString(course.Prerequisites),
			nullString(course.Description),
			topics,
			now, now,
		); err != nil {
			return nil, fmt.Errorf("failed to insert course %q: %w", course.Name, err)
		}
		keep[id] = true
		result.Created++
	}

	// Courses that vanished from the document are removed; their progress
	// rows follow through the cascade.
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM courses WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer func() { _ = deleteStmt.Close() }()

	for _, id := range existing {
		if keep[id] {
			continue
		}
		if _, err := deleteStmt.ExecContext(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to delete stale course %s: %w", id, err)
		}
		result.Removed++
	}

	if err := upsertCurriculumStats(ctx, tx, curriculum, len(courses), now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	duration := time.Since(start)
	slog.DebugContext(ctx, "catalog merge completed",
		"curriculum", curriculum,
		"created", result.Created,
		"updated", result.Updated,
		"removed", result.Removed,
		"duration_ms", duration.Milliseconds())

	if duration > 500*time.Millisecond {
		slog.WarnContext(ctx, "slow batch operation",
			"operation", "UpsertCourses",
			"curriculum", curriculum,
			"count", len(courses),
			"duration_ms", duration.Milliseconds())
	}

	return result, nil
}

// curriculumNameIndex maps a curriculum's existing course names (case-folded)
// to their ids. The cursor is drained before the caller reuses the transaction.
func curriculumNameIndex(ctx context.Context, tx *sql.Tx, curriculum string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM courses WHERE curriculum = ?`, curriculum)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	index := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan existing course: %w", err)
		}
		index[strings.ToLower(name)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate existing courses: %w", err)
	}

	return index, nil
}

// upsertCurriculumStats records the post-sync course count on the curriculum
// row. A fresh insert seeds display_name with the slug; the registry upsert
// fills in the real one.
func upsertCurriculumStats(ctx context.Context, tx *sql.Tx, curriculum string, total int, syncedAt int64) error {
	query := `
		INSERT INTO curricula (name, display_name, total_courses, last_synced)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			total_courses = excluded.total_courses,
			last_synced = excluded.last_synced
	`
	if _, err := tx.ExecContext(ctx, query, curriculum, curriculum, total, syncedAt); err != nil {
		return fmt.Errorf("failed to update curriculum stats: %w", err)
	}
	return nil
}

// UpdateCourseTopics stores enrichment topics for one course
func (db *DB) UpdateCourseTopics(ctx context.Context, id string, topics []string) error {
	topicsStr, err := topicsJSON(topics)
	if err != nil {
		return err
	}

	result, err := db.writer.ExecContext(ctx,
		`UPDATE courses SET topics = ?, updated_at = ? WHERE id = ?`,
		topicsStr, time.Now().Unix(), id,
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update course topics",
			"course_id", id,
			"error", err)
		return fmt.Errorf("failed to update course topics: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetCourseByID retrieves a course by id, returning (nil, nil) when absent
func (db *DB) GetCourseByID(ctx context.Context, id string) (*Course, error) {
	query := `SELECT id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at FROM courses WHERE id = ?`

	var course Course
	var url, duration, effort, prerequisites, description sql.NullString
	var topicsStr string
	var createdAt, updatedAt int64

	err := db.reader.QueryRowContext(ctx, query, id).Scan(
		&course.ID,
		&course.Name,
		&course.Curriculum,
		&course.Category,
		&url,
		&duration,
		&effort,
		&prerequisites,
		&description,
		&topicsStr,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query course",
			"course_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get course by id: %w", err)
	}

	course.URL = url.String
	course.Duration = duration.String
	course.Effort = effort.String
	course.Prerequisites = prerequisites.String
	course.Description = description.String
	course.Topics = db.decodeTopics(ctx, course.ID, topicsStr)
	course.CreatedAt = time.Unix(createdAt, 0).UTC()
	course.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &course, nil
}

// GetCourses lists courses with optional curriculum and category filters.
// A limit of 0 or less returns everything; offset only applies with a limit.
func (db *DB) GetCourses(ctx context.Context, curriculum, category string, limit, offset int) ([]Course, error) {
	query := `SELECT id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at FROM courses`

	var conditions []string
	var args []any
	if curriculum != "" {
		conditions = append(conditions, "curriculum = ?")
		args = append(args, curriculum)
	}
	if category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, category)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY curriculum, category, name"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := db.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return db.scanCourses(ctx, rows)
}

// GetAllCourses retrieves the whole catalog, ordered for stable export
func (db *DB) GetAllCourses(ctx context.Context) ([]Course, error) {
	return db.GetCourses(ctx, "", "", 0, 0)
}

// SearchCoursesByName searches courses by partial name or description match (max 500 results)
func (db *DB) SearchCoursesByName(ctx context.Context, term string) ([]Course, error) {
	// Validate input
	if len(term) > 100 {
		return nil, errors.New("search term too long")
	}

	// Sanitize search term to prevent SQL LIKE special character issues
	sanitized := sanitizeSearchTerm(term)
	pattern := "%" + sanitized + "%"

	query := `SELECT id, name, curriculum, category, url, duration, effort, prerequisites, description, topics, created_at, updated_at FROM courses WHERE name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' ORDER BY curriculum, name LIMIT 500`

	rows, err := db.reader.QueryContext(ctx, query, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return db.scanCourses(ctx, rows)
}

// CountCourses returns the total number of courses
func (db *DB) CountCourses(ctx context.Context) (int, error) {
	var count int
	err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}

// CountCoursesByCurriculum returns the number of courses grouped by curriculum
func (db *DB) CountCoursesByCurriculum(ctx context.Context) (map[string]int, error) {
	query := `SELECT curriculum, COUNT(*) FROM courses GROUP BY curriculum`

	rows, err := db.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count courses by curriculum: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var curriculum string
		var count int
		if err := rows.Scan(&curriculum, &count); err != nil {
			return nil, fmt.Errorf("failed to scan curriculum count: %w", err)
		}
		counts[curriculum] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate curriculum counts: %w", err)
	}

	return counts, nil
}

// CurriculumRepository provides CRUD operations for the curricula table

// UpsertCurriculum writes the registry identity of a curriculum.
// Sync stats (total_courses, last_synced) are owned by the catalog writes
// and survive this upsert.
func (db *DB) UpsertCurriculum(ctx context.Context, c *Curriculum) error {
	query := `
		INSERT INTO curricula (name, display_name, description, github_url, total_courses, last_synced)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			github_url = excluded.github_url
	`
	_, err := db.writer.ExecContext(ctx, query,
		c.Name,
		c.DisplayName,
		nullString(c.Description),
		nullString(c.GitHubURL),
		c.TotalCourses,
		nullUnix(c.LastSynced),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upsert curriculum",
			"curriculum", c.Name,
			"error", err)
		return fmt.Errorf("failed to upsert curriculum: %w", err)
	}
	return nil
}

// GetCurriculum retrieves one curriculum by name, returning (nil, nil) when absent
func (db *DB) GetCurriculum(ctx context.Context, name string) (*Curriculum, error) {
	query := `SELECT name, display_name, description, github_url, total_courses, last_synced FROM curricula WHERE name = ?`

	var c Curriculum
	var description, githubURL sql.NullString
	var lastSynced sql.NullInt64

	err := db.reader.QueryRowContext(ctx, query, name).Scan(
		&c.Name,
		&c.DisplayName,
		&description,
		&githubURL,
		&c.TotalCourses,
		&lastSynced,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get curriculum: %w", err)
	}

	c.Description = description.String
	c.GitHubURL = githubURL.String
	c.LastSynced = unixTime(lastSynced)

	return &c, nil
}

// GetAllCurricula retrieves all curricula ordered by name
func (db *DB) GetAllCurricula(ctx context.Context) ([]Curriculum, error) {
	query := `SELECT name, display_name, description, github_url, total_courses, last_synced FROM curricula ORDER BY name`

	rows, err := db.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list curricula: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var curricula []Curriculum
	for rows.Next() {
		var c Curriculum
		var description, githubURL sql.NullString
		var lastSynced sql.NullInt64

		if err := rows.Scan(
			&c.Name,
			&c.DisplayName,
			&description,
			&githubURL,
			&c.TotalCourses,
			&lastSynced,
		); err != nil {
			return nil, fmt.Errorf("failed to scan curriculum row: %w", err)
		}

		c.Description = description.String
		c.GitHubURL = githubURL.String
		c.LastSynced = unixTime(lastSynced)

		curricula = append(curricula, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate curricula: %w", err)
	}

	return curricula, nil
}

// ProgressRepository provides CRUD operations for the progress table

// GetProgress retrieves the progress row for a course, returning (nil, nil) when absent
func (db *DB) GetProgress(ctx context.Context, courseID string) (*Progress, error) {
	query := `SELECT course_id, status, percentage, time_spent_hours, notes, started_at, completed_at, updated_at FROM progress WHERE course_id = ?`

	var p Progress
	var startedAt, completedAt sql.NullInt64
	var updatedAt int64

	err := db.reader.QueryRowContext(ctx, query, courseID).Scan(
		&p.CourseID,
		&p.Status,
		&p.Percentage,
		&p.TimeSpentHours,
		&p.Notes,
		&startedAt,
		&completedAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	p.StartedAt = unixTime(startedAt)
	p.CompletedAt = unixTime(completedAt)
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &p, nil
}

// GetOrCreateProgress returns the progress row for a course, creating the
// default not-started row on first read. Returns (nil, nil) when the course
// itself does not exist.
func (db *DB) GetOrCreateProgress(ctx context.Context, courseID string) (*Progress, error) {
	var exists int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE id = ?`, courseID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	// Status and percentage come from the schema defaults
	query := `INSERT OR IGNORE INTO progress (course_id, updated_at) VALUES (?, ?)`
	if _, err := db.writer.ExecContext(ctx, query, courseID, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("failed to create default progress: %w", err)
	}

	return db.GetProgress(ctx, courseID)
}

// UpdateProgress upserts the full progress row for a course.
// A zero UpdatedAt is stamped with the current time; non-zero values are
// persisted as-is so delta replay keeps the original mutation timestamps.
func (db *DB) UpdateProgress(ctx context.Context, p *Progress) error {
	var exists int
	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE id = ?`, p.CourseID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check course: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("course %s: %w", p.CourseID, ErrNotFound)
	}

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		INSERT INTO progress (course_id, status, percentage, time_spent_hours, notes, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id) DO UPDATE SET
			status = excluded.status,
			percentage = excluded.percentage,
			time_spent_hours = excluded.time_spent_hours,
			notes = excluded.notes,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`
	start := time.Now()
	_, err := db.writer.ExecContext(ctx, query,
		p.CourseID,
		p.Status,
		p.Percentage,
		p.TimeSpentHours,
		p.Notes,
		nullUnix(p.StartedAt),
		nullUnix(p.CompletedAt),
		updatedAt.Unix(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to update progress",
			"course_id", p.CourseID,
			"error", err)
		return fmt.Errorf("failed to update progress: %w", err)
	}

	// Warn on slow queries (>100ms)
	if duration := time.Since(start); duration > 100*time.Millisecond {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "UpdateProgress",
			"duration_ms", duration.Milliseconds(),
			"course_id", p.CourseID)
	}
	return nil
}

// GetAllProgress retrieves every progress row, ordered for stable export
func (db *DB) GetAllProgress(ctx context.Context) ([]Progress, error) {
	query := `SELECT course_id, status, percentage, time_spent_hours, notes, started_at, completed_at, updated_at FROM progress ORDER BY course_id`

	rows, err := db.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Progress
	for rows.Next() {
		var p Progress
		var startedAt, completedAt sql.NullInt64
		var updatedAt int64

		if err := rows.Scan(
			&p.CourseID,
			&p.Status,
			&p.Percentage,
			&p.TimeSpentHours,
			&p.Notes,
			&startedAt,
			&completedAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}

		p.StartedAt = unixTime(startedAt)
		p.CompletedAt = unixTime(completedAt)
		p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

		entries = append(entries, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress rows: %w", err)
	}

	return entries, nil
}

// Helper functions

// courseID returns the course id, minting one when the caller left it empty
func courseID(course *Course) string {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	return course.ID
}

// topicsJSON serializes the topics list, normalizing nil to an empty array
func topicsJSON(topics []string) (string, error) {
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return "", fmt.Errorf("failed to marshal topics: %w", err)
	}
	return string(encoded), nil
}

// decodeTopics deserializes a topics column. A corrupt blob downgrades to an
// empty list instead of failing the whole row.
func (db *DB) decodeTopics(ctx context.Context, courseID, raw string) []string {
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		slog.WarnContext(ctx, "invalid topics JSON",
			"course_id", courseID,
			"error", err)
		db.recordIntegrityIssue("bad_topics_json")
		return []string{}
	}
	if topics == nil {
		return []string{}
	}
	return topics
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullUnix converts an optional time to a nullable unix timestamp column
func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// unixTime converts a nullable unix timestamp column to an optional time
func unixTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

// unixOr returns t as a unix timestamp, or fallback when t is zero
func unixOr(t time.Time, fallback int64) int64 {
	if t.IsZero() {
		return fallback
	}
	return t.Unix()
}

// scanCourses is a helper to scan multiple course rows
func (db *DB) scanCourses(ctx context.Context, rows *sql.Rows) ([]Course, error) {
	var courses []Course

	for rows.Next() {
		var course Course
		var url, duration, effort, prerequisites, description sql.NullString
		var topicsStr string
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&course.ID,
			&course.Name,
			&course.Curriculum,
			&course.Category,
			&url,
			&duration,
			&effort,
			&prerequisites,
			&description,
			&topicsStr,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}

		course.URL = url.String
		course.Duration = duration.String
		course.Effort = effort.String
		course.Prerequisites = prerequisites.String
		course.Description = description.String
		course.Topics = db.decodeTopics(ctx, course.ID, topicsStr)
		course.CreatedAt = time.Unix(createdAt, 0).UTC()
		course.UpdatedAt = time.Unix(updatedAt, 0).UTC()

		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate course rows: %w", err)
	}

	return courses, nil
}
