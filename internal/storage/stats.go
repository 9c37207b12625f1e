package storage

import (
	"context"
	"fmt"
)

// GetStats returns overall catalog and progress statistics.
// AverageProgress averages percentage over progress rows only, so courses
// never opened do not drag the number down.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := db.reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&stats.TotalCourses); err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(ROUND(AVG(percentage), 2), 0)
		FROM progress
	`
	if err := db.reader.QueryRowContext(ctx, query).Scan(
		&stats.CoursesWithProgress,
		&stats.CompletedCourses,
		&stats.InProgressCourses,
		&stats.AverageProgress,
	); err != nil {
		return nil, fmt.Errorf("failed to aggregate progress: %w", err)
	}

	perCurriculum, err := db.CountCoursesByCurriculum(ctx)
	if err != nil {
		return nil, err
	}
	stats.CoursesPerCurriculum = perCurriculum

	return stats, nil
}

// GetCurriculumProgress returns per-curriculum completion statistics.
// Courses without a progress row count as zero percent, so the averages
// reflect the whole curriculum rather than only started courses.
func (db *DB) GetCurriculumProgress(ctx context.Context) ([]CurriculumProgress, error) {
	query := `
		SELECT
			c.curriculum,
			COUNT(*) as total_count,
			SUM(CASE WHEN p.status = 'completed' THEN 1 ELSE 0 END) as completed_count,
			SUM(CASE WHEN p.status = 'in_progress' THEN 1 ELSE 0 END) as in_progress_count,
			ROUND(AVG(COALESCE(p.percentage, 0)), 2) as average_percentage
		FROM courses c
		LEFT JOIN progress p ON p.course_id = c.id
		GROUP BY c.curriculum
		ORDER BY c.curriculum
	`

	rows, err := db.reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query curriculum progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []CurriculumProgress
	for rows.Next() {
		var cp CurriculumProgress
		if err := rows.Scan(
			&cp.Curriculum,
			&cp.TotalCourses,
			&cp.Completed,
			&cp.InProgress,
			&cp.AveragePercentage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan curriculum progress: %w", err)
		}
		results = append(results, cp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate curriculum progress: %w", err)
	}

	return results, nil
}

// GetCategoryCounts returns the course count per category of one curriculum.
// Categories are sorted alphabetically.
func (db *DB) GetCategoryCounts(ctx context.Context, curriculum string) ([]CategoryCount, error) {
	query := `
		SELECT category, COUNT(*) as course_count
		FROM courses
		WHERE curriculum = ?
		GROUP BY category
		ORDER BY category
	`

	rows, err := db.reader.QueryContext(ctx, query, curriculum)
	if err != nil {
		return nil, fmt.Errorf("failed to query category counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts = append(counts, cc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category counts: %w", err)
	}

	return counts, nil
}
