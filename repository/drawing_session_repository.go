package repository

import (
	"context"
	"fmt"
	"time"

	"time26/database"
	"time26/models"
)

// DrawingSessionRepository reads completed drawing sessions
type DrawingSessionRepository struct {
	q queryable
}

// NewDrawingSessionRepository creates a new drawing session repository
func NewDrawingSessionRepository(db *database.DB) *DrawingSessionRepository {
	return &DrawingSessionRepository{q: db.Pool}
}

func newDrawingSessionRepositoryWithTx(tx queryable) *DrawingSessionRepository {
	return &DrawingSessionRepository{q: tx}
}

// ListBetween returns every session that overlaps [from, to)
func (r *DrawingSessionRepository) ListBetween(ctx context.Context, from, to time.Time) ([]models.DrawingInterval, error) {
	query := `
		SELECT user_id, id, start_time, duration_seconds
		FROM drawing_sessions
		WHERE start_time < $2
		  AND start_time + make_interval(secs => duration_seconds) > $1
		ORDER BY start_time, id
	`

	rows, err := r.q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query drawing sessions: %w", err)
	}
	defer rows.Close()

	var intervals []models.DrawingInterval
	for rows.Next() {
		var iv models.DrawingInterval
		if err := rows.Scan(&iv.UserID, &iv.SessionID, &iv.StartTime, &iv.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan drawing session: %w", err)
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drawing sessions: %w", err)
	}
	return intervals, nil
}
