package models

import "time"

// DrawingInterval is one completed drawing session as recorded by the session store
type DrawingInterval struct {
	UserID          string    `db:"user_id" json:"userId"`
	SessionID       string    `db:"session_id" json:"sessionId"`
	StartTime       time.Time `db:"start_time" json:"startTime"`
	DurationSeconds int64     `db:"duration_seconds" json:"durationSeconds"`
}

// EndTime returns the exclusive end of the interval
func (d DrawingInterval) EndTime() time.Time {
	return d.StartTime.Add(time.Duration(d.DurationSeconds) * time.Second)
}
