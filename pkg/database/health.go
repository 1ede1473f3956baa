package database

import (
	"context"
	"os"
	"time"
)

// HealthStatus represents database health for the /health endpoint.
type HealthStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	JournalMode  string `json:"journal_mode,omitempty"`
	FileBytes    int64  `json:"file_bytes,omitempty"`
}

// Health checks database connectivity and reports SQLite details.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()

	if err := c.db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
		}, err
	}

	status := &HealthStatus{
		Status:       "healthy",
		ResponseTime: time.Since(start).Milliseconds(),
	}

	// journal mode confirms the WAL pragma stuck
	var mode string
	if err := c.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err == nil {
		status.JournalMode = mode
	}

	if c.path != "" {
		if info, err := os.Stat(c.path); err == nil {
			status.FileBytes = info.Size()
		}
	}

	return status, nil
}
