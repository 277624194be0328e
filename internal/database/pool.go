package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/lib/pq"

	"cineledger/internal/metrics"
)

type PoolStats struct {
	MaxOpenConns      int           `json:"max_open_connections"`
	OpenConns         int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
	Stats        PoolStats     `json:"stats"`
	Timestamp    time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

func (db *DB) GetPoolStats() PoolStats {
	stats := db.Stats()
	metrics.RecordDBPool(stats.InUse, stats.Idle)
	return toPoolStats(stats)
}

func toPoolStats(stats sql.DBStats) PoolStats {
	return PoolStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

// HealthCheck pings the database. A reachable database under pool pressure
// reports degraded rather than healthy.
func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()
	stats := db.GetPoolStats()
	check := HealthCheck{
		Timestamp: start,
		Stats:     stats,
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(pingCtx)
	check.ResponseTime = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
		return check
	}

	check.Warnings = poolWarnings(stats)
	check.Status = StatusHealthy
	if len(check.Warnings) > 0 {
		check.Status = StatusDegraded
		slog.Warn("Database pool under pressure", "warnings", check.Warnings, "in_use", stats.InUse, "max_open", stats.MaxOpenConns)
	}
	return check
}

func poolWarnings(stats PoolStats) []string {
	var warnings []string

	if stats.MaxOpenConns > 0 && stats.InUse > stats.MaxOpenConns*9/10 {
		warnings = append(warnings, fmt.Sprintf("%d of %d connections in use", stats.InUse, stats.MaxOpenConns))
	}
	if stats.WaitCount > 0 && stats.WaitDuration > time.Second {
		warnings = append(warnings, fmt.Sprintf("%d waits totalling %s", stats.WaitCount, stats.WaitDuration))
	}

	return warnings
}

// QueryWithRetry runs a row-returning statement, retrying transient
// failures with linear backoff. Only use it for statements that are safe to
// repeat.
func (db *DB) QueryWithRetry(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	const maxRetries = 3
	const backoffDelay = 100 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		rows, err := db.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, fmt.Errorf("non-retryable error on attempt %d: %w", attempt, err)
		}

		if attempt < maxRetries {
			metrics.DBQueryRetries.Inc()
			slog.Warn("Database query failed, retrying",
				"attempt", attempt, "max_retries", maxRetries, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * backoffDelay):
			}
		}
	}

	return nil, fmt.Errorf("query failed after %d attempts: %w", maxRetries, lastErr)
}

// Postgres SQLSTATEs worth another attempt
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateAdminShutdown        = "57P01"
	sqlStateCannotConnectNow     = "57P03"
	sqlClassConnectionException  = "08"
)

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateAdminShutdown, sqlStateCannotConnectNow:
			return true
		}
		return pqErr.Code.Class() == sqlClassConnectionException
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// lib/pq sometimes surfaces socket errors as plain strings
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}
