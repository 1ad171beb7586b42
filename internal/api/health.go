package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/kitsync/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the process.
type HealthStatus struct {
	Status   string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Uptime   string                    `json:"uptime"`
	Checks   map[string]ComponentCheck `json:"checks"`
	LastRuns map[string]time.Time      `json:"last_runs"`
}

// ComponentCheck represents the health of a single dependency.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded", "not_configured"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthChecker pings the ledger database and the lock Redis. Either may be
// nil; an unconfigured dependency does not affect the overall status.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{db: db, redisClient: redisClient}
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	if hc == nil {
		return map[string]ComponentCheck{}
	}
	return map[string]ComponentCheck{
		"database": hc.checkDatabase(ctx),
		"redis":    hc.checkRedis(ctx),
	}
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return pingResult(time.Since(start), err, time.Second)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "not_configured"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return pingResult(time.Since(start), err, 500*time.Millisecond)
}

func pingResult(latency time.Duration, err error, slow time.Duration) ComponentCheck {
	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// A down database makes the process unhealthy; a down Redis only degrades
// it, since run locks fall back to the database or the process.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	status := "healthy"
	for name, c := range checks {
		switch c.Status {
		case "down":
			if name == "database" {
				return "unhealthy"
			}
			status = "degraded"
		case "degraded":
			status = "degraded"
		}
	}
	return status
}

// HealthCheck reports dependency health and the last run per job. It always
// answers 200; use /health/ready for probes that need a 503.
//
//	GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := h.health.runAllChecks(r.Context())

	h.mu.RLock()
	lastRuns := make(map[string]time.Time, len(h.last))
	for name, rep := range h.last {
		lastRuns[string(name)] = rep.FinishedAt
	}
	h.mu.RUnlock()

	httputil.OK(w, HealthStatus{
		Status:   determineOverallStatus(checks),
		Uptime:   time.Since(h.started).Round(time.Second).String(),
		Checks:   checks,
		LastRuns: lastRuns,
	})
}

// Readiness answers 503 while the process is unhealthy.
//
//	GET /health/ready
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := h.health.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	status := http.StatusOK
	if overall == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  overall != "unhealthy",
		"status": overall,
		"checks": checks,
	})
}
