package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is satisfied by the SQLite store and the Redis cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports unhealthy when the named dependency does not
// answer a ping.
type PingChecker struct {
	name   string
	pinger Pinger
}

func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// TaxonomyChecker reports unhealthy until at least one class is loaded.
// A service with an empty database can answer probes but not queries.
type TaxonomyChecker struct {
	classCount func(ctx context.Context) (int, error)
}

func NewTaxonomyChecker(classCount func(ctx context.Context) (int, error)) *TaxonomyChecker {
	return &TaxonomyChecker{classCount: classCount}
}

func (c *TaxonomyChecker) Name() string { return "taxonomy" }

func (c *TaxonomyChecker) Check(ctx context.Context) CheckResult {
	n, err := c.classCount(ctx)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if n == 0 {
		return CheckResult{Status: StatusUnhealthy, Message: "no taxonomy loaded"}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d classes loaded", n)}
}

// LastIngestChecker degrades when the last ingest failed or is stale.
type LastIngestChecker struct {
	maxAge  time.Duration
	lastRun func() (time.Time, string)
}

// NewLastIngestChecker builds a checker over a snapshot function that
// returns the time of the last ingest attempt and its error, if any.
func NewLastIngestChecker(maxAge time.Duration, lastRun func() (time.Time, string)) *LastIngestChecker {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &LastIngestChecker{maxAge: maxAge, lastRun: lastRun}
}

func (c *LastIngestChecker) Name() string { return "last_ingest" }

func (c *LastIngestChecker) Check(_ context.Context) CheckResult {
	lastRun, lastError := c.lastRun()

	if lastRun.IsZero() {
		return CheckResult{Status: StatusDegraded, Message: "no ingest run yet"}
	}
	if lastError != "" {
		return CheckResult{Status: StatusDegraded, Error: lastError, Message: "last ingest failed"}
	}
	if age := time.Since(lastRun); age > c.maxAge {
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("last ingest %s ago", age.Round(time.Hour))}
	}
	return CheckResult{Status: StatusHealthy}
}
