// Package diagnostics records unexpected licensing conditions.
package diagnostics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/tally/internal/licensing/domain"
	"github.com/felixgeelhaar/tally/pkg/observability"
)

// Report is one recorded condition.
type Report struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
	Attrs   []any     `json:"attrs,omitempty"`
}

// Reporter logs each condition at warn level, counts it and keeps the most
// recent ones for the status and diagnostics surfaces.
type Reporter struct {
	logger  *slog.Logger
	metrics observability.Metrics
	limit   int

	mu     sync.Mutex
	recent []Report
}

var _ domain.Diagnostics = (*Reporter)(nil)

// NewReporter creates a reporter that keeps up to limit recent reports.
func NewReporter(logger *slog.Logger, metrics observability.Metrics, limit int) *Reporter {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if limit <= 0 {
		limit = 50
	}
	return &Reporter{logger: logger, metrics: metrics, limit: limit}
}

// Report records err with its attributes.
func (r *Reporter) Report(ctx context.Context, err error, attrs ...any) {
	if err == nil {
		return
	}
	r.logger.WarnContext(ctx, "licensing diagnostic", append([]any{"error", err}, attrs...)...)
	r.metrics.Counter(observability.MetricDiagnosticReports, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, Report{At: time.Now().UTC(), Message: err.Error(), Attrs: attrs})
	if over := len(r.recent) - r.limit; over > 0 {
		r.recent = append([]Report(nil), r.recent[over:]...)
	}
}

// Recent returns the retained reports, oldest first.
func (r *Reporter) Recent() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Report(nil), r.recent...)
}
