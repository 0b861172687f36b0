package filter

import (
	"context"
	"time"

	"github.com/tkingovr/postguard/api"
)

// DecisionRecorder receives one observation per gated post.
type DecisionRecorder interface {
	RecordDecision(verdict api.Verdict, category api.Category, elapsed time.Duration)
}

// MetricsFilter reports gate decisions to a DecisionRecorder.
type MetricsFilter struct {
	recorder DecisionRecorder
}

func NewMetricsFilter(r DecisionRecorder) *MetricsFilter {
	return &MetricsFilter{recorder: r}
}

func (f *MetricsFilter) Name() string { return "metrics" }

func (f *MetricsFilter) Process(_ context.Context, fc *FilterContext) error {
	f.recorder.RecordDecision(fc.Verdict, fc.Result.Category, time.Since(fc.StartTime))
	return nil
}
