// Package source defines the contracts for the external systems the analytics
// core pulls raw data from. The core never performs network I/O itself; hosts
// wire in an implementation and own its timeouts and retries.
package source

import (
	"context"

	"edubench/internal/metric"
)

// EntityLister enumerates the schools known to the platform.
type EntityLister interface {
	EntityList(ctx context.Context) ([]metric.Entity, error)
}

// HistoryProvider returns the recorded samples of one metric for an entity
// over the last `days` days, oldest first.
type HistoryProvider interface {
	MetricHistory(ctx context.Context, entityID string, metricType metric.Type, days int) ([]metric.Sample, error)
}

// CompositeProvider returns the current composite scores for an entity.
type CompositeProvider interface {
	CurrentComposite(ctx context.Context, entityID string) (metric.CompositeScores, error)
}

// Provider bundles the three collaborator contracts.
type Provider interface {
	EntityLister
	HistoryProvider
	CompositeProvider
}
