// Package store provides the persistence layer for the device monitor.
package store

import (
	"context"

	"device-monitor/internal/model"
)

// Store is the persistence interface consumed by the pipeline and the
// HTTP layer. Lookups that find nothing return (nil, nil); callers treat
// write errors as "did not happen" and skip dependent steps.
type Store interface {
	// Aggregates
	InsertAggregate(ctx context.Context, agg *model.Aggregate) error
	LatestAggregate(ctx context.Context, deviceID string) (*model.Aggregate, error)
	AggregateHistory(ctx context.Context, deviceID string, hours int) ([]*model.Aggregate, error)

	// Rules
	EnabledRules(ctx context.Context, deviceID string) ([]*model.Rule, error)
	InsertRule(ctx context.Context, rule *model.Rule) (int64, error)
	SeedRules(ctx context.Context, deviceID string, rules []*model.Rule) (int, error)

	// Anomalies and insights
	InsertAnomaly(ctx context.Context, anomaly *model.Anomaly) (int64, error)
	InsertInsight(ctx context.Context, anomalyID int64, insight *model.Insight, deviceID string) error
	RecentAnomalies(ctx context.Context, deviceID string, limit int) ([]*model.Anomaly, error)

	// Chat
	InsertChatMessage(ctx context.Context, msg *model.ChatMessage) error
	ChatHistory(ctx context.Context, deviceID string, limit int) ([]*model.ChatMessage, error)

	Close() error
}
