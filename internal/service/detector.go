package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"device-monitor/internal/model"
	"device-monitor/internal/store"
)

// Analyzer produces an optional AI insight for a detected anomaly.
// A nil result means analysis was unavailable, which callers tolerate.
type Analyzer interface {
	Analyze(ctx context.Context, ruleName string, agg *model.Aggregate) *model.Insight
}

// Outcome tags the result of one detection tick, making the
// log-and-continue policy a visible, testable branch.
type Outcome string

const (
	// OutcomeNoData: no aggregate persisted yet; nothing evaluated and
	// no status entry emitted.
	OutcomeNoData Outcome = "no_data"
	// OutcomeNoRules: neither stored rules nor fallback rules exist; an
	// OK status entry was emitted.
	OutcomeNoRules Outcome = "no_rules"
	// OutcomeOK: all rules evaluated, none matched.
	OutcomeOK Outcome = "ok"
	// OutcomeAnomaly: a rule matched and an anomaly was recorded.
	OutcomeAnomaly Outcome = "anomaly"
	// OutcomeFailed: the tick was abandoned on an unexpected error; no
	// status entry was emitted.
	OutcomeFailed Outcome = "failed"
)

// Detector evaluates the rule set against the latest persisted aggregate
// once per tick and appends one status check per evaluated tick.
//
// The detector runs on its own timer, unsynchronized with the
// aggregator: the aggregate it sees may be up to one aggregation
// interval old, and at cold start absent entirely.
type Detector struct {
	store     store.Store
	analyzer  Analyzer // may be nil
	statusLog *StatusLog
	deviceID  string
	fallback  []*model.Rule
	logger    zerolog.Logger
}

// NewDetector creates a Detector. analyzer may be nil, disabling AI
// insights. The fallback rule set is consulted only when the device has
// zero enabled rules stored.
func NewDetector(st store.Store, analyzer Analyzer, statusLog *StatusLog, deviceID string, logger zerolog.Logger) *Detector {
	return &Detector{
		store:     st,
		analyzer:  analyzer,
		statusLog: statusLog,
		deviceID:  deviceID,
		fallback:  model.DefaultRules(),
		logger:    logger.With().Str("component", "detector").Logger(),
	}
}

// CheckAnomalies runs one detection tick. Rules are evaluated in stored
// order and the first match wins: its anomaly is persisted, an AI
// insight is attempted best-effort, and one error status entry is
// appended. When nothing matches, one OK entry is appended instead.
func (d *Detector) CheckAnomalies(ctx context.Context) Outcome {
	outcome := d.checkAnomalies(ctx)
	detectionTicks.WithLabelValues(string(outcome)).Inc()
	statusLogSize.Set(float64(d.statusLog.Len()))
	return outcome
}

func (d *Detector) checkAnomalies(ctx context.Context) Outcome {
	latest, err := d.store.LatestAggregate(ctx, d.deviceID)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to fetch latest aggregate, abandoning tick")
		return OutcomeFailed
	}
	if latest == nil {
		d.logger.Debug().Msg("no aggregate yet, skipping detection")
		return OutcomeNoData
	}

	rules, err := d.store.EnabledRules(ctx, d.deviceID)
	if err != nil {
		// A rule fetch failure degrades to the fallback set rather than
		// skipping detection entirely.
		d.logger.Error().Err(err).Msg("failed to fetch rules, using fallback set")
		rules = nil
	}
	if len(rules) == 0 {
		rules = d.fallback
	}
	if len(rules) == 0 {
		d.appendOK(latest)
		return OutcomeNoRules
	}

	for _, rule := range rules {
		value := latest.Field(rule.Condition)
		if !rule.Comparison.Compare(value, rule.Threshold) {
			continue
		}

		d.logger.Warn().
			Str("rule", rule.Name).
			Str("condition", rule.Condition).
			Float64("value", value).
			Float64("threshold", rule.Threshold).
			Msg("anomaly detected")

		d.recordAnomaly(ctx, rule, value, latest)

		d.statusLog.Append(model.StatusCheck{
			Timestamp:     time.Now(),
			HasError:      true,
			Status:        string(rule.Severity),
			Message:       fmt.Sprintf("%s - %s (%.1f%%) > %.1f%%", rule.Name, rule.Condition, value, rule.Threshold),
			CPUPercent:    latest.CPUPercent,
			MemoryPercent: latest.MemoryPercent,
		})
		anomaliesDetected.Inc()
		return OutcomeAnomaly
	}

	d.appendOK(latest)
	return OutcomeOK
}

// recordAnomaly persists the violation and then attempts the optional AI
// insight. The anomaly is stored before analysis so an analysis failure
// never loses the detection; insight failures are logged and swallowed.
func (d *Detector) recordAnomaly(ctx context.Context, rule *model.Rule, value float64, agg *model.Aggregate) {
	anomaly := &model.Anomaly{
		CreatedAt:   time.Now().UTC(),
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		Description: rule.Describe(value),
		MetricValue: value,
		DeviceID:    d.deviceID,
	}

	anomalyID, err := d.store.InsertAnomaly(ctx, anomaly)
	if err != nil {
		d.logger.Error().Err(err).Str("rule", rule.Name).Msg("failed to persist anomaly")
		return
	}

	if d.analyzer == nil {
		return
	}
	insight := d.analyzer.Analyze(ctx, rule.Name, agg)
	if insight == nil {
		return
	}
	if err := d.store.InsertInsight(ctx, anomalyID, insight, d.deviceID); err != nil {
		d.logger.Error().Err(err).Int64("anomaly_id", anomalyID).Msg("failed to persist insight")
		return
	}
	d.logger.Info().
		Str("status", string(insight.Status)).
		Str("rule", rule.Name).
		Msg("AI insight recorded")
}

func (d *Detector) appendOK(agg *model.Aggregate) {
	d.statusLog.Append(model.StatusCheck{
		Timestamp:     time.Now(),
		HasError:      false,
		Status:        model.StatusOK,
		Message:       fmt.Sprintf("All metrics within thresholds (CPU %.1f%%, memory %.1f%%)", agg.CPUPercent, agg.MemoryPercent),
		CPUPercent:    agg.CPUPercent,
		MemoryPercent: agg.MemoryPercent,
	})
}
