package anomaly

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"edubench/internal/metric"
	"edubench/internal/peergroup"
	"edubench/internal/stats"
)

// Detection thresholds. Historical mode activates at MinHistoryPoints and
// flags beyond ZScoreThreshold; peer mode flags beyond PeerDeviationThreshold
// relative deviation from the cohort benchmark.
const (
	DefaultWindowDays      = 30
	MinHistoryPoints       = 7
	ZScoreThreshold        = 2.5
	PeerDeviationThreshold = 0.25
)

// Detector evaluates metric samples against historical and peer baselines.
// It is pure computation over the injected sample store; both detection modes
// run independently per sample and their findings are unioned.
type Detector struct {
	history    *metric.SampleStore
	windowDays int
}

// NewDetector creates a detector reading history from the given store.
func NewDetector(history *metric.SampleStore) *Detector {
	return &Detector{history: history, windowDays: DefaultWindowDays}
}

// WithWindow overrides the historical lookback window in days.
func (d *Detector) WithWindow(days int) *Detector {
	if days > 0 {
		d.windowDays = days
	}
	return d
}

// Detect runs both detection modes over the current samples of one entity.
// groups is the latest peer-group batch; anonymizedID locates the entity's
// cohort inside it. A missing cohort silently disables peer mode, and short
// history silently disables historical mode — degraded input is valid input.
// Every emitted record starts in StatusDetected.
func (d *Detector) Detect(entityID, anonymizedID string, samples []metric.Sample, groups []peergroup.Group) []Record {
	var records []Record

	for _, sample := range samples {
		if rec, ok := d.detectHistorical(entityID, anonymizedID, sample); ok {
			records = append(records, rec)
		}
		if rec, ok := d.detectPeerDeviation(entityID, anonymizedID, sample, groups); ok {
			records = append(records, rec)
		}
	}

	return records
}

// detectHistorical flags the sample when its z-score against the entity's own
// recent history exceeds the threshold. Requires at least MinHistoryPoints of
// same-type history inside the window.
func (d *Detector) detectHistorical(entityID, anonymizedID string, sample metric.Sample) (Record, bool) {
	values := d.history.Values(entityID, sample.MetricType, d.windowDays, sample.Timestamp)
	if len(values) < MinHistoryPoints {
		return Record{}, false
	}

	mean := stats.Mean(values)
	stddev := stats.StdDev(values)
	z := stats.ZScore(sample.Value, mean, stddev)
	if z <= ZScoreThreshold {
		return Record{}, false
	}

	anomalyType := UnusualSpike
	if sample.Value < mean {
		anomalyType = SuddenDrop
	}

	severity := SeverityMedium
	switch {
	case z > 4:
		severity = SeverityCritical
	case z > 3.5:
		severity = SeverityHigh
	}

	minV, maxV := stats.MinMax(values)
	direction := directionFor(sample.Value, mean)

	rec := Record{
		ID:           uuid.NewString(),
		EntityID:     entityID,
		AnonymizedID: anonymizedID,
		DetectedAt:   time.Now().UTC(),
		Type:         anomalyType,
		Severity:     severity,
		Confidence:   math.Min(0.95, z/4),
		AffectedMetrics: []AffectedMetric{{
			Metric:          sample.MetricType,
			CurrentValue:    sample.Value,
			ExpectedValue:   mean,
			Deviation:       z,
			HistoricalRange: [2]float64{minV, maxV},
		}},
		PotentialCauses:  LookupCauses(sample.MetricType, direction),
		Recommendations:  LookupRecommendations(sample.MetricType, direction),
		ResolutionStatus: StatusDetected,
	}

	log.Debug().
		Str("entity", entityID).
		Str("metric", string(sample.MetricType)).
		Float64("z", z).
		Str("severity", string(severity)).
		Msg("Historical anomaly flagged")

	return rec, true
}

// detectPeerDeviation flags the sample when it strays too far from the
// cohort benchmark. At most one cohort is consulted; the selection tie-break
// lives in peergroup.FindGroupFor.
func (d *Detector) detectPeerDeviation(entityID, anonymizedID string, sample metric.Sample, groups []peergroup.Group) (Record, bool) {
	group, ok := peergroup.FindGroupFor(groups, anonymizedID)
	if !ok {
		return Record{}, false // no cohort: skip peer mode silently
	}

	benchmark, ok := group.Benchmarks[sample.MetricType]
	if !ok || benchmark == 0 {
		return Record{}, false
	}

	relDev := math.Abs(sample.Value-benchmark) / benchmark
	if relDev <= PeerDeviationThreshold {
		return Record{}, false
	}

	severity := SeverityLow
	switch {
	case relDev > 0.5:
		severity = SeverityHigh
	case relDev > 0.35:
		severity = SeverityMedium
	}

	direction := directionFor(sample.Value, benchmark)

	rec := Record{
		ID:           uuid.NewString(),
		EntityID:     entityID,
		AnonymizedID: anonymizedID,
		DetectedAt:   time.Now().UTC(),
		Type:         PeerDeviation,
		Severity:     severity,
		Confidence:   0.8,
		AffectedMetrics: []AffectedMetric{{
			Metric:          sample.MetricType,
			CurrentValue:    sample.Value,
			ExpectedValue:   benchmark,
			Deviation:       relDev,
			HistoricalRange: [2]float64{group.Percentiles.P25[sample.MetricType], group.Percentiles.P90[sample.MetricType]},
		}},
		PotentialCauses:  LookupCauses(sample.MetricType, direction),
		Recommendations:  LookupRecommendations(sample.MetricType, direction),
		ResolutionStatus: StatusDetected,
	}

	log.Debug().
		Str("entity", entityID).
		Str("metric", string(sample.MetricType)).
		Str("group", group.Key).
		Float64("relative_deviation", relDev).
		Msg("Peer deviation flagged")

	return rec, true
}

func directionFor(current, expected float64) Direction {
	if current < expected {
		return Underperforming
	}
	return Overperforming
}

// SweepStats summarizes a detection sweep for reporting layers.
type SweepStats struct {
	Total         int              `json:"total"`
	BySeverity    map[Severity]int `json:"by_severity"`
	ByType        map[Type]int     `json:"by_type"`
	AvgConfidence float64          `json:"avg_confidence"`
}

// Summarize aggregates a batch of records into sweep statistics.
func Summarize(records []Record) SweepStats {
	s := SweepStats{
		Total:      len(records),
		BySeverity: make(map[Severity]int),
		ByType:     make(map[Type]int),
	}
	if len(records) == 0 {
		return s
	}

	sum := 0.0
	for _, r := range records {
		s.BySeverity[r.Severity]++
		s.ByType[r.Type]++
		sum += r.Confidence
	}
	s.AvgConfidence = math.Round(sum/float64(len(records))*100) / 100
	return s
}
