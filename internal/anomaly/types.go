package anomaly

import (
	"time"

	"edubench/internal/metric"
)

// Type classifies how a sample deviated.
type Type string

const (
	SuddenDrop    Type = "sudden_drop"
	UnusualSpike  Type = "unusual_spike"
	PeerDeviation Type = "peer_deviation"
)

// Severity grades how far outside the expected band the sample landed.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ResolutionStatus tracks the workflow state of a record. The detector only
// ever creates records in StatusDetected; every later transition
// (Detected -> InReview -> Resolved|Dismissed) is driven by the host workflow.
type ResolutionStatus string

const (
	StatusDetected  ResolutionStatus = "detected"
	StatusInReview  ResolutionStatus = "in_review"
	StatusResolved  ResolutionStatus = "resolved"
	StatusDismissed ResolutionStatus = "dismissed"
)

// AffectedMetric describes the deviation of one metric inside a record.
type AffectedMetric struct {
	Metric          metric.Type `json:"metric"`
	CurrentValue    float64     `json:"current_value"`
	ExpectedValue   float64     `json:"expected_value"`
	Deviation       float64     `json:"deviation"`
	HistoricalRange [2]float64  `json:"historical_range"`
}

// Cause is one entry of the deterministic cause lookup.
type Cause struct {
	Cause            string  `json:"cause"`
	Probability      float64 `json:"probability"`
	Category         string  `json:"category"`
	EvidenceStrength string  `json:"evidence_strength"`
}

// Recommendation is one entry of the deterministic remediation lookup.
type Recommendation struct {
	Action          string `json:"action"`
	Priority        string `json:"priority"`
	EstimatedImpact string `json:"estimated_impact"`
	Complexity      string `json:"complexity"`
	Timeframe       string `json:"timeframe"`
}

// Record is a single detected anomaly. Immutable once emitted.
type Record struct {
	ID               string           `json:"anomaly_id"`
	EntityID         string           `json:"entity_id"`
	AnonymizedID     string           `json:"anonymized_id,omitempty"`
	DetectedAt       time.Time        `json:"detected_at"`
	Type             Type             `json:"type"`
	Severity         Severity         `json:"severity"`
	Confidence       float64          `json:"confidence"`
	AffectedMetrics  []AffectedMetric `json:"affected_metrics"`
	PotentialCauses  []Cause          `json:"potential_causes"`
	Recommendations  []Recommendation `json:"recommendations"`
	ResolutionStatus ResolutionStatus `json:"resolution_status"`
}
