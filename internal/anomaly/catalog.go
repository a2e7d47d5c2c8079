package anomaly

import "edubench/internal/metric"

// Direction orients the catalog lookup relative to the baseline.
type Direction string

const (
	Underperforming Direction = "underperforming"
	Overperforming  Direction = "overperforming"
)

// maxRecommendations caps the action list per record.
const maxRecommendations = 5

type catalogEntry struct {
	causes          []Cause
	recommendations []Recommendation
}

// The catalog is a deterministic lookup keyed by metric type and direction.
// It intentionally contains no logic: detection decides *that* something is
// off, the catalog supplies the institutional knowledge about *why* and
// *what to do*. Unmapped metric types fall back to the generic entry so the
// lookup never returns empty.
var catalog = map[metric.Type]map[Direction]catalogEntry{
	metric.OperationalEfficiency: {
		Underperforming: {
			causes: []Cause{
				{Cause: "Kitchen staffing shortfall during peak service", Probability: 0.35, Category: "staffing", EvidenceStrength: "strong"},
				{Cause: "Equipment degradation slowing meal preparation", Probability: 0.25, Category: "equipment", EvidenceStrength: "moderate"},
				{Cause: "Supply delivery delays disrupting prep schedules", Probability: 0.20, Category: "supply_chain", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Review staff rosters against service peaks", Priority: "high", EstimatedImpact: "10-15% efficiency recovery", Complexity: "low", Timeframe: "1-2 weeks"},
				{Action: "Schedule preventive maintenance for kitchen equipment", Priority: "medium", EstimatedImpact: "5-10% efficiency recovery", Complexity: "medium", Timeframe: "2-4 weeks"},
				{Action: "Renegotiate delivery windows with suppliers", Priority: "medium", EstimatedImpact: "reduced prep delays", Complexity: "medium", Timeframe: "4-6 weeks"},
			},
		},
		Overperforming: {
			causes: []Cause{
				{Cause: "Recent process optimization taking effect", Probability: 0.40, Category: "process", EvidenceStrength: "moderate"},
				{Cause: "Temporarily reduced meal complexity", Probability: 0.25, Category: "menu", EvidenceStrength: "weak"},
			},
			recommendations: []Recommendation{
				{Action: "Document the current workflow as a reference playbook", Priority: "low", EstimatedImpact: "sustained gains", Complexity: "low", Timeframe: "1-2 weeks"},
				{Action: "Verify quality metrics did not degrade alongside the gain", Priority: "medium", EstimatedImpact: "risk mitigation", Complexity: "low", Timeframe: "1 week"},
			},
		},
	},
	metric.FinancialHealth: {
		Underperforming: {
			causes: []Cause{
				{Cause: "Rising ingredient costs not reflected in pricing", Probability: 0.35, Category: "cost", EvidenceStrength: "strong"},
				{Cause: "Payment collection lag from subscribed families", Probability: 0.30, Category: "receivables", EvidenceStrength: "moderate"},
				{Cause: "Food waste from inaccurate demand planning", Probability: 0.20, Category: "waste", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Audit ingredient cost trends against menu pricing", Priority: "high", EstimatedImpact: "margin recovery", Complexity: "medium", Timeframe: "2-3 weeks"},
				{Action: "Tighten dunning cadence for overdue accounts", Priority: "high", EstimatedImpact: "faster cash conversion", Complexity: "low", Timeframe: "1 week"},
				{Action: "Calibrate order quantities to demand forecasts", Priority: "medium", EstimatedImpact: "5-8% waste reduction", Complexity: "medium", Timeframe: "3-4 weeks"},
			},
		},
		Overperforming: {
			causes: []Cause{
				{Cause: "Seasonal enrollment peak lifting revenue", Probability: 0.45, Category: "seasonal", EvidenceStrength: "strong"},
			},
			recommendations: []Recommendation{
				{Action: "Reserve part of the surplus for off-peak months", Priority: "medium", EstimatedImpact: "smoothed cash flow", Complexity: "low", Timeframe: "1 week"},
			},
		},
	},
	metric.NutritionQuality: {
		Underperforming: {
			causes: []Cause{
				{Cause: "Ingredient substitutions lowering nutritional density", Probability: 0.35, Category: "supply_chain", EvidenceStrength: "moderate"},
				{Cause: "Menu rotation drifting from the dietician plan", Probability: 0.30, Category: "menu", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Reconcile served menus with the approved nutrition plan", Priority: "high", EstimatedImpact: "compliance restoration", Complexity: "low", Timeframe: "1-2 weeks"},
				{Action: "Flag substituted ingredients for dietician review", Priority: "medium", EstimatedImpact: "quality guardrail", Complexity: "low", Timeframe: "1 week"},
			},
		},
		Overperforming: {
			causes: []Cause{
				{Cause: "New seasonal produce improving menu scores", Probability: 0.40, Category: "menu", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Lock in supplier contracts for the high-scoring produce", Priority: "low", EstimatedImpact: "sustained quality", Complexity: "medium", Timeframe: "4 weeks"},
			},
		},
	},
	metric.StudentSatisfaction: {
		Underperforming: {
			causes: []Cause{
				{Cause: "Menu fatigue from repetitive weekly rotation", Probability: 0.35, Category: "menu", EvidenceStrength: "moderate"},
				{Cause: "Longer queue times during service", Probability: 0.30, Category: "operations", EvidenceStrength: "moderate"},
				{Cause: "Portion size perception after recipe changes", Probability: 0.15, Category: "menu", EvidenceStrength: "weak"},
			},
			recommendations: []Recommendation{
				{Action: "Introduce a student menu feedback cycle", Priority: "high", EstimatedImpact: "satisfaction lift within a term", Complexity: "low", Timeframe: "2 weeks"},
				{Action: "Stagger service windows to shorten queues", Priority: "medium", EstimatedImpact: "reduced wait complaints", Complexity: "medium", Timeframe: "2-3 weeks"},
			},
		},
		Overperforming: {
			causes: []Cause{
				{Cause: "Recently refreshed menu resonating with students", Probability: 0.45, Category: "menu", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Capture which menu items drive the positive feedback", Priority: "low", EstimatedImpact: "repeatable wins", Complexity: "low", Timeframe: "1-2 weeks"},
			},
		},
	},
	metric.SafetyCompliance: {
		Underperforming: {
			causes: []Cause{
				{Cause: "Lapsed staff certification renewals", Probability: 0.35, Category: "training", EvidenceStrength: "strong"},
				{Cause: "Cold-chain excursions in storage logs", Probability: 0.30, Category: "equipment", EvidenceStrength: "strong"},
			},
			recommendations: []Recommendation{
				{Action: "Schedule certification renewals for lapsed staff", Priority: "critical", EstimatedImpact: "compliance restoration", Complexity: "low", Timeframe: "1 week"},
				{Action: "Audit refrigeration logs and sensor calibration", Priority: "high", EstimatedImpact: "incident prevention", Complexity: "medium", Timeframe: "1-2 weeks"},
			},
		},
		Overperforming: {
			causes: []Cause{
				{Cause: "Recent audit preparation raising adherence", Probability: 0.50, Category: "process", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Convert the audit checklist into routine practice", Priority: "low", EstimatedImpact: "sustained compliance", Complexity: "low", Timeframe: "2 weeks"},
			},
		},
	},
	metric.MealDemand: {
		Underperforming: {
			causes: []Cause{
				{Cause: "Attendance dip from holidays or local events", Probability: 0.40, Category: "seasonal", EvidenceStrength: "strong"},
				{Cause: "Menu changes suppressing uptake", Probability: 0.25, Category: "menu", EvidenceStrength: "moderate"},
			},
			recommendations: []Recommendation{
				{Action: "Cross-check attendance records for the same days", Priority: "medium", EstimatedImpact: "explains demand gap", Complexity: "low", Timeframe: "days"},
				{Action: "Reduce prepared volume until demand recovers", Priority: "high", EstimatedImpact: "waste avoidance", Complexity: "low", Timeframe: "immediate"},
			},
		},
		Overperforming: {
			causes: []Cause{
				{Cause: "Enrollment growth outpacing the demand baseline", Probability: 0.45, Category: "growth", EvidenceStrength: "strong"},
			},
			recommendations: []Recommendation{
				{Action: "Raise prepared volume and verify supply coverage", Priority: "high", EstimatedImpact: "avoids service shortfall", Complexity: "low", Timeframe: "immediate"},
			},
		},
	},
}

var genericEntry = map[Direction]catalogEntry{
	Underperforming: {
		causes: []Cause{
			{Cause: "Operational disruption in an untracked area", Probability: 0.30, Category: "general", EvidenceStrength: "weak"},
			{Cause: "Data collection gap skewing the metric", Probability: 0.25, Category: "data_quality", EvidenceStrength: "weak"},
		},
		recommendations: []Recommendation{
			{Action: "Review recent operational changes for this metric", Priority: "medium", EstimatedImpact: "root-cause identification", Complexity: "low", Timeframe: "1 week"},
			{Action: "Validate the collection pipeline for this metric", Priority: "medium", EstimatedImpact: "data confidence", Complexity: "low", Timeframe: "days"},
		},
	},
	Overperforming: {
		causes: []Cause{
			{Cause: "Positive operational change not yet catalogued", Probability: 0.30, Category: "general", EvidenceStrength: "weak"},
			{Cause: "Data collection gap skewing the metric", Probability: 0.25, Category: "data_quality", EvidenceStrength: "weak"},
		},
		recommendations: []Recommendation{
			{Action: "Confirm the surge with a secondary data source", Priority: "low", EstimatedImpact: "data confidence", Complexity: "low", Timeframe: "days"},
		},
	},
}

// LookupCauses returns the potential causes for a metric deviating in the
// given direction. Never returns an empty slice.
func LookupCauses(metricType metric.Type, direction Direction) []Cause {
	if byDir, ok := catalog[metricType]; ok {
		if entry, ok := byDir[direction]; ok && len(entry.causes) > 0 {
			return append([]Cause(nil), entry.causes...)
		}
	}
	return append([]Cause(nil), genericEntry[direction].causes...)
}

// LookupRecommendations returns the remediation actions for a metric deviating
// in the given direction, capped at 5 entries. Never returns an empty slice.
func LookupRecommendations(metricType metric.Type, direction Direction) []Recommendation {
	var recs []Recommendation
	if byDir, ok := catalog[metricType]; ok {
		if entry, ok := byDir[direction]; ok && len(entry.recommendations) > 0 {
			recs = append([]Recommendation(nil), entry.recommendations...)
		}
	}
	if recs == nil {
		recs = append([]Recommendation(nil), genericEntry[direction].recommendations...)
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
