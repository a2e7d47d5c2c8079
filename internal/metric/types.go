package metric

import (
	"time"
)

// Type identifies a metric on its native scale.
type Type string

// Composite metric types (0-100 derived scores).
const (
	OperationalEfficiency Type = "operational_efficiency"
	FinancialHealth       Type = "financial_health"
	NutritionQuality      Type = "nutrition_quality"
	StudentSatisfaction   Type = "student_satisfaction"
	SafetyCompliance      Type = "safety_compliance"
)

// Time-series metric families used by forecasting.
const (
	Enrollment Type = "enrollment"
	MealDemand Type = "meal_demand"
	Revenue    Type = "revenue"
)

// CompositeTypes lists the composite metrics in their canonical reporting order.
func CompositeTypes() []Type {
	return []Type{
		OperationalEfficiency,
		FinancialHealth,
		NutritionQuality,
		StudentSatisfaction,
		SafetyCompliance,
	}
}

// SampleContext carries the operational context a sample was collected under.
type SampleContext struct {
	Size           int     `json:"size"`
	Volume         float64 `json:"volume"`
	StaffCount     int     `json:"staff_count"`
	SeasonalFactor float64 `json:"seasonal_factor"`
}

// Sample is a single metric observation for an entity. Immutable once recorded.
type Sample struct {
	EntityID   string        `json:"entity_id"`
	MetricType Type          `json:"metric_type"`
	Value      float64       `json:"value"`
	Timestamp  time.Time     `json:"timestamp"`
	Confidence float64       `json:"confidence"` // 0..1
	Context    SampleContext `json:"context,omitempty"`
}

// identity uniquely describes a sample for deduplication.
func (s Sample) identity() string {
	return s.EntityID + "|" + string(s.MetricType) + "|" + s.Timestamp.UTC().Format(time.RFC3339Nano)
}

// Entity describes a school as seen by the grouping and benchmarking layers.
type Entity struct {
	ID           string `json:"id"`
	Tier         string `json:"tier"`
	StudentCount int    `json:"student_count"`
	Region       string `json:"region,omitempty"`
}

// CompositeScores holds the current 0-100 composite metrics for an entity.
type CompositeScores struct {
	OperationalEfficiency float64 `json:"operational_efficiency"`
	FinancialHealth       float64 `json:"financial_health"`
	NutritionQuality      float64 `json:"nutrition_quality"`
	StudentSatisfaction   float64 `json:"student_satisfaction"`
	SafetyCompliance      float64 `json:"safety_compliance"`
}

// AsMap returns the scores keyed by metric type, in the shape the
// benchmarking layer aggregates over.
func (c CompositeScores) AsMap() map[Type]float64 {
	return map[Type]float64{
		OperationalEfficiency: c.OperationalEfficiency,
		FinancialHealth:       c.FinancialHealth,
		NutritionQuality:      c.NutritionQuality,
		StudentSatisfaction:   c.StudentSatisfaction,
		SafetyCompliance:      c.SafetyCompliance,
	}
}

// Overall returns the unweighted mean of the five composites.
func (c CompositeScores) Overall() float64 {
	return (c.OperationalEfficiency + c.FinancialHealth + c.NutritionQuality +
		c.StudentSatisfaction + c.SafetyCompliance) / 5.0
}
