package anomaly

import (
	"testing"

	"edubench/internal/metric"
)

func TestLookupNeverEmpty(t *testing.T) {
	types := append(metric.CompositeTypes(), metric.MealDemand, metric.Enrollment, metric.Revenue, metric.Type("unmapped_custom"))

	for _, mt := range types {
		for _, dir := range []Direction{Underperforming, Overperforming} {
			if causes := LookupCauses(mt, dir); len(causes) == 0 {
				t.Errorf("LookupCauses(%s, %s) returned empty", mt, dir)
			}
			recs := LookupRecommendations(mt, dir)
			if len(recs) == 0 {
				t.Errorf("LookupRecommendations(%s, %s) returned empty", mt, dir)
			}
			if len(recs) > maxRecommendations {
				t.Errorf("LookupRecommendations(%s, %s) exceeds cap: %d", mt, dir, len(recs))
			}
		}
	}
}

func TestLookupFallbackForUnmappedType(t *testing.T) {
	causes := LookupCauses(metric.Type("waste_ratio"), Underperforming)
	if causes[0].Category != "general" {
		t.Errorf("unmapped type should use the generic entry, got category %q", causes[0].Category)
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	a := LookupCauses(metric.OperationalEfficiency, Underperforming)
	a[0].Cause = "mutated"

	b := LookupCauses(metric.OperationalEfficiency, Underperforming)
	if b[0].Cause == "mutated" {
		t.Error("catalog entries must not be mutable through returned slices")
	}
}
