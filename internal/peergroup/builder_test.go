package peergroup

import (
	"math"
	"testing"

	"edubench/internal/metric"
)

func basicEntities() []metric.Entity {
	return []metric.Entity{
		{ID: "A", Tier: "BASIC", StudentCount: 150},
		{ID: "B", Tier: "BASIC", StudentCount: 180},
		{ID: "C", Tier: "BASIC", StudentCount: 190},
	}
}

func basicComposites() map[string]metric.CompositeScores {
	return map[string]metric.CompositeScores{
		"A": {OperationalEfficiency: 60, FinancialHealth: 60, NutritionQuality: 60, StudentSatisfaction: 60, SafetyCompliance: 60},
		"B": {OperationalEfficiency: 70, FinancialHealth: 70, NutritionQuality: 70, StudentSatisfaction: 70, SafetyCompliance: 70},
		"C": {OperationalEfficiency: 80, FinancialHealth: 80, NutritionQuality: 80, StudentSatisfaction: 80, SafetyCompliance: 80},
	}
}

func newTestBuilder(ids ...string) (*Builder, *Registry) {
	reg := NewRegistry("test-salt", ids)
	return NewBuilder(reg), reg
}

func TestSizeCategory(t *testing.T) {
	tests := []struct {
		count    int
		expected string
	}{
		{0, "small"},
		{200, "small"},
		{201, "medium"},
		{500, "medium"},
		{501, "large"},
		{1000, "large"},
		{1001, "xlarge"},
		{5000, "xlarge"},
	}

	for _, tt := range tests {
		if got := SizeCategory(tt.count); got != tt.expected {
			t.Errorf("SizeCategory(%d) = %q, want %q", tt.count, got, tt.expected)
		}
	}
}

func TestBuildTierCohort(t *testing.T) {
	b, reg := newTestBuilder("A", "B", "C")
	groups := b.Build(basicEntities(), basicComposites())

	if len(groups) != 1 {
		t.Fatalf("Build() produced %d groups, want 1", len(groups))
	}

	g := groups[0]
	if g.Key != "BASIC_small" {
		t.Errorf("Key = %q, want BASIC_small", g.Key)
	}
	if g.Kind != KindTierSize {
		t.Errorf("Kind = %q, want %q", g.Kind, KindTierSize)
	}
	if len(g.Members) != 3 {
		t.Errorf("Members = %d, want 3", len(g.Members))
	}

	if got := g.Benchmarks[metric.OperationalEfficiency]; got != 70 {
		t.Errorf("Benchmarks[operational_efficiency] = %v, want 70", got)
	}
	if got := g.Percentiles.P50[metric.OperationalEfficiency]; got != 70 {
		t.Errorf("P50[operational_efficiency] = %v, want 70", got)
	}

	// Members are anonymized: none of the real ids may appear.
	for _, m := range g.Members {
		if m == "A" || m == "B" || m == "C" {
			t.Errorf("group leaked real entity id %q", m)
		}
		if _, ok := reg.Resolve(m); !ok {
			t.Errorf("member %q not resolvable through registry", m)
		}
	}
}

func TestBuildTwoMembersIsNeverInstantiated(t *testing.T) {
	b, _ := newTestBuilder("A", "B")
	entities := basicEntities()[:2]

	groups := b.Build(entities, basicComposites())
	if len(groups) != 0 {
		t.Errorf("2-member cohort must not be instantiated, got %d groups", len(groups))
	}
}

func TestBuildRegionalThreshold(t *testing.T) {
	entities := []metric.Entity{
		{ID: "A", Tier: "BASIC", StudentCount: 100, Region: "north"},
		{ID: "B", Tier: "PREMIUM", StudentCount: 300, Region: "north"},
		{ID: "C", Tier: "BASIC", StudentCount: 700, Region: "north"},
		{ID: "D", Tier: "PREMIUM", StudentCount: 900, Region: "north"},
	}
	ids := []string{"A", "B", "C", "D"}

	b, _ := newTestBuilder(ids...)
	groups := b.Build(entities, basicComposites())
	for _, g := range groups {
		if g.Kind == KindRegional {
			t.Fatalf("regional cohort with 4 members must not be instantiated")
		}
	}

	// Fifth member crosses the threshold.
	entities = append(entities, metric.Entity{ID: "E", Tier: "BASIC", StudentCount: 120, Region: "north"})
	b, _ = newTestBuilder(append(ids, "E")...)
	groups = b.Build(entities, basicComposites())

	found := false
	for _, g := range groups {
		if g.Kind == KindRegional && g.Key == "north" {
			found = true
			if len(g.Members) != 5 {
				t.Errorf("regional members = %d, want 5", len(g.Members))
			}
		}
	}
	if !found {
		t.Error("regional cohort with 5 members was not instantiated")
	}
}

func TestBuildEntityInMultipleGroups(t *testing.T) {
	// 5 BASIC/small entities in the same region: one tier cohort + one
	// regional cohort, each entity in both.
	var entities []metric.Entity
	var ids []string
	composites := make(map[string]metric.CompositeScores)
	for _, id := range []string{"A", "B", "C", "D", "E"} {
		entities = append(entities, metric.Entity{ID: id, Tier: "BASIC", StudentCount: 150, Region: "south"})
		ids = append(ids, id)
		composites[id] = metric.CompositeScores{OperationalEfficiency: 70}
	}

	b, reg := newTestBuilder(ids...)
	groups := b.Build(entities, composites)

	if len(groups) != 2 {
		t.Fatalf("Build() produced %d groups, want 2", len(groups))
	}

	anonA, _ := reg.Anonymize("A")
	for _, g := range groups {
		if !g.HasMember(anonA) {
			t.Errorf("group %q missing member A", g.Key)
		}
	}
}

func TestBuildNeutralDefaultsWhenNoData(t *testing.T) {
	b, _ := newTestBuilder("A", "B", "C")
	groups := b.Build(basicEntities(), nil)

	if len(groups) != 1 {
		t.Fatalf("cohort without data must still be instantiated, got %d", len(groups))
	}

	g := groups[0]
	for _, mt := range metric.CompositeTypes() {
		if g.Benchmarks[mt] != 50 {
			t.Errorf("Benchmarks[%s] = %v, want neutral 50", mt, g.Benchmarks[mt])
		}
	}
	if g.Percentiles.P25[metric.FinancialHealth] != 25 ||
		g.Percentiles.P50[metric.FinancialHealth] != 50 ||
		g.Percentiles.P75[metric.FinancialHealth] != 75 ||
		g.Percentiles.P90[metric.FinancialHealth] != 90 {
		t.Errorf("neutral percentile defaults wrong: %+v", g.Percentiles)
	}
}

func TestBuildPartialDataDoesNotFailBatch(t *testing.T) {
	b, _ := newTestBuilder("A", "B", "C")
	composites := basicComposites()
	delete(composites, "C") // C has no usable history

	groups := b.Build(basicEntities(), composites)
	if len(groups) != 1 {
		t.Fatalf("Build() produced %d groups, want 1", len(groups))
	}

	g := groups[0]
	if len(g.Members) != 3 {
		t.Errorf("dataless entity must stay a member, got %d members", len(g.Members))
	}
	// Benchmark over the two scored members only.
	if got := g.Benchmarks[metric.OperationalEfficiency]; got != 65 {
		t.Errorf("Benchmarks[operational_efficiency] = %v, want 65", got)
	}
}

func TestBuildDeterministic(t *testing.T) {
	b1, _ := newTestBuilder("A", "B", "C")
	b2, _ := newTestBuilder("A", "B", "C")

	g1 := b1.Build(basicEntities(), basicComposites())
	g2 := b2.Build(basicEntities(), basicComposites())

	if len(g1) != len(g2) {
		t.Fatalf("group counts differ: %d vs %d", len(g1), len(g2))
	}
	for i := range g1 {
		for mt, v := range g1[i].Benchmarks {
			if math.Abs(g2[i].Benchmarks[mt]-v) > 1e-9 {
				t.Errorf("benchmarks differ for %s: %v vs %v", mt, v, g2[i].Benchmarks[mt])
			}
		}
		if g1[i].Percentiles.P50[metric.OperationalEfficiency] != g2[i].Percentiles.P50[metric.OperationalEfficiency] {
			t.Error("percentile distributions differ between identical builds")
		}
	}
}

func TestFindGroupForTieBreak(t *testing.T) {
	tier := Group{Key: "BASIC_small", Kind: KindTierSize, Members: []string{"x1", "x2", "x3"}}
	regional := Group{Key: "north", Kind: KindRegional, Members: []string{"x1", "x2", "x3", "x4", "x5"}}

	g, ok := FindGroupFor([]Group{regional, tier}, "x1")
	if !ok {
		t.Fatal("FindGroupFor() found nothing")
	}
	if g.Kind != KindTierSize {
		t.Errorf("tier/size cohort must win over regional, got %q", g.Kind)
	}

	if _, ok := FindGroupFor([]Group{regional, tier}, "ghost"); ok {
		t.Error("FindGroupFor(unknown) should report not found")
	}
}
