package peergroup

import (
	"testing"

	"edubench/internal/metric"
)

func rankedTestGroup() (Group, map[string]metric.CompositeScores) {
	reg := NewRegistry("salt", []string{"A", "B", "C"})
	b := NewBuilder(reg)

	entities := basicEntities()
	composites := basicComposites()
	groups := b.Build(entities, composites)

	anonScores := make(map[string]metric.CompositeScores)
	for id, s := range composites {
		anon, _ := reg.Anonymize(id)
		anonScores[anon] = s
	}
	return groups[0], anonScores
}

func TestRankGroupOrdering(t *testing.T) {
	g, scores := rankedTestGroup()
	ranking := RankGroup(g, scores)

	if len(ranking.EntityRanks) != 3 {
		t.Fatalf("EntityRanks = %d, want 3", len(ranking.EntityRanks))
	}

	// Best overall (80s across the board) must be rank 1.
	top := ranking.EntityRanks[0]
	if top.OverallRank != 1 {
		t.Errorf("first entry OverallRank = %d, want 1", top.OverallRank)
	}
	if top.OverallScore != 80 {
		t.Errorf("top OverallScore = %v, want 80", top.OverallScore)
	}
	if top.PercentileRank != 100 {
		t.Errorf("top PercentileRank = %v, want 100", top.PercentileRank)
	}

	bottom := ranking.EntityRanks[2]
	if bottom.OverallRank != 3 {
		t.Errorf("last entry OverallRank = %d, want 3", bottom.OverallRank)
	}
}

func TestRankGroupCategoryRanks(t *testing.T) {
	g, scores := rankedTestGroup()
	ranking := RankGroup(g, scores)

	top := ranking.EntityRanks[0]
	for _, mt := range metric.CompositeTypes() {
		if top.CategoryRanks[mt] != 1 {
			t.Errorf("top CategoryRanks[%s] = %d, want 1", mt, top.CategoryRanks[mt])
		}
	}
}

func TestRankGroupStrengthsAndImprovements(t *testing.T) {
	g, scores := rankedTestGroup()
	ranking := RankGroup(g, scores)

	top := ranking.EntityRanks[0]
	if len(top.Strengths) != len(metric.CompositeTypes()) {
		t.Errorf("top member at p90 should list all metrics as strengths, got %v", top.Strengths)
	}
	if len(top.ImprovementAreas) != 0 {
		t.Errorf("top member should have no improvement areas, got %v", top.ImprovementAreas)
	}

	bottom := ranking.EntityRanks[2]
	if len(bottom.ImprovementAreas) != len(metric.CompositeTypes()) {
		t.Errorf("bottom member at p25 should list all metrics as improvement areas, got %v", bottom.ImprovementAreas)
	}
}

func TestRankGroupSkipsUnscoredMembers(t *testing.T) {
	g, scores := rankedTestGroup()

	// Drop one member's scores: ranking shrinks, no error.
	for anonID := range scores {
		delete(scores, anonID)
		break
	}

	ranking := RankGroup(g, scores)
	if len(ranking.EntityRanks) != 2 {
		t.Errorf("EntityRanks = %d, want 2", len(ranking.EntityRanks))
	}
}

func TestRankGroupEmpty(t *testing.T) {
	g := Group{ID: "g1", Key: "BASIC_small"}
	ranking := RankGroup(g, nil)
	if len(ranking.EntityRanks) != 0 {
		t.Errorf("empty group must yield empty ranking, got %d", len(ranking.EntityRanks))
	}
}
