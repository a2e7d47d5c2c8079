package peergroup

import (
	"math"
	"sort"

	"edubench/internal/metric"
)

// EntityRank positions one member inside its cohort.
type EntityRank struct {
	AnonymizedID     string              `json:"anonymized_id"`
	OverallScore     float64             `json:"overall_score"`
	OverallRank      int                 `json:"overall_rank"`    // 1 = best
	PercentileRank   float64             `json:"percentile_rank"` // share of members at or below, 0-100
	CategoryRanks    map[metric.Type]int `json:"category_ranks"`
	Strengths        []metric.Type       `json:"strengths"`
	ImprovementAreas []metric.Type       `json:"improvement_areas"`
}

// Ranking is the full relative standing of a cohort.
type Ranking struct {
	GroupID     string       `json:"group_id"`
	GroupKey    string       `json:"group_key"`
	EntityRanks []EntityRank `json:"entity_ranks"`
}

// RankGroup ranks every scored member of a group against its peers.
// scores is keyed by anonymized id; members without scores are left out of
// the ranking rather than failing the call. A metric counts as a strength
// when the member sits at or above the cohort's p75 for it, and as an
// improvement area at or below the p25.
func RankGroup(g Group, scores map[string]metric.CompositeScores) Ranking {
	type scored struct {
		anonID  string
		overall float64
		byType  map[metric.Type]float64
	}

	var members []scored
	for _, anonID := range g.Members {
		s, ok := scores[anonID]
		if !ok {
			continue
		}
		members = append(members, scored{
			anonID:  anonID,
			overall: s.Overall(),
			byType:  s.AsMap(),
		})
	}

	ranking := Ranking{GroupID: g.ID, GroupKey: g.Key}
	if len(members) == 0 {
		return ranking
	}

	// Overall order: best first; anonymized id as a stable tie-break.
	sort.Slice(members, func(i, j int) bool {
		if members[i].overall != members[j].overall {
			return members[i].overall > members[j].overall
		}
		return members[i].anonID < members[j].anonID
	})

	// Per-category orderings
	categoryOrder := make(map[metric.Type][]string)
	for _, mt := range metric.CompositeTypes() {
		ordered := make([]scored, len(members))
		copy(ordered, members)
		sort.Slice(ordered, func(i, j int) bool {
			if ordered[i].byType[mt] != ordered[j].byType[mt] {
				return ordered[i].byType[mt] > ordered[j].byType[mt]
			}
			return ordered[i].anonID < ordered[j].anonID
		})
		ids := make([]string, len(ordered))
		for i, m := range ordered {
			ids[i] = m.anonID
		}
		categoryOrder[mt] = ids
	}

	n := float64(len(members))
	for rank, m := range members {
		atOrBelow := 0
		for _, other := range members {
			if other.overall <= m.overall {
				atOrBelow++
			}
		}

		er := EntityRank{
			AnonymizedID:   m.anonID,
			OverallScore:   math.Round(m.overall*10) / 10,
			OverallRank:    rank + 1,
			PercentileRank: math.Round(float64(atOrBelow)/n*1000) / 10,
			CategoryRanks:  make(map[metric.Type]int),
		}

		for _, mt := range metric.CompositeTypes() {
			for i, id := range categoryOrder[mt] {
				if id == m.anonID {
					er.CategoryRanks[mt] = i + 1
					break
				}
			}

			value := m.byType[mt]
			if value >= g.Percentiles.P75[mt] {
				er.Strengths = append(er.Strengths, mt)
			} else if value <= g.Percentiles.P25[mt] {
				er.ImprovementAreas = append(er.ImprovementAreas, mt)
			}
		}

		ranking.EntityRanks = append(ranking.EntityRanks, er)
	}

	return ranking
}
