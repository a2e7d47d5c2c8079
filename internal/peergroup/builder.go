package peergroup

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"edubench/internal/metric"
	"edubench/internal/stats"
)

// Cohort instantiation thresholds. Groups below threshold are dropped,
// never created empty.
const (
	MinTierGroupSize     = 3
	MinRegionalGroupSize = 5
)

// Kind distinguishes the two independent partitions an entity can fall into.
type Kind string

const (
	KindTierSize Kind = "tier_size"
	KindRegional Kind = "regional"
)

// Criteria records the membership rule a group was built from.
type Criteria struct {
	SizeMin int      `json:"size_min,omitempty"`
	SizeMax int      `json:"size_max,omitempty"` // 0 = unbounded
	Tiers   []string `json:"tiers,omitempty"`
	Region  string   `json:"region,omitempty"`
}

// Distribution holds the per-metric percentile spread across group members.
type Distribution struct {
	P25 map[metric.Type]float64 `json:"p25"`
	P50 map[metric.Type]float64 `json:"p50"`
	P75 map[metric.Type]float64 `json:"p75"`
	P90 map[metric.Type]float64 `json:"p90"`
}

// Group is a cohort of comparable entities with benchmark aggregates.
// Member identities are anonymized; the real ids never leave the Registry.
type Group struct {
	ID          string                  `json:"group_id"`
	Key         string                  `json:"key"`
	Kind        Kind                    `json:"kind"`
	Criteria    Criteria                `json:"criteria"`
	Members     []string                `json:"members"` // anonymized, sorted
	Benchmarks  map[metric.Type]float64 `json:"benchmarks"`
	Percentiles Distribution            `json:"percentile_distribution"`
	BuiltAt     time.Time               `json:"built_at"`
}

// HasMember reports whether the anonymized id belongs to this group.
func (g *Group) HasMember(anonymizedID string) bool {
	_, found := slices.BinarySearch(g.Members, anonymizedID)
	return found
}

// SizeCategory maps a student count onto the benchmarking size steps.
func SizeCategory(studentCount int) string {
	switch {
	case studentCount <= 200:
		return "small"
	case studentCount <= 500:
		return "medium"
	case studentCount <= 1000:
		return "large"
	default:
		return "xlarge"
	}
}

func sizeBounds(category string) (int, int) {
	switch category {
	case "small":
		return 0, 200
	case "medium":
		return 201, 500
	case "large":
		return 501, 1000
	default:
		return 1001, 0
	}
}

// Builder partitions entities into peer cohorts and computes their benchmarks.
type Builder struct {
	registry *Registry
}

// NewBuilder creates a Builder bound to the batch's anonymization registry.
func NewBuilder(registry *Registry) *Builder {
	return &Builder{registry: registry}
}

// Build clusters entities into tier/size and regional cohorts. Tier/size keys
// are `tier + "_" + sizeCategory` and need at least 3 members; regional keys
// are the raw region and need at least 5. The two partitions are independent,
// so an entity may land in zero, one, or both.
//
// composites carries the current composite scores per real entity id. Entities
// without scores stay members but are excluded from aggregate computation; a
// cohort where nobody has scores gets neutral defaults instead of being dropped.
func (b *Builder) Build(entities []metric.Entity, composites map[string]metric.CompositeScores) []Group {
	tierCohorts := make(map[string][]metric.Entity)
	regionCohorts := make(map[string][]metric.Entity)

	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		tierKey := fmt.Sprintf("%s_%s", e.Tier, SizeCategory(e.StudentCount))
		tierCohorts[tierKey] = append(tierCohorts[tierKey], e)
		if e.Region != "" {
			regionCohorts[e.Region] = append(regionCohorts[e.Region], e)
		}
	}

	var groups []Group
	now := time.Now().UTC()

	// Deterministic iteration: sorted keys
	for _, key := range sortedKeys(tierCohorts) {
		members := tierCohorts[key]
		if len(members) < MinTierGroupSize {
			continue
		}
		lo, hi := sizeBounds(SizeCategory(members[0].StudentCount))
		g := b.buildGroup(key, KindTierSize, Criteria{
			SizeMin: lo,
			SizeMax: hi,
			Tiers:   []string{members[0].Tier},
		}, members, composites, now)
		groups = append(groups, g)
	}

	for _, key := range sortedKeys(regionCohorts) {
		members := regionCohorts[key]
		if len(members) < MinRegionalGroupSize {
			continue
		}
		g := b.buildGroup(key, KindRegional, Criteria{Region: key}, members, composites, now)
		groups = append(groups, g)
	}

	return groups
}

func (b *Builder) buildGroup(key string, kind Kind, criteria Criteria, members []metric.Entity, composites map[string]metric.CompositeScores, builtAt time.Time) Group {
	g := Group{
		ID:       uuid.NewString(),
		Key:      key,
		Kind:     kind,
		Criteria: criteria,
		BuiltAt:  builtAt,
		Benchmarks: make(map[metric.Type]float64),
		Percentiles: Distribution{
			P25: make(map[metric.Type]float64),
			P50: make(map[metric.Type]float64),
			P75: make(map[metric.Type]float64),
			P90: make(map[metric.Type]float64),
		},
	}

	for _, m := range members {
		anon, ok := b.registry.Anonymize(m.ID)
		if !ok {
			log.Warn().Str("entity", m.ID).Str("group", key).Msg("Entity missing from anonymization registry, skipping membership")
			continue
		}
		g.Members = append(g.Members, anon)
	}
	sort.Strings(g.Members)

	// Collect per-metric value vectors across members that have data.
	valuesByMetric := make(map[metric.Type][]float64)
	scored := 0
	for _, m := range members {
		scores, ok := composites[m.ID]
		if !ok {
			continue
		}
		scored++
		for mt, v := range scores.AsMap() {
			valuesByMetric[mt] = append(valuesByMetric[mt], v)
		}
	}

	if scored == 0 {
		// Nobody in the cohort has usable history. Neutral defaults keep the
		// group comparable instead of silently disappearing.
		for _, mt := range metric.CompositeTypes() {
			g.Benchmarks[mt] = 50
			g.Percentiles.P25[mt] = 25
			g.Percentiles.P50[mt] = 50
			g.Percentiles.P75[mt] = 75
			g.Percentiles.P90[mt] = 90
		}
		log.Warn().Str("group", key).Int("members", len(members)).Msg("No member had composite data, using neutral benchmark defaults")
		return g
	}

	for _, mt := range metric.CompositeTypes() {
		values := valuesByMetric[mt]
		slices.Sort(values)
		g.Benchmarks[mt] = stats.Mean(values)
		g.Percentiles.P25[mt] = stats.Percentile(values, 25)
		g.Percentiles.P50[mt] = stats.Percentile(values, 50)
		g.Percentiles.P75[mt] = stats.Percentile(values, 75)
		g.Percentiles.P90[mt] = stats.Percentile(values, 90)
	}

	return g
}

// FindGroupFor selects the peer group an entity is benchmarked against when it
// belongs to several. The tie-break is deterministic: tier/size cohorts beat
// regional ones, then smaller cohorts beat larger (tighter comparison set),
// then the lexicographically smallest key wins.
func FindGroupFor(groups []Group, anonymizedID string) (*Group, bool) {
	var best *Group
	for i := range groups {
		g := &groups[i]
		if !g.HasMember(anonymizedID) {
			continue
		}
		if best == nil || preferGroup(g, best) {
			best = g
		}
	}
	return best, best != nil
}

func preferGroup(a, b *Group) bool {
	if a.Kind != b.Kind {
		return a.Kind == KindTierSize
	}
	if len(a.Members) != len(b.Members) {
		return len(a.Members) < len(b.Members)
	}
	return a.Key < b.Key
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
