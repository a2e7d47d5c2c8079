package source

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"edubench/internal/metric"
)

// Synthetic is a deterministic in-process Provider for development and tests.
// Every value is derived from the entity ID, so repeated calls with the same
// arguments always produce the same data.
type Synthetic struct {
	entities []metric.Entity
	now      func() time.Time
}

// NewSynthetic creates a provider serving the given roster. A nil or empty
// roster falls back to a built-in demo roster spanning all tiers and sizes.
func NewSynthetic(entities []metric.Entity) *Synthetic {
	if len(entities) == 0 {
		entities = demoRoster()
	}
	return &Synthetic{entities: entities, now: time.Now}
}

// WithClock overrides the time source, pinning generated timestamps for tests.
func (p *Synthetic) WithClock(now func() time.Time) *Synthetic {
	p.now = now
	return p
}

func demoRoster() []metric.Entity {
	tiers := []string{"BASIC", "STANDARD", "PREMIUM"}
	regions := []string{"north", "south", "east", "west"}

	var out []metric.Entity
	for i := 0; i < 24; i++ {
		out = append(out, metric.Entity{
			ID:           fmt.Sprintf("school-%03d", i+1),
			Tier:         tiers[i%len(tiers)],
			StudentCount: 120 + (i*97)%1300,
			Region:       regions[i%len(regions)],
		})
	}
	return out
}

func (p *Synthetic) EntityList(_ context.Context) ([]metric.Entity, error) {
	out := make([]metric.Entity, len(p.entities))
	copy(out, p.entities)
	return out, nil
}

func seedFor(parts ...string) int64 {
	h := fnv.New64a()
	for _, s := range parts {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return int64(h.Sum64())
}

func (p *Synthetic) entity(id string) (metric.Entity, bool) {
	for _, e := range p.entities {
		if e.ID == id {
			return e, true
		}
	}
	return metric.Entity{}, false
}

// MetricHistory generates a daily series with a seasonal shape, a mild trend
// and seeded noise, ending at the provider's current day.
func (p *Synthetic) MetricHistory(_ context.Context, entityID string, metricType metric.Type, days int) ([]metric.Sample, error) {
	ent, ok := p.entity(entityID)
	if !ok {
		return nil, fmt.Errorf("unknown entity: %s", entityID)
	}
	if days <= 0 {
		return nil, nil
	}

	rng := rand.New(rand.NewSource(seedFor(entityID, string(metricType))))
	base, amplitude, trend := seriesShape(ent, metricType)

	end := p.now().UTC().Truncate(24 * time.Hour)
	samples := make([]metric.Sample, 0, days)
	for i := 0; i < days; i++ {
		ts := end.AddDate(0, 0, -(days - 1 - i))

		seasonal := amplitude * math.Sin(2*math.Pi*float64(ts.YearDay())/365.0)
		weekday := 1.0
		if wd := ts.Weekday(); wd == time.Saturday || wd == time.Sunday {
			weekday = weekendFactor(metricType)
		}
		noise := rng.NormFloat64() * base * 0.03

		value := (base+seasonal+trend*float64(i))*weekday + noise
		if isComposite(metricType) {
			value = clamp(value, 0, 100)
		} else {
			value = math.Max(0, value)
		}

		samples = append(samples, metric.Sample{
			EntityID:   entityID,
			MetricType: metricType,
			Value:      value,
			Timestamp:  ts,
			Confidence: 0.9,
			Context: metric.SampleContext{
				Size:           ent.StudentCount,
				SeasonalFactor: 1 + seasonal/math.Max(base, 1),
			},
		})
	}
	return samples, nil
}

// CurrentComposite derives stable 0-100 scores from the entity ID.
func (p *Synthetic) CurrentComposite(_ context.Context, entityID string) (metric.CompositeScores, error) {
	if _, ok := p.entity(entityID); !ok {
		return metric.CompositeScores{}, fmt.Errorf("unknown entity: %s", entityID)
	}

	score := func(mt metric.Type) float64 {
		rng := rand.New(rand.NewSource(seedFor(entityID, string(mt), "composite")))
		return clamp(55+rng.NormFloat64()*15, 0, 100)
	}

	return metric.CompositeScores{
		OperationalEfficiency: score(metric.OperationalEfficiency),
		FinancialHealth:       score(metric.FinancialHealth),
		NutritionQuality:      score(metric.NutritionQuality),
		StudentSatisfaction:   score(metric.StudentSatisfaction),
		SafetyCompliance:      score(metric.SafetyCompliance),
	}, nil
}

func seriesShape(ent metric.Entity, metricType metric.Type) (base, amplitude, trend float64) {
	students := float64(ent.StudentCount)
	switch metricType {
	case metric.Enrollment:
		return students, students * 0.05, students * 0.0002
	case metric.MealDemand:
		return students * 0.85, students * 0.1, 0
	case metric.Revenue:
		return students * 12, students * 1.5, students * 0.004
	default:
		return 65, 5, 0
	}
}

func weekendFactor(metricType metric.Type) float64 {
	switch metricType {
	case metric.MealDemand:
		return 0.15
	case metric.Revenue:
		return 0.4
	default:
		return 1.0
	}
}

func isComposite(metricType metric.Type) bool {
	for _, t := range metric.CompositeTypes() {
		if t == metricType {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
