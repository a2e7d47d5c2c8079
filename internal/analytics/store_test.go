package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"edubench/internal/anomaly"
	"edubench/internal/forecast"
	"edubench/internal/metric"
)

// stubProvider is an in-test collaborator with scripted responses.
type stubProvider struct {
	entities   []metric.Entity
	composites map[string]metric.CompositeScores
	history    map[string][]metric.Sample // keyed by entityID|metricType
	compErr    map[string]error

	listCalls  atomic.Int64
	listGate   func() // blocks EntityList when set
	historyErr error
}

func histKey(entityID string, mt metric.Type) string {
	return entityID + "|" + string(mt)
}

func (p *stubProvider) EntityList(_ context.Context) ([]metric.Entity, error) {
	p.listCalls.Add(1)
	if p.listGate != nil {
		p.listGate()
	}
	return p.entities, nil
}

func (p *stubProvider) MetricHistory(_ context.Context, entityID string, mt metric.Type, _ int) ([]metric.Sample, error) {
	if p.historyErr != nil {
		return nil, p.historyErr
	}
	return p.history[histKey(entityID, mt)], nil
}

func (p *stubProvider) CurrentComposite(_ context.Context, entityID string) (metric.CompositeScores, error) {
	if err := p.compErr[entityID]; err != nil {
		return metric.CompositeScores{}, err
	}
	c, ok := p.composites[entityID]
	if !ok {
		return metric.CompositeScores{}, errors.New("no composite")
	}
	return c, nil
}

func uniformScores(v float64) metric.CompositeScores {
	return metric.CompositeScores{
		OperationalEfficiency: v,
		FinancialHealth:       v,
		NutritionQuality:      v,
		StudentSatisfaction:   v,
		SafetyCompliance:      v,
	}
}

// basicSmallProvider is the three-school scenario: one BASIC/small cohort
// with operational efficiency 60, 70, 80.
func basicSmallProvider() *stubProvider {
	return &stubProvider{
		entities: []metric.Entity{
			{ID: "A", Tier: "BASIC", StudentCount: 150},
			{ID: "B", Tier: "BASIC", StudentCount: 180},
			{ID: "C", Tier: "BASIC", StudentCount: 190},
		},
		composites: map[string]metric.CompositeScores{
			"A": uniformScores(60),
			"B": uniformScores(70),
			"C": uniformScores(80),
		},
		history: make(map[string][]metric.Sample),
	}
}

func TestEndToEndBasicSmallScenario(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")

	groups, err := store.RefreshPeerGroups(context.Background())
	if err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	g := groups[0]
	if g.Key != "BASIC_small" {
		t.Errorf("group key = %q, want BASIC_small", g.Key)
	}
	if len(g.Members) != 3 {
		t.Errorf("got %d members, want 3", len(g.Members))
	}
	if got := g.Benchmarks[metric.OperationalEfficiency]; got != 70 {
		t.Errorf("benchmarks[operational_efficiency] = %v, want 70", got)
	}
	if got := g.Percentiles.P50[metric.OperationalEfficiency]; got != 70 {
		t.Errorf("p50[operational_efficiency] = %v, want 70", got)
	}

	// Real ids never appear among the anonymized members.
	for _, m := range g.Members {
		if m == "A" || m == "B" || m == "C" {
			t.Errorf("member %q leaks a real entity id", m)
		}
	}
}

func TestRefreshDeterminism(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")

	first, err := store.RefreshPeerGroups(context.Background())
	if err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}
	second, err := store.RefreshPeerGroups(context.Background())
	if err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("group counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		for _, mt := range metric.CompositeTypes() {
			if first[i].Benchmarks[mt] != second[i].Benchmarks[mt] {
				t.Errorf("benchmarks[%s] differ across refreshes", mt)
			}
			if first[i].Percentiles.P50[mt] != second[i].Percentiles.P50[mt] {
				t.Errorf("p50[%s] differs across refreshes", mt)
			}
		}
	}
}

func TestRefreshPartialBatch(t *testing.T) {
	p := basicSmallProvider()
	p.compErr = map[string]error{"B": errors.New("upstream timeout")}
	store := NewStore(p, "test-salt")

	groups, err := store.RefreshPeerGroups(context.Background())
	if err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	// One bad entity cannot abort the rebuild. B stays a member but its
	// scores are left out of the aggregates: mean of 60 and 80.
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if len(groups[0].Members) != 3 {
		t.Errorf("got %d members, want 3", len(groups[0].Members))
	}
	if got := groups[0].Benchmarks[metric.OperationalEfficiency]; got != 70 {
		t.Errorf("benchmark = %v, want 70 from the two scored members", got)
	}
}

func TestRefreshSerializesConcurrentCallers(t *testing.T) {
	const callers = 5

	p := basicSmallProvider()
	store := NewStore(p, "test-salt")

	// The in-flight rebuild blocks inside the provider until every caller
	// has arrived, so all of them must ride the same rebuild to finish.
	var entered sync.WaitGroup
	entered.Add(callers)
	p.listGate = entered.Wait

	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entered.Done()
			groups, err := store.RefreshPeerGroups(context.Background())
			if err != nil {
				t.Errorf("RefreshPeerGroups() error: %v", err)
				return
			}
			if len(groups) == 1 {
				ids[i] = groups[0].ID
			}
		}(i)
	}
	wg.Wait()

	if calls := p.listCalls.Load(); calls != 1 {
		t.Errorf("provider saw %d roster fetches, want 1 shared rebuild", calls)
	}
	// Group ids are freshly generated per rebuild, so identical ids prove
	// every caller got the shared result.
	for i := 1; i < callers; i++ {
		if ids[i] != ids[0] {
			t.Errorf("caller %d saw group id %q, caller 0 saw %q", i, ids[i], ids[0])
		}
	}
}

func TestStaleLifecycle(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")

	if !store.Stale() {
		t.Error("new store should start stale")
	}

	if _, err := store.RefreshPeerGroups(context.Background()); err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}
	if store.Stale() {
		t.Error("refresh should clear staleness")
	}

	store.AddSamples("A", []metric.Sample{{
		EntityID:   "A",
		MetricType: metric.OperationalEfficiency,
		Value:      55,
		Timestamp:  time.Now(),
	}})
	if !store.Stale() {
		t.Error("new samples must mark cached groups stale")
	}
}

func TestPeerGroupFor(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")

	if _, ok := store.PeerGroupFor("A"); ok {
		t.Error("PeerGroupFor before any refresh should report no group")
	}

	if _, err := store.RefreshPeerGroups(context.Background()); err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	g, ok := store.PeerGroupFor("A")
	if !ok {
		t.Fatal("PeerGroupFor(A) found no group after refresh")
	}
	if g.Key != "BASIC_small" {
		t.Errorf("group key = %q, want BASIC_small", g.Key)
	}

	if _, ok := store.PeerGroupFor("unknown"); ok {
		t.Error("PeerGroupFor(unknown) should report no group")
	}
}

func TestRankPeerGroup(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")
	if _, err := store.RefreshPeerGroups(context.Background()); err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	ranking, err := store.RankPeerGroup("BASIC_small")
	if err != nil {
		t.Fatalf("RankPeerGroup() error: %v", err)
	}
	if len(ranking.EntityRanks) != 3 {
		t.Fatalf("got %d ranks, want 3", len(ranking.EntityRanks))
	}
	if ranking.EntityRanks[0].OverallScore != 80 {
		t.Errorf("top score = %v, want 80", ranking.EntityRanks[0].OverallScore)
	}
	if ranking.EntityRanks[0].OverallRank != 1 {
		t.Errorf("top rank = %d, want 1", ranking.EntityRanks[0].OverallRank)
	}

	if _, err := store.RankPeerGroup("PREMIUM_xlarge"); !errors.Is(err, ErrNoPeerGroup) {
		t.Errorf("unknown key err = %v, want ErrNoPeerGroup", err)
	}
}

func TestDetectAnomaliesBothModes(t *testing.T) {
	p := basicSmallProvider()

	// Alternating 70/80 baseline: mean 75, stddev 5.
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var baseline []metric.Sample
	for i := 0; i < 10; i++ {
		v := 70.0
		if i%2 == 1 {
			v = 80.0
		}
		baseline = append(baseline, metric.Sample{
			EntityID:   "A",
			MetricType: metric.OperationalEfficiency,
			Value:      v,
			Timestamp:  now.AddDate(0, 0, -(10 - i)),
		})
	}
	p.history[histKey("A", metric.OperationalEfficiency)] = baseline

	store := NewStore(p, "test-salt")
	if _, err := store.RefreshPeerGroups(context.Background()); err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	// 96 is z=4.2 against its own history and 37% above the cohort
	// benchmark of 70: both modes fire.
	current := []metric.Sample{{
		EntityID:   "A",
		MetricType: metric.OperationalEfficiency,
		Value:      96,
		Timestamp:  now,
	}}

	records, err := store.DetectAnomalies(context.Background(), "A", current)
	if err != nil {
		t.Fatalf("DetectAnomalies() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2 (historical + peer)", len(records))
	}

	byType := make(map[anomaly.Type]anomaly.Record)
	for _, r := range records {
		byType[r.Type] = r
	}
	if rec, ok := byType[anomaly.UnusualSpike]; !ok {
		t.Error("missing historical spike record")
	} else if rec.Severity != anomaly.SeverityCritical {
		t.Errorf("spike severity = %v, want Critical at z=4.2", rec.Severity)
	}
	if rec, ok := byType[anomaly.PeerDeviation]; !ok {
		t.Error("missing peer deviation record")
	} else if rec.Severity != anomaly.SeverityMedium {
		t.Errorf("peer severity = %v, want Medium at 37%% deviation", rec.Severity)
	}
}

func TestDetectAnomaliesDegradedHistory(t *testing.T) {
	p := basicSmallProvider()
	p.historyErr = errors.New("history source down")
	store := NewStore(p, "test-salt")

	records, err := store.DetectAnomalies(context.Background(), "A", []metric.Sample{{
		EntityID:   "A",
		MetricType: metric.OperationalEfficiency,
		Value:      96,
		Timestamp:  time.Now(),
	}})
	if err != nil {
		t.Fatalf("DetectAnomalies() must degrade, not fail: %v", err)
	}
	// No baseline and no groups: nothing can fire.
	if len(records) != 0 {
		t.Errorf("got %d records without any baseline, want 0", len(records))
	}
}

func seedDailyHistory(p *stubProvider, family metric.Type, base float64) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range p.entities {
		var samples []metric.Sample
		for i := 0; i < 40; i++ {
			samples = append(samples, metric.Sample{
				EntityID:   e.ID,
				MetricType: family,
				Value:      base + float64(i),
				Timestamp:  now.AddDate(0, 0, -(40 - i)),
			})
		}
		p.history[histKey(e.ID, family)] = samples
	}
}

func TestTrainAndForecastAggregate(t *testing.T) {
	p := basicSmallProvider()
	seedDailyHistory(p, metric.MealDemand, 200)
	store := NewStore(p, "test-salt")

	m, err := store.TrainModel(context.Background(), metric.MealDemand)
	if err != nil {
		t.Fatalf("TrainModel() error: %v", err)
	}
	if !m.Trained {
		t.Error("model not trained")
	}
	if m.TrainingDataPoints != 40 {
		t.Errorf("TrainingDataPoints = %d, want 40 aggregate days", m.TrainingDataPoints)
	}

	preds, err := store.Forecast(context.Background(), metric.MealDemand, "", 14)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if len(preds) != 14 {
		t.Errorf("got %d predictions, want 14", len(preds))
	}
	for _, pr := range preds {
		if pr.PredictedValue < 0 {
			t.Errorf("negative prediction %v", pr.PredictedValue)
		}
	}
}

func TestForecastPerEntity(t *testing.T) {
	p := basicSmallProvider()
	seedDailyHistory(p, metric.Revenue, 1000)
	store := NewStore(p, "test-salt")

	if _, err := store.TrainModel(context.Background(), metric.Revenue); err != nil {
		t.Fatalf("TrainModel() error: %v", err)
	}

	preds, err := store.Forecast(context.Background(), metric.Revenue, "A", 7)
	if err != nil {
		t.Fatalf("Forecast() error: %v", err)
	}
	if len(preds) != 7 {
		t.Errorf("got %d predictions, want 7", len(preds))
	}
}

func TestForecastBeforeTraining(t *testing.T) {
	p := basicSmallProvider()
	seedDailyHistory(p, metric.Enrollment, 150)
	store := NewStore(p, "test-salt")

	_, err := store.Forecast(context.Background(), metric.Enrollment, "", 7)
	if !errors.Is(err, forecast.ErrModelNotTrained) {
		t.Errorf("err = %v, want ErrModelNotTrained", err)
	}
}

func TestRetrainAll(t *testing.T) {
	p := basicSmallProvider()
	seedDailyHistory(p, metric.Enrollment, 150)
	seedDailyHistory(p, metric.MealDemand, 200)
	seedDailyHistory(p, metric.Revenue, 1000)
	store := NewStore(p, "test-salt")

	if err := store.RetrainAll(context.Background()); err != nil {
		t.Fatalf("RetrainAll() error: %v", err)
	}

	for _, family := range []metric.Type{metric.Enrollment, metric.MealDemand, metric.Revenue} {
		m, err := store.Model(family)
		if err != nil {
			t.Fatalf("Model(%s) error: %v", family, err)
		}
		if !m.Trained {
			t.Errorf("model %s not trained after RetrainAll", family)
		}
	}
}

func TestSnapshot(t *testing.T) {
	store := NewStore(basicSmallProvider(), "test-salt")

	before := store.Snapshot()
	if before.Entities != 0 || !before.Stale {
		t.Errorf("fresh snapshot = %+v, want empty and stale", before)
	}

	if _, err := store.RefreshPeerGroups(context.Background()); err != nil {
		t.Fatalf("RefreshPeerGroups() error: %v", err)
	}

	after := store.Snapshot()
	if after.Entities != 3 || after.Groups != 1 || after.Stale {
		t.Errorf("snapshot after refresh = %+v", after)
	}
	if after.RefreshedAt.IsZero() {
		t.Error("RefreshedAt not set")
	}
}
