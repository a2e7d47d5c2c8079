// Package analytics wires the grouping, detection and forecasting components
// behind an explicit store with a refresh/invalidate lifecycle. Nothing in
// here is a process-wide singleton; tests construct isolated instances.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"edubench/internal/anomaly"
	"edubench/internal/forecast"
	"edubench/internal/metric"
	"edubench/internal/peergroup"
	"edubench/internal/source"
)

// ErrNoPeerGroup is returned when a ranking is requested for a cohort key that
// does not exist in the current batch.
var ErrNoPeerGroup = errors.New("no peer group for key")

const (
	// DefaultHistoryDays is the lookback pulled from the provider for
	// training and anomaly baselines.
	DefaultHistoryDays = 90
)

// Store holds the read-mostly peer-group and forecast-model caches and
// orchestrates their refresh. Reads are cheap snapshots under RLock; refreshes
// of the same key are serialized through singleflight so concurrent callers
// share one in-flight rebuild instead of racing a half-updated cache.
type Store struct {
	provider    source.Provider
	samples     *metric.SampleStore
	engine      *forecast.Engine
	salt        string
	windowDays  int
	historyDays int

	mu          sync.RWMutex
	entities    []metric.Entity
	registry    *peergroup.Registry
	groups      []peergroup.Group
	composites  map[string]metric.CompositeScores // by real entity id
	stale       bool
	refreshedAt time.Time

	flight singleflight.Group
}

// NewStore creates a store backed by the given provider. salt seeds the
// batch anonymization registry.
func NewStore(provider source.Provider, salt string) *Store {
	return &Store{
		provider:    provider,
		samples:     metric.NewSampleStore(),
		engine:      forecast.NewEngine(),
		salt:        salt,
		windowDays:  anomaly.DefaultWindowDays,
		historyDays: DefaultHistoryDays,
		composites:  make(map[string]metric.CompositeScores),
		stale:       true,
	}
}

// WithWindow overrides the anomaly detection lookback window in days.
func (s *Store) WithWindow(days int) *Store {
	if days > 0 {
		s.windowDays = days
	}
	return s
}

// WithHistoryDays overrides how much provider history refreshes pull.
func (s *Store) WithHistoryDays(days int) *Store {
	if days > 0 {
		s.historyDays = days
	}
	return s
}

// Samples exposes the backing sample store for cache load/save by the host.
func (s *Store) Samples() *metric.SampleStore {
	return s.samples
}

// Stale reports whether the cached peer groups may no longer reflect the
// sample set they were derived from.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// Invalidate marks the cached peer groups stale. The next refresh rebuilds them.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// AddSamples records new samples for an entity and marks derived caches stale,
// since no cached score may outlive the sample set it was computed from.
func (s *Store) AddSamples(entityID string, samples []metric.Sample) {
	s.samples.Append(entityID, samples)
	s.Invalidate()
}

// PeerGroups returns a snapshot of the current peer-group batch.
func (s *Store) PeerGroups() []peergroup.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]peergroup.Group, len(s.groups))
	copy(out, s.groups)
	return out
}

// PeerGroupFor returns the cohort the entity is benchmarked against, applying
// the tier/size-over-regional tie-break.
func (s *Store) PeerGroupFor(entityID string) (peergroup.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.registry == nil {
		return peergroup.Group{}, false
	}
	anon, ok := s.registry.Anonymize(entityID)
	if !ok {
		return peergroup.Group{}, false
	}
	g, ok := peergroup.FindGroupFor(s.groups, anon)
	if !ok {
		return peergroup.Group{}, false
	}
	return *g, true
}

// RefreshPeerGroups rebuilds the peer-group batch from the provider: entity
// roster, per-entity composites (fetched in parallel, per-entity failures
// logged and skipped), anonymization registry and cohorts. Concurrent calls
// share a single rebuild.
func (s *Store) RefreshPeerGroups(ctx context.Context) ([]peergroup.Group, error) {
	v, err, _ := s.flight.Do("peergroups", func() (interface{}, error) {
		return s.refreshPeerGroups(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]peergroup.Group), nil
}

func (s *Store) refreshPeerGroups(ctx context.Context) ([]peergroup.Group, error) {
	entities, err := s.provider.EntityList(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	composites := s.fetchComposites(ctx, entities)

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	registry := peergroup.NewRegistry(s.salt, ids)

	groups := peergroup.NewBuilder(registry).Build(entities, composites)

	s.mu.Lock()
	s.entities = entities
	s.registry = registry
	s.groups = groups
	s.composites = composites
	s.stale = false
	s.refreshedAt = time.Now().UTC()
	s.mu.Unlock()

	log.Info().
		Int("entities", len(entities)).
		Int("scored", len(composites)).
		Int("groups", len(groups)).
		Msg("Peer groups refreshed")

	return groups, nil
}

// fetchComposites pulls current composites for all entities in parallel.
// One bad entity must not abort the batch, so fetch errors only log.
func (s *Store) fetchComposites(ctx context.Context, entities []metric.Entity) map[string]metric.CompositeScores {
	var mu sync.Mutex
	composites := make(map[string]metric.CompositeScores, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, e := range entities {
		e := e
		g.Go(func() error {
			scores, err := s.provider.CurrentComposite(gctx, e.ID)
			if err != nil {
				log.Warn().Err(err).Str("entity", e.ID).Msg("Skipping entity without composite scores")
				return nil
			}
			mu.Lock()
			composites[e.ID] = scores
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; partial batch is the contract

	return composites
}

// RankPeerGroup ranks the members of the cohort identified by its key.
func (s *Store) RankPeerGroup(groupKey string) (peergroup.Ranking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, g := range s.groups {
		if g.Key != groupKey {
			continue
		}

		// Re-key the composites by anonymized id; the ranking layer never
		// sees real identities.
		scores := make(map[string]metric.CompositeScores, len(s.composites))
		for realID, c := range s.composites {
			if anon, ok := s.registry.Anonymize(realID); ok {
				scores[anon] = c
			}
		}
		return peergroup.RankGroup(g, scores), nil
	}

	return peergroup.Ranking{}, fmt.Errorf("%w: %s", ErrNoPeerGroup, groupKey)
}

// DetectAnomalies runs both detection modes over an entity's current samples,
// backfilling the entity's historical baseline from the provider first.
func (s *Store) DetectAnomalies(ctx context.Context, entityID string, current []metric.Sample) ([]anomaly.Record, error) {
	if err := s.ensureHistory(ctx, entityID, current); err != nil {
		return nil, err
	}

	s.mu.RLock()
	groups := s.groups
	var anonID string
	if s.registry != nil {
		anonID, _ = s.registry.Anonymize(entityID)
	}
	s.mu.RUnlock()

	detector := anomaly.NewDetector(s.samples).WithWindow(s.windowDays)
	return detector.Detect(entityID, anonID, current, groups), nil
}

// ensureHistory pulls provider history for every metric type present in the
// current samples, so the historical mode has a baseline to compare against.
// Missing history degrades detection, it never fails it.
func (s *Store) ensureHistory(ctx context.Context, entityID string, current []metric.Sample) error {
	types := make(map[metric.Type]bool)
	for _, c := range current {
		types[c.MetricType] = true
	}

	for mt := range types {
		history, err := s.provider.MetricHistory(ctx, entityID, mt, s.historyDays)
		if err != nil {
			log.Warn().Err(err).Str("entity", entityID).Str("metric", string(mt)).Msg("History unavailable, historical detection degraded")
			continue
		}
		s.samples.Append(entityID, history)
	}
	return ctx.Err()
}

// TrainModel retrains the family's forecast model on the platform-wide
// aggregate series. Retrains of the same family are serialized; different
// families train in parallel freely.
func (s *Store) TrainModel(ctx context.Context, family metric.Type) (forecast.Model, error) {
	v, err, _ := s.flight.Do("train:"+string(family), func() (interface{}, error) {
		series, err := s.aggregateSeries(ctx, family)
		if err != nil {
			return nil, err
		}
		return s.engine.Train(family, series)
	})
	if err != nil {
		return forecast.Model{}, err
	}
	return v.(forecast.Model), nil
}

// RetrainAll retrains every managed family in parallel. Per-family failures
// are logged and skipped; the sweep reports only a context-level failure.
func (s *Store) RetrainAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, family := range s.engine.Families() {
		family := family
		g.Go(func() error {
			if _, err := s.TrainModel(gctx, family); err != nil {
				log.Warn().Err(err).Str("family", string(family)).Msg("Model retrain failed, keeping previous model")
			}
			return gctx.Err()
		})
	}
	return g.Wait()
}

// Forecast predicts horizonDays of the family's series. With an entity id the
// forecast runs on that entity's own history; without one it runs on the
// platform-wide aggregate.
func (s *Store) Forecast(ctx context.Context, family metric.Type, entityID string, horizonDays int) ([]forecast.Prediction, error) {
	var series []float64
	var err error
	if entityID != "" {
		series, err = s.entitySeries(ctx, family, entityID)
	} else {
		series, err = s.aggregateSeries(ctx, family)
	}
	if err != nil {
		return nil, err
	}

	return s.engine.Forecast(family, series, horizonDays, time.Time{})
}

// Model returns the current model snapshot for a family.
func (s *Store) Model(family metric.Type) (forecast.Model, error) {
	return s.engine.Model(family)
}

// History returns an entity's timestamped samples for a metric, backfilling
// from the provider when the local store has none. Seasonality and growth
// analysis read through this.
func (s *Store) History(ctx context.Context, entityID string, metricType metric.Type) ([]metric.Sample, error) {
	history := s.samples.History(entityID, metricType, 0, time.Time{})
	if len(history) > 0 {
		return history, nil
	}

	fetched, err := s.provider.MetricHistory(ctx, entityID, metricType, s.historyDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s/%s: %w", entityID, metricType, err)
	}
	s.samples.Append(entityID, fetched)
	return s.samples.History(entityID, metricType, 0, time.Time{}), nil
}

// entitySeries returns an entity's raw daily values for a family, backfilling
// from the provider when the local store has none.
func (s *Store) entitySeries(ctx context.Context, family metric.Type, entityID string) ([]float64, error) {
	values := s.samples.Values(entityID, family, 0, time.Time{})
	if len(values) > 0 {
		return values, nil
	}

	history, err := s.provider.MetricHistory(ctx, entityID, family, s.historyDays)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s/%s: %w", entityID, family, err)
	}
	s.samples.Append(entityID, history)
	return s.samples.Values(entityID, family, 0, time.Time{}), nil
}

// aggregateSeries sums the family's values across all entities per day,
// producing the platform-wide series models train on. Entities whose history
// cannot be fetched are skipped.
func (s *Store) aggregateSeries(ctx context.Context, family metric.Type) ([]float64, error) {
	s.mu.RLock()
	entities := s.entities
	s.mu.RUnlock()

	if len(entities) == 0 {
		fetched, err := s.provider.EntityList(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list entities: %w", err)
		}
		entities = fetched
	}

	var mu sync.Mutex
	byDay := make(map[time.Time]float64)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, e := range entities {
		e := e
		g.Go(func() error {
			history, err := s.provider.MetricHistory(gctx, e.ID, family, s.historyDays)
			if err != nil {
				log.Warn().Err(err).Str("entity", e.ID).Str("family", string(family)).Msg("Skipping entity in aggregate series")
				return nil
			}
			mu.Lock()
			for _, sample := range history {
				day := sample.Timestamp.UTC().Truncate(24 * time.Hour)
				byDay[day] += sample.Value
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	series := make([]float64, len(days))
	for i, day := range days {
		series[i] = byDay[day]
	}
	return series, nil
}

// Summary describes the current cache state for diagnostics.
type Summary struct {
	Entities    int       `json:"entities"`
	Groups      int       `json:"groups"`
	Stale       bool      `json:"stale"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Snapshot reports the store's cache state.
func (s *Store) Snapshot() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Summary{
		Entities:    len(s.entities),
		Groups:      len(s.groups),
		Stale:       s.stale,
		RefreshedAt: s.refreshedAt,
	}
}
