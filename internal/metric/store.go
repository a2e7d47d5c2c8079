package metric

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SampleStore provides thread-safe, chronological storage for metric samples,
// partitioned by entity. It is the in-process stand-in for whatever history
// source the host wires in; batch layers only ever read windowed slices.
type SampleStore struct {
	mu      sync.RWMutex
	samples map[string][]Sample // Partitioned by EntityID
}

// NewSampleStore creates a new empty SampleStore.
func NewSampleStore() *SampleStore {
	return &SampleStore{
		samples: make(map[string][]Sample),
	}
}

// Append adds samples for an entity, deduplicating and keeping chronological order.
func (s *SampleStore) Append(entityID string, samples []Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.samples[entityID]

	existing := make(map[string]bool)
	for _, e := range series {
		existing[e.identity()] = true
	}

	newCount := 0
	for _, e := range samples {
		if !existing[e.identity()] {
			series = append(series, e)
			existing[e.identity()] = true
			newCount++
		}
	}

	if newCount == 0 {
		return
	}

	sort.Slice(series, func(i, j int) bool {
		if !series[i].Timestamp.Equal(series[j].Timestamp) {
			return series[i].Timestamp.Before(series[j].Timestamp)
		}
		return series[i].MetricType < series[j].MetricType
	})

	s.samples[entityID] = series
}

// History returns the samples of one metric type for an entity within the last
// `days` days counted back from ref, oldest first. A zero ref means "all history".
func (s *SampleStore) History(entityID string, metricType Type, days int, ref time.Time) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cutoff time.Time
	if !ref.IsZero() && days > 0 {
		cutoff = ref.AddDate(0, 0, -days)
	}

	var out []Sample
	for _, e := range s.samples[entityID] {
		if e.MetricType != metricType {
			continue
		}
		if !ref.IsZero() && e.Timestamp.After(ref) {
			continue
		}
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Values is History reduced to the raw value series.
func (s *SampleStore) Values(entityID string, metricType Type, days int, ref time.Time) []float64 {
	history := s.History(entityID, metricType, days, ref)
	values := make([]float64, len(history))
	for i, e := range history {
		values[i] = e.Value
	}
	return values
}

// EntityIDs returns all entities with recorded samples, sorted for determinism.
func (s *SampleStore) EntityIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.samples))
	for id := range s.samples {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of stored samples for an entity.
func (s *SampleStore) Count(entityID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples[entityID])
}

// Load reads samples from a JSONL cache file for the given entity.
func (s *SampleStore) Load(cacheDir string, entityID string) error {
	path := filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", entityID))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache yet, not an error
		}
		return fmt.Errorf("failed to open sample cache: %w", err)
	}
	defer file.Close()

	var samples []Sample
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Sample
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("entity", entityID).Msg("Skipping invalid JSON line in sample cache")
			continue
		}
		samples = append(samples, e)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading sample cache: %w", err)
	}

	log.Info().Str("entity", entityID).Int("count", len(samples)).Msg("Loaded samples from cache")
	s.Append(entityID, samples)
	return nil
}

// Save persists the samples of one entity to a JSONL cache file, atomically.
func (s *SampleStore) Save(cacheDir string, entityID string) error {
	s.mu.RLock()
	series, ok := s.samples[entityID]
	s.mu.RUnlock()

	if !ok || len(series) == 0 {
		return nil
	}

	path := filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", entityID))
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp sample cache: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, e := range series {
		if err := encoder.Encode(e); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode sample: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush sample cache: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close sample cache: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace sample cache: %w", err)
	}

	log.Debug().Str("entity", entityID).Int("count", len(series)).Msg("Saved samples to cache")
	return nil
}
