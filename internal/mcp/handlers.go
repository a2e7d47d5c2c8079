package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"edubench/internal/anomaly"
	"edubench/internal/forecast"
	"edubench/internal/metric"
)

type toolHandler func(ctx context.Context, args json.RawMessage) (interface{}, error)

func (s *Server) handlers() map[string]toolHandler {
	return map[string]toolHandler{
		"build_peer_groups":   s.handleBuildPeerGroups,
		"rank_peer_group":     s.handleRankPeerGroup,
		"detect_anomalies":    s.handleDetectAnomalies,
		"forecast":            s.handleForecast,
		"train_model":         s.handleTrainModel,
		"analyze_seasonality": s.handleAnalyzeSeasonality,
		"analyze_growth":      s.handleAnalyzeGrowth,
		"store_snapshot":      s.handleStoreSnapshot,
	}
}

func decodeArgs(args json.RawMessage, into interface{}) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) handleBuildPeerGroups(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	groups, err := s.store.RefreshPeerGroups(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	}, nil
}

func (s *Server) handleRankPeerGroup(_ context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		GroupKey string `json:"group_key"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.GroupKey == "" {
		return nil, fmt.Errorf("group_key is required")
	}

	return s.store.RankPeerGroup(in.GroupKey)
}

func (s *Server) handleDetectAnomalies(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		EntityID string `json:"entity_id"`
		Samples  []struct {
			MetricType string  `json:"metric_type"`
			Value      float64 `json:"value"`
			Timestamp  string  `json:"timestamp"`
		} `json:"samples"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.EntityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}

	current := make([]metric.Sample, 0, len(in.Samples))
	for _, raw := range in.Samples {
		ts := time.Now().UTC()
		if raw.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, raw.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("invalid timestamp %q: %w", raw.Timestamp, err)
			}
			ts = parsed
		}
		current = append(current, metric.Sample{
			EntityID:   in.EntityID,
			MetricType: metric.Type(raw.MetricType),
			Value:      raw.Value,
			Timestamp:  ts,
		})
	}

	records, err := s.store.DetectAnomalies(ctx, in.EntityID, current)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"anomalies":  records,
		"statistics": anomaly.Summarize(records),
	}, nil
}

func (s *Server) handleForecast(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		MetricFamily string `json:"metric_family"`
		EntityID     string `json:"entity_id"`
		HorizonDays  int    `json:"horizon_days"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.MetricFamily == "" {
		return nil, fmt.Errorf("metric_family is required")
	}
	if in.HorizonDays <= 0 {
		in.HorizonDays = 30
	}

	predictions, err := s.store.Forecast(ctx, metric.Type(in.MetricFamily), in.EntityID, in.HorizonDays)
	if err != nil {
		return nil, err
	}

	model, err := s.store.Model(metric.Type(in.MetricFamily))
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"metric_family": in.MetricFamily,
		"horizon_days":  in.HorizonDays,
		"predictions":   predictions,
		"model_id":      model.ID,
		"accuracy":      model.Accuracy,
	}, nil
}

func (s *Server) handleTrainModel(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		MetricFamily string `json:"metric_family"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.MetricFamily == "" {
		return nil, fmt.Errorf("metric_family is required")
	}

	return s.store.TrainModel(ctx, metric.Type(in.MetricFamily))
}

func (s *Server) handleAnalyzeSeasonality(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		EntityID     string `json:"entity_id"`
		MetricFamily string `json:"metric_family"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.EntityID == "" || in.MetricFamily == "" {
		return nil, fmt.Errorf("entity_id and metric_family are required")
	}

	history, err := s.store.History(ctx, in.EntityID, metric.Type(in.MetricFamily))
	if err != nil {
		return nil, err
	}

	return forecast.AnalyzeSeasonality(history), nil
}

func (s *Server) handleAnalyzeGrowth(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		EntityID     string  `json:"entity_id"`
		MetricFamily string  `json:"metric_family"`
		Utilization  float64 `json:"utilization"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.EntityID == "" || in.MetricFamily == "" {
		return nil, fmt.Errorf("entity_id and metric_family are required")
	}

	history, err := s.store.History(ctx, in.EntityID, metric.Type(in.MetricFamily))
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(history))
	for i, sample := range history {
		values[i] = sample.Value
	}

	return forecast.AnalyzeGrowth(values, in.Utilization), nil
}

func (s *Server) handleStoreSnapshot(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return s.store.Snapshot(), nil
}
