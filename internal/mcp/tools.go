package mcp

func (s *Server) listTools() interface{} {
	return map[string]interface{}{
		"tools": []interface{}{
			map[string]interface{}{
				"name":        "build_peer_groups",
				"description": "Rebuild the anonymized peer cohorts from the current school roster and composite scores. Returns every instantiated group with its benchmarks and percentile distribution.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
			map[string]interface{}{
				"name":        "rank_peer_group",
				"description": "Rank the members of one peer cohort by overall composite score, including per-category ranks, percentile standing, strengths and improvement areas. Identities are anonymized.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"group_key": map[string]interface{}{"type": "string", "description": "Cohort key, e.g. BASIC_small or a region name"},
					},
					"required": []string{"group_key"},
				},
			},
			map[string]interface{}{
				"name":        "detect_anomalies",
				"description": "Check current metric samples of a school against its own recent history (z-score) and against its peer cohort benchmark (relative deviation). Returns anomaly records with causes, recommendations, and sweep statistics.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"entity_id": map[string]interface{}{"type": "string", "description": "The school id"},
						"samples": map[string]interface{}{
							"type":        "array",
							"description": "Current samples to evaluate",
							"items": map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"metric_type": map[string]interface{}{"type": "string", "description": "Metric type, e.g. operational_efficiency"},
									"value":       map[string]interface{}{"type": "number"},
									"timestamp":   map[string]interface{}{"type": "string", "description": "Optional RFC3339 timestamp, defaults to now"},
								},
								"required": []string{"metric_type", "value"},
							},
						},
					},
					"required": []string{"entity_id", "samples"},
				},
			},
			map[string]interface{}{
				"name":        "forecast",
				"description": "Forecast a metric family over a horizon with 95% confidence intervals. Without entity_id the forecast runs on the platform-wide aggregate series. Requires a trained model; call 'train_model' first.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"metric_family": map[string]interface{}{"type": "string", "enum": []string{"enrollment", "meal_demand", "revenue"}},
						"entity_id":     map[string]interface{}{"type": "string", "description": "Optional: forecast one school instead of the platform aggregate"},
						"horizon_days":  map[string]interface{}{"type": "integer", "description": "Days to forecast (default: 30)"},
					},
					"required": []string{"metric_family"},
				},
			},
			map[string]interface{}{
				"name":        "train_model",
				"description": "Retrain the forecast model of a metric family on the platform-wide aggregate series using a temporal 80/20 validation split. Returns the model with accuracy, MAPE, RMSE and R2.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"metric_family": map[string]interface{}{"type": "string", "enum": []string{"enrollment", "meal_demand", "revenue"}},
					},
					"required": []string{"metric_family"},
				},
			},
			map[string]interface{}{
				"name":        "analyze_seasonality",
				"description": "Compute normalized day-of-week and month-of-year patterns for one school's metric history, including peak and low buckets.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"entity_id":     map[string]interface{}{"type": "string"},
						"metric_family": map[string]interface{}{"type": "string"},
					},
					"required": []string{"entity_id", "metric_family"},
				},
			},
			map[string]interface{}{
				"name":        "analyze_growth",
				"description": "Classify a school's metric trajectory (growing, declining, stable, volatile) with growth rates at daily/weekly/monthly/yearly scale. With a utilization above 80% and yearly growth above 5%, includes a capacity saturation projection.",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"entity_id":     map[string]interface{}{"type": "string"},
						"metric_family": map[string]interface{}{"type": "string"},
						"utilization":   map[string]interface{}{"type": "number", "description": "Current capacity utilization 0..1"},
					},
					"required": []string{"entity_id", "metric_family"},
				},
			},
			map[string]interface{}{
				"name":        "store_snapshot",
				"description": "Report the analytics cache state: entity count, group count, staleness, last refresh time.",
				"inputSchema": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
	}
}
