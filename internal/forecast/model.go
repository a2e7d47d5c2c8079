package forecast

import (
	"time"

	"edubench/internal/metric"
)

// Algorithm names are descriptive metadata; the forecast math itself is
// uniform across models (additive trend + seasonal-naive decomposition).
const AlgorithmTrendSeasonal = "trend_seasonal_naive"

// Model holds the per-family forecasting state. It is created untrained at
// engine initialization and mutated in place by Train; the trained state
// persists until the next retrain.
type Model struct {
	ID                 string             `json:"model_id"`
	MetricFamily       metric.Type        `json:"metric_family"`
	Algorithm          string             `json:"algorithm"`
	SeasonalPeriodDays int                `json:"seasonality_period_days"`
	TrendComponents    map[string]float64 `json:"trend_components"`
	SeasonalComponents map[string]float64 `json:"seasonal_components"`
	Hyperparameters    map[string]float64 `json:"hyperparameters"`

	Accuracy float64 `json:"accuracy"`
	MAPE     float64 `json:"mape"`
	RMSE     float64 `json:"rmse"`
	R2Score  float64 `json:"r2_score"`

	TrainedOn            time.Time `json:"trained_on"`
	TrainingDataPoints   int       `json:"training_data_points"`
	ValidationDataPoints int       `json:"validation_data_points"`
	Trained              bool      `json:"trained"`
}

// ConfidenceInterval bounds a prediction at a stated confidence level.
type ConfidenceInterval struct {
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"`
}

// Factor describes one contribution to a predicted value.
type Factor struct {
	Factor      string  `json:"factor"`
	Impact      float64 `json:"impact"`
	Description string  `json:"description"`
}

// Prediction is a single forward-looking point. Pure output: recomputed on
// demand, never persisted as source of truth.
type Prediction struct {
	Date                time.Time          `json:"date"`
	PredictedValue      float64            `json:"predicted_value"`
	ConfidenceInterval  ConfidenceInterval `json:"confidence_interval"`
	ContributingFactors []Factor           `json:"contributing_factors"`
}
