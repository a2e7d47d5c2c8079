package forecast

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"edubench/internal/metric"
	"edubench/internal/stats"
)

var (
	// ErrModelNotTrained is returned when a forecast is requested before any
	// training pass. Unlike short history, this is fatal for the caller.
	ErrModelNotTrained = errors.New("forecast model not trained")

	// ErrUnknownMetricFamily is returned for families the engine does not manage.
	ErrUnknownMetricFamily = errors.New("unknown metric family")
)

// Engine maintains one forecast model per metric family and performs
// training, prediction and accuracy scoring. All computation is synchronous
// in-memory work; callers own serialization of retrains per family.
type Engine struct {
	mu     sync.RWMutex
	models map[metric.Type]*Model
}

// NewEngine creates an engine with untrained default models for the three
// forecastable families. Seasonality periods reflect the natural cycles:
// enrollment follows the school year, meal demand the school week, revenue
// the billing month.
func NewEngine() *Engine {
	e := &Engine{models: make(map[metric.Type]*Model)}

	e.models[metric.Enrollment] = newModel(metric.Enrollment, 365, map[string]float64{
		"academic_year_cycle": 0.6,
		"term_boundaries":     0.4,
	})
	e.models[metric.MealDemand] = newModel(metric.MealDemand, 7, map[string]float64{
		"weekday_pattern": 0.7,
		"menu_rotation":   0.3,
	})
	e.models[metric.Revenue] = newModel(metric.Revenue, 30, map[string]float64{
		"billing_cycle":    0.8,
		"late_collections": 0.2,
	})

	return e
}

func newModel(family metric.Type, periodDays int, seasonal map[string]float64) *Model {
	return &Model{
		ID:                 uuid.NewString(),
		MetricFamily:       family,
		Algorithm:          AlgorithmTrendSeasonal,
		SeasonalPeriodDays: periodDays,
		TrendComponents: map[string]float64{
			"linear_slope": 1.0,
		},
		SeasonalComponents: seasonal,
		Hyperparameters: map[string]float64{
			"validation_split": 0.2,
			"accuracy_band":    0.10,
		},
	}
}

// Families returns the metric families the engine manages.
func (e *Engine) Families() []metric.Type {
	return []metric.Type{metric.Enrollment, metric.MealDemand, metric.Revenue}
}

// Model returns the model for a family. The returned value is a snapshot copy;
// trained state changes only through Train.
func (e *Engine) Model(family metric.Type) (Model, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.models[family]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownMetricFamily, family)
	}
	return *m, nil
}

// forecastSeries is the uniform forecast algorithm: additive linear trend plus
// seasonal-naive decomposition. For each future step it averages all historical
// points in the same seasonal phase and adds the trend extrapolation; series
// shorter than one full period fall back to last-value + trend. Forecasts are
// clamped at zero. Accuracy scoring is defined relative to exactly this method.
func forecastSeries(values []float64, periodDays, horizon int) []float64 {
	out := make([]float64, horizon)
	trend := stats.LinearTrend(values)

	for i := 0; i < horizon; i++ {
		base, _ := seasonalBase(values, periodDays, i)
		out[i] = math.Max(0, base+trend*float64(i))
	}
	return out
}

// seasonalBase returns the base value for future step i and whether the
// seasonal branch was taken.
func seasonalBase(values []float64, periodDays, i int) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}

	if periodDays > 0 && n >= periodDays {
		phase := (n + i) % periodDays
		sum := 0.0
		count := 0
		for j := phase; j < n; j += periodDays {
			sum += values[j]
			count++
		}
		if count > 0 {
			return sum / float64(count), true
		}
	}

	return values[n-1], false
}

// Train fits the family's model on the series using a temporal 80/20 split:
// forecast the validation horizon from the training prefix, then score the
// forecasts against the held-out actuals. Short series are not an error —
// the model is marked trained with sentinel scores so forecasting stays
// available with maximally wide uncertainty.
func (e *Engine) Train(family metric.Type, series []float64) (Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.models[family]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownMetricFamily, family)
	}

	validation := len(series) / 5
	m.TrainedOn = time.Now().UTC()
	m.TrainingDataPoints = len(series)
	m.ValidationDataPoints = validation
	m.Trained = true

	if validation == 0 {
		m.Accuracy = 0
		m.MAPE = 100
		m.RMSE = 0
		m.R2Score = 0
		log.Warn().Str("family", string(family)).Int("points", len(series)).Msg("Insufficient history for validation split, trained with sentinel scores")
		return *m, nil
	}

	trainPrefix := series[:len(series)-validation]
	actuals := series[len(series)-validation:]
	predictions := forecastSeries(trainPrefix, m.SeasonalPeriodDays, validation)

	scores := Score(predictions, actuals)
	m.Accuracy = scores.Accuracy
	m.MAPE = scores.MAPE
	m.RMSE = scores.RMSE
	m.R2Score = scores.R2

	log.Info().
		Str("family", string(family)).
		Int("training_points", m.TrainingDataPoints).
		Int("validation_points", validation).
		Float64("accuracy", m.Accuracy).
		Float64("mape", m.MAPE).
		Msg("Forecast model trained")

	return *m, nil
}

// horizonMultiplier widens uncertainty for longer horizons.
func horizonMultiplier(horizonDays int) float64 {
	switch {
	case horizonDays <= 30:
		return 1.0
	case horizonDays <= 90:
		return 1.5
	default:
		return 2.0
	}
}

// Forecast predicts horizonDays future points from the series, with 95%
// confidence bands derived from the model's validation MAPE. The output
// length always equals the horizon and every value is non-negative.
// Returns ErrModelNotTrained before the first Train.
func (e *Engine) Forecast(family metric.Type, series []float64, horizonDays int, start time.Time) ([]Prediction, error) {
	e.mu.RLock()
	m, ok := e.models[family]
	if !ok {
		e.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetricFamily, family)
	}
	if !m.Trained {
		e.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrModelNotTrained, family)
	}
	periodDays := m.SeasonalPeriodDays
	mape := m.MAPE
	e.mu.RUnlock()

	if start.IsZero() {
		start = time.Now().UTC()
	}

	uncertainty := (mape / 100) * horizonMultiplier(horizonDays)
	trend := stats.LinearTrend(series)

	predictions := make([]Prediction, horizonDays)
	for i := 0; i < horizonDays; i++ {
		base, seasonal := seasonalBase(series, periodDays, i)
		predicted := math.Max(0, base+trend*float64(i))

		margin := 1.96 * predicted * uncertainty
		factors := []Factor{
			{
				Factor:      "linear_trend",
				Impact:      trend * float64(i),
				Description: "Trend extrapolation from the historical slope",
			},
		}
		if seasonal {
			factors = append(factors, Factor{
				Factor:      "seasonal_average",
				Impact:      base,
				Description: "Mean of historical points in the same seasonal phase",
			})
		} else {
			factors = append(factors, Factor{
				Factor:      "last_value",
				Impact:      base,
				Description: "Last observed value, series shorter than one seasonal period",
			})
		}

		predictions[i] = Prediction{
			Date:           start.AddDate(0, 0, i+1),
			PredictedValue: predicted,
			ConfidenceInterval: ConfidenceInterval{
				Lower:      math.Max(0, predicted-margin),
				Upper:      predicted + margin,
				Confidence: 0.95,
			},
			ContributingFactors: factors,
		}
	}

	return predictions, nil
}
