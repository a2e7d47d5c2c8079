package forecast

import "math"

// Scores holds the model-quality measures computed on a validation split.
type Scores struct {
	Accuracy float64 `json:"accuracy"` // share of predictions within 10% relative error
	MAPE     float64 `json:"mape"`     // mean absolute percentage error, 100 = sentinel "no valid points"
	RMSE     float64 `json:"rmse"`
	R2       float64 `json:"r2_score"`
}

// Score compares forecasts against validation actuals. The slices are paired
// by index; the shorter length governs.
func Score(predictions, actuals []float64) Scores {
	n := len(predictions)
	if len(actuals) < n {
		n = len(actuals)
	}
	if n == 0 {
		return Scores{MAPE: 100}
	}

	// Accuracy: within 10% relative error; zero actuals demand an exact hit.
	hits := 0
	for i := 0; i < n; i++ {
		if actuals[i] == 0 {
			if predictions[i] == 0 {
				hits++
			}
			continue
		}
		if math.Abs(predictions[i]-actuals[i])/math.Abs(actuals[i]) <= 0.10 {
			hits++
		}
	}

	// MAPE: zero-actual points carry no defined percentage error and are skipped.
	mapeSum := 0.0
	mapeCount := 0
	for i := 0; i < n; i++ {
		if actuals[i] == 0 {
			continue
		}
		mapeSum += math.Abs(predictions[i]-actuals[i]) / math.Abs(actuals[i]) * 100
		mapeCount++
	}
	mape := 100.0
	if mapeCount > 0 {
		mape = mapeSum / float64(mapeCount)
	}

	// RMSE
	sqSum := 0.0
	for i := 0; i < n; i++ {
		d := predictions[i] - actuals[i]
		sqSum += d * d
	}
	rmse := math.Sqrt(sqSum / float64(n))

	// R²: 1 - SS_res/SS_tot, 0 when the actuals carry no variance.
	meanActual := 0.0
	for i := 0; i < n; i++ {
		meanActual += actuals[i]
	}
	meanActual /= float64(n)

	ssTot := 0.0
	for i := 0; i < n; i++ {
		d := actuals[i] - meanActual
		ssTot += d * d
	}
	r2 := 0.0
	if ssTot != 0 {
		r2 = 1 - sqSum/ssTot
	}

	return Scores{
		Accuracy: float64(hits) / float64(n),
		MAPE:     mape,
		RMSE:     rmse,
		R2:       r2,
	}
}
