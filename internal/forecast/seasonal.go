package forecast

import (
	"math"
	"time"

	"edubench/internal/metric"
	"edubench/internal/stats"
)

// SeasonalPatterns summarizes recurring structure in a sample series. The
// per-day and per-month values are relative indices: each bucket's average
// divided by the mean across buckets, so 1.0 means "typical".
type SeasonalPatterns struct {
	DayOfWeek   map[time.Weekday]float64 `json:"day_of_week"`
	MonthOfYear map[time.Month]float64   `json:"month_of_year"`
	PeakDay     time.Weekday             `json:"peak_day"`
	LowDay      time.Weekday             `json:"low_day"`
	PeakMonth   time.Month               `json:"peak_month"`
	LowMonth    time.Month               `json:"low_month"`
}

// AnalyzeSeasonality computes normalized day-of-week and month-of-year
// patterns from timestamped samples.
func AnalyzeSeasonality(samples []metric.Sample) SeasonalPatterns {
	p := SeasonalPatterns{
		DayOfWeek:   make(map[time.Weekday]float64),
		MonthOfYear: make(map[time.Month]float64),
	}
	if len(samples) == 0 {
		return p
	}

	daySums := make(map[time.Weekday]float64)
	dayCounts := make(map[time.Weekday]int)
	monthSums := make(map[time.Month]float64)
	monthCounts := make(map[time.Month]int)

	for _, s := range samples {
		wd := s.Timestamp.Weekday()
		daySums[wd] += s.Value
		dayCounts[wd]++

		mo := s.Timestamp.Month()
		monthSums[mo] += s.Value
		monthCounts[mo]++
	}

	dayAvgs := make(map[time.Weekday]float64, len(daySums))
	for wd, sum := range daySums {
		dayAvgs[wd] = sum / float64(dayCounts[wd])
	}
	monthAvgs := make(map[time.Month]float64, len(monthSums))
	for mo, sum := range monthSums {
		monthAvgs[mo] = sum / float64(monthCounts[mo])
	}

	p.DayOfWeek, p.PeakDay, p.LowDay = normalizeDays(dayAvgs)
	p.MonthOfYear, p.PeakMonth, p.LowMonth = normalizeMonths(monthAvgs)
	return p
}

func normalizeDays(avgs map[time.Weekday]float64) (map[time.Weekday]float64, time.Weekday, time.Weekday) {
	out := make(map[time.Weekday]float64, len(avgs))
	total := 0.0
	for _, v := range avgs {
		total += v
	}
	mean := total / float64(len(avgs))

	var peak, low time.Weekday
	peakV := math.Inf(-1)
	lowV := math.Inf(1)
	// Fixed iteration order keeps peak/low ties deterministic.
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		v, ok := avgs[wd]
		if !ok {
			continue
		}
		if mean != 0 {
			out[wd] = v / mean
		} else {
			out[wd] = 0
		}
		if v > peakV {
			peakV, peak = v, wd
		}
		if v < lowV {
			lowV, low = v, wd
		}
	}
	return out, peak, low
}

func normalizeMonths(avgs map[time.Month]float64) (map[time.Month]float64, time.Month, time.Month) {
	out := make(map[time.Month]float64, len(avgs))
	total := 0.0
	for _, v := range avgs {
		total += v
	}
	mean := total / float64(len(avgs))

	var peak, low time.Month
	peakV := math.Inf(-1)
	lowV := math.Inf(1)
	for mo := time.January; mo <= time.December; mo++ {
		v, ok := avgs[mo]
		if !ok {
			continue
		}
		if mean != 0 {
			out[mo] = v / mean
		} else {
			out[mo] = 0
		}
		if v > peakV {
			peakV, peak = v, mo
		}
		if v < lowV {
			lowV, low = v, mo
		}
	}
	return out, peak, low
}

// Trajectory classifications.
const (
	TrajectoryVolatile  = "volatile"
	TrajectoryStable    = "stable"
	TrajectoryGrowing   = "growing"
	TrajectoryDeclining = "declining"
)

// CapacityProjection estimates when growth exhausts remaining capacity.
type CapacityProjection struct {
	MonthsToSaturation float64 `json:"months_to_saturation"`
	Recommendation     string  `json:"recommendation"`
}

// GrowthTrajectory describes the directional behavior of a series and its
// growth rates at several time scales. Rates are relative (0.01 = 1%).
type GrowthTrajectory struct {
	Classification string  `json:"classification"`
	DailyGrowth    float64 `json:"daily_growth_rate"`
	WeeklyGrowth   float64 `json:"weekly_growth_rate"`
	MonthlyGrowth  float64 `json:"monthly_growth_rate"`
	YearlyGrowth   float64 `json:"yearly_growth_rate"`

	Capacity *CapacityProjection `json:"capacity_projection,omitempty"`
}

// AnalyzeGrowth classifies the trend of a series. Volatility wins over
// direction: a coefficient of variation above 0.2 reads as volatile before
// any slope interpretation. utilization (0..1) feeds the capacity projection,
// which only triggers past 5% yearly growth at over 80% utilization.
func AnalyzeGrowth(values []float64, utilization float64) GrowthTrajectory {
	mean := stats.Mean(values)
	trend := stats.LinearTrend(values)

	t := GrowthTrajectory{Classification: TrajectoryStable}
	if len(values) == 0 || mean == 0 {
		return t
	}

	t.DailyGrowth = trend / mean
	t.WeeklyGrowth = t.DailyGrowth * 7
	t.MonthlyGrowth = t.DailyGrowth * 30
	t.YearlyGrowth = t.DailyGrowth * 365

	cv := stats.CoefficientOfVariation(values)
	switch {
	case cv > 0.2:
		t.Classification = TrajectoryVolatile
	case math.Abs(trend) < mean*0.001:
		t.Classification = TrajectoryStable
	case trend > 0:
		t.Classification = TrajectoryGrowing
	default:
		t.Classification = TrajectoryDeclining
	}

	if t.YearlyGrowth > 0.05 && utilization > 0.8 {
		t.Capacity = projectSaturation(t.MonthlyGrowth, utilization)
	}

	return t
}

func projectSaturation(monthlyGrowth, utilization float64) *CapacityProjection {
	if monthlyGrowth <= 0 {
		return nil
	}

	headroom := 1.0 - utilization
	months := headroom / (utilization * monthlyGrowth)

	rec := "Plan capacity expansion within the projected window"
	if months < 6 {
		rec = "Begin capacity expansion immediately, saturation projected within six months"
	}

	return &CapacityProjection{
		MonthsToSaturation: math.Round(months*10) / 10,
		Recommendation:     rec,
	}
}
