package service

import "time"

// MET value for vigorous resistance training, per the compendium of physical
// activities. Physiological accuracy is a non-goal; the estimate only needs to
// be deterministic and roughly proportional to effort.
const (
	resistanceTrainingMET = 6.0
	caloriesPerVolumeKg   = 0.012
)

// estimateCalories computes a rough calorie figure for a completed session from
// its duration, total lifted volume, and the athlete's body weight.
func estimateCalories(totalVolume float64, duration time.Duration, bodyWeightKg float64) float64 {
	minutes := duration.Minutes()
	if minutes < 0 {
		minutes = 0
	}
	basal := minutes * (resistanceTrainingMET * 3.5 * bodyWeightKg / 200)
	return basal + totalVolume*caloriesPerVolumeKg
}
