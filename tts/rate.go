package tts

import "fmt"

// Speech rate bounds. Requests outside this range are clamped, not
// rejected.
const (
	MinRate = 0.5
	MaxRate = 3.0
)

// RateSteps are the preset rates Increase and Decrease step through.
var RateSteps = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 2.0, 2.5, 3.0}

// ClampRate bounds a speech rate multiplier to [MinRate, MaxRate].
func ClampRate(rate float64) float64 {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}

// NextRate returns the smallest preset step strictly above rate, or MaxRate
// when rate is already at or past the top step.
func NextRate(rate float64) float64 {
	for _, step := range RateSteps {
		if step > rate {
			return step
		}
	}
	return MaxRate
}

// PreviousRate returns the largest preset step strictly below rate, or
// MinRate when rate is already at or below the bottom step.
func PreviousRate(rate float64) float64 {
	for i := len(RateSteps) - 1; i >= 0; i-- {
		if RateSteps[i] < rate {
			return RateSteps[i]
		}
	}
	return MinRate
}

// RateDisplay returns a human-readable rate description for logs and the
// CLI.
func RateDisplay(rate float64) string {
	switch rate {
	case 0.5:
		return "0.5x (half speed)"
	case 1.0:
		return "1.0x (normal)"
	case 1.5:
		return "1.5x (faster)"
	case 2.0:
		return "2.0x (double speed)"
	case 3.0:
		return "3.0x (maximum)"
	default:
		return fmt.Sprintf("%.2fx", rate)
	}
}
