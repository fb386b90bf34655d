package loop

import (
	"fmt"
	"math"
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
)

// Multiplier returns the movement speed multiplier for the given survival time.
// It grows by config.MultiplierIncrease every config.MultiplierStep and is capped
// at config.MaxMultiplier.
func Multiplier(survival time.Duration) float64 {
	if survival < 0 {
		survival = 0
	}
	steps := float64(survival / config.MultiplierStep)
	return math.Min(1+steps*config.MultiplierIncrease, config.MaxMultiplier)
}

// ScoreFor returns the score earned by surviving for the given time.
func ScoreFor(survival time.Duration) int {
	if survival < 0 {
		return 0
	}
	return int(survival / config.ScoreInterval)
}

// FormatDuration renders d as mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
