package bot

import (
	"fmt"
	"math/rand"
)

// NewBrain creates a new AI brain based on the specified level.
// rng drives the good bot's deliberate misses; nil disables them.
func NewBrain(level BotLevel, tuning Tuning, rng *rand.Rand) (Brain, error) {
	switch level {
	case BotLevelGood:
		return &GoodBot{Tuning: tuning, rng: rng}, nil
	case BotLevelSmart:
		return &SmartBot{Tuning: tuning}, nil
	default:
		return nil, fmt.Errorf("unknown bot level: %d", level)
	}
}
