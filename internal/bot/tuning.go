package bot

// Tuning holds the knobs shared by the paddle strategies.
// Distances are fractions of the paddle height.
type Tuning struct {
	// DeadZone is how far the target may sit from the paddle center
	// before the bot moves.
	DeadZone float64
	// MissChance is the probability that the good bot misjudges a return.
	MissChance float64
	// MissOffset is how far a misjudged target lands from the ball.
	MissOffset float64
}

// DefaultTuning keeps the good bot beatable and the smart bot steady.
var DefaultTuning = Tuning{
	DeadZone:   0.15,
	MissChance: 0.2,
	MissOffset: 1.2,
}
