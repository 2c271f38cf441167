package domain

import (
	"math"
	"math/rand"
)

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v <= lo {
		return lo
	}
	if v >= hi {
		return hi
	}
	return v
}

// Serve angle bounds measured from the horizontal axis.
const (
	minServeAngle = math.Pi / 12
	maxServeAngle = math.Pi / 4
)

// ServeVelocity returns a diagonal velocity of the given speed with
// randomized horizontal and vertical direction.
func ServeVelocity(rng *rand.Rand, speed float64) Vec {
	angle := minServeAngle + rng.Float64()*(maxServeAngle-minServeAngle)
	v := Vec{X: speed * math.Cos(angle), Y: speed * math.Sin(angle)}
	if rng.Intn(2) == 0 {
		v.X = -v.X
	}
	if rng.Intn(2) == 0 {
		v.Y = -v.Y
	}
	return v
}
