package wrightfisher

import "math"

// Status is the state of an invasion attempt.
type Status int

const (
	// Running means the trait is still segregating.
	Running Status = iota
	// Extinct means the trait's frequency reached zero.
	Extinct
	// Fixed means the trait's allele frequency reached one.
	Fixed
	// HorizonReached means the generation cap was hit without absorption.
	HorizonReached
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Extinct:
		return "extinct"
	case Fixed:
		return "fixed"
	case HorizonReached:
		return "horizon_reached"
	default:
		return "unknown"
	}
}

// Absorbed reports whether s is terminal.
func (s Status) Absorbed() bool {
	return s != Running
}

// Present reports whether the trait counts as present in state s. Reaching
// the horizon approximates infinite time and counts as persisting.
func (s Status) Present() bool {
	return s != Extinct
}

// CloseTo reports whether |x-y| < tol.
func CloseTo(x, y, tol float64) bool {
	return math.Abs(x-y) < tol
}

// IsExtinct reports whether an allele frequency is zero within tol, or has
// drifted below zero.
func IsExtinct(freq, tol float64) bool {
	return CloseTo(freq, 0, tol) || freq < 0
}

// IsFixed reports whether an allele frequency is one within tol, or has
// drifted above one.
func IsFixed(freq, tol float64) bool {
	return CloseTo(freq, 1, tol) || freq > 1
}

// Classify returns the status of an attempt whose allele frequency is freq
// after gen generations. Extinction takes priority over fixation, which
// takes priority over the generation cap.
func Classify(freq float64, gen int, cfg SimulationConfig) Status {
	switch {
	case IsExtinct(freq, cfg.Tolerance):
		return Extinct
	case IsFixed(freq, cfg.Tolerance):
		return Fixed
	case gen >= cfg.MaxGenerations:
		return HorizonReached
	default:
		return Running
	}
}
