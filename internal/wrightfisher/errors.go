package wrightfisher

import "errors"

// Configuration errors. All are returned before any replicate runs.
var (
	// ErrInvalidConfig indicates a SimulationConfig field outside its valid range.
	ErrInvalidConfig = errors.New("wrightfisher: invalid simulation config")

	// ErrUnknownModel indicates a ModelSpec with an unrecognised Kind.
	ErrUnknownModel = errors.New("wrightfisher: unknown model")

	// ErrDimensionMismatch indicates a frequency state or trait index that
	// does not fit the model variant.
	ErrDimensionMismatch = errors.New("wrightfisher: frequency state does not match model")

	// ErrZeroFitness indicates a fitness (sub-)vector whose entries are all
	// zero, which leaves the selection step without a normalising constant.
	ErrZeroFitness = errors.New("wrightfisher: all fitnesses are zero")

	// ErrNegativeFitness indicates a selection coefficient below -1.
	ErrNegativeFitness = errors.New("wrightfisher: fitness must be non-negative")
)
