package bloom

import (
	"errors"
	"fmt"
)

// Sentinel errors for filter construction.
var (
	// ErrInvalidCapacity indicates a capacity of zero or less.
	ErrInvalidCapacity = errors.New("capacity must be positive")

	// ErrInvalidErrorRate indicates an error rate outside (0, 1).
	ErrInvalidErrorRate = errors.New("error rate must be between 0 and 1 exclusive")

	// ErrCapacityOverflow indicates the capacity and error rate would need a
	// bit array longer than MaxBits.
	ErrCapacityOverflow = errors.New("bit array length overflow")

	// ErrMissingHashFunction indicates no secondary hash was supplied for an
	// element type without a built-in one.
	ErrMissingHashFunction = errors.New("hash function required for element type")
)

// ConstructionError reports invalid filter parameters.
type ConstructionError struct {
	Capacity  int
	ErrorRate float64
	Err       error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrCapacityOverflow):
		return fmt.Sprintf("bloom: capacity %d and error rate %g would need more than %d bits; reduce either value",
			e.Capacity, e.ErrorRate, MaxBits)
	case errors.Is(e.Err, ErrMissingHashFunction):
		return "bloom: provide a hash function when the element type is not a string or integer"
	case e.ErrorRate != 0:
		return fmt.Sprintf("bloom: %v (capacity: %d, error rate: %g)", e.Err, e.Capacity, e.ErrorRate)
	default:
		return fmt.Sprintf("bloom: %v (capacity: %d)", e.Err, e.Capacity)
	}
}

// Unwrap returns the underlying sentinel.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}
