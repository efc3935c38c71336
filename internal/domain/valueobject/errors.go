package valueobject

import "errors"

var (
	// ErrInvalidParameter возвращается при коэффициенте сглаживания вне (0, 1]
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrLengthMismatch возвращается, когда параллельные массивы серии различаются по длине
	ErrLengthMismatch = errors.New("length mismatch")
)
