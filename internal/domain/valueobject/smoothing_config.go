package valueobject

import "fmt"

// DefaultAlpha коэффициент сглаживания EWMA по умолчанию
const DefaultAlpha = 0.3

// SmoothingConfig параметры EWMA сглаживания (Value Object)
type SmoothingConfig struct {
	Enabled bool
	Alpha   float64
}

// DefaultSmoothingConfig возвращает включенное сглаживание с α=0.3
func DefaultSmoothingConfig() SmoothingConfig {
	return SmoothingConfig{Enabled: true, Alpha: DefaultAlpha}
}

// Validate проверяет, что α ∈ (0, 1]. NaN не проходит ни одно из сравнений.
func (c SmoothingConfig) Validate() error {
	if !(c.Alpha > 0 && c.Alpha <= 1) {
		return fmt.Errorf("%w: smoothing alpha must be in (0, 1], got %v", ErrInvalidParameter, c.Alpha)
	}
	return nil
}

// EffectiveAlpha возвращает α, применяемый к серии. Выключенное сглаживание эквивалентно α=1.
func (c SmoothingConfig) EffectiveAlpha() float64 {
	if !c.Enabled {
		return 1
	}
	return c.Alpha
}
