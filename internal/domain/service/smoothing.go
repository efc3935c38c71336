package service

import (
	"fmt"

	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// Smooth вычисляет EWMA последовательность для исходных значений.
//
//	out[0] = values[0]
//	out[i] = alpha*values[i] + (1-alpha)*out[i-1]
//
// Чистая функция: входной слайс не изменяется, NaN/Inf распространяются как есть.
func Smooth(values []float64, alpha float64) ([]float64, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("%w: smoothing alpha must be in (0, 1], got %v", valueobject.ErrInvalidParameter, alpha)
	}

	out := make([]float64, len(values))
	if len(values) == 0 {
		return out, nil
	}

	// α=1 не имеет памяти: серия совпадает с исходной даже при Inf во входе
	if alpha == 1 {
		copy(out, values)
		return out, nil
	}

	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}

	return out, nil
}
