package valueobject

import "errors"

// Severity уровень важности alert'а (Value Object)
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Validate проверяет валидность уровня
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return nil
	default:
		return errors.New("invalid severity")
	}
}

func (s Severity) String() string {
	return string(s)
}
