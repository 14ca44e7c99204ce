package domain

// ValidationError marks a caller mistake (bad duration, missing reason,
// malformed input) as opposed to an admission or storage failure.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) error {
	return &ValidationError{msg: msg}
}
