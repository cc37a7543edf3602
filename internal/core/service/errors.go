package service

import "errors"

var (
	ErrInvalidSku            = errors.New("invalid sku")
	ErrProductNotFound       = errors.New("product not found")
	ErrUnsatisfiedDependency = errors.New("unsatisfied dependency")
)

// IsValidationError reports whether err should be shown to the caller as a bad request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSku) || errors.Is(err, ErrProductNotFound)
}
