package services

import "errors"

// ErrValidation is returned when a request is missing a required field.
var ErrValidation = errors.New("validation failed")
