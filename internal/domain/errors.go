package domain

import (
	"errors"
	"fmt"
)

const (
	ServiceCompletion = "completion"
	ServiceEmbedding  = "embedding"
)

// ErrEmptyInput is returned when the text to summarize is missing or blank.
var ErrEmptyInput = errors.New("input is empty")

// ServiceError is a failure of the external completion or embedding service.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// GenerationError wraps any failure that happened while producing a summary.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return "generate summary: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
