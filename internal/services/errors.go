package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool        = errors.New("external tool error")
	ErrValidation          = errors.New("validation error")
	ErrConfiguration       = errors.New("configuration error")
	ErrNotFound            = errors.New("not found")
	ErrTimeout             = errors.New("timeout")
	ErrTransient           = errors.New("transient failure")
	ErrResourceUnavailable = errors.New("resource unavailable")
)

// Error classes reported in the error_class log field.
const (
	ClassTransient           = "transient"
	ClassResourceUnavailable = "resource_unavailable"
	ClassConfiguration       = "configuration"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its handling class. Resource-unavailable errors
// abort the current operation; everything else only affects the item at hand.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrResourceUnavailable):
		return ClassResourceUnavailable
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	default:
		return ClassTransient
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
