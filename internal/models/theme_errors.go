package models

import (
	"errors"
	"fmt"
	"strings"
)

// Common theme-related errors
var (
	ErrThemeNotFound    = errors.New("theme not found")
	ErrInvalidThemeName = errors.New("theme name is required")
	ErrBuiltInThemeEdit = errors.New("built-in themes cannot be modified")
)

// ValidationError reports a theme document that does not match the schema
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return "Invalid theme JSON structure. " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SelfInheritanceError reports a theme whose inherits field names itself
type SelfInheritanceError struct {
	Name string
}

func (e *SelfInheritanceError) Error() string {
	return fmt.Sprintf("Theme %q cannot inherit from itself. Self-inheritance creates a circular dependency.", e.Name)
}

// CircularInheritanceError reports an inherits chain that loops back on itself.
// Chain lists every participant in resolution order and ends with the name that closes the loop.
type CircularInheritanceError struct {
	Chain []string
}

func (e *CircularInheritanceError) Error() string {
	return fmt.Sprintf("Circular inheritance detected: %s. A theme cannot create a circular dependency chain.",
		strings.Join(e.Chain, " -> "))
}

// ImageResolutionError wraps a failed background image lookup. It is logged, never returned by load operations.
type ImageResolutionError struct {
	Theme string
	Path  string
	Err   error
}

func (e *ImageResolutionError) Error() string {
	return fmt.Sprintf("resolve background image %q for theme %q: %v", e.Path, e.Theme, e.Err)
}

func (e *ImageResolutionError) Unwrap() error {
	return e.Err
}

// LoadError wraps an unexpected failure while loading one theme
type LoadError struct {
	Theme string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load theme %q: %v", e.Theme, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsInheritanceError reports whether err (or anything it wraps or joins) is a self or circular inheritance error
func IsInheritanceError(err error) bool {
	var self *SelfInheritanceError
	if errors.As(err, &self) {
		return true
	}
	var circular *CircularInheritanceError
	return errors.As(err, &circular)
}

// IsValidationError reports whether err is a schema validation failure
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
