package models

import "time"

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Themes    int               `json:"themes"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}
