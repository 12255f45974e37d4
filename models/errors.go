package models

import "time"

// ErrorResponse is the uniform error body returned by every endpoint.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Path      string    `json:"path"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrorResponse extends the uniform body with the full list of
// violations; all of them are reported together, not just the first.
type ValidationErrorResponse struct {
	ErrorResponse
	Errors []FieldError `json:"errors"`
}
