// Package errors provides standardized error handling for the dispatch workers and
// the matching core.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input validation
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidJob      ErrorCode = "INVALID_JOB"
	ErrCodeInvalidLocation ErrorCode = "INVALID_LOCATION"
	ErrCodeEmptyPool       ErrorCode = "EMPTY_TECHNICIAN_POOL"

	// Matching core
	ErrCodeScoringFailed        ErrorCode = "SCORING_FAILED"
	ErrCodeNoDiversionCandidate ErrorCode = "NO_DIVERSION_CANDIDATE"

	// External collaborators
	ErrCodePredictorUnavailable ErrorCode = "PREDICTOR_UNAVAILABLE"
	ErrCodePredictorTimeout     ErrorCode = "PREDICTOR_TIMEOUT"
	ErrCodeRouteLookupFailed    ErrorCode = "ROUTE_LOOKUP_FAILED"
	ErrCodeExplanationFailed    ErrorCode = "EXPLANATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeAuditIndexFailed ErrorCode = "AUDIT_INDEX_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the code of a wrapped StandardError, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return "INTERNAL_ERROR"
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewInvalidInputError creates a non-retryable error for malformed job variables.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid worker input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidJobError creates a non-retryable error for a missing or malformed job.
func NewInvalidJobError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJob,
		Message:   "Job is missing or malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidLocationError flags coordinates that cannot be used for distance math.
func NewInvalidLocationError(subject string, lat, lon float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidLocation,
		Message:   "Invalid coordinates",
		Details:   fmt.Sprintf("%s: lat=%v lon=%v", subject, lat, lon),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyPoolError is raised when no technicians were supplied or loaded.
func NewEmptyPoolError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyPool,
		Message:   "Technician pool is empty",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringFailedError wraps a per-candidate scoring failure.
func NewScoringFailedError(technicianID string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringFailed,
		Message:   "Scoring failed for technician",
		Details:   fmt.Sprintf("technicianId: %s, error: %v", technicianID, cause),
		Retryable: false,
		Metadata:  map[string]interface{}{"technicianId": technicianID},
		Timestamp: time.Now().UTC(),
	}
}

// NewNoDiversionCandidateError describes why an emergency could not be covered.
func NewNoDiversionCandidateError(jobID, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoDiversionCandidate,
		Message:   "No technician available for emergency",
		Details:   fmt.Sprintf("jobId: %s, reason: %s", jobID, reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictorUnavailableError creates a retryable predictor error.
func NewPredictorUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictorUnavailable,
		Message:   "Predictor call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPredictorTimeoutError creates a retryable predictor timeout error.
func NewPredictorTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodePredictorTimeout,
		Message:   "Predictor call timed out",
		Details:   fmt.Sprintf("timeout: %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRouteLookupFailedError wraps a map provider failure.
func NewRouteLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRouteLookupFailed,
		Message:   "Route lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExplanationFailedError wraps an explanation generator failure.
func NewExplanationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExplanationFailed,
		Message:   "Explanation generation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError is logged when a cache backend fails; callers treat it as a miss.
func NewCacheUnavailableError(backend string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   fmt.Sprintf("Cache backend '%s' unavailable", backend),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditIndexFailedError wraps an Elasticsearch indexing failure.
func NewAuditIndexFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditIndexFailed,
		Message:   "Audit indexing failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes modelled in the
// dispatch BPMN processes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeInvalidJob:               "INVALID_JOB",
	ErrCodeInvalidLocation:          "INVALID_JOB",
	ErrCodeEmptyPool:                "NO_TECHNICIANS",
	ErrCodeNoDiversionCandidate:     "NO_TECHNICIANS",
	ErrCodeDatabaseConnectionFailed: "DATABASE_ERROR",
	ErrCodeQueryExecutionFailed:     "DATABASE_ERROR",
	ErrCodeQueryTimeout:             "DATABASE_ERROR",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodePredictorUnavailable,
		ErrCodeRouteLookupFailed:
		return 2

	case ErrCodePredictorTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "EMPTY"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SCORING") || strings.Contains(codeStr, "DIVERSION"):
		return "MATCHING"
	case strings.Contains(codeStr, "PREDICTOR") || strings.Contains(codeStr, "EXPLANATION"):
		return "AI"
	case strings.Contains(codeStr, "ROUTE"):
		return "MAPS"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "AUDIT"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
