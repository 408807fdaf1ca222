package shared

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents the different failure classes a crawl run can hit
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryTransientUI   ErrorCategory = "transient_ui"
	ErrorCategoryNavigation    ErrorCategory = "navigation"
	ErrorCategoryExtraction    ErrorCategory = "extraction"
	ErrorCategoryRecovery      ErrorCategory = "recovery"
	ErrorCategoryPagination    ErrorCategory = "pagination"
)

// Sentinel errors matched with errors.Is by callers and tests.
var (
	ErrNavigationFailed  = errors.New("required navigation control never became actionable")
	ErrRecoveryFailed    = errors.New("could not restore the listing view")
	ErrEmptyDetail       = errors.New("detail view yielded no fields and no attachments")
	ErrPaginationStalled = errors.New("numbered page was clicked but the listing did not change")
	ErrRunInProgress     = errors.New("a crawl run is already in progress")
)

// ServiceError classifies a failure by category and code and records where it happened
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap exposes Cause to errors.Is and errors.As
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error stamped with the current time
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// WithDetails attaches context such as a bid number or preflight result
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// LogError writes the error as one structured entry; retryable failures log at warn
func (e *ServiceError) LogError(logger *logrus.Entry) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	entry := logger.WithFields(logrus.Fields{
		"category":  e.Category,
		"code":      e.Code,
		"service":   e.ServiceName,
		"operation": e.Operation,
		"retryable": e.Retryable,
	})
	if e.Details != nil {
		entry = entry.WithField("details", e.Details)
	}
	if e.Cause != nil {
		entry = entry.WithError(e.Cause)
	}
	if e.Retryable {
		entry.Warn(e.Message)
		return
	}
	entry.Error(e.Message)
}

// WrapError classifies err. An error that already carries a ServiceError keeps its
// category and code and only takes the caller's service and operation.
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}
	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// CategoryOf returns the category of the first ServiceError in the chain, or "" if none
func CategoryOf(err error) ErrorCategory {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Category
	}
	return ""
}

// retryableMessages are driver and network failures worth another attempt
var retryableMessages = []string{
	"timeout", "deadline exceeded", "connection refused", "connection reset",
	"temporary failure", "not attached", "not visible", "intercepted",
	"network", "socket",
}

// IsRetryableError reports the Retryable flag of a ServiceError, or matches
// plain errors against known transient messages
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Retryable
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryableMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
