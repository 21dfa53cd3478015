package fortigate

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bcnelson/fortigate-addr-provisioner/internal/domain"
)

// APIError is a non-200 response from the appliance.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Is reports a 404 as domain.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrNotFound && e.StatusCode == http.StatusNotFound
}

// ErrorBody returns the response body of an API error verbatim, or the error
// text for transport failures.
func ErrorBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return err.Error()
}
