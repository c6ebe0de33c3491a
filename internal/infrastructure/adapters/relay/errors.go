package relay

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorResponse is a relay-level error, either an HTTP error status or an
// err value inside a successful envelope.
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("relay error [%d]: %s (code: %s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("relay error [%d]: %s", e.StatusCode, e.Message)
}

// IsBusy reports a relay that is still processing an earlier proof
func (e *ErrorResponse) IsBusy() bool {
	return e.StatusCode == http.StatusConflict || e.Code == CodeBusy
}

func (e *ErrorResponse) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsNotYet reports the relay's "nothing stored yet" answer. Only the err
// value of a successful envelope counts; HTTP error bodies never do.
func (e *ErrorResponse) IsNotYet() bool {
	return e.StatusCode == http.StatusOK && isNotYet(e.Message)
}

func isNotYet(msg string) bool {
	return strings.Contains(strings.ToLower(msg), NotYetSentinel)
}
