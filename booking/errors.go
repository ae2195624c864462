package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// NoRecordsDetail is the store's 404 detail for a user without records.
const NoRecordsDetail = "No records found."

// Error represents a non-2xx answer from the store with the HTTP status code
// and the server's detail message.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("booking: store returned %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// isNoRecords reports the store's "no records" answer, which is not a failure.
func isNoRecords(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound && e.Detail == NoRecordsDetail
}

func parseErrorResponse(status int, body []byte) error {
	var payload struct {
		Detail any `json:"detail"`
	}

	detail := strings.TrimSpace(string(body))

	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		switch d := payload.Detail.(type) {
		case string:
			detail = d
		default:
			if b, err := json.Marshal(d); err == nil {
				detail = string(b)
			}
		}
	}

	if detail == "" {
		detail = http.StatusText(status)
	}

	return &Error{StatusCode: status, Detail: detail}
}
