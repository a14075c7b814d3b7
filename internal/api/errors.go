package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fittedhq/fitted-go/internal/transport"
)

// ErrSessionExpired is the terminal auth failure: a 401 survived the
// refresh-and-retry cycle, or the refresh itself was rejected.
var ErrSessionExpired = errors.New("your session has expired, please log in again")

// Error is a request failure with the best message the backend gave us.
// Callers above the pipeline only ever see this or ErrSessionExpired, never
// raw status codes they have to classify themselves.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsSessionExpired reports whether err is the terminal auth failure
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

// errorBody is the JSON error envelope some endpoints return
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// errorFromResponse extracts a human-readable message from a failed
// response. The backend answers with either a JSON envelope or a bare
// string; fall back to a status-coded message when neither parses.
func errorFromResponse(resp *transport.Response) *Error {
	message := strings.TrimSpace(string(resp.Body))

	var body errorBody
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		switch {
		case body.Message != "":
			message = body.Message
		case body.Error != "":
			message = body.Error
		}
	}

	if message == "" {
		message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	return &Error{StatusCode: resp.StatusCode, Message: message}
}
