package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ServerError is a rejection the server chose to send (4xx/5xx). The reason
// is surfaced verbatim so the presentation layer can render it; the client
// never reinterprets or retries these.
type ServerError struct {
	Status int
	Reason string
}

func (e *ServerError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("server rejected request (%d)", e.Status)
	}
	return fmt.Sprintf("server rejected request (%d): %s", e.Status, e.Reason)
}

func newServerError(res *http.Response) *ServerError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))

	// Servers in the wild answer with {"error": "..."} or plain text.
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	reason := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			reason = payload.Error
		} else if payload.Message != "" {
			reason = payload.Message
		}
	}
	return &ServerError{Status: res.StatusCode, Reason: reason}
}
