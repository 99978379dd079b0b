package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

const maxErrorBody = 64 * 1024 // 64 KiB

// ErrNotFound matches APIErrors carrying a 404 status.
var ErrNotFound = errors.New("task not found")

// APIError is a non-2xx response from the task API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func defaultMessage(status int) string {
	return fmt.Sprintf("request failed with status code %d", status)
}

// readAPIError builds an APIError from resp, preferring the message the
// server put in the body.
func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: defaultMessage(resp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var payload map[string]any
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "<") {
			apiErr.Message = text
		}
		return apiErr
	}
	for _, key := range []string{"message", "detail", "error"} {
		if msg, ok := payload[key].(string); ok && strings.TrimSpace(msg) != "" {
			apiErr.Message = msg
			break
		}
	}
	return apiErr
}
