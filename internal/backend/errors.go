package backend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hiroki-koketsu/upahead/internal/model"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

type errorBody struct {
	Error      json.RawMessage `json:"error"`
	Message    string          `json:"message"`
	Code       string          `json:"code"`
	Suggestion string          `json:"suggestion"`
}

type errorDetail struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	Suggestion string `json:"suggestion"`
}

// decodeError turns a non-2xx response into a *model.ServerError. The body
// may carry {"error":{"message","code","suggestion"}}, {"error":"..."} or a
// top-level message; anything else falls back to the status line.
func decodeError(resp *http.Response, fallback func(*http.Response) string) error {
	se := &model.ServerError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		se.Message, se.Code, se.Suggestion = body.Message, body.Code, body.Suggestion

		var detail errorDetail
		var text string
		switch {
		case len(body.Error) == 0:
		case json.Unmarshal(body.Error, &detail) == nil:
			if detail.Message != "" {
				se.Message = detail.Message
			}
			if detail.Code != "" {
				se.Code = detail.Code
			}
			if detail.Suggestion != "" {
				se.Suggestion = detail.Suggestion
			}
		case json.Unmarshal(body.Error, &text) == nil && text != "":
			se.Message = text
		}
	}

	if se.Message == "" {
		if fallback != nil {
			se.Message = fallback(resp)
		} else {
			se.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, statusText(resp))
		}
	}
	return se
}

func uploadFallback(resp *http.Response) string {
	return "Upload failed: " + statusText(resp)
}

// statusText returns the reason phrase of resp's status line.
func statusText(resp *http.Response) string {
	if _, reason, ok := strings.Cut(resp.Status, " "); ok && reason != "" {
		return reason
	}
	return http.StatusText(resp.StatusCode)
}
