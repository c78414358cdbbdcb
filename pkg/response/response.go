package response

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/userdash/pkg/errors"
)

// Response is the JSON envelope spoken by the admin API.
type Response struct {
	Data    any    `json:"data,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Meta describes pagination metadata.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// List is the typed decode target for paginated payloads.
type List[T any] struct {
	Data []T `json:"data"`
	Meta Meta `json:"meta"`
}

// Item is the typed decode target for single-object payloads.
type Item[T any] struct {
	Data T `json:"data"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data any) {
	c.JSON(statusCode, Response{Data: data})
}

// SuccessWithMeta writes a JSON success response including pagination metadata.
// Data is always serialised, so an empty page encodes as [] rather than being omitted.
func SuccessWithMeta(c *gin.Context, statusCode int, data any, meta *Meta) {
	c.JSON(statusCode, struct {
		Data any   `json:"data"`
		Meta *Meta `json:"meta"`
	}{Data: data, Meta: meta})
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternal
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.AbortWithStatusJSON(status, Response{Error: appErr.Message})
}

// ErrorMessage extracts a human readable message from an error body. Both
// {"error":"text"} and {"error":{"message":"text"}} shapes are understood, as is a
// top-level "message". An empty string means the body carried no usable message.
func ErrorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Error) > 0 {
		var text string
		if err := json.Unmarshal(payload.Error, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}

		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(payload.Error, &nested); err == nil && strings.TrimSpace(nested.Message) != "" {
			return strings.TrimSpace(nested.Message)
		}
	}

	return strings.TrimSpace(payload.Message)
}
