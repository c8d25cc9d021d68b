package server

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"immigration-advisor/internal/common/errors"
)

type envelope struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

// respondError writes the error envelope. Internal failures are logged with
// their details and answered with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	stdErr := errors.AsStandard(err)
	status := errors.HTTPStatus(stdErr)
	if stdErr.Code == errors.ErrCodeRequestCancelled && stderrors.Is(stdErr, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}

	body := &apiError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		RequestID: c.GetString(requestIDKey),
	}

	fields := map[string]interface{}{
		"requestId": body.RequestID,
		"path":      c.Request.URL.Path,
		"errorCode": body.Code,
		"status":    status,
		"details":   stdErr.Details,
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
		if status == http.StatusInternalServerError {
			body.Code = string(errors.ErrCodeInternal)
			body.Message = "Unexpected error"
			body.Details = ""
		}
	} else {
		s.logger.Warn("request rejected", fields)
	}

	c.AbortWithStatusJSON(status, envelope{Status: "error", Error: body})
}
