package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/musiclip/internal/domain"
	"github.com/timmy/musiclip/internal/logger"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error kind and a caller-facing message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindEmbedding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	label := string(kind)
	if label == "" {
		label = "internal"
	}

	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		logger.CtxError(ctx, "Request failed: path=%s, kind=%s, error=%v", c.Request.URL.Path, label, err)
	} else {
		logger.CtxWarn(ctx, "Request rejected: path=%s, kind=%s, error=%v", c.Request.URL.Path, label, err)
	}

	c.JSON(status, ErrorBody{Error: ErrorDetail{Kind: label, Message: domain.PublicMessage(err)}})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Kind: string(domain.KindInvalidArgument), Message: msg}})
}
