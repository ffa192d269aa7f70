package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"threadline/internal/store"
	"threadline/internal/utils"

	"github.com/gin-gonic/gin"
)

// API error codes kept from the service's original wire envelope.
const (
	CodeInvalidParameter = 100
	CodeMissingParameter = 101
	CodeObjectNotFound   = 103
	CodeCommentAPI       = 105
)

var errorCodes = map[int]string{
	CodeInvalidParameter: "Invalid parameter value",
	CodeMissingParameter: "Missing parameter",
	CodeObjectNotFound:   "Object doesn't exist",
	CodeCommentAPI:       "Comment API error",
}

// ErrorResult writes the JSON error envelope with a 406 status.
func ErrorResult(c *gin.Context, code int, message string) {
	c.JSON(http.StatusNotAcceptable, gin.H{
		"error":   fmt.Sprintf("%s (%d). %s", errorCodes[code], code, message),
		"code":    code,
		"message": message,
	})
}

// handleStoreError maps the domain error taxonomy onto the wire envelope.
// Anything outside the taxonomy is a storage-layer error and surfaces as a
// plain 500.
func handleStoreError(c *gin.Context, err error) {
	var (
		invalidParam *store.InvalidParameterError
		notFound     *store.NotFoundError
		hasChildren  *store.HasChildrenError
	)
	switch {
	case errors.As(err, &invalidParam):
		ErrorResult(c, CodeInvalidParameter, err.Error())
	case errors.As(err, &notFound):
		ErrorResult(c, CodeObjectNotFound, err.Error())
	case errors.As(err, &hasChildren):
		ErrorResult(c, CodeCommentAPI, err.Error())
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// Page returns the page query parameter, 0 when absent.
func Page(c *gin.Context) int {
	return utils.StringToInt(c.Query("page"))
}

// Limit returns the limit query parameter, falling back to def.
func Limit(c *gin.Context, def int) int {
	if l := utils.StringToInt(c.Query("limit")); l > 0 {
		return l
	}
	return def
}
