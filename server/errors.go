package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-callverify/core"
	goerrors "github.com/goliatone/go-errors"
)

func serverConfigError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}

// writeError maps err to its envelope status. Unknown calls keep the
// {"error":"Call not found"} body existing clients match on.
func (s *Server) writeError(c *gin.Context, err error) {
	status := core.HTTPStatus(err)
	body := gin.H{"error": http.StatusText(status)}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.TextCode != "" {
			body["code"] = rich.TextCode
		}
		if status < http.StatusInternalServerError {
			body["error"] = rich.Message
		}
		if fields := rich.AllValidationErrors(); len(fields) > 0 {
			body["fields"] = fields
		}
		if rich.TextCode == core.ErrorSessionNotFound {
			body["error"] = "Call not found"
		}
	}
	if status >= http.StatusInternalServerError {
		core.LogWithFields(c.Request.Context(), s.logger, "error", "request failed", map[string]any{
			"path":   c.FullPath(),
			"status": status,
			"error":  err.Error(),
		})
	}
	c.AbortWithStatusJSON(status, body)
}
