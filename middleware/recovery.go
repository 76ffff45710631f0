package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/berthwatch/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a panic inside a handler into a 500 response.
// http.ErrAbortHandler is passed through so the server drops the connection.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.Error(c.Request.Context(), "handler panicked",
				"panic", rec,
				"route", c.FullPath(),
				"username", GetUsername(c),
				"stack", string(debug.Stack()),
			)

			// headers already sent, nothing to correct
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}
