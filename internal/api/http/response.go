package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/QuakeAlert/backend/internal/shared/apperror"
)

// Envelope is the success body of every endpoint
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// fail hands err to the error handler and stops the chain
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// NoRoute answers unknown paths with the failure envelope
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, apperror.NotFound("Route not found").Response())
}

// NoMethod answers known paths called with an unsupported method
func NoMethod(c *gin.Context) {
	resp := apperror.Response{Error: "Method not allowed"}
	c.JSON(http.StatusMethodNotAllowed, resp)
}
