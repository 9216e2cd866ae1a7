package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type okBody struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type failBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Envelope documents the response shape for swagger.
// swagger:model Envelope
type Envelope struct {
	Success bool   `json:"success" example:"true"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty" example:"not found"`
	Message string `json:"message,omitempty"`
}

// Page is the data payload of every paginated listing.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage never returns a nil Items slice so clients always see [].
func NewPage[T any](items []T, limit, offset int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Limit: limit, Offset: offset}
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, okBody{Success: true, Data: data})
}

func OKMessage(c *gin.Context, data any, msg string) {
	c.JSON(http.StatusOK, okBody{Success: true, Data: data, Message: msg})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, okBody{Success: true, Data: data})
}

func CreatedMessage(c *gin.Context, data any, msg string) {
	c.JSON(http.StatusCreated, okBody{Success: true, Data: data, Message: msg})
}

func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Fail writes an error envelope and aborts the chain.
func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, failBody{Error: msg})
}
