package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/ticket-tracker/internal/core/domain"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// kindCases maps the domain error kinds. Handlers put their specific cases first.
var kindCases = []ErrorCase{
	{Err: domain.ErrCircularDependency, Status: http.StatusConflict, Message: "circular dependency detected"},
	{Err: domain.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	{Err: domain.ErrConflict, Status: http.StatusConflict, Message: "conflict"},
	{Err: domain.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid argument"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// withKindCases appends the domain kind mapping after the handler specific cases.
func withKindCases(cases ...ErrorCase) []ErrorCase {
	out := make([]ErrorCase, 0, len(cases)+len(kindCases))
	out = append(out, cases...)
	return append(out, kindCases...)
}
