package main

import (
	"errors"
	"net/http"

	"github.com/CodedInternet/carnode/comms"
	"github.com/go-chi/render"
)

// ErrResponse renders an error as JSON with its HTTP status.
type ErrResponse struct {
	Err            error `json:"-"`
	HTTPStatusCode int   `json:"-"`

	StatusText string `json:"status"`
	ErrorText  string `json:"error,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func newErrResponse(code int, err error) *ErrResponse {
	e := &ErrResponse{
		Err:            err,
		HTTPStatusCode: code,
		StatusText:     http.StatusText(code),
	}
	if err != nil {
		e.ErrorText = err.Error()
	}
	return e
}

var ErrNotFound = newErrResponse(http.StatusNotFound, nil)

func ErrInvalidRequest(err error) render.Renderer {
	return newErrResponse(http.StatusBadRequest, err)
}

func ErrUnauthorized(err error) render.Renderer {
	return newErrResponse(http.StatusUnauthorized, err)
}

func ErrPermissionDenied(err error) render.Renderer {
	return newErrResponse(http.StatusForbidden, err)
}

func ErrRender(err error) render.Renderer {
	return newErrResponse(http.StatusInternalServerError, err)
}

// ErrCommand maps a conductor error onto the matching status.
func ErrCommand(err error) render.Renderer {
	var argErr comms.ArgError
	switch {
	case errors.As(err, &argErr), errors.Is(err, comms.ErrUnknownCommand):
		return ErrInvalidRequest(err)
	case errors.Is(err, comms.ErrQueueFull):
		return newErrResponse(http.StatusServiceUnavailable, err)
	case errors.Is(err, comms.ErrTimeout):
		return newErrResponse(http.StatusGatewayTimeout, err)
	}
	return ErrRender(err)
}
