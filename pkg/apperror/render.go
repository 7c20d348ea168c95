package apperror

import (
	"net/http"

	"github.com/go-chi/render"
)

// ErrorBody is the JSON error payload returned by every service.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Render writes err as a JSON error response with the status for its kind.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	RenderStatus(w, r, HTTPStatus(err), err)
}

// RenderStatus writes err with an explicit status code.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: ErrorDetail{
		Code:    KindOf(err).String(),
		Message: PublicMessage(err),
	}})
}
