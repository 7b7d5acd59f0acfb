package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/ginjaninja78/covid-scenes/internal/chartwriter"
	"github.com/ginjaninja78/covid-scenes/internal/loader"
	"github.com/ginjaninja78/covid-scenes/internal/scene"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	StatusCode int    `json:"status"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func newAPIError(status int, code string, err error) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: err.Error()}
}

// errorFor maps a domain error onto an HTTP status.
func errorFor(err error) *APIError {
	var fe *loader.FetchError
	switch {
	case errors.Is(err, scene.ErrSceneNotFilterable):
		return newAPIError(http.StatusConflict, "SCENE_NOT_FILTERABLE", err)
	case errors.Is(err, scene.ErrUnknownState):
		return newAPIError(http.StatusNotFound, "UNKNOWN_STATE", err)
	case errors.Is(err, scene.ErrSceneOutOfRange):
		return newAPIError(http.StatusBadRequest, "SCENE_OUT_OF_RANGE", err)
	case errors.Is(err, chartwriter.ErrNothingToDraw):
		return newAPIError(http.StatusUnprocessableEntity, "NOTHING_TO_DRAW", err)
	case errors.As(err, &fe):
		return newAPIError(http.StatusBadGateway, "FETCH_FAILED", err)
	default:
		return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	_ = render.Render(w, r, errorFor(err))
}
