package handlers

import (
	"context"
	"errors"
	"humanfinder/faces"
	"humanfinder/images"
	"humanfinder/locations"
	"humanfinder/matching"
	"humanfinder/models"
	"humanfinder/push"
	"humanfinder/storage"
	"net/http"
)

type Response struct {
	Error string `json:"error"`
}

var (
	// Predefined responses
	OKResponse                  = Response{}
	DBErrorResponse             = Response{"DB Error"}
	StorageErrorResponse        = Response{"Storage Error"}
	InsufficientStorageResponse = Response{storage.ErrInsufficientSpace.Error()}
	NoPhotoResponse             = Response{"a photo (file or image URL) is required"}
	NotFoundResponse            = Response{"not found"}
	ModelsLoadingResponse       = Response{matching.ErrModelsUnavailable.Error()}
	NoFaceResponse              = Response{matching.ErrNoFace.Error()}
	InvalidStatusResponse       = Response{models.ErrInvalidStatus.Error()}
	MissingParamsResponse       = Response{"missing parameters"}
	NotificationIDResponse      = Response{"no such notification"}
)

type PersonStore interface {
	matching.PersonStore
	Create(ctx context.Context, p *models.Person) error
}

// Handlers holds the services the HTTP end-points depend on
type Handlers struct {
	Persons   PersonStore
	Storage   storage.StorageAPI
	Images    *images.Loader
	Models    *faces.ModelLoader
	Inspector *faces.Inspector
	Matcher   *matching.Matcher
	Notifier  *push.Notifier
	Hub       *push.Hub
	Geocoder  *locations.Geocoder
}

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	var fetchErr *images.FetchError
	switch {
	case errors.Is(err, matching.ErrInvalidRequest),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrMissingName),
		errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidAge),
		errors.Is(err, images.ErrDecode),
		errors.Is(err, images.ErrUnsupportedRef),
		errors.Is(err, images.ErrForbiddenHost):
		return http.StatusBadRequest
	case errors.Is(err, images.ErrTooLarge), errors.Is(err, images.ErrTooManyPixels):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, matching.ErrPersonNotFound):
		return http.StatusNotFound
	case errors.Is(err, matching.ErrNoFace), errors.Is(err, matching.ErrNoImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, matching.ErrModelsUnavailable),
		errors.Is(err, faces.ErrModelsLoading),
		errors.Is(err, faces.ErrModelsNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, matching.ErrSubjectImage), errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrInsufficientSpace):
		return http.StatusInsufficientStorage
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorMessage hides wrapped internals behind the user facing sentinel
func errorMessage(err error) string {
	for _, sentinel := range []error{
		matching.ErrModelsUnavailable,
		matching.ErrNoFace,
		matching.ErrSubjectImage,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
