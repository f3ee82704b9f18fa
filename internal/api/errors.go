package api

import (
	"errors"
	"net/http"

	"github.com/safar/storefront-api/internal/database"
	"github.com/safar/storefront-api/internal/service"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errBodyTooLarge = errors.New("request body too large")
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCartNotFound),
		errors.Is(err, database.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, database.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrEmptyCart),
		errors.Is(err, database.ErrInvalidTransition),
		errors.Is(err, database.ErrOrderNotCreated),
		errors.Is(err, database.ErrOrderTooLarge):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
