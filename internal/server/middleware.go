package server

import (
	"errors"
	"net/http"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/storefront/internal/server/middleware"
	"github.com/nguyentranbao-ct/storefront/internal/usecase"
)

var conflictErrors = []error{
	usecase.ErrInvalidState,
	usecase.ErrNoSuchAction,
	usecase.ErrStaleGeneration,
	usecase.ErrEmptyCart,
	usecase.ErrValidationPending,
	usecase.ErrOfferInvalid,
	usecase.ErrNotViewed,
	models.ErrNotForSale,
	models.ErrConflictingCurrencies,
}

// storeErrors maps usecase errors onto response codes.
func storeErrors(err error) *pkgmdw.ResponseError {
	resp := &pkgmdw.ResponseError{
		Err:          err,
		ErrorMessage: err.Error(),
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		resp.Status = http.StatusNotFound
		resp.ErrorCode = "not_found"
	case errors.Is(err, usecase.ErrControllerClosed):
		resp.Status = http.StatusServiceUnavailable
		resp.ErrorCode = "unavailable"
	case isConflict(err):
		resp.Status = http.StatusConflict
		resp.ErrorCode = "conflict"
	default:
		return nil
	}
	return resp
}

func isConflict(err error) bool {
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
