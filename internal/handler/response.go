package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-token-auth/internal/model"
	"go-token-auth/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps err onto the response envelope. Credential and token
// failures collapse into coarse categories; unclassified errors are logged
// and answered with a generic 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.Is(err, model.ErrUsernameTaken):
		status = http.StatusConflict
		body.Code = "ALREADY_EXISTS"
		body.Message = "username already taken"
	case errors.Is(err, model.ErrInvalidCredentials):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "invalid credentials"
	case errors.Is(err, model.ErrTokenMalformed),
		errors.Is(err, model.ErrTokenSignatureInvalid),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrAccountNotFound),
		errors.Is(err, model.ErrUnauthorized):
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "authentication required"
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "invalid input"
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
