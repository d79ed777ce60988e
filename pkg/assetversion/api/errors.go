package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// writeError logs the error and maps it to an HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "path", r.URL.Path, "error", err)
	} else {
		slog.Warn(msg, "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func statusForError(err error) int {
	var validationErr *assetversion.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, assetversion.ErrVersionActive):
		return http.StatusConflict
	case errors.Is(err, assetversion.ErrStorageKeyReused):
		return http.StatusConflict
	case errors.Is(err, assetversion.ErrMonumentNotFound),
		errors.Is(err, assetversion.ErrVersionNotFound),
		errors.Is(err, assetversion.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, assetversion.ErrStorageBackendNotFound):
		return http.StatusBadRequest
	}

	var storageErr *assetversion.StorageError
	if errors.As(err, &storageErr) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// parseIDParam parses a UUID route parameter, writing a 400 on failure.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, name)
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Invalid ID", "param", name, "value", idStr, "error", err)
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
