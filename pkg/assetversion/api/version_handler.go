package api

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// maxUploadMemory bounds how much of a multipart body is held in memory;
// larger files spill to temp files.
const maxUploadMemory = 10 << 20

// VersionHandler handles HTTP requests for asset versions using
// pkg/assetversion
type VersionHandler struct {
	service assetversion.Service
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(service assetversion.Service) *VersionHandler {
	return &VersionHandler{service: service}
}

// VersionResponse is the response body for a version record
type VersionResponse struct {
	ID                 string    `json:"id"`
	MonumentID         string    `json:"monument_id"`
	StorageBackendName string    `json:"storage_backend_name"`
	StorageKey         string    `json:"storage_key"`
	PublicURL          string    `json:"public_url,omitempty"`
	AuxiliaryURL       string    `json:"auxiliary_url,omitempty"`
	FileName           string    `json:"file_name,omitempty"`
	MimeType           string    `json:"mime_type,omitempty"`
	AssetClass         string    `json:"asset_class"`
	ByteSize           int64     `json:"byte_size"`
	IsActive           bool      `json:"is_active"`
	UploadedBy         string    `json:"uploaded_by"`
	UploadedAt         time.Time `json:"uploaded_at"`
}

func toVersionResponse(rec *assetversion.VersionRecord) VersionResponse {
	return VersionResponse{
		ID:                 rec.ID.String(),
		MonumentID:         rec.MonumentID.String(),
		StorageBackendName: rec.StorageBackendName,
		StorageKey:         rec.StorageKey,
		PublicURL:          rec.PublicURL,
		AuxiliaryURL:       rec.AuxiliaryURL,
		FileName:           rec.FileName,
		MimeType:           rec.MimeType,
		AssetClass:         string(rec.AssetClass),
		ByteSize:           rec.ByteSize,
		IsActive:           rec.IsActive,
		UploadedBy:         rec.UploadedBy.String(),
		UploadedAt:         rec.UploadedAt,
	}
}

// UploadVersion uploads a new asset revision for a monument. The new version
// becomes active; the previous one is kept but deactivated.
func (h *VersionHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		slog.Error("Failed to parse multipart form", "error", err)
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing 'file' field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var uploadedBy uuid.UUID
	if byStr := r.FormValue("uploaded_by"); byStr != "" {
		uploadedBy, err = uuid.Parse(byStr)
		if err != nil {
			http.Error(w, "Invalid uploader ID", http.StatusBadRequest)
			return
		}
	}

	result, err := h.service.UploadNewVersion(r.Context(), assetversion.UploadVersionRequest{
		MonumentID:         monumentID,
		Reader:             file,
		FileName:           header.Filename,
		MimeType:           mimeTypeFromUpload(header),
		ByteSize:           header.Size,
		UploadedBy:         uploadedBy,
		StorageBackendName: r.FormValue("storage_backend"),
	})
	if err != nil {
		writeError(w, r, "Failed to upload version", err)
		return
	}

	slog.Info("Version uploaded",
		"monument_id", monumentID.String(),
		"record_id", result.Record.ID.String(),
		"storage_key", result.Record.StorageKey)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toVersionResponse(result.Record))
}

// ListVersions returns the version history of a monument, newest first
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	records, err := h.service.ListVersions(r.Context(), monumentID)
	if err != nil {
		writeError(w, r, "Failed to list versions", err)
		return
	}

	resp := make([]VersionResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toVersionResponse(rec))
	}
	render.JSON(w, r, resp)
}

// GetVersion retrieves a single version record
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "record_id")
	if !ok {
		return
	}

	record, err := h.service.GetVersion(r.Context(), monumentID, recordID)
	if err != nil {
		writeError(w, r, "Failed to get version", err)
		return
	}

	render.JSON(w, r, toVersionResponse(record))
}

// ActivateVersion makes an older version the active one
func (h *VersionHandler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "record_id")
	if !ok {
		return
	}

	record, err := h.service.ActivateVersion(r.Context(), monumentID, recordID)
	if err != nil {
		writeError(w, r, "Failed to activate version", err)
		return
	}

	slog.Info("Version activated", "monument_id", monumentID.String(), "record_id", recordID.String())
	render.JSON(w, r, toVersionResponse(record))
}

// DeleteVersion removes an inactive version and its blob. Deleting the
// active version is rejected with 409.
func (h *VersionHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	recordID, ok := parseIDParam(w, r, "record_id")
	if !ok {
		return
	}

	if err := h.service.DeleteVersion(r.Context(), monumentID, recordID); err != nil {
		writeError(w, r, "Failed to delete version", err)
		return
	}

	slog.Info("Version deleted", "monument_id", monumentID.String(), "record_id", recordID.String())
	w.WriteHeader(http.StatusNoContent)
}

// mimeTypeFromUpload prefers the part's declared Content-Type; acceptance
// rules still validate it against the file extension downstream.
func mimeTypeFromUpload(header *multipart.FileHeader) string {
	return header.Header.Get("Content-Type")
}
