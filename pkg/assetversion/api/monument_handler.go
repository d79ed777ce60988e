package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// MonumentHandler handles HTTP requests for monuments and their cascade
// deletion using pkg/assetversion
type MonumentHandler struct {
	service assetversion.Service
}

// NewMonumentHandler creates a new monument handler
func NewMonumentHandler(service assetversion.Service) *MonumentHandler {
	return &MonumentHandler{service: service}
}

// CreateMonumentRequest is the request body for creating a monument
type CreateMonumentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MonumentResponse is the response body for a monument
type MonumentResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	ActiveAssetURL string    `json:"active_asset_url,omitempty"`
	ActiveAssetKey string    `json:"active_asset_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AttachmentResponse is the response body for an attachment
type AttachmentResponse struct {
	ID                 string    `json:"id"`
	MonumentID         string    `json:"monument_id"`
	ParentRecordID     string    `json:"parent_record_id,omitempty"`
	StorageBackendName string    `json:"storage_backend_name"`
	StorageKey         string    `json:"storage_key"`
	PublicURL          string    `json:"public_url,omitempty"`
	FileName           string    `json:"file_name,omitempty"`
	MimeType           string    `json:"mime_type,omitempty"`
	ByteSize           int64     `json:"byte_size"`
	CreatedAt          time.Time `json:"created_at"`
}

// DeletionReportResponse is the response body for a cascade delete
type DeletionReportResponse struct {
	MonumentID         string                         `json:"monument_id"`
	BlobsDeleted       int                            `json:"blobs_deleted"`
	VersionsDeleted    int                            `json:"versions_deleted"`
	AttachmentsDeleted int                            `json:"attachments_deleted"`
	Partial            bool                           `json:"partial"`
	Failures           []assetversion.DeletionFailure `json:"failures,omitempty"`
	StartedAt          time.Time                      `json:"started_at"`
	FinishedAt         time.Time                      `json:"finished_at"`
}

func toMonumentResponse(m *assetversion.Monument) MonumentResponse {
	return MonumentResponse{
		ID:             m.ID.String(),
		Name:           m.Name,
		Description:    m.Description,
		ActiveAssetURL: m.ActiveAssetURL,
		ActiveAssetKey: m.ActiveAssetKey,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toAttachmentResponse(a *assetversion.Attachment) AttachmentResponse {
	resp := AttachmentResponse{
		ID:                 a.ID.String(),
		MonumentID:         a.MonumentID.String(),
		StorageBackendName: a.StorageBackendName,
		StorageKey:         a.StorageKey,
		PublicURL:          a.PublicURL,
		FileName:           a.FileName,
		MimeType:           a.MimeType,
		ByteSize:           a.ByteSize,
		CreatedAt:          a.CreatedAt,
	}
	if a.ParentRecordID != nil {
		resp.ParentRecordID = a.ParentRecordID.String()
	}
	return resp
}

// CreateMonument creates a new monument
func (h *MonumentHandler) CreateMonument(w http.ResponseWriter, r *http.Request) {
	var req CreateMonumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	monument, err := h.service.CreateMonument(r.Context(), assetversion.CreateMonumentRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, "Failed to create monument", err)
		return
	}

	slog.Info("Monument created", "monument_id", monument.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toMonumentResponse(monument))
}

// GetMonument retrieves a monument by ID
func (h *MonumentHandler) GetMonument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	monument, err := h.service.GetMonument(r.Context(), id)
	if err != nil {
		writeError(w, r, "Failed to get monument", err)
		return
	}

	render.JSON(w, r, toMonumentResponse(monument))
}

// ListMonuments returns all monuments
func (h *MonumentHandler) ListMonuments(w http.ResponseWriter, r *http.Request) {
	monuments, err := h.service.ListMonuments(r.Context())
	if err != nil {
		writeError(w, r, "Failed to list monuments", err)
		return
	}

	resp := make([]MonumentResponse, 0, len(monuments))
	for _, m := range monuments {
		resp = append(resp, toMonumentResponse(m))
	}
	render.JSON(w, r, resp)
}

// DeleteMonument removes a monument and everything it owns. Blob failures do
// not abort the cascade; they are reported in the response body.
func (h *MonumentHandler) DeleteMonument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.DeleteMonumentCascade(r.Context(), id)
	if err != nil {
		writeError(w, r, "Failed to delete monument", err)
		return
	}

	resp := DeletionReportResponse{
		MonumentID:         report.MonumentID.String(),
		BlobsDeleted:       report.BlobsDeleted,
		VersionsDeleted:    report.VersionsDeleted,
		AttachmentsDeleted: report.AttachmentsDeleted,
		Partial:            report.Partial(),
		Failures:           report.Failures,
		StartedAt:          report.StartedAt,
		FinishedAt:         report.FinishedAt,
	}

	slog.Info("Monument deleted", "monument_id", id.String(), "partial", report.Partial())
	render.JSON(w, r, resp)
}

// AddAttachment uploads a supplementary image for a monument
func (h *MonumentHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
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

	var parentRecordID *uuid.UUID
	if parentStr := r.FormValue("parent_record_id"); parentStr != "" {
		parsed, err := uuid.Parse(parentStr)
		if err != nil {
			http.Error(w, "Invalid parent record ID", http.StatusBadRequest)
			return
		}
		parentRecordID = &parsed
	}

	attachment, err := h.service.AddAttachment(r.Context(), assetversion.AddAttachmentRequest{
		MonumentID:         monumentID,
		ParentRecordID:     parentRecordID,
		Reader:             file,
		FileName:           header.Filename,
		MimeType:           mimeTypeFromUpload(header),
		ByteSize:           header.Size,
		StorageBackendName: r.FormValue("storage_backend"),
	})
	if err != nil {
		writeError(w, r, "Failed to add attachment", err)
		return
	}

	slog.Info("Attachment added", "monument_id", monumentID.String(), "attachment_id", attachment.ID.String())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toAttachmentResponse(attachment))
}

// ListAttachments returns the attachments of a monument
func (h *MonumentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	attachments, err := h.service.ListAttachments(r.Context(), monumentID)
	if err != nil {
		writeError(w, r, "Failed to list attachments", err)
		return
	}

	resp := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		resp = append(resp, toAttachmentResponse(a))
	}
	render.JSON(w, r, resp)
}

// DeleteAttachment removes one attachment and its blob
func (h *MonumentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	monumentID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	attachmentID, ok := parseIDParam(w, r, "attachment_id")
	if !ok {
		return
	}

	if err := h.service.DeleteAttachment(r.Context(), monumentID, attachmentID); err != nil {
		writeError(w, r, "Failed to delete attachment", err)
		return
	}

	slog.Info("Attachment deleted", "monument_id", monumentID.String(), "attachment_id", attachmentID.String())
	w.WriteHeader(http.StatusNoContent)
}
