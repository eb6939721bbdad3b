package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/sigboard/internal/constants"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/upload"
)

// UploadsHandler handles content uploads.
type UploadsHandler struct {
	service  *upload.Service
	maxBytes int64
}

// NewUploadsHandler creates a new uploads handler. A non-positive maxBytes
// uses constants.MaxUploadSize.
func NewUploadsHandler(service *upload.Service, maxBytes int64) *UploadsHandler {
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadSize
	}
	return &UploadsHandler{
		service:  service,
		maxBytes: maxBytes,
	}
}

// respondUploadError maps upload errors to HTTP responses.
func respondUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upload.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, "invalid content token")
	case errors.Is(err, upload.ErrNotFound):
		respondError(w, http.StatusNotFound, "upload not found")
	case errors.Is(err, upload.ErrUnsupportedContent):
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, fingerprint.ErrImageTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	}
}

// Create stores the multipart "content" field and computes its properties.
func (h *UploadsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(constants.MultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds "+strconv.FormatInt(h.maxBytes, 10)+" bytes")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("content")
	if err != nil {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read content")
		return
	}

	token, err := h.service.Save(data)
	if err != nil {
		respondUploadError(w, err)
		return
	}

	props, err := h.service.ComputeProperties(token)
	if err != nil {
		if rmErr := h.service.Discard(token); rmErr != nil {
			log.Printf("Failed to discard upload %s: %v", token, rmErr)
		}
		respondUploadError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, props)
}

// Thumbnail serves the JPEG thumbnail of a cached upload.
func (h *UploadsHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := upload.ValidateToken(token); err != nil {
		respondUploadError(w, err)
		return
	}

	props, ok := h.service.Cache().Peek(token)
	if !ok {
		var err error
		if props, err = h.service.ComputeProperties(token); err != nil {
			respondUploadError(w, err)
			return
		}
	}
	if len(props.Thumbnail) == 0 {
		respondError(w, http.StatusNotFound, "thumbnails are disabled")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(props.Thumbnail)
}

// Delete discards an upload that will not be used.
func (h *UploadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.service.Discard(token); err != nil {
		if errors.Is(err, upload.ErrInvalidToken) {
			respondUploadError(w, err)
			return
		}
		log.Printf("Failed to discard upload %s: %v", sanitizeForLog(token), err)
		respondError(w, http.StatusInternalServerError, "failed to discard upload")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
