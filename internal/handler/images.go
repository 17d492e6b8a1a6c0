package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mmeshcher/ticketing-system/internal/model"
	"github.com/mmeshcher/ticketing-system/internal/service"
	"github.com/mmeshcher/ticketing-system/internal/validation"
)

const (
	imageFormField = "image"
	// maxImageRequest оставляет запас под остальные поля формы.
	maxImageRequest = validation.MaxImageSize + 1<<20
)

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageRequest)
	return r.ParseMultipartForm(maxImageRequest)
}

// readImage читает файл из поля image разобранной формы. Возвращает nil, если файл не передан.
func readImage(r *http.Request) (*model.EventImage, error) {
	file, header, err := r.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, validation.MaxImageSize+1))
	if err != nil {
		return nil, err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &model.EventImage{Data: data, MimeType: mimeType}, nil
}

// writeFormError отвечает на ошибку разбора multipart-формы.
func (h *Handler) writeFormError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, r, service.ErrInvalidImage)
		return
	}
	writeBadRequest(w, "invalid multipart form")
}

// UploadEventImage сохраняет изображение события из multipart-поля image.
func (h *Handler) UploadEventImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := parseMultipart(w, r); err != nil {
		h.writeFormError(w, r, err)
		return
	}

	img, err := readImage(r)
	if err != nil {
		h.writeFormError(w, r, err)
		return
	}
	if img == nil {
		writeBadRequest(w, "image file is required")
		return
	}

	if err := h.service.SetEventImage(r.Context(), eventID, userID, *img); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true})
}

// GetEventImage отдаёт изображение события как есть.
func (h *Handler) GetEventImage(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	img, err := h.service.GetEventImage(r.Context(), eventID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// DeleteEventImage удаляет изображение события.
func (h *Handler) DeleteEventImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteEventImage(r.Context(), eventID, userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{OK: true})
}
