package handler

import (
	"net/http"

	"quest-launchpad/internal/pinning"
)

const maxUploadSize = 10 << 20

type UploadHandler struct {
	pinner pinning.Pinner
}

func NewUploadHandler(pinner pinning.Pinner) *UploadHandler {
	return &UploadHandler{pinner: pinner}
}

// Upload 接收 multipart 字段 file，返回固定后的地址
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.pinner == nil {
		writeError(w, http.StatusServiceUnavailable, "uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	url, err := h.pinner.Pin(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeAppError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
