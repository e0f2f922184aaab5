package handlers

import (
	"context"
	"net/http"

	"github.com/dailydrop/server/internal/http/response"
	"github.com/dailydrop/server/internal/storage"
)

// Uploader signs direct uploads to object storage
type Uploader interface {
	SignedUploadURL(ctx context.Context, fileName, fileType string) (*storage.Upload, error)
}

type StorageHandler struct {
	uploader Uploader
}

func NewStorageHandler(uploader Uploader) *StorageHandler {
	return &StorageHandler{uploader: uploader}
}

type signedURLRequest struct {
	FileName string `json:"fileName" validate:"required"`
	FileType string `json:"fileType" validate:"required"`
}

// HandleGetSignedURL handles POST /s3.getSignedUrl
func (h *StorageHandler) HandleGetSignedURL(w http.ResponseWriter, r *http.Request) {
	var req signedURLRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}
	upload, err := h.uploader.SignedUploadURL(r.Context(), req.FileName, req.FileType)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.OK(w, upload)
}
