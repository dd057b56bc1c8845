package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/bitfantasy/nimo-wms/internal/shared/storage"
)

// Document folders
const (
	FolderSignedForms  = "signed_forms"
	FolderPalletPhotos = "pallet_photos"
)

// DocumentService 上传签收单和托盘照片
type DocumentService struct {
	objects storage.ObjectStore
}

var allowedExt = map[string]map[string]bool{
	FolderSignedForms:  {".pdf": true, ".jpg": true, ".jpeg": true, ".png": true},
	FolderPalletPhotos: {".jpg": true, ".jpeg": true, ".png": true, ".heic": true},
}

// UploadResult 上传结果
type UploadResult struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

// Upload stores a file under folder and returns its stable ref.
func (s *DocumentService) Upload(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	exts, ok := allowedExt[folder]
	if !ok {
		return nil, validationf("unknown document folder %q", folder)
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !exts[ext] {
		return nil, validationf("file type %q is not accepted for %s", ext, folder)
	}
	ref, err := s.objects.Put(ctx, folder, fileName, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", fileName, err)
	}
	url, err := s.objects.URL(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}
	return &UploadResult{Ref: ref, URL: url}, nil
}

// URL returns a download link for ref.
func (s *DocumentService) URL(ctx context.Context, ref string) (string, error) {
	url, err := s.objects.URL(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return url, nil
}
