package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/hitoshi/careerlog/internal/model"
)

// allowedImageTypes はアップロードを許可する画像形式。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadService はリッチテキストに埋め込む画像のアップロードを扱う。
type UploadService struct {
	*base
	maxSize int64
}

// Upload は画像をアップロードし、埋め込み用のURLを返す。
// 形式とサイズは送信前に検査する。
func (s *UploadService) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, model.NewUploadRejectedError(fmt.Sprintf("ファイルサイズが上限（%dMB）を超えています", s.maxSize>>20))
	}
	if len(data) == 0 {
		return nil, model.NewUploadRejectedError("ファイルが空です")
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	if !allowedImageTypes[contentType] {
		return nil, model.NewUploadRejectedError(fmt.Sprintf("対応していない形式です: %s", contentType))
	}

	var out model.UploadResult
	if err := s.api.Upload(ctx, "/uploads", filepath.Base(filename), contentType, bytes.NewReader(data), &out); err != nil {
		return nil, model.NewMutationFailedError("画像", "アップロード", err)
	}
	return &out, nil
}
