// Package media 图片和语音适配器：OCR、视觉描述、语音合成以及临时上传文件
// Package media holds the image and audio adapters: OCR, vision, speech and scoped uploads
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnsupportedImage is returned for uploads that are not png, jpg or jpeg.
var ErrUnsupportedImage = errors.New("unsupported image type (want png, jpg or jpeg)")

var allowedExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Upload 一次分析使用的临时文件，分析结束后必须 Remove
// Upload is a temporary file scoped to one analysis; Remove it when done
type Upload struct {
	Path string
	Name string
	once sync.Once
}

// Stage 将 r 写入 dir/temp_<unix>_<uuid>_<name>
// Stage copies r into dir/temp_<unix>_<uuid>_<name>
func Stage(dir, name string, r io.Reader) (*Upload, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if _, ok := allowedExt[strings.ToLower(filepath.Ext(base))]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, base)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("temp_%d_%s_%s", time.Now().Unix(), uuid.NewString(), base))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("close upload: %w", err)
	}
	return &Upload{Path: path, Name: base}, nil
}

// StageFile stages a copy of an existing file.
func StageFile(dir, src string) (*Upload, error) {
	if _, ok := allowedExt[strings.ToLower(filepath.Ext(src))]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, filepath.Base(src))
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return Stage(dir, filepath.Base(src), f)
}

// Remove 可重复调用
// Remove is idempotent
func (u *Upload) Remove() error {
	if u == nil {
		return nil
	}
	var err error
	u.once.Do(func() {
		if rmErr := os.Remove(u.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = rmErr
		}
	})
	return err
}

// MIMEType returns the image MIME type derived from the file extension.
func MIMEType(path string) string {
	if mime, ok := allowedExt[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "image/jpeg"
}
