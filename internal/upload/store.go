// Package upload 图片上传落本地磁盘，内容类型靠嗅探不信任客户端声明。
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"quillpress/internal/domain"
	"quillpress/pkg/utils"
)

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Options struct {
	Dir          string
	PublicPrefix string
	MaxFileBytes int64
	MaxFiles     int
}

type Store struct {
	o   Options
	log *zap.Logger
}

func NewStore(o Options, l *zap.Logger) (*Store, error) {
	if o.MaxFiles <= 0 {
		o.MaxFiles = 5
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = 5 << 20
	}
	if o.PublicPrefix == "" {
		o.PublicPrefix = "/uploads"
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{o: o, log: l}, nil
}

func (s *Store) Dir() string          { return s.o.Dir }
func (s *Store) PublicPrefix() string { return s.o.PublicPrefix }

// SaveAll 先整体校验再落盘；任一文件不合格则一个都不写
func (s *Store) SaveAll(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, domain.NewValidationError("images", "at least one image is required")
	}
	if len(files) > s.o.MaxFiles {
		return nil, domain.NewValidationError("images", fmt.Sprintf("at most %d images per request", s.o.MaxFiles))
	}
	type blob struct {
		data []byte
		ext  string
	}
	blobs := make([]blob, 0, len(files))
	for _, fh := range files {
		if fh.Size > s.o.MaxFileBytes {
			return nil, domain.NewValidationError("images", fmt.Sprintf("%s exceeds %d bytes", fh.Filename, s.o.MaxFileBytes))
		}
		data, err := readLimited(fh, s.o.MaxFileBytes)
		if err != nil {
			return nil, err
		}
		mt := mimetype.Detect(data)
		ext, ok := allowed[mt.String()]
		if !ok {
			return nil, domain.NewValidationError("images", fmt.Sprintf("%s: unsupported type %s", fh.Filename, mt.String()))
		}
		blobs = append(blobs, blob{data: data, ext: ext})
	}

	paths := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := utils.NewID() + b.ext
		if err := os.WriteFile(filepath.Join(s.o.Dir, name), b.data, 0o644); err != nil {
			return nil, fmt.Errorf("write upload: %w", err)
		}
		paths = append(paths, path.Join(s.o.PublicPrefix, name))
	}
	s.log.Info("images stored", zap.Int("count", len(paths)))
	return paths, nil
}

func readLimited(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n > limit {
		return nil, domain.NewValidationError("images", fmt.Sprintf("%s exceeds %d bytes", fh.Filename, limit))
	}
	return buf.Bytes(), nil
}
