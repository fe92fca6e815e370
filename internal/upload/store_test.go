package upload

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quillpress/internal/domain"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// headers 通过真实 multipart 解析得到 FileHeader
func headers(t *testing.T, files map[string][]byte) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["images"]
}

func newStore(t *testing.T, o Options) *Store {
	t.Helper()
	o.Dir = t.TempDir()
	s, err := NewStore(o, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSaveAll_StoresSniffedImages(t *testing.T) {
	s := newStore(t, Options{})
	paths, err := s.SaveAll(context.Background(), headers(t, map[string][]byte{"a.bin": pngHeader}))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "/uploads/"))
	assert.True(t, strings.HasSuffix(paths[0], ".png"))

	_, err = os.Stat(filepath.Join(s.Dir(), filepath.Base(paths[0])))
	assert.NoError(t, err)
}

func TestSaveAll_RejectsNonImage(t *testing.T) {
	s := newStore(t, Options{})
	_, err := s.SaveAll(context.Background(), headers(t, map[string][]byte{
		"ok.png":   pngHeader,
		"evil.png": []byte("#!/bin/sh\necho hi\n"),
	}))
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	entries, _ := os.ReadDir(s.Dir())
	assert.Empty(t, entries)
}

func TestSaveAll_Limits(t *testing.T) {
	s := newStore(t, Options{MaxFiles: 1, MaxFileBytes: 8})
	var ve *domain.ValidationError

	_, err := s.SaveAll(context.Background(), headers(t, map[string][]byte{"a.png": pngHeader, "b.png": pngHeader}))
	require.ErrorAs(t, err, &ve)

	_, err = s.SaveAll(context.Background(), headers(t, map[string][]byte{"a.png": pngHeader}))
	require.ErrorAs(t, err, &ve)

	_, err = s.SaveAll(context.Background(), nil)
	require.ErrorAs(t, err, &ve)
}
