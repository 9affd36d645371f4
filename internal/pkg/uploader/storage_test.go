package uploader

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name    string
		file    *multipart.FileHeader
		wantErr error
	}{
		{"jpeg ok", &multipart.FileHeader{Filename: "a.JPG", Size: 1024}, nil},
		{"webp ok", &multipart.FileHeader{Filename: "a.webp", Size: 1024}, nil},
		{"too large", &multipart.FileHeader{Filename: "a.png", Size: 5*1024*1024 + 1}, ErrFileTooLarge},
		{"bad ext", &multipart.FileHeader{Filename: "a.gif", Size: 10}, ErrUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.file, 5)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	key := NewKey(PostImageDir, "Cover.PNG", now)
	assert.True(t, strings.HasPrefix(key, "post_images/2024/03/09/"), key)
	assert.True(t, strings.HasSuffix(key, ".png"), key)

	avatar := NewKey(AvatarDir, "me.jpg", now)
	assert.True(t, strings.HasPrefix(avatar, "profile_pics/"), avatar)
	assert.Equal(t, 1, strings.Count(avatar, "/"))
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "/media/")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "post_images/x.jpg", strings.NewReader("first")))
	require.NoError(t, s.Put(ctx, "post_images/x.jpg", strings.NewReader("second")))

	rc, err := s.Open(ctx, "post_images/x.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "second", string(data))

	assert.Equal(t, "/media/post_images/x.jpg", s.URL("post_images/x.jpg"))
	assert.Equal(t, "", s.URL(""))

	require.NoError(t, s.Delete(ctx, "post_images/x.jpg"))
	_, err = s.Open(ctx, "post_images/x.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalStorage_KeyStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(root, "/media")
	require.NoError(t, err)

	p, err := s.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root), p)
}

func TestSaveUpload(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", "photo.jpeg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not really a jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	fh := req.MultipartForm.File["image"][0]

	s, err := NewLocalStorage(t.TempDir(), "/media")
	require.NoError(t, err)

	key, err := SaveUpload(context.Background(), s, AvatarDir, fh, 5)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "profile_pics/"))

	rc, err := s.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "not really a jpeg", string(data))
}
