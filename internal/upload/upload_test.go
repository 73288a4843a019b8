package upload

import (
	"bytes"
	"context"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Brownie44l1/aksharnet-api/internal/apperr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["image"][0]
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		filename string
		expected error
	}{
		{filename: "", expected: ErrNoFilename},
		{filename: "photo", expected: ErrNotPermitted},
		{filename: "photo.gif", expected: ErrNotPermitted},
		{filename: "photo.jpg.exe", expected: ErrNotPermitted},
		{filename: "photo.png", expected: nil},
		{filename: "photo.JPG", expected: nil},
		{filename: "archive.tar.jpeg", expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			err := Validate(tc.filename)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tc.expected, err)
			assert.True(t, apperr.Is(err, apperr.InvalidInput))
		})
	}
}

func TestSecureFilename(t *testing.T) {
	testCases := map[string]string{
		"My cool movie.mov":          "My_cool_movie.mov",
		"../../../etc/passwd":        "etc_passwd",
		`C:\photos\face.jpg`:         "C_photos_face.jpg",
		"i contain cool ümläuts.png": "i_contain_cool_umlauts.png",
		"...":                        "",
		".hidden.png":                "hidden.png",
	}

	for in, expected := range testCases {
		assert.Equal(t, expected, SecureFilename(in), in)
	}
}

func TestStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewStore(dir, zap.NewNop())
	require.NoError(t, err)

	path, err := store.Save(fileHeader(t, "face.jpg", []byte("not really a jpeg")))
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_face.jpg"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "not really a jpeg", string(data))
}

func TestStore_SaveSameNameTwice(t *testing.T) {
	store, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	first, err := store.Save(fileHeader(t, "face.png", []byte("a")))
	require.NoError(t, err)
	second, err := store.Save(fileHeader(t, "face.png", []byte("b")))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStore_SaveRejectsBeforeWriting(t *testing.T) {
	store, err := NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = store.Save(fileHeader(t, "script.sh", []byte("#!/bin/sh")))
	assert.Equal(t, ErrNotPermitted, err)

	_, err = store.Save(nil)
	assert.Equal(t, ErrNoFile, err)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJanitor_Sweep(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	fresh := filepath.Join(dir, "fresh.png")
	keep := filepath.Join(dir, ".gitkeep")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(keep, nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	now := time.Now()
	require.NoError(t, os.Chtimes(old, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(keep, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	j := NewJanitor(dir, time.Hour, time.Minute, zap.NewNop())
	j.now = func() time.Time { return now }

	removed, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, keep)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestJanitor_DisabledKeepsEverything(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, time.Unix(0, 0), time.Unix(0, 0)))

	j := NewJanitor(dir, 0, time.Minute, zap.NewNop())
	assert.False(t, j.Enabled())

	removed, err := j.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.FileExists(t, path)

	// returns immediately when disabled
	j.Run(context.Background())
}

func TestJanitor_RunStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, time.Unix(0, 0), time.Unix(0, 0)))

	j := NewJanitor(dir, time.Hour, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
