package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s, err := openUploadStore(dir)
	require.NoError(t, err)

	_, ok := s.Get("demo.mp4-1024")
	assert.False(t, ok)

	s.Set("demo.mp4-1024", "http://localhost:8080/video/upload_chunk/tok")
	got, ok := s.Get("demo.mp4-1024")
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8080/video/upload_chunk/tok", got)
	s.Close()

	t.Run("urls survive a reopen until deleted", func(t *testing.T) {
		s, err := openUploadStore(dir)
		require.NoError(t, err)
		defer s.Close()

		_, ok := s.Get("demo.mp4-1024")
		assert.True(t, ok)

		s.Delete("demo.mp4-1024")
		_, ok = s.Get("demo.mp4-1024")
		assert.False(t, ok)
	})
}
