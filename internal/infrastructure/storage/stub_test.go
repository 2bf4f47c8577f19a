package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStubDocumentStorage(t *testing.T) {
	s := NewStubDocumentStorage()
	require.NotNil(t, s)
	assert.Equal(t, "https://storage.example.com", s.BaseURL)
	assert.Equal(t, 0, s.Size())
}

func TestStubDocumentStorage_Upload(t *testing.T) {
	s := NewStubDocumentStorage()
	ctx := context.Background()

	t.Run("stores document", func(t *testing.T) {
		err := s.Upload(ctx, "invoices/owner/KSC-20250101-001.pdf", []byte("%PDF-1.4"), "application/pdf")
		require.NoError(t, err)

		exists, err := s.ObjectExists(ctx, "invoices/owner/KSC-20250101-001.pdf")
		require.NoError(t, err)
		assert.True(t, exists)
		assert.Equal(t, 1, s.Size())
	})

	t.Run("empty storage key", func(t *testing.T) {
		err := s.Upload(ctx, "", []byte("data"), "application/pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}

func TestStubDocumentStorage_GenerateDownloadURL(t *testing.T) {
	s := NewStubDocumentStorage()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		url, expiresAt, err := s.GenerateDownloadURL(ctx, "invoices/owner/KSC-20250101-001.pdf", 1*time.Hour)
		require.NoError(t, err)
		assert.Contains(t, url, "https://storage.example.com/download/invoices/owner/KSC-20250101-001.pdf")
		assert.True(t, expiresAt.After(time.Now()))
	})

	t.Run("empty storage key", func(t *testing.T) {
		_, _, err := s.GenerateDownloadURL(ctx, "", 1*time.Hour)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}

func TestStubDocumentStorage_DeleteObject(t *testing.T) {
	s := NewStubDocumentStorage()
	ctx := context.Background()

	t.Run("removes stored document", func(t *testing.T) {
		require.NoError(t, s.Upload(ctx, "invoices/owner/doc.pdf", []byte("data"), "application/pdf"))

		err := s.DeleteObject(ctx, "invoices/owner/doc.pdf")
		require.NoError(t, err)

		exists, err := s.ObjectExists(ctx, "invoices/owner/doc.pdf")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("empty storage key", func(t *testing.T) {
		err := s.DeleteObject(ctx, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}

func TestStubDocumentStorage_ObjectExists(t *testing.T) {
	s := NewStubDocumentStorage()
	ctx := context.Background()

	t.Run("false for unknown key", func(t *testing.T) {
		exists, err := s.ObjectExists(ctx, "invoices/owner/missing.pdf")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("empty storage key", func(t *testing.T) {
		exists, err := s.ObjectExists(ctx, "")
		require.Error(t, err)
		assert.False(t, exists)
		assert.Contains(t, err.Error(), "storage key is required")
	})
}
