package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeCaptioner struct {
	description string
	err         error
}

func (f *fakeCaptioner) Describe(ctx context.Context, data []byte, mimeType string) (string, error) {
	return f.description, f.err
}

func TestExtractTextDocument(t *testing.T) {
	ing := NewIngestor(nil, nopLogger{})

	files := []UploadedFile{
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("the quick brown fox")},
	}
	images, documents, err := ing.Extract(context.Background(), files)

	require.NoError(t, err)
	assert.Empty(t, images)
	require.Len(t, documents, 1)
	assert.Equal(t, TypeDocument, documents[0].Type)
	assert.Equal(t, "the quick brown fox", documents[0].Content)
	assert.Equal(t, "notes.txt", documents[0].Metadata.Filename)
	assert.Equal(t, "0", documents[0].Metadata.Extra["chunk"])
}

func TestExtractImageUsesCaptioner(t *testing.T) {
	captioner := &fakeCaptioner{description: "a bicycle leaning on a wall"}
	ing := NewIngestor(captioner, nopLogger{})

	files := []UploadedFile{
		{Name: "photo.png", MimeType: "image/png", Data: []byte{0x89, 0x50}},
	}
	images, documents, err := ing.Extract(context.Background(), files)

	require.NoError(t, err)
	assert.Empty(t, documents)
	require.Len(t, images, 1)
	assert.Equal(t, TypeImage, images[0].Type)
	assert.Equal(t, "a bicycle leaning on a wall", images[0].Content)
}

func TestExtractSkipsUnsupportedTypes(t *testing.T) {
	ing := NewIngestor(nil, nopLogger{})

	files := []UploadedFile{
		{Name: "song.mp3", MimeType: "audio/mpeg", Data: []byte{0x00}},
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("still processed")},
	}
	images, documents, err := ing.Extract(context.Background(), files)

	require.NoError(t, err)
	assert.Empty(t, images)
	require.Len(t, documents, 1)
	assert.Equal(t, "notes.txt", documents[0].Metadata.Filename)
}

func TestExtractSkipsFailedFiles(t *testing.T) {
	captioner := &fakeCaptioner{err: errors.New("vision model offline")}
	ing := NewIngestor(captioner, nopLogger{})

	files := []UploadedFile{
		{Name: "photo.jpg", MimeType: "image/jpeg", Data: []byte{0xff}},
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("survives")},
	}
	images, documents, err := ing.Extract(context.Background(), files)

	require.NoError(t, err)
	assert.Empty(t, images)
	require.Len(t, documents, 1)
	assert.Equal(t, "survives", documents[0].Content)
}

func TestExtractImageWithoutCaptionerSkipped(t *testing.T) {
	ing := NewIngestor(nil, nopLogger{})

	files := []UploadedFile{
		{Name: "photo.png", MimeType: "image/png", Data: []byte{0x89}},
	}
	images, documents, err := ing.Extract(context.Background(), files)

	require.NoError(t, err)
	assert.Empty(t, images)
	assert.Empty(t, documents)
}

func TestExtractPreservesUploadOrder(t *testing.T) {
	ing := NewIngestor(nil, nopLogger{})

	files := []UploadedFile{
		{Name: "a.txt", MimeType: "text/plain", Data: []byte("alpha")},
		{Name: "b.txt", MimeType: "text/plain", Data: []byte("bravo")},
		{Name: "c.txt", MimeType: "text/plain", Data: []byte("charlie")},
	}
	_, documents, err := ing.Extract(context.Background(), files)

	require.NoError(t, err)
	require.Len(t, documents, 3)
	assert.Equal(t, "alpha", documents[0].Content)
	assert.Equal(t, "bravo", documents[1].Content)
	assert.Equal(t, "charlie", documents[2].Content)
}

func TestExtractCancelledContext(t *testing.T) {
	ing := NewIngestor(nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := []UploadedFile{
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("text")},
	}
	_, _, err := ing.Extract(ctx, files)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeMime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "text/plain; charset=utf-8", want: "text/plain"},
		{in: "IMAGE/PNG", want: "image/png"},
		{in: " application/pdf ", want: "application/pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeMime(tt.in))
	}
}

func TestExtractionErrorUnwrap(t *testing.T) {
	inner := errors.New("corrupt stream")
	err := &ExtractionError{Filename: "bad.pdf", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "bad.pdf")
}
