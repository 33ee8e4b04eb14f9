package ingest

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/pkg/logger"
)

const (
	chunkSize    = 1200
	chunkOverlap = 200

	// maxConcurrentExtractions bounds the per-request extraction fan-out.
	maxConcurrentExtractions = 4
)

// Captioner turns an image into a textual description. Backed by a
// multimodal generation model.
type Captioner interface {
	Describe(ctx context.Context, data []byte, mimeType string) (string, error)
}

var (
	imageMimeTypes = map[string]bool{
		"image/png":  true,
		"image/jpeg": true,
		"image/webp": true,
		"image/gif":  true,
	}

	documentMimeTypes = map[string]bool{
		"text/plain":      true,
		"text/markdown":   true,
		"text/csv":        true,
		"application/pdf": true,
	}
)

// Ingestor normalizes uploaded files into typed content chunks. Files whose
// media type matches neither allow-list are skipped with a warning rather
// than failing the upload.
type Ingestor struct {
	captioner Captioner
	logger    logger.ILogger
}

func NewIngestor(captioner Captioner, log logger.ILogger) *Ingestor {
	return &Ingestor{
		captioner: captioner,
		logger:    log,
	}
}

// Extract processes all files concurrently and returns the extracted chunks
// partitioned by kind, preserving the order files were uploaded in.
// Per-file extraction failures are logged and skipped; only a cancelled
// context aborts the whole batch.
func (i *Ingestor) Extract(ctx context.Context, files []UploadedFile) (images, documents []ProcessedContent, err error) {
	results := make([][]ProcessedContent, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExtractions)

	for idx, file := range files {
		g.Go(func() error {
			chunks, exErr := i.extractOne(gctx, file)
			if exErr != nil {
				i.logger.Warn("Ingestor", "Skipping file after extraction failure", map[string]interface{}{
					"filename": file.Name,
					"error":    exErr.Error(),
				})
				return nil
			}
			results[idx] = chunks
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	for _, chunks := range results {
		for _, c := range chunks {
			switch c.Type {
			case TypeImage:
				images = append(images, c)
			default:
				documents = append(documents, c)
			}
		}
	}
	return images, documents, nil
}

func (i *Ingestor) extractOne(ctx context.Context, file UploadedFile) ([]ProcessedContent, error) {
	mime := normalizeMime(file.MimeType)

	switch {
	case imageMimeTypes[mime]:
		return i.extractImage(ctx, file, mime)
	case documentMimeTypes[mime]:
		return i.extractDocument(ctx, file, mime)
	default:
		i.logger.Warn("Ingestor", "Unsupported media type, file ignored", map[string]interface{}{
			"filename":  file.Name,
			"mime_type": file.MimeType,
		})
		return nil, nil
	}
}

func (i *Ingestor) extractImage(ctx context.Context, file UploadedFile, mime string) ([]ProcessedContent, error) {
	if i.captioner == nil {
		return nil, &ExtractionError{Filename: file.Name, Err: ErrNoCaptioner}
	}

	description, err := i.captioner.Describe(ctx, file.Data, mime)
	if err != nil {
		return nil, &ExtractionError{Filename: file.Name, Err: err}
	}

	return []ProcessedContent{{
		Type:    TypeImage,
		Content: description,
		Metadata: Metadata{
			Filename:  file.Name,
			MimeType:  mime,
			SizeBytes: int64(len(file.Data)),
		},
	}}, nil
}

func (i *Ingestor) extractDocument(ctx context.Context, file UploadedFile, mime string) ([]ProcessedContent, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
	)

	var loader documentloaders.Loader
	switch mime {
	case "application/pdf":
		loader = documentloaders.NewPDF(bytes.NewReader(file.Data), int64(len(file.Data)))
	case "text/csv":
		loader = documentloaders.NewCSV(bytes.NewReader(file.Data))
	default:
		loader = documentloaders.NewText(bytes.NewReader(file.Data))
	}

	docs, err := loader.LoadAndSplit(ctx, splitter)
	if err != nil {
		return nil, &ExtractionError{Filename: file.Name, Err: err}
	}

	chunks := make([]ProcessedContent, 0, len(docs))
	for idx, doc := range docs {
		text := strings.TrimSpace(doc.PageContent)
		if text == "" {
			continue
		}
		chunks = append(chunks, ProcessedContent{
			Type:    TypeDocument,
			Content: text,
			Metadata: Metadata{
				Filename:  file.Name,
				MimeType:  mime,
				SizeBytes: int64(len(file.Data)),
				Extra:     map[string]string{"chunk": strconv.Itoa(idx)},
			},
		})
	}
	return chunks, nil
}

func normalizeMime(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return mime
}

