package ingest

// ContentType classifies extracted content for downstream prompt assembly.
type ContentType string

const (
	TypeImage    ContentType = "image"
	TypeDocument ContentType = "document"
)

// Metadata carries well-known file attributes plus a residual bag for
// extractor-specific values. It stays JSON-serializable so content can
// travel over the indexing bus.
type Metadata struct {
	Filename  string            `json:"filename,omitempty"`
	MimeType  string            `json:"mime_type,omitempty"`
	SizeBytes int64             `json:"size_bytes,omitempty"`
	Width     int               `json:"width,omitempty"`
	Height    int               `json:"height,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// ProcessedContent is one extracted chunk of an uploaded file. Immutable
// once produced; ownership transfers to the workflow state.
type ProcessedContent struct {
	Type     ContentType `json:"type"`
	Content  string      `json:"content"`
	Metadata Metadata    `json:"metadata"`
}

// UploadedFile is the raw transport-level upload handed to the ingestor.
type UploadedFile struct {
	Name     string
	MimeType string
	Data     []byte
}
