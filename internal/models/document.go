package models

// Document is extracted source text. Only its chunks are persisted.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks []string
}

// Chunk is a stored slice of a document, identified by its content fingerprint.
type Chunk struct {
	ID          uint64
	Text        string
	Fingerprint string
}

// Point is what a backend stores: a chunk plus its embedding.
type Point struct {
	Chunk
	Vector []float32
}

// SearchResult is a ranked hit. ID is -1 for the no-match sentinel.
type SearchResult struct {
	ID    int64
	Score float64
	Text  string
}

// IngestReport summarizes one ingestion run.
// Blank counts whitespace-only chunks, which are never stored.
type IngestReport struct {
	Chunks  int
	Stored  int
	Skipped int
	Blank   int
}
