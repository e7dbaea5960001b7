package models

// Page is one page of extracted markdown text. Index is 0-based as reported by the extractor.
type Page struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// Document is the extractor's output for one source file.
type Document struct {
	Filename string `json:"filename"`
	Pages    []Page `json:"pages"`
}

// Chunk is a bounded segment of a page, the unit of embedding and retrieval.
// PageIndex is 1-based, ChunkIndex restarts at 0 on every page.
type Chunk struct {
	PageIndex  int    `json:"page_index"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	Filename   string `json:"filename"`
}

// ChunkMetadata travels with a vector record.
type ChunkMetadata struct {
	Filename   string
	PageIndex  int
	ChunkIndex int
	TokenCount *int
}

// VectorRecord is what the indexer upserts into a collection.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  ChunkMetadata
}

// RetrievedMatch is a single nearest-neighbour hit. Score is a distance, lower is more similar.
type RetrievedMatch struct {
	Text       string  `json:"text"`
	Filename   string  `json:"filename"`
	PageIndex  int     `json:"page_index"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// ContextWindow is the token-budgeted concatenation handed to the generator.
type ContextWindow struct {
	Text   string
	Tokens int
	// Used lists the matches that made it into Text, in order.
	Used []RetrievedMatch
}

// IndexResult reports the outcome of one indexing call.
type IndexResult struct {
	NChunks        int    `json:"n_chunks"`
	NVectors       int    `json:"n_vectors"`
	CollectionName string `json:"collection_name"`
}

// Answer is the query pipeline's response.
type Answer struct {
	Answer  string           `json:"answer"`
	Sources []RetrievedMatch `json:"sources"`
}
