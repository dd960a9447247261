package model

// SearchHit is the single candidate record flowing through every pipeline
// stage. IDs are stable across variants and stages; payload fields that may
// be absent from the vector payload are pointers so JSON can carry null.
type SearchHit struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
	Filename  *string `json:"filename,omitempty"`
	PageNum   *int    `json:"page_num,omitempty"`
	ProjectID string  `json:"project_id,omitempty"`
	BlockID   string  `json:"block_id,omitempty"`
	SectionID string  `json:"section_id,omitempty"`

	// IsGraph marks synthetic pseudo-documents produced by graph
	// augmentation. They bypass the reranker, so RerankScore stays nil.
	IsGraph     bool     `json:"is_graph,omitempty"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// QueryAnalysis is the pre-retrieval output: extracted keywords and intent
// plus the expanded query variants. ExpandedQueries[0] is always the
// original query.
type QueryAnalysis struct {
	Keywords        []string `json:"keywords"`
	Intent          string   `json:"intent"`
	IsGapQuery      bool     `json:"is_gap_query"`
	ExpandedQueries []string `json:"expanded_queries"`
	OriginalQuery   string   `json:"original_query"`
}

// GraphReference is a cross-reference edge resolved from the graph store,
// linking a retrieved document to a detail node.
type GraphReference struct {
	Source   string `json:"source"`
	RefID    string `json:"ref_id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// GraphGap is an unresolved-information annotation tied to a source document.
type GraphGap struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Evidence string `json:"evidence"`
	SourceID string `json:"source_id"`
}

// RetrievalOutput is the full pipeline result plus stage metadata for
// observability and testing.
type RetrievalOutput struct {
	Documents  []SearchHit `json:"documents"`
	Keywords   []string    `json:"keywords"`
	Intent     string      `json:"intent"`
	IsGapQuery bool        `json:"is_gap_query"`
	NumQueries int         `json:"num_queries"`
	GraphRefs  int         `json:"graph_refs"`
	GraphGaps  int         `json:"graph_gaps"`
}
