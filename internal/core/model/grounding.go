package model

// Refusal reason constants. A refusal is a first-class outcome, returned as
// a normal response with RefusalReason set, never as an error.
const (
	RefusalCollectionNotFound  = "COLLECTION_NOT_FOUND"
	RefusalNoRelevantContent   = "NO_RELEVANT_CONTENT"
	RefusalInsufficientSources = "INSUFFICIENT_SOURCES"
)

// RefusalMessage is the canned, non-technical answer text used for every
// refusal outcome.
const RefusalMessage = "I don't have enough information from the indexed documents to answer this question."

// Source is one retrieved passage surfaced to the caller as answer support.
type Source struct {
	SourceID       string  `json:"source_id"`
	ContentSnippet string  `json:"content_snippet"`
	Score          float64 `json:"score"`
	Filename       *string `json:"filename,omitempty"`
	PageNum        *int    `json:"page_num,omitempty"`
}

// RetrievalResult is the structured retrieval outcome handed to the grounded
// generator, with a sufficiency signal against MinSources.
type RetrievalResult struct {
	Sources       []Source       `json:"sources"`
	QueryAnalysis *QueryAnalysis `json:"query_analysis,omitempty"`
	MinSources    int            `json:"min_sources"`
}

// IsSufficient reports whether the source count meets the minimum threshold.
func (r *RetrievalResult) IsSufficient() bool {
	return len(r.Sources) >= r.MinSources
}

// RetrievalResultFromDocuments builds a RetrievalResult from final pipeline
// documents. Graph pseudo-documents are excluded; at most maxSources hits
// are surfaced.
func RetrievalResultFromDocuments(docs []SearchHit, analysis *QueryAnalysis, minSources, maxSources int) *RetrievalResult {
	sources := make([]Source, 0, maxSources)
	for _, doc := range docs {
		if doc.IsGraph {
			continue
		}
		if len(sources) >= maxSources {
			break
		}
		sources = append(sources, Source{
			SourceID:       doc.ID,
			ContentSnippet: doc.Content,
			Score:          doc.Score,
			Filename:       doc.Filename,
			PageNum:        doc.PageNum,
		})
	}
	return &RetrievalResult{
		Sources:       sources,
		QueryAnalysis: analysis,
		MinSources:    minSources,
	}
}

// AnswerResult is the grounded generation outcome. Invariant: RefusalReason
// is non-empty iff AnswerText equals RefusalMessage.
type AnswerResult struct {
	AnswerText    string   `json:"answer_text"`
	Citations     []string `json:"citations"`
	RefusalReason string   `json:"refusal_reason,omitempty"`
}

// IsRefusal reports whether this result declines to answer.
func (a *AnswerResult) IsRefusal() bool {
	return a.RefusalReason != ""
}

// Refusal builds a refusal result with the canned answer text.
func Refusal(reason string) *AnswerResult {
	return &AnswerResult{
		AnswerText:    RefusalMessage,
		Citations:     []string{},
		RefusalReason: reason,
	}
}
