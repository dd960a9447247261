package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/graphite/internal/core/common"
	"github.com/agenthands/graphite/internal/core/model"
	"github.com/agenthands/graphite/internal/llm"
)

const selfQuerySystem = `You are a query analyzer for compliance document search.
Given a user question, extract:
1. keywords: Key terms for vector search (regulation names, identifiers, section numbers)
2. intent: "compliance_check" (rules/violations), "policy_lookup" (procedures), "gap_analysis" (missing or unresolved information), or "general"

Respond with valid JSON only. Example format:
{"keywords": ["privacy_rule", "retention", "164.530"], "intent": "compliance_check"}`

const queryExpansionSystem = `You are a search query generator.
Given a user question, generate %d alternative ways to phrase the question
that would help find relevant documents.

Output each alternative on a new line, separated by '#'.
Example:
Alternative 1
#
Alternative 2
#
Alternative 3`

const fallbackKeywordCount = 5

type extractionResult struct {
	Keywords []string `json:"keywords"`
	Intent   string   `json:"intent"`
}

// Analyzer performs pre-retrieval query understanding: keyword/intent
// extraction and multi-query expansion. Neither operation ever surfaces an
// error; LLM failures degrade to deterministic fallbacks.
type Analyzer struct {
	LLM    llm.LLMClient
	logger *zap.Logger
}

func NewAnalyzer(client llm.LLMClient, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		LLM:    client,
		logger: logger.With(zap.String("component", "query_analyzer")),
	}
}

// ExtractKeywords pulls search keywords and an intent label from the query.
// Malformed or failed LLM output falls back to the first few query tokens
// with intent "general".
func (a *Analyzer) ExtractKeywords(ctx context.Context, query string) ([]string, string, bool) {
	response, err := a.LLM.Complete(ctx, selfQuerySystem, query)
	if err != nil {
		a.logger.Warn("keyword extraction failed, using fallback", zap.Error(err))
		return fallbackKeywords(query), "general", false
	}

	result, err := common.ParseJSON[extractionResult](response)
	if err != nil {
		a.logger.Warn("keyword extraction returned malformed JSON, using fallback", zap.Error(err))
		return fallbackKeywords(query), "general", false
	}

	intent := result.Intent
	if intent == "" {
		intent = "general"
	}
	return result.Keywords, intent, intent == "gap_analysis"
}

// Expand generates up to n-1 alternative phrasings of the query. The
// original query is always variant 0; on failure the original is the only
// variant.
func (a *Analyzer) Expand(ctx context.Context, query string, n int) []string {
	if n <= 1 {
		return []string{query}
	}

	system := fmt.Sprintf(queryExpansionSystem, n-1)
	response, err := a.LLM.Complete(ctx, system, query)
	if err != nil {
		a.logger.Warn("query expansion failed, using original only", zap.Error(err))
		return []string{query}
	}

	expanded := []string{query}
	for _, alt := range strings.Split(response, "#") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		expanded = append(expanded, alt)
		if len(expanded) == n {
			break
		}
	}
	return expanded
}

// Process runs extraction then expansion sequentially.
func (a *Analyzer) Process(ctx context.Context, query string, n int) *model.QueryAnalysis {
	keywords, intent, isGap := a.ExtractKeywords(ctx, query)
	expanded := a.Expand(ctx, query, n)
	return &model.QueryAnalysis{
		Keywords:        keywords,
		Intent:          intent,
		IsGapQuery:      isGap,
		ExpandedQueries: expanded,
		OriginalQuery:   query,
	}
}

// ProcessAsync runs extraction and expansion concurrently; the two LLM
// calls are independent.
func (a *Analyzer) ProcessAsync(ctx context.Context, query string, n int) *model.QueryAnalysis {
	analysis := &model.QueryAnalysis{OriginalQuery: query}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		analysis.Keywords, analysis.Intent, analysis.IsGapQuery = a.ExtractKeywords(gctx, query)
		return nil
	})
	g.Go(func() error {
		analysis.ExpandedQueries = a.Expand(gctx, query, n)
		return nil
	})
	_ = g.Wait() // both goroutines degrade internally, never error

	return analysis
}

func fallbackKeywords(query string) []string {
	tokens := strings.Fields(query)
	if len(tokens) > fallbackKeywordCount {
		tokens = tokens[:fallbackKeywordCount]
	}
	return tokens
}
