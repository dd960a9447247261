package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/graphite/internal/core/model"
	"github.com/agenthands/graphite/internal/driver"
)

// Augmenter expands a set of search hits into supplementary reference and
// gap context from the graph store. Graph annotations are non-authoritative:
// absence is not an error, and every failure degrades to empty results.
type Augmenter struct {
	Driver driver.GraphDriver
	logger *zap.Logger
}

func NewAugmenter(d driver.GraphDriver, logger *zap.Logger) *Augmenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Augmenter{
		Driver: d,
		logger: logger.With(zap.String("component", "graph_augmenter")),
	}
}

// RetrieveAndReason maps the hits to graph item ids and runs two
// independent lookups: reference edges to detail nodes, and gap
// annotations (scoped to the hits, or project-wide for gap queries).
func (a *Augmenter) RetrieveAndReason(ctx context.Context, hits []model.SearchHit, projectID string, isGapQuery bool, analysis *model.QueryAnalysis) ([]model.GraphReference, []model.GraphGap) {
	if len(hits) == 0 {
		return nil, nil
	}

	itemIDs := collectItemIDs(hits, projectID, analysis)
	if len(itemIDs) == 0 {
		a.logger.Warn("no graph item ids derived from hits")
		return nil, nil
	}

	a.logger.Debug("graph reasoning",
		zap.Int("hits", len(hits)),
		zap.Int("item_ids", len(itemIDs)),
		zap.Bool("gap_query", isGapQuery))

	refs := a.references(ctx, itemIDs, projectID)
	gaps := a.gaps(ctx, itemIDs, projectID, isGapQuery)

	return refs, gaps
}

// collectItemIDs builds the graph lookup set: direct hit ids, tenant
// qualified block ids, section ids, and analyzer keywords.
func collectItemIDs(hits []model.SearchHit, projectID string, analysis *model.QueryAnalysis) []string {
	var ids []string
	for _, hit := range hits {
		if hit.ID != "" {
			ids = append(ids, hit.ID)
		}

		blockID := hit.BlockID
		if blockID == "" {
			blockID = hit.ID
		}
		if blockID != "" {
			ids = append(ids, fmt.Sprintf("%s:%s", projectID, blockID))
		}

		if hit.SectionID != "" {
			ids = append(ids, hit.SectionID)
		}
	}
	if analysis != nil {
		ids = append(ids, analysis.Keywords...)
	}
	return ids
}

func (a *Augmenter) references(ctx context.Context, itemIDs []string, projectID string) []model.GraphReference {
	params := map[string]interface{}{
		"item_ids":   itemIDs,
		"project_id": projectID,
	}
	result, err := a.Driver.ExecuteQuery(ctx, driver.GetReferencesQuery, params)
	if err != nil {
		a.logger.Warn("failed to get references", zap.Error(err))
		return nil
	}

	var refs []model.GraphReference
	for _, record := range result.Records {
		m := record.AsMap()
		refs = append(refs, model.GraphReference{
			RefID:    recordString(m, "ref_id"),
			Title:    recordString(m, "title"),
			Category: recordString(m, "category"),
			Source:   recordString(m, "source"),
		})
	}
	return refs
}

func (a *Augmenter) gaps(ctx context.Context, itemIDs []string, projectID string, isGapQuery bool) []model.GraphGap {
	query := driver.GetHitGapsQuery
	params := map[string]interface{}{
		"item_ids":   itemIDs,
		"project_id": projectID,
	}
	if isGapQuery {
		query = driver.GetProjectGapsQuery
		params = map[string]interface{}{"project_id": projectID}
	}

	result, err := a.Driver.ExecuteQuery(ctx, query, params)
	if err != nil {
		a.logger.Warn("failed to get gaps", zap.Error(err))
		return nil
	}

	var gaps []model.GraphGap
	for _, record := range result.Records {
		m := record.AsMap()
		gaps = append(gaps, model.GraphGap{
			ID:       recordString(m, "id"),
			Type:     recordString(m, "type"),
			Evidence: recordString(m, "evidence"),
			SourceID: recordString(m, "source_id"),
		})
	}
	return gaps
}

// FormatReferences renders reference edges as a context block, grouped by
// (source, detail) pair.
func FormatReferences(refs []model.GraphReference) string {
	if len(refs) == 0 {
		return ""
	}

	type refKey struct {
		source string
		refID  string
	}
	grouped := make(map[refKey]map[string]bool)
	titles := make(map[refKey]string)
	var order []refKey

	for _, ref := range refs {
		key := refKey{source: ref.Source, refID: ref.RefID}
		if _, ok := grouped[key]; !ok {
			grouped[key] = make(map[string]bool)
			titles[key] = ref.Title
			order = append(order, key)
		}
		if ref.Category != "" {
			grouped[key][ref.Category] = true
		}
	}

	lines := []string{"## GRAPH-EXPANDED REFERENCES (Knowledge Graph Findings)"}
	for _, key := range order {
		var cats []string
		for c := range grouped[key] {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		catStr := "Unknown"
		if len(cats) > 0 {
			catStr = strings.Join(cats, ", ")
		}
		title := titles[key]
		if title == "" {
			title = "Reference"
		}
		lines = append(lines, fmt.Sprintf(
			"- Document '%s' is linked in the Knowledge Graph to [%s] (%s). Categories found: %s.",
			key.source, key.refID, title, catStr))
	}
	return strings.Join(lines, "\n")
}

// FormatGapReport renders gap annotations as a report block.
func FormatGapReport(gaps []model.GraphGap) string {
	if len(gaps) == 0 {
		return ""
	}

	lines := []string{"## COORDINATION GAPS & MISSING INFORMATION"}
	for _, gap := range gaps {
		evidence := gap.Evidence
		if evidence == "" {
			evidence = "No evidence"
		}
		if len(evidence) > 200 {
			evidence = evidence[:200]
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", gap.Type, evidence))
	}
	lines = append(lines, "\n**Recommendation:** Consider issuing an RFI to resolve these gaps.")

	return strings.Join(lines, "\n")
}

func recordString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
