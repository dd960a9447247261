package driver

const (
	// GetReferencesQuery resolves reference edges from retrieved documents
	// to their detail nodes. Matches on direct hit ids, filenames, and
	// detail ids so qualified item ids all resolve.
	GetReferencesQuery = `
		MATCH (d:Document)-[:REFERENCES]->(r:Detail)
		WHERE (d.id IN $item_ids OR d.filename IN $item_ids OR r.id IN $item_ids)
			AND d.project_id = $project_id
		RETURN r.id AS ref_id, r.title AS title, r.category AS category, d.filename AS source
	`

	// GetHitGapsQuery finds unresolved gap annotations attached to the
	// given hits only.
	GetHitGapsQuery = `
		MATCH (d:Document)-[:HAS_GAP]->(g:Gap)
		WHERE (d.id IN $item_ids OR g.id IN $item_ids)
			AND d.project_id = $project_id
			AND NOT (g)-[:RESOLVED_BY]->()
		RETURN g.id AS id, g.category AS type, g.evidence AS evidence, d.id AS source_id
	`

	// GetProjectGapsQuery finds every unresolved gap in the project,
	// used when the query intent asks for a gap analysis.
	GetProjectGapsQuery = `
		MATCH (d:Document {project_id: $project_id})-[:HAS_GAP]->(g:Gap)
		WHERE NOT (g)-[:RESOLVED_BY]->()
		RETURN g.id AS id, g.category AS type, g.evidence AS evidence, d.id AS source_id
	`
)
