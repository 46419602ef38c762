// Package analysis answers direct questions about canonical emission records
// without embeddings.
//
// Every helper is deterministic and free of side effects, and none of them
// touch the vector index, so they keep working while the embedding or
// generation services are down:
//
//	summary := analysis.Summarize(records)
//	matches := analysis.SearchNAICS(records, "soybean")
//	history := analysis.Trends(records, "111110")
//
// Keywords is the lexical fallback the query engine consults when semantic
// retrieval finds nothing relevant.
package analysis
