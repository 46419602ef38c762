// Package ingestion turns a delimited emission factor table into a
// deduplicated sequence of canonical records.
//
// The Pipeline reads the input in fixed-size row chunks so memory use does not
// grow with the file. Rows of a chunk are converted concurrently on a worker
// pool and re-assembled in source order before deduplication. The set of
// duplicate keys seen so far is the only state carried from one chunk to the
// next, so duplicates spanning chunk boundaries are caught and the first
// occurrence always wins.
//
// Header problems (*core.SchemaError) and undecodable input
// (*core.EncodingError) abort the run. Rows that fail validation are counted
// and explained in the Report and never stop ingestion.
package ingestion
