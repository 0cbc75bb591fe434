// Package ingestion provides pipeline orchestration for adding documents to a corpus.
//
// The Pipeline type manages the ingestion workflow for documents, including:
//   - Validating and rejecting malformed documents
//   - Generating embeddings concurrently in groups
//   - Upserting chunks into the vector store and the lexical index
//
// Embedding is performed concurrently using a worker pool to maximize throughput.
// Provider fallback during embedding is surfaced as a degraded result rather
// than a failure.
package ingestion
