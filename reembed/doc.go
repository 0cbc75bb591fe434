// Package reembed provides functionality for reembedding stored chunks
// with a recovered or upgraded embedding provider.
//
// Chunks embedded by the deterministic hash fallback carry its provider
// name in their metadata; once a real provider is reachable again they
// can be selected and reembedded in place. The package supports batch
// processing, progress tracking, retry logic with exponential backoff,
// and vector normalization to ensure compatibility with cosine
// similarity search.
package reembed
