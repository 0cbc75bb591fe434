package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrOrchestratorRequired is returned when an embedding orchestrator is not provided.
	ErrOrchestratorRequired = errors.New("embedding orchestrator required")

	// ErrLexicalIndexRequired is returned when a lexical index is not provided.
	ErrLexicalIndexRequired = errors.New("lexical index required")

	// ErrSourceRequired is returned when a source name is empty.
	ErrSourceRequired = errors.New("source required")
)
