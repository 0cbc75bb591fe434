package search

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/poiesic/retrievit/ai"
	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

// Fusion defaults. Lexical candidates are boosted because an exact
// keyword match is strong evidence of relevance; semantic-only hits keep
// their raw cosine similarity.
const (
	DefaultLexicalBoost   = 1.5
	DefaultSemanticFactor = 1.2
	DefaultThreshold      = 0.60
	DefaultRerankWindow   = 15

	// Queries with synonym variants search with a relaxed threshold so a
	// paraphrase can still surface near-miss chunks.
	variantThresholdRelax = 0.1
	variantThresholdFloor = 0.15
)

// Request describes one search.
type Request struct {
	// Query is the user's search text.
	Query string

	// TopK caps the number of returned results.
	TopK int

	// Filter restricts candidates by metadata equality. May be nil.
	Filter storage.Filter

	// Threshold is the minimum cosine similarity for semantic candidates.
	// Zero means DefaultThreshold.
	Threshold float32

	// Rerank reorders the top candidates with the relevance scorer when
	// the engine has one.
	Rerank bool
}

// Response carries search results plus degradation signals.
type Response struct {
	Results []*core.SearchResult

	// Degraded reports that a stage failed and the results were produced
	// without it (semantic search down, reranker down).
	Degraded bool

	// Variants are the query texts that were embedded, the original first.
	Variants []string
}

// Engine runs hybrid search: lexical BM25 and semantic similarity in
// parallel, fused into a single ranking, optionally reranked.
type Engine struct {
	store          *storage.Store
	orchestrator   *ai.Orchestrator
	lexical        *LexicalIndex
	reranker       Reranker
	lexicalBoost   float32
	semanticFactor float32
	rerankWindow   int
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithReranker sets the reranker used when Request.Rerank is set.
// Without one, rerank requests are served from the fused order.
func WithReranker(reranker Reranker) Option {
	return func(e *Engine) error {
		e.reranker = reranker
		return nil
	}
}

// WithFusionWeights overrides the lexical boost and semantic factor.
func WithFusionWeights(lexicalBoost, semanticFactor float32) Option {
	return func(e *Engine) error {
		if lexicalBoost <= 0 || semanticFactor <= 0 {
			return fmt.Errorf("%w: fusion weights must be positive", ErrInvalidWeights)
		}
		e.lexicalBoost = lexicalBoost
		e.semanticFactor = semanticFactor
		return nil
	}
}

// WithRerankWindow sets how many fused candidates are passed to the
// reranker. Default is DefaultRerankWindow.
func WithRerankWindow(window int) Option {
	return func(e *Engine) error {
		if window < 1 {
			return fmt.Errorf("%w: rerank window must be at least 1", ErrInvalidWeights)
		}
		e.rerankWindow = window
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new search engine.
func NewEngine(
	store *storage.Store,
	orchestrator *ai.Orchestrator,
	lexical *LexicalIndex,
	opts ...Option,
) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if orchestrator == nil {
		return nil, ErrOrchestratorRequired
	}
	if lexical == nil {
		return nil, ErrLexicalIndexRequired
	}

	e := &Engine{
		store:          store,
		orchestrator:   orchestrator,
		lexical:        lexical,
		lexicalBoost:   DefaultLexicalBoost,
		semanticFactor: DefaultSemanticFactor,
		rerankWindow:   DefaultRerankWindow,
		logger:         slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Search runs a hybrid search for the request.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	return e.SearchWithMonitor(ctx, req, nil)
}

// SearchWithMonitor runs a hybrid search with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (e *Engine) SearchWithMonitor(ctx context.Context, req Request, monitor SearchMonitor) (*Response, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if req.Query == "" {
		return &Response{Results: []*core.SearchResult{}}, nil
	}
	if req.TopK < 1 {
		return nil, fmt.Errorf("%w: topK must be at least 1", storage.ErrInvalidQuery)
	}
	if err := req.Filter.Validate(); err != nil {
		return nil, err
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	monitor.Start(req.Query)

	variants := e.orchestrator.ExpandQuery(req.Query)
	monitor.AfterExpansion(variants)

	// Lexical and semantic retrieval run concurrently. Each pulls a wide
	// candidate window so fusion has material to reorder.
	candidateLimit := max(req.TopK*3, e.rerankWindow)

	var (
		lexicalHits   []LexicalHit
		semanticHits  []*core.SearchResult
		degraded      bool
		embeddedTexts []string
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		lexicalHits = e.lexical.Search(req.Query, candidateLimit)
		return nil
	})
	group.Go(func() error {
		results, texts, semDegraded, err := e.semanticSearch(gctx, req.Query, threshold, candidateLimit, req.Filter)
		if err != nil {
			// Semantic failure is soft. Lexical results still serve.
			e.logger.Warn("semantic search unavailable", "query", req.Query, "error", err)
			degraded = true
			return nil
		}
		semanticHits = results
		embeddedTexts = texts
		degraded = degraded || semDegraded
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if embeddedTexts != nil {
		variants = embeddedTexts
	}
	monitor.AfterLexicalSearch(lexicalHits)
	monitor.AfterSemanticSearch(semanticHits)

	results, err := e.fuse(ctx, lexicalHits, semanticHits, req.Filter, monitor)
	if err != nil {
		return nil, err
	}
	storage.SortResults(results)
	monitor.AfterFusion(results)

	if req.Rerank && e.reranker != nil && len(results) > 0 {
		window := min(e.rerankWindow, len(results))
		reranked, err := e.reranker.Rerank(ctx, req.Query, results[:window])
		if err != nil {
			// Keep the fused order when the scorer is down.
			e.logger.Warn("rerank failed, keeping fused order", "error", err)
			degraded = true
		} else {
			results = append(reranked, results[window:]...)
			monitor.AfterRerank(results)
		}
	}

	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	monitor.Finish(results)

	return &Response{Results: results, Degraded: degraded, Variants: variants}, nil
}

// semanticSearch embeds the query variants and searches the store with
// all of them. Multiple variants relax the threshold so paraphrases can
// surface near-miss chunks.
func (e *Engine) semanticSearch(ctx context.Context, query string, threshold float32, limit int, filter storage.Filter) ([]*core.SearchResult, []string, bool, error) {
	embedded, err := e.orchestrator.EmbedQueryVariants(ctx, query)
	if err != nil {
		return nil, nil, false, err
	}

	if len(embedded.Texts) > 1 {
		threshold = max(threshold-variantThresholdRelax, variantThresholdFloor)
	}

	response, err := e.store.SearchMulti(ctx, embedded.Vectors, threshold, limit, filter)
	if err != nil {
		return nil, nil, false, err
	}
	return response.Results, embedded.Texts, embedded.Degraded || response.Degraded, nil
}

// fuse merges the two candidate sets into one scored list:
//   - in both: max(lexical*boost, semantic*factor), ranked as hybrid
//   - lexical only: lexical*boost
//   - semantic only: raw similarity
//
// Scores are capped at 1.0.
func (e *Engine) fuse(ctx context.Context, lexicalHits []LexicalHit, semanticHits []*core.SearchResult, filter storage.Filter, monitor SearchMonitor) ([]*core.SearchResult, error) {
	semanticByID := make(map[core.ID]*core.SearchResult, len(semanticHits))
	for _, hit := range semanticHits {
		semanticByID[hit.Chunk.Id] = hit
	}

	results := make([]*core.SearchResult, 0, len(lexicalHits)+len(semanticHits))
	fusedIDs := make(map[core.ID]struct{}, len(lexicalHits))
	lexicalOnly := make([]LexicalHit, 0, len(lexicalHits))

	for _, hit := range lexicalHits {
		fusedIDs[hit.ID] = struct{}{}
		semantic, ok := semanticByID[hit.ID]
		if !ok {
			lexicalOnly = append(lexicalOnly, hit)
			continue
		}
		// In both: the stronger signal wins.
		score := max(hit.Score*e.lexicalBoost, semantic.Score*e.semanticFactor)
		semantic.Score = min(score, 1.0)
		semantic.SearchType = core.SearchTypeHybrid
		monitor.HybridHit(semantic)
		results = append(results, semantic)
	}

	// Lexical-only candidates need their chunks loaded; the index holds
	// IDs, not text. The metadata filter applies here because the
	// lexical index does not know metadata.
	if len(lexicalOnly) > 0 {
		ids := make([]core.ID, len(lexicalOnly))
		scores := make(map[core.ID]float32, len(lexicalOnly))
		for i, hit := range lexicalOnly {
			ids[i] = hit.ID
			scores[hit.ID] = hit.Score
		}
		// GetChunks drops missing ids, so scores are matched by id.
		chunks, err := e.store.GetChunks(ctx, ids...)
		if err != nil {
			return nil, err
		}
		for _, chunk := range chunks {
			if chunk == nil {
				continue
			}
			if !filter.Matches(chunk.Metadata) {
				continue
			}
			result := &core.SearchResult{
				Chunk:      chunk,
				Score:      min(scores[chunk.Id]*e.lexicalBoost, 1.0),
				SearchType: core.SearchTypeLexical,
			}
			monitor.LexicalHit(result)
			results = append(results, result)
		}
	}

	for _, hit := range semanticHits {
		if _, fused := fusedIDs[hit.Chunk.Id]; fused {
			continue
		}
		monitor.SemanticHit(hit)
		results = append(results, hit)
	}

	return results, nil
}
