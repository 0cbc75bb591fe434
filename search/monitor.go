package search

import (
	"github.com/poiesic/retrievit/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterExpansion(variants []string)
	AfterLexicalSearch(hits []LexicalHit)
	AfterSemanticSearch(results []*core.SearchResult)
	HybridHit(result *core.SearchResult)
	LexicalHit(result *core.SearchResult)
	SemanticHit(result *core.SearchResult)
	AfterFusion(results []*core.SearchResult)
	AfterRerank(results []*core.SearchResult)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterExpansion(_ []string)               {}
func (n *noopMonitor) AfterLexicalSearch(_ []LexicalHit)       {}
func (n *noopMonitor) AfterSemanticSearch(_ []*core.SearchResult) {}
func (n *noopMonitor) HybridHit(_ *core.SearchResult)          {}
func (n *noopMonitor) LexicalHit(_ *core.SearchResult)         {}
func (n *noopMonitor) SemanticHit(_ *core.SearchResult)        {}
func (n *noopMonitor) AfterFusion(_ []*core.SearchResult)      {}
func (n *noopMonitor) AfterRerank(_ []*core.SearchResult)      {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)           {}
