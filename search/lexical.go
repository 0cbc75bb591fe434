// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"math"
	"slices"
	"sync"

	"github.com/poiesic/retrievit/core"
)

// BM25 parameters, the standard Okapi defaults.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// LexicalHit is one keyword-index candidate. Score is normalized to [0, 1]
// by the top candidate of the same search.
type LexicalHit struct {
	ID    core.ID
	Score float32
}

// lexDoc is the indexed form of one chunk.
type lexDoc struct {
	source string
	freq   map[string]int
	length int
}

// LexicalIndex is an in-memory BM25 index over tokenized chunk text.
// It mirrors the chunk corpus: every upsert and delete against the store
// must be applied here too.
//
// LexicalIndex is safe for concurrent use.
type LexicalIndex struct {
	tokenizer *Tokenizer

	mu          sync.RWMutex
	docs        map[core.ID]*lexDoc
	df          map[string]int
	sources     map[string]map[core.ID]struct{}
	totalLength int
}

// NewLexicalIndex creates an empty index with the default tokenizer.
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{
		tokenizer: NewTokenizer(),
		docs:      make(map[core.ID]*lexDoc),
		df:        make(map[string]int),
		sources:   make(map[string]map[core.ID]struct{}),
	}
}

// Index adds or replaces chunks in the index. Chunks whose text tokenizes
// to nothing are skipped; they can never match a query.
func (x *LexicalIndex) Index(chunks ...*core.Chunk) {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, chunk := range chunks {
		tokens := x.tokenizer.Tokenize(chunk.Text)
		if len(tokens) == 0 {
			continue
		}

		x.removeLocked(chunk.Id)

		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}
		for token := range freq {
			x.df[token]++
		}

		x.docs[chunk.Id] = &lexDoc{
			source: chunk.Source,
			freq:   freq,
			length: len(tokens),
		}
		if x.sources[chunk.Source] == nil {
			x.sources[chunk.Source] = make(map[core.ID]struct{})
		}
		x.sources[chunk.Source][chunk.Id] = struct{}{}
		x.totalLength += len(tokens)
	}
}

// Delete removes chunks from the index. Missing IDs are ignored.
func (x *LexicalIndex) Delete(ids ...core.ID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range ids {
		x.removeLocked(id)
	}
}

// DeleteBySource removes every indexed chunk with the given source and
// returns the number removed.
func (x *LexicalIndex) DeleteBySource(source string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	ids := x.sources[source]
	count := len(ids)
	for id := range ids {
		x.removeLocked(id)
	}
	return count
}

func (x *LexicalIndex) removeLocked(id core.ID) {
	doc, ok := x.docs[id]
	if !ok {
		return
	}
	delete(x.docs, id)
	for token := range doc.freq {
		if x.df[token] <= 1 {
			delete(x.df, token)
		} else {
			x.df[token]--
		}
	}
	if ids := x.sources[doc.source]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(x.sources, doc.source)
		}
	}
	x.totalLength -= doc.length
}

// Len returns the number of indexed chunks.
func (x *LexicalIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Search scores the query against the index with BM25 and returns up to
// limit hits, best first, scores normalized to [0, 1] by the top
// candidate. A query that tokenizes to nothing yields no hits.
func (x *LexicalIndex) Search(query string, limit int) []LexicalHit {
	queryTokens := x.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 || limit < 1 {
		return nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	n := len(x.docs)
	if n == 0 {
		return nil
	}
	avgLength := float64(x.totalLength) / float64(n)

	scores := make(map[core.ID]float64)
	for _, token := range queryTokens {
		df := x.df[token]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))

		for id, doc := range x.docs {
			tf := doc.freq[token]
			if tf == 0 {
				continue
			}
			numerator := float64(tf) * (bm25K1 + 1)
			denominator := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(doc.length)/avgLength)
			scores[id] += idf * numerator / denominator
		}
	}
	if len(scores) == 0 {
		return nil
	}

	hits := make([]LexicalHit, 0, len(scores))
	var top float64
	for id, score := range scores {
		if score > top {
			top = score
		}
		hits = append(hits, LexicalHit{ID: id, Score: float32(score)})
	}

	// Normalize by the best candidate so fusion weights apply to a
	// known scale.
	for i := range hits {
		hits[i].Score = float32(float64(hits[i].Score) / top)
	}

	slices.SortFunc(hits, func(a, b LexicalHit) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
