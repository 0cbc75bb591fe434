package ai

import (
	"slices"
	"strings"
)

// MaxQueryVariants bounds how many query texts the expander emits, the
// original query included. Each variant costs one embedding call, so the
// cap keeps query latency predictable.
const MaxQueryVariants = 3

// DefaultSynonyms is the built-in domain synonym table used for whole-query
// expansion. Keys and substitutes are lowercase; Turkish terms are kept in
// their ASCII-folded form so they match the folded query text.
var DefaultSynonyms = map[string][]string{
	"tavir":     {"davranis", "tutum", "yaklasim"},
	"davranis":  {"tavir", "tutum", "yaklasim"},
	"tutum":     {"tavir", "davranis", "yaklasim"},
	"sikayet":   {"problem", "sorun", "memnuniyetsizlik"},
	"sikayetci": {"sikayet", "problem", "sorun"},
	"personel":  {"calisan", "eleman", "gorevli"},
	"kurye":     {"kuryeci", "dagitici", "teslimat"},
	"teslimat":  {"teslim", "dagitim", "ulastirma"},
	"gonderi":   {"paket", "kargo", "sevkiyat"},
	"musteri":   {"kullanici", "alici", "hesap"},
	"sistem":    {"uygulama", "program", "platform"},
	"guvenlik":  {"security", "koruma", "erisim"},
	"erisim":    {"access", "giris", "baglanti"},
	"kisitlama": {"engel", "blok", "yasaklama"},
}

// QueryExpander derives textual variants of a query by word-level synonym
// substitution. Variants are embedded independently and merged downstream
// by the retrieval engine.
type QueryExpander struct {
	synonyms map[string][]string
	bases    []string
}

// NewQueryExpander creates an expander over the given synonym table.
// A nil table selects DefaultSynonyms.
func NewQueryExpander(synonyms map[string][]string) *QueryExpander {
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	// Sorted base words keep variant order stable across calls.
	bases := make([]string, 0, len(synonyms))
	for base := range synonyms {
		bases = append(bases, base)
	}
	slices.Sort(bases)
	return &QueryExpander{synonyms: synonyms, bases: bases}
}

// Expand returns the lowercased query followed by up to MaxQueryVariants-1
// synonym substitutions. An empty or whitespace query yields nil.
func (e *QueryExpander) Expand(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	variants := []string{q}
	for _, base := range e.bases {
		if len(variants) >= MaxQueryVariants {
			break
		}
		if !strings.Contains(q, base) {
			continue
		}
		for _, syn := range e.synonyms[base] {
			variant := strings.ReplaceAll(q, base, syn)
			if !slices.Contains(variants, variant) {
				variants = append(variants, variant)
			}
			if len(variants) >= MaxQueryVariants {
				break
			}
		}
	}
	return variants
}
