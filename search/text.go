package search

import (
	"strings"
	"unicode"
)

// English stop words, kept small on purpose: aggressive filtering hurts
// short queries more than it helps long documents.
var englishStopWords = map[string]bool{
	"the": true, "and": true, "was": true, "are": true, "for": true,
	"not": true, "with": true, "you": true, "this": true, "but": true,
	"from": true, "have": true, "that": true,
}

// Turkish stop words in ASCII-folded form, matching the folded tokens.
var turkishStopWords = map[string]bool{
	"ile": true, "bir": true, "ama": true, "veya": true, "yahut": true,
	"icin": true, "ancak": true, "lakin": true, "fakat": true,
	"nasil": true, "neden": true, "nicin": true, "nerede": true,
	"zaman": true, "hangi": true, "kac": true, "kim": true,
	"kimin": true, "kimi": true, "kime": true,
}

// Token-level domain synonyms. Distinct from the whole-query expansion
// table: these widen individual index and query tokens so lexically
// different phrasings of the same complaint still overlap.
var tokenSynonyms = map[string][]string{
	"kurye":     {"kuryeci", "teslim", "dagitim", "kargo", "teslimat"},
	"sikayet":   {"problem", "sorun", "memnuniyetsizlik", "rahatsizlik"},
	"personel":  {"calisan", "eleman", "gorevli", "kisi"},
	"musteri":   {"kullanici", "alici", "hesap"},
	"kart":      {"kredi", "banka", "plastik"},
	"sistem":    {"uygulama", "program", "platform"},
	"kisitlama": {"engel", "blok", "yasaklama", "sinir", "kontrol"},
	"guvenlik":  {"security", "koruma", "firewall", "erisim", "izin"},
	"erisim":    {"access", "giris", "login", "baglanti"},
}

// Tokenizer normalizes text into BM25 index tokens.
type Tokenizer struct {
	stopWords map[string]bool
	synonyms  map[string][]string
}

// NewTokenizer creates a tokenizer with the built-in stop word and synonym
// tables.
func NewTokenizer() *Tokenizer {
	stopWords := make(map[string]bool, len(englishStopWords)+len(turkishStopWords))
	for w := range englishStopWords {
		stopWords[w] = true
	}
	for w := range turkishStopWords {
		stopWords[w] = true
	}
	return &Tokenizer{stopWords: stopWords, synonyms: tokenSynonyms}
}

// Tokenize lowercases, folds diacritics, splits on non-alphanumerics,
// drops stop words and tokens shorter than three runes, and appends
// token-level synonyms. Empty input yields nil.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	words := splitWords(foldText(text))

	var tokens []string
	for _, word := range words {
		if len([]rune(word)) < 3 || t.stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
		tokens = append(tokens, t.synonyms[word]...)
	}
	return tokens
}

// foldText lowercases and strips diacritics from Turkish and common Latin
// accented characters. Lowercasing is rune-wise so the Turkish dotted
// capital I maps to a plain i instead of i plus a combining mark.
func foldText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		b.WriteRune(foldRune(unicode.ToLower(r)))
	}
	return b.String()
}

func foldRune(r rune) rune {
	switch r {
	case 'ı', 'î', 'ì', 'í', 'ï':
		return 'i'
	case 'ğ':
		return 'g'
	case 'ü', 'û', 'ù', 'ú':
		return 'u'
	case 'ş':
		return 's'
	case 'ö', 'ô', 'ò', 'ó':
		return 'o'
	case 'ç':
		return 'c'
	case 'â', 'à', 'á', 'ä', 'ã':
		return 'a'
	case 'ê', 'è', 'é', 'ë':
		return 'e'
	}
	return r
}

// splitWords splits folded text on anything that is not a letter or digit.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' ||
		r > 127 // non-ASCII letters survive folding untouched
}
