package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tokenizer := NewTokenizer()

	t.Run("lowercases and splits", func(t *testing.T) {
		tokens := tokenizer.Tokenize("Courier delivered the package")
		assert.Equal(t, []string{"courier", "delivered", "package"}, tokens)
	})

	t.Run("folds turkish characters", func(t *testing.T) {
		tokens := tokenizer.Tokenize("gönderi teslimatı")
		assert.Equal(t, []string{"gonderi", "teslimati"}, tokens)
	})

	t.Run("drops stop words and short tokens", func(t *testing.T) {
		tokens := tokenizer.Tokenize("the cat and a dog for me")
		assert.Equal(t, []string{"cat", "dog"}, tokens)
	})

	t.Run("drops folded turkish stop words", func(t *testing.T) {
		tokens := tokenizer.Tokenize("kargo için nasıl takip")
		assert.Equal(t, []string{"kargo", "takip"}, tokens)
	})

	t.Run("expands token synonyms", func(t *testing.T) {
		tokens := tokenizer.Tokenize("kurye")
		assert.Equal(t, []string{"kurye", "kuryeci", "teslim", "dagitim", "kargo", "teslimat"}, tokens)
	})

	t.Run("synonyms follow folded form", func(t *testing.T) {
		tokens := tokenizer.Tokenize("şikayet")
		assert.Contains(t, tokens, "sikayet")
		assert.Contains(t, tokens, "sorun")
	})

	t.Run("empty input yields nil", func(t *testing.T) {
		assert.Nil(t, tokenizer.Tokenize(""))
		assert.Nil(t, tokenizer.Tokenize("  ..!  "))
	})

	t.Run("deterministic", func(t *testing.T) {
		first := tokenizer.Tokenize("müşteri erişim şikayeti")
		second := tokenizer.Tokenize("müşteri erişim şikayeti")
		assert.Equal(t, first, second)
	})
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, "cigkofte", foldText("ÇİĞKÖFTE"))
	assert.Equal(t, "resume", foldText("résumé"))
	assert.Equal(t, "plain ascii 42", foldText("Plain ASCII 42"))
}
