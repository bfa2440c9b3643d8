// Package tokenizer provides the text pipeline shared by indexing and query
// parsing. It lower-cases input, splits on non-alphanumeric boundaries and,
// depending on Options, removes English stop-words and applies the Snowball
// (Porter2) English stemmer.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// stopWords is the classic English stop set used by Lucene's
// EnglishAnalyzer.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "if": {}, "in": {},
	"into": {}, "is": {}, "it": {}, "no": {}, "not": {}, "of": {},
	"on": {}, "or": {}, "such": {}, "that": {}, "the": {}, "their": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {},
	"to": {}, "was": {}, "will": {}, "with": {},
}

// maxStemPasses bounds the fixpoint loop in stem.
const maxStemPasses = 4

// Options selects the optional pipeline stages.
type Options struct {
	RemoveStopwords bool
	Stem            bool
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Pipeline normalises text under a fixed set of Options. The zero value
// only lower-cases and splits.
type Pipeline struct {
	opts Options
}

func New(opts Options) Pipeline {
	return Pipeline{opts: opts}
}

func (p Pipeline) Options() Options {
	return p.opts
}

// Normalize returns the ordered terms of text. It never fails: characters
// that are neither letters nor digits only separate tokens.
func (p Pipeline) Normalize(text string) []string {
	tokens := p.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Tokenize is Normalize with the position of each surviving token among the
// emitted tokens.
func (p Pipeline) Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if p.opts.RemoveStopwords && isStopWord(word) {
			continue
		}
		term := word
		if p.opts.Stem {
			term = stem(word)
			// A stem can collide with a stop-word ("ins" -> "in"); drop it
			// so a second pass over the output removes nothing.
			if p.opts.RemoveStopwords && isStopWord(term) {
				continue
			}
		}
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// NormalizeAll joins the terms of several inputs in order.
func (p Pipeline) NormalizeAll(texts ...string) []string {
	var terms []string
	for _, text := range texts {
		terms = append(terms, p.Normalize(text)...)
	}
	return terms
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// stem applies the Snowball English stemmer until the term stops changing,
// so that stemming an already-stemmed term is a no-op.
func stem(word string) string {
	term := word
	for i := 0; i < maxStemPasses; i++ {
		next := english.Stem(term, true)
		if next == term {
			break
		}
		term = next
	}
	return term
}
