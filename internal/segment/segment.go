// Package segment provides locale-aware sentence segmentation and word
// spans for speech pacing.
package segment

import (
	"strings"
	"sync"
	"unicode"

	"github.com/ikawaha/kagome/tokenizer"
	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

var (
	punktOnce sync.Once
	punkt     *sentences.DefaultSentenceTokenizer

	kagomeOnce sync.Once
	kagome     tokenizer.Tokenizer
)

func punktTokenizer() *sentences.DefaultSentenceTokenizer {
	punktOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			return
		}
		punkt = t
	})
	return punkt
}

func kagomeTokenizer() tokenizer.Tokenizer {
	kagomeOnce.Do(func() {
		kagome = tokenizer.New()
	})
	return kagome
}

// Sentences splits text into sentence-level units. Space-delimited scripts
// go through the punkt tokenizer; predominantly CJK text is split on
// terminal punctuation instead, since punkt's boundary model assumes
// word-separating whitespace. Results are trimmed, empties dropped.
// Empty input yields nil; this function never errors.
func Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if isMostlyCJK(text) {
		return splitCJK(text)
	}

	t := punktTokenizer()
	if t == nil {
		return splitCJK(text) // terminal-punctuation fallback
	}

	var out []string
	for _, s := range t.Tokenize(text) {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// cjkTerminators end a sentence in CJK scripts. ASCII .!? are included so
// mixed text still splits.
var cjkTerminators = map[rune]bool{
	'。': true, '．': true, '！': true, '？': true,
	'!': true, '?': true, '.': true,
}

func splitCJK(text string) []string {
	var out []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if cjkTerminators[r] {
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// isMostlyCJK reports whether more than half of the letter runes are CJK.
func isMostlyCJK(text string) bool {
	letters, cjk := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			cjk++
		}
	}
	return letters > 0 && cjk*2 > letters
}

// Span is a byte range into the segmented text.
type Span struct {
	Start int
	End   int
}

// Words returns word spans for highlight pacing. CJK text is surfaced via
// kagome morphological analysis; everything else splits on whitespace.
func Words(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if isMostlyCJK(text) {
		return kagomeWords(text)
	}
	return fieldWords(text)
}

func fieldWords(text string) []Span {
	var spans []Span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

func kagomeWords(text string) []Span {
	t := kagomeTokenizer()
	tokens := t.Analyze(text, tokenizer.Normal)

	var spans []Span
	cursor := 0
	for _, tok := range tokens {
		if tok.Class == tokenizer.DUMMY || tok.Surface == "" {
			continue
		}
		idx := strings.Index(text[cursor:], tok.Surface)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		end := start + len(tok.Surface)
		if strings.TrimSpace(tok.Surface) != "" {
			spans = append(spans, Span{Start: start, End: end})
		}
		cursor = end
	}
	return spans
}
