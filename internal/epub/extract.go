package epub

import (
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"strings"

	"github.com/lectorapp/lector/internal/segment"
)

// SplitFunc segments one text block into ordered sentences.
type SplitFunc func(text string) []string

// excludedTags are elements whose content must never surface.
var excludedTags = map[string]bool{
	"style":  true,
	"script": true,
	"head":   true,
}

// blockTags flush the accumulated text buffer into one block.
var blockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
	"blockquote": true, "li": true, "tr": true, "caption": true,
	"div": true, "section": true, "article": true,
	"dt": true, "dd": true, "br": true,
}

// ExtractSentences converts one content document into an ordered sentence
// list. It never fails: well-formed markup goes through a streaming parse,
// malformed markup degrades to a tag-stripping fallback, and empty input
// yields an empty list immediately. A nil split falls back to the default
// locale-aware segmenter.
func ExtractSentences(data []byte, split SplitFunc) []string {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if split == nil {
		split = segment.Sentences
	}

	blocks, err := extractBlocks(data)
	if err != nil {
		return segmentBlock(fallbackText(data), split)
	}

	var sentences []string
	for _, block := range blocks {
		sentences = append(sentences, segmentBlock(block, split)...)
	}
	return sentences
}

// segmentBlock segments one collapsed block. A non-empty block that yields
// zero sentences is emitted whole rather than dropped.
func segmentBlock(block string, split SplitFunc) []string {
	if block == "" {
		return nil
	}
	if sents := split(block); len(sents) > 0 {
		return sents
	}
	return []string{block}
}

// extractBlocks stream-parses the document as XHTML and returns its text
// blocks in order. Character data accumulates only inside body and outside
// style/script/head; block-level elements and br flush the buffer, and the
// body close forces a final flush.
func extractBlocks(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity

	var blocks []string
	var buf strings.Builder
	excludeDepth := 0
	inBody := false

	flush := func() {
		if text := collapseWhitespace(buf.String()); text != "" {
			blocks = append(blocks, text)
		}
		buf.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if excludedTags[name] {
				excludeDepth++
				continue
			}
			if name == "body" {
				inBody = true
				continue
			}
			if blockTags[name] {
				flush()
			}

		case xml.EndElement:
			name := strings.ToLower(t.Name.Local)
			if excludedTags[name] {
				if excludeDepth > 0 {
					excludeDepth--
				}
				continue
			}
			if name == "body" {
				flush()
				inBody = false
				continue
			}
			if blockTags[name] {
				flush()
			}

		case xml.CharData:
			if inBody && excludeDepth == 0 {
				buf.Write(t)
			}
		}
	}

	return blocks, nil
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*</script>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style\b[^>]*>.*</style>`)
	tagPattern         = regexp.MustCompile(`<[^>]*>`)

	entityReplacer = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&nbsp;", " ",
	)
)

// fallbackText recovers readable text from markup the structured parse
// rejected: strip script/style blocks, replace remaining tags with a space,
// decode the common named entities, and collapse whitespace.
func fallbackText(data []byte) string {
	text := scriptBlockPattern.ReplaceAllString(string(data), " ")
	text = styleBlockPattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = entityReplacer.Replace(text)
	return collapseWhitespace(text)
}

// collapseWhitespace reduces whitespace runs to single spaces and trims
// the result. Returns empty string for all-whitespace input.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
