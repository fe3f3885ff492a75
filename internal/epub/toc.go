package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lectorapp/lector/internal/domain"
)

// NCXMediaType is the manifest media type of an EPUB-2 navigation control file.
const NCXMediaType = "application/x-dtbncx+xml"

// ncxFrame is one open navPoint on the parse stack.
type ncxFrame struct {
	depth      int // stack size before this frame was pushed
	label      string
	playOrder  int
	inNavLabel bool
}

// ParseNCX parses an EPUB-2 navigation control document into a flat,
// depth-annotated entry list. Nested navPoints are tracked on an explicit
// stack; an entry is emitted the moment a content src is seen, using the
// label captured so far, so parents precede their descendants in exact
// document order. An empty navMap yields an empty list.
func ParseNCX(data []byte) ([]TOCEntry, error) {
	data = stripBOM(data)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity

	entries := []TOCEntry{}
	var stack []*ncxFrame

	top := func() *ncxFrame {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "navPoint":
				frame := &ncxFrame{depth: len(stack)}
				if po := attrValue(t, "playOrder"); po != "" {
					if n, err := strconv.Atoi(strings.TrimSpace(po)); err == nil {
						frame.playOrder = n
					}
				}
				stack = append(stack, frame)

			case "navLabel":
				if f := top(); f != nil {
					f.inNavLabel = true
				}

			case "text":
				if f := top(); f != nil && f.inNavLabel {
					text, err := collectText(dec, t)
					if err != nil {
						return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
					}
					if text != "" {
						f.label = text
					}
				}

			case "content":
				if f := top(); f != nil {
					if src := strings.TrimSpace(attrValue(t, "src")); src != "" {
						entries = append(entries, TOCEntry{
							Title:     f.label,
							Href:      src,
							PlayOrder: f.playOrder,
							Depth:     f.depth,
						})
					}
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "navPoint":
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case "navLabel":
				if f := top(); f != nil {
					f.inNavLabel = false
				}
			}
		}
	}

	return entries, nil
}

// ParseNav parses an EPUB-3 navigation document into a flat entry list.
// Only anchors inside the nav element whose (possibly namespaced) type
// attribute equals "toc" are collected. Ordered-list nesting drives the
// depth counter; play order is a synthetic 1-based sequence in document
// order, since nav documents carry no order attribute. Anchors with empty
// text or href are skipped. An absent or empty toc nav yields an empty list.
func ParseNav(data []byte) ([]TOCEntry, error) {
	tz := html.NewTokenizer(bytes.NewReader(data))

	entries := []TOCEntry{}
	inTocNav := false
	listDepth := 0 // ol nesting inside the toc nav
	playOrder := 0

	var anchorHref string
	var anchorText strings.Builder
	inAnchor := false

	for {
		switch tz.Next() {
		case html.ErrorToken:
			err := tz.Err()
			if err == io.EOF {
				return entries, nil
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)

		case html.StartTagToken:
			tn, hasAttr := tz.TagName()
			a := atom.Lookup(tn)
			switch {
			case a == atom.Nav:
				if !inTocNav && tokenHasTOCType(tz, hasAttr) {
					inTocNav = true
					listDepth = 0
				}
			case !inTocNav:
				// Outside the toc block nothing is collected.
			case a == atom.Ol:
				listDepth++
			case a == atom.A:
				inAnchor = true
				anchorText.Reset()
				anchorHref = tokenAttr(tz, hasAttr, "href")
			}

		case html.EndTagToken:
			tn, _ := tz.TagName()
			if !inTocNav {
				continue
			}
			switch atom.Lookup(tn) {
			case atom.Nav:
				inTocNav = false
				inAnchor = false
			case atom.Ol:
				if listDepth > 0 {
					listDepth--
				}
			case atom.A:
				if inAnchor {
					inAnchor = false
					title := strings.TrimSpace(anchorText.String())
					href := strings.TrimSpace(anchorHref)
					if title != "" && href != "" {
						playOrder++
						depth := listDepth - 1
						if depth < 0 {
							// Anchor outside any ol still counts as top level.
							depth = 0
						}
						entries = append(entries, TOCEntry{
							Title:     title,
							Href:      href,
							PlayOrder: playOrder,
							Depth:     depth,
						})
					}
				}
			}

		case html.TextToken:
			if inAnchor {
				anchorText.Write(tz.Text())
			}
		}
	}
}

// tokenHasTOCType reports whether the current start tag carries a type or
// epub:type attribute equal to "toc" (space-separated token matching).
func tokenHasTOCType(tz *html.Tokenizer, hasAttr bool) bool {
	for hasAttr {
		key, val, more := tz.TagAttr()
		k := string(key)
		if k == "type" || k == "epub:type" || strings.HasSuffix(k, ":type") {
			for _, tok := range strings.Fields(string(val)) {
				if tok == "toc" {
					return true
				}
			}
		}
		hasAttr = more
	}
	return false
}

// tokenAttr returns the named attribute of the current start tag.
func tokenAttr(tz *html.Tokenizer, hasAttr bool, name string) string {
	var found string
	for hasAttr {
		key, val, more := tz.TagAttr()
		if string(key) == name && found == "" {
			found = string(val)
		}
		hasAttr = more
	}
	return found
}
