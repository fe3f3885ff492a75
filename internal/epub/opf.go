package epub

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/lectorapp/lector/internal/domain"
)

// ParsePackage parses raw package-document (OPF) bytes in a single streaming
// pass. Title and creator are captured from metadata character data; the last
// non-empty occurrence wins. The cover id comes from either convention,
// whichever is seen first: <meta name="cover" content=ID> in the metadata
// block, or a manifest item whose properties contain the cover-image token.
// Manifest items missing id, href, or media-type are skipped. Every spine
// child with an idref is appended in document order, duplicates retained.
func ParsePackage(data []byte) (*PackageResult, error) {
	data = stripBOM(data)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = xml.HTMLEntity

	result := &PackageResult{}
	inMetadata := false

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
			case "metadata":
				inMetadata = true

			case "title":
				if inMetadata {
					text, err := collectText(dec, t)
					if err != nil {
						return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
					}
					if text != "" {
						result.Metadata.Title = text
					}
				}

			case "creator":
				if inMetadata {
					text, err := collectText(dec, t)
					if err != nil {
						return nil, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
					}
					if text != "" {
						result.Metadata.Author = text
					}
				}

			case "meta":
				if inMetadata && attrValue(t, "name") == "cover" {
					if content := attrValue(t, "content"); content != "" && result.Metadata.CoverImageID == "" {
						result.Metadata.CoverImageID = content
					}
				}

			case "item":
				item := ManifestItem{
					ID:         attrValue(t, "id"),
					Href:       attrValue(t, "href"),
					MediaType:  attrValue(t, "media-type"),
					Properties: attrValue(t, "properties"),
				}
				if item.ID == "" || item.Href == "" || item.MediaType == "" {
					continue
				}
				result.Manifest = append(result.Manifest, item)
				if hasPropertyToken(item.Properties, "cover-image") && result.Metadata.CoverImageID == "" {
					result.Metadata.CoverImageID = item.ID
				}

			case "itemref":
				if idref := attrValue(t, "idref"); idref != "" {
					result.SpineItemRefs = append(result.SpineItemRefs, idref)
				}
			}

		case xml.EndElement:
			if t.Name.Local == "metadata" {
				inMetadata = false
			}
		}
	}

	return result, nil
}

// collectText drains the element opened by se and returns its trimmed
// character data, including text nested inside child elements.
func collectText(dec *xml.Decoder, se xml.StartElement) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return "", errors.New("unexpected EOF inside " + se.Name.Local)
			}
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// attrValue returns the value of the first attribute with the given local name.
func attrValue(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// hasPropertyToken reports whether the space-separated properties value
// contains the given token.
func hasPropertyToken(properties, token string) bool {
	for _, p := range strings.Fields(properties) {
		if p == token {
			return true
		}
	}
	return false
}
