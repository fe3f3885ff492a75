package epub

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// findCoverImageRef scans a content document for its first <img> or SVG
// <image> reference. This is the cover-page convention fallback used when
// the package document declares no cover id. Returns the reference as
// written (document-relative), or empty.
func findCoverImageRef(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}

	if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
		return src
	}

	img := doc.Find("image").First()
	if href, ok := img.Attr("xlink:href"); ok && href != "" {
		return href
	}
	if href, ok := img.Attr("href"); ok && href != "" {
		return href
	}

	return ""
}
