package epub

// ContainerResult is the outcome of resolving the container descriptor.
type ContainerResult struct {
	OPFPath string // archive-relative path of the package document
}

// ManifestItem is one <item> entry of the package manifest.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string // optional; space-separated tokens
}

// Metadata holds the optional descriptive fields of the package document.
type Metadata struct {
	Title        string
	Author       string
	CoverImageID string
}

// PackageResult is the parsed package document (OPF).
// SpineItemRefs order is the canonical reading order; duplicates are retained.
type PackageResult struct {
	Metadata      Metadata
	Manifest      []ManifestItem
	SpineItemRefs []string
}

// ManifestByID returns the first manifest item with the given id.
func (p *PackageResult) ManifestByID(id string) (ManifestItem, bool) {
	for _, item := range p.Manifest {
		if item.ID == id {
			return item, true
		}
	}
	return ManifestItem{}, false
}

// TOCEntry is one flattened table-of-contents entry. Nesting is encoded
// purely via Depth (0 = top level); the tree is not retained.
type TOCEntry struct {
	Title     string
	Href      string
	PlayOrder int
	Depth     int
}

// ParsedChapter is one spine document reduced to ordered sentences.
// Sentences is never empty; empty chapters are dropped during ingestion.
type ParsedChapter struct {
	Title     string
	Sentences []string
	Href      string
}

// ParsedBook is the complete ingestion result. Chapters follow filtered
// spine order. Immutable once produced.
type ParsedBook struct {
	Title      string
	Author     string
	CoverBytes []byte
	Chapters   []ParsedChapter
}
