package epub

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lectorapp/lector/internal/domain"
)

// textMediaTypes are the manifest media types treated as chapter content.
var textMediaTypes = map[string]bool{
	"application/xhtml+xml": true,
	"text/html":             true,
}

// Ingestor orchestrates the ingestion pipeline: container discovery,
// package parsing, best-effort TOC resolution, and per-spine-item sentence
// extraction.
type Ingestor struct {
	fs     Storage
	split  SplitFunc
	logger *slog.Logger
}

// NewIngestor creates an ingestor. A nil fs uses the OS filesystem; a nil
// split uses the default locale-aware segmenter.
func NewIngestor(fs Storage, split SplitFunc, logger *slog.Logger) *Ingestor {
	if fs == nil {
		fs = OSStorage{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{fs: fs, split: split, logger: logger}
}

// IngestFile extracts the EPUB archive at path into a scratch directory and
// ingests it. The scratch directory is removed afterward.
func (ing *Ingestor) IngestFile(path string) (*ParsedBook, error) {
	if !ing.fs.Exists(path) {
		return nil, fmt.Errorf("%w: %s", domain.ErrArchiveNotFound, path)
	}

	scratch, err := os.MkdirTemp("", "lector-ingest-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrArchiveExtraction, err)
	}
	defer func() {
		if err := ing.fs.RemoveAll(scratch); err != nil {
			ing.logger.Warn("failed to remove scratch directory", "dir", scratch, "error", err)
		}
	}()

	if err := ing.fs.ExtractArchive(path, scratch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrArchiveExtraction, err)
	}

	return ing.IngestDir(scratch)
}

// IngestDir ingests an already-extracted archive rooted at root.
func (ing *Ingestor) IngestDir(root string) (*ParsedBook, error) {
	containerFile := filepath.Join(root, filepath.FromSlash(ContainerPath))
	if !ing.fs.Exists(containerFile) {
		return nil, domain.ErrContainerNotFound
	}

	containerData, err := ing.fs.ReadFile(containerFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrContainerParsing, err)
	}
	container, err := ParseContainer(containerData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrContainerParsing, err)
	}

	opfFile := filepath.Join(root, filepath.FromSlash(container.OPFPath))
	if !ing.fs.Exists(opfFile) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPackageNotFound, container.OPFPath)
	}
	opfData, err := ing.fs.ReadFile(opfFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackageParsing, err)
	}
	pkg, err := ParsePackage(opfData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPackageParsing, err)
	}

	// All manifest hrefs resolve relative to the package document's directory.
	baseDir := filepath.Dir(opfFile)

	toc := ing.resolveTOC(pkg, baseDir)

	book := &ParsedBook{
		Title:  pkg.Metadata.Title,
		Author: pkg.Metadata.Author,
	}

	for _, idref := range pkg.SpineItemRefs {
		item, ok := pkg.ManifestByID(idref)
		if !ok || !textMediaTypes[item.MediaType] {
			continue
		}

		docPath := filepath.Join(baseDir, filepath.FromSlash(item.Href))
		data, err := ing.fs.ReadFile(docPath)
		if err != nil {
			ing.logger.Debug("skipping unreadable spine item", "href", item.Href, "error", err)
			continue
		}

		sentences := ExtractSentences(data, ing.split)
		if len(sentences) == 0 {
			continue
		}

		book.Chapters = append(book.Chapters, ParsedChapter{
			Title:     chapterTitle(toc, docPath, sentences, item.Href),
			Sentences: sentences,
			Href:      item.Href,
		})
	}

	if len(book.Chapters) == 0 {
		return nil, domain.ErrNoChapters
	}

	book.CoverBytes = ing.loadCover(pkg, baseDir)

	ing.logger.Info("ingested book",
		"title", book.Title, "author", book.Author, "chapters", len(book.Chapters))

	return book, nil
}

// resolveTOC tries the EPUB-3 nav item first, then the EPUB-2 NCX. Both are
// best-effort: any read or parse failure, or an empty result, means "no TOC".
// Entry hrefs are resolved to absolute file paths keyed on the TOC document's
// own directory, with fragments stripped.
func (ing *Ingestor) resolveTOC(pkg *PackageResult, baseDir string) map[string]TOCEntry {
	for _, item := range pkg.Manifest {
		if hasPropertyToken(item.Properties, "nav") {
			if toc := ing.parseTOCItem(item, baseDir, ParseNav); toc != nil {
				return toc
			}
			break
		}
	}

	for _, item := range pkg.Manifest {
		if item.MediaType == NCXMediaType {
			if toc := ing.parseTOCItem(item, baseDir, ParseNCX); toc != nil {
				return toc
			}
			break
		}
	}

	return nil
}

func (ing *Ingestor) parseTOCItem(item ManifestItem, baseDir string, parse func([]byte) ([]TOCEntry, error)) map[string]TOCEntry {
	tocPath := filepath.Join(baseDir, filepath.FromSlash(item.Href))
	data, err := ing.fs.ReadFile(tocPath)
	if err != nil {
		ing.logger.Debug("toc item unreadable", "href", item.Href, "error", err)
		return nil
	}

	entries, err := parse(data)
	if err != nil {
		ing.logger.Debug("toc item unparseable", "href", item.Href,
			"error", fmt.Errorf("%w: %w", domain.ErrTOCParsing, err))
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	// Match titles by href with fragments stripped, relative to the TOC
	// document's directory. First entry for a file wins.
	tocDir := filepath.Dir(tocPath)
	byPath := make(map[string]TOCEntry, len(entries))
	for _, e := range entries {
		href := stripFragment(e.Href)
		if href == "" {
			continue
		}
		key := filepath.Clean(filepath.Join(tocDir, filepath.FromSlash(href)))
		if _, seen := byPath[key]; !seen {
			byPath[key] = e
		}
	}
	return byPath
}

// chapterTitle picks the chapter title: TOC entry matched by file path,
// else the first extracted sentence, else the href itself.
func chapterTitle(toc map[string]TOCEntry, docPath string, sentences []string, href string) string {
	if e, ok := toc[filepath.Clean(docPath)]; ok && e.Title != "" {
		return e.Title
	}
	if len(sentences) > 0 && sentences[0] != "" {
		return sentences[0]
	}
	return href
}

// loadCover resolves cover bytes best-effort: the declared cover id through
// the manifest, then a scan of the first spine document for an image
// reference. Absent on any failure.
func (ing *Ingestor) loadCover(pkg *PackageResult, baseDir string) []byte {
	if id := pkg.Metadata.CoverImageID; id != "" {
		if item, ok := pkg.ManifestByID(id); ok {
			path := filepath.Join(baseDir, filepath.FromSlash(item.Href))
			if data, err := ing.fs.ReadFile(path); err == nil {
				return data
			}
		}
	}

	// Cover-page convention: the first spine document is often a bare
	// image wrapper.
	for _, idref := range pkg.SpineItemRefs {
		item, ok := pkg.ManifestByID(idref)
		if !ok || !textMediaTypes[item.MediaType] {
			continue
		}
		docPath := filepath.Join(baseDir, filepath.FromSlash(item.Href))
		data, err := ing.fs.ReadFile(docPath)
		if err != nil {
			return nil
		}
		ref := findCoverImageRef(data)
		if ref == "" {
			return nil
		}
		imgPath := filepath.Clean(filepath.Join(filepath.Dir(docPath), filepath.FromSlash(ref)))
		cover, err := ing.fs.ReadFile(imgPath)
		if err != nil {
			return nil
		}
		return cover
	}

	return nil
}

// stripFragment returns the href with any #fragment removed.
func stripFragment(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		return href[:i]
	}
	return href
}
