package domain

import "errors"

// Sentinel errors for ingestion and library operations
var (
	// ErrArchiveNotFound indicates the source EPUB file does not exist
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrArchiveExtraction indicates the EPUB archive could not be unzipped
	ErrArchiveExtraction = errors.New("archive extraction failed")

	// ErrContainerNotFound indicates META-INF/container.xml is missing
	ErrContainerNotFound = errors.New("container descriptor not found")

	// ErrContainerParsing indicates the container descriptor could not be parsed
	ErrContainerParsing = errors.New("container parsing failed")

	// ErrRootfileNotFound indicates no rootfile entry carries a full-path attribute
	ErrRootfileNotFound = errors.New("no rootfile with full-path attribute")

	// ErrMalformedInput indicates the bytes are not parseable markup
	ErrMalformedInput = errors.New("malformed input")

	// ErrPackageNotFound indicates the package document referenced by the
	// container is missing from the archive
	ErrPackageNotFound = errors.New("package document not found")

	// ErrPackageParsing indicates the package document could not be parsed
	ErrPackageParsing = errors.New("package parsing failed")

	// ErrTOCParsing indicates a table-of-contents document could not be
	// parsed. Always recovered locally; ingestion proceeds without a TOC.
	ErrTOCParsing = errors.New("toc parsing failed")

	// ErrNoChapters indicates every spine item was unreadable, non-text,
	// or produced zero sentences
	ErrNoChapters = errors.New("no readable chapters found")

	// ErrBookNotFound indicates the requested book is not in the library
	ErrBookNotFound = errors.New("book not found")

	// ErrDuplicateBook indicates a book with the same title and author
	// is already in the library
	ErrDuplicateBook = errors.New("book already imported")
)
